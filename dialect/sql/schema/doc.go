// Package schema creates and vets the tables a mapping is stored in.
//
// Tables turns a mapping into atlas table definitions, Create applies them
// to a database, and ValidateMapping and ValidateChanges report problems
// before anything is written.
//
//	reg, err := mapping.LoadYAMLFile("mapping.yaml")
//	if err != nil {
//	    return err
//	}
//	if res := schema.ValidateMapping(reg); res.HasErrors() {
//	    return errors.New(res.String())
//	}
//	return schema.Create(ctx, drv, reg, schema.WithIDType(field.TypeInt64))
package schema
