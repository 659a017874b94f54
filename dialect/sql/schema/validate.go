package schema

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"

	"github.com/syssam/strata/dialect/sql"
	mapping "github.com/syssam/strata/schema"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, e := range errs {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// report records err as a warning if allowed, and as an error otherwise.
func (r *ValidationResult) report(allowed bool, err *ValidationError) {
	if allowed {
		r.Warnings = append(r.Warnings, err)
	} else {
		r.Errors = append(r.Errors, err)
	}
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex allows dropping indexes without error.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateChanges vets a list of schema changes. It returns validation
// errors for breaking changes and warnings for potentially dangerous
// operations.
//
// Example:
//
//	changes, err := schema.Changes(ctx, drv, registry)
//	if err != nil {
//	    return err
//	}
//	if result := schema.ValidateChanges(changes); result.HasBreakingChanges() {
//	    log.Fatal("Breaking changes detected:", result)
//	}
func ValidateChanges(changes []schema.Change, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropTable:
			result.report(cfg.allowDropTable, &ValidationError{
				Table:    c.T.Name,
				Message:  "table will be dropped",
				Breaking: true,
			})
		case *schema.ModifyTable:
			validateTableChanges(c.T.Name, c.Changes, cfg, result)
		}
	}
	return result
}

func validateTableChanges(table string, changes []schema.Change, cfg *validateConfig, result *ValidationResult) {
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropColumn:
			result.report(cfg.allowDropColumn, &ValidationError{
				Table:    table,
				Column:   c.C.Name,
				Message:  "column will be dropped",
				Breaking: true,
			})
		case *schema.AddColumn:
			if !c.C.Type.Null && c.C.Default == nil {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   table,
					Column:  c.C.Name,
					Message: "new NOT NULL column without default value may fail if table has data",
				})
			}
		case *schema.ModifyColumn:
			if c.Change.Is(schema.ChangeType) {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   table,
					Column:  c.To.Name,
					Message: fmt.Sprintf("column type changing from %q", c.From.Type.Raw),
				})
			}
			if c.Change.Is(schema.ChangeNull) && c.From.Type.Null && !c.To.Type.Null {
				result.report(cfg.allowNullToNotNull, &ValidationError{
					Table:    table,
					Column:   c.To.Name,
					Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
					Breaking: true,
				})
			}
		case *schema.DropIndex:
			result.report(cfg.allowDropIndex, &ValidationError{
				Table:   table,
				Message: fmt.Sprintf("index %q will be dropped", c.I.Name),
			})
		case *schema.AddIndex:
			if c.I.Unique {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   table,
					Message: fmt.Sprintf("adding UNIQUE index %q may fail if duplicate values exist", c.I.Name),
				})
			}
		}
	}
}

// ValidateMapping checks that the names of a mapping can be used as SQL
// identifiers and that no two attributes, references or system columns
// share a column.
func ValidateMapping(m Mapping) *ValidationResult {
	v := &mappingValidator{
		mapping: m,
		result:  &ValidationResult{},
		columns: make(map[string]map[string]string),
		owners:  make(map[string]*mapping.Type),
	}
	for _, t := range m.Types() {
		v.entity(t)
	}
	for _, t := range m.Types() {
		for _, ref := range t.References {
			v.reference(ref)
		}
	}
	return v.result
}

type mappingValidator struct {
	mapping Mapping
	result  *ValidationResult
	// columns maps table names to the owner of each of their columns.
	columns map[string]map[string]string
	owners  map[string]*mapping.Type
}

func (v *mappingValidator) fail(table, column, format string, args ...any) {
	v.result.Errors = append(v.result.Errors, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (v *mappingValidator) identifier(table, column string) bool {
	switch {
	case !sql.IsValidIdentifier(table):
		v.fail(table, "", "invalid table name")
		return false
	case column != "" && !sql.IsValidIdentifier(column):
		v.fail(table, column, "invalid column name")
		return false
	}
	return true
}

// claim records owner as the user of the column, failing if another owner
// already uses it.
func (v *mappingValidator) claim(table, column, owner string) {
	if !v.identifier(table, column) {
		return
	}
	cols := v.columns[table]
	if prev, ok := cols[column]; ok && prev != owner {
		v.fail(table, column, "column of %s is already used by %s", owner, prev)
		return
	}
	cols[column] = owner
}

func (v *mappingValidator) entity(t *mapping.Type) {
	table := v.mapping.TableOf(t)
	if table == "" {
		return
	}
	if prev, ok := v.owners[table]; ok {
		v.fail(table, "", "table is shared by types %s and %s", prev, t)
		return
	}
	v.owners[table] = t
	v.columns[table] = make(map[string]string)
	sc := v.mapping.Columns()
	for _, c := range []string{sc.ID, sc.Type, sc.Version, sc.CreatedByID, sc.CreatedByName, sc.CreatedAt, sc.UpdatedByID, sc.UpdatedByName, sc.UpdatedAt} {
		v.claim(table, c, "system columns")
	}
	for _, a := range t.Attributes {
		v.claim(table, v.mapping.AttributeColumn(a), "attribute "+a.String())
		if a.Identifying && !a.Mandatory {
			v.result.Warnings = append(v.result.Warnings, &ValidationError{
				Table:   table,
				Column:  a.Column,
				Message: "optional identifying attribute is only checked for uniqueness when set",
			})
		}
	}
}

func (v *mappingValidator) reference(ref *mapping.Reference) {
	rule, err := v.mapping.RuleOf(ref)
	if err != nil {
		v.fail(v.mapping.TableOf(ref.Owner), "", "%v", err)
		return
	}
	switch rule {
	case mapping.ForeignKey, mapping.InverseForeignKey:
		holder, cell := ref.Owner, ref
		if rule == mapping.InverseForeignKey {
			holder = ref.Target
			if ref.Opposite != nil {
				cell = ref.Opposite
			}
		}
		col, err := v.mapping.ReferenceColumn(ref)
		if err != nil {
			v.fail(v.mapping.TableOf(holder), "", "%v", err)
			return
		}
		table := v.mapping.TableOf(holder)
		if _, ok := v.columns[table]; !ok {
			v.fail(table, col, "reference %s is stored on type %s, which has no table", ref, holder)
			return
		}
		v.claim(table, col, "reference "+cell.String())
	case mapping.JoinTable:
		j, err := v.mapping.JoinTableOf(ref)
		if err != nil {
			v.fail(v.mapping.TableOf(ref.Owner), "", "%v", err)
			return
		}
		if _, ok := v.owners[j.Table]; ok {
			v.fail(j.Table, "", "join table of %s is an entity table", ref)
			return
		}
		for _, c := range []string{j.Key, j.Near, j.Far} {
			if !v.identifier(j.Table, c) {
				return
			}
		}
		if j.Near == j.Far || j.Key == j.Near || j.Key == j.Far {
			v.fail(j.Table, "", "join columns of %s are not distinct", ref)
		}
	}
}
