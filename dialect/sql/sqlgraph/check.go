package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/statement"
)

// CheckUnique fails with a uniqueness validation error if another row holds
// the identifying attribute values of the instance. Each table of the chain
// is checked separately when the instance sets at least one identifying
// attribute declared on it. Identifying attributes left unset take the
// values stored for the instance; a combination holding NULL never
// collides and is not checked.
func (g *Graph) CheckUnique(ctx context.Context, drv dialect.ExecQuerier, s *statement.CheckUnique) error {
	inst := s.Instance
	chain, err := g.tables(inst)
	if err != nil {
		return err
	}
	id, err := g.value(inst.ID)
	if err != nil {
		return err
	}
Tables:
	for _, t := range chain {
		var (
			preds   []sql.Predicate
			missing []*schema.Attribute
			values  = make(map[string]any)
		)
		for _, a := range t.Attributes {
			if !a.Identifying {
				continue
			}
			v, ok := inst.Values[a]
			if !ok {
				missing = append(missing, a)
				continue
			}
			dv, err := g.value(v)
			if err != nil {
				return err
			}
			preds = append(preds, sql.EQ(g.provider.AttributeColumn(a), dv))
			values[a.Name] = v
		}
		if len(preds) == 0 {
			continue
		}
		table := g.provider.TableOf(t)
		if len(missing) > 0 {
			stored, err := g.stored(ctx, drv, table, id, missing)
			if err != nil {
				return err
			}
			for i, a := range missing {
				if stored == nil || stored[i] == nil {
					continue Tables
				}
				preds = append(preds, sql.EQ(g.provider.AttributeColumn(a), stored[i]))
				values[a.Name] = stored[i]
			}
		}
		preds = append(preds, sql.NEQ(g.columns.ID, id))
		n, err := sql.QueryInt(ctx, drv, g.builder().Count(table).Where(sql.And(preds...)))
		if err != nil {
			return fmt.Errorf("sqlgraph: count %s: %w", table, err)
		}
		if n > 0 {
			return strata.NewUniquenessError(inst.Type.Name, inst.ID, values)
		}
	}
	return nil
}

// stored reads the columns of the attributes from the row id of table. It
// returns nil if the row is not stored.
func (g *Graph) stored(ctx context.Context, drv dialect.ExecQuerier, table string, id any, attrs []*schema.Attribute) ([]any, error) {
	columns := make([]string, len(attrs))
	for i, a := range attrs {
		columns[i] = g.provider.AttributeColumn(a)
	}
	var values []any
	sel := g.builder().Select(columns...).From(table).Where(sql.EQ(g.columns.ID, id))
	err := sql.QueryRows(ctx, drv, sel, func(rows sql.ColumnScanner) error {
		if !rows.Next() {
			return nil
		}
		values = make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		return rows.Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: select %s: %w", table, err)
	}
	return values, nil
}

// InstanceExists fails with an entity-not-found validation error if the
// instance is not stored in the table of its most-specific type. More than
// one matching row is a *strata.RowCountError.
func (g *Graph) InstanceExists(ctx context.Context, drv dialect.ExecQuerier, s *statement.InstanceExists) error {
	inst := s.Instance
	chain, err := g.tables(inst)
	if err != nil {
		return err
	}
	id, err := g.value(inst.ID)
	if err != nil {
		return err
	}
	table := g.provider.TableOf(chain[0])
	n, err := sql.QueryInt(ctx, drv, g.builder().Count(table).Where(sql.EQ(g.columns.ID, id)))
	if err != nil {
		return fmt.Errorf("sqlgraph: count %s: %w", table, err)
	}
	switch {
	case n == 0:
		return strata.NewEntityNotFoundError(inst.Type.Name, inst.ID)
	case n > 1:
		return strata.NewRowCountError("exists", table, inst.ID, n)
	}
	return nil
}
