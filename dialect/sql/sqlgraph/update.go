package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/statement"
)

// Update writes an instance table by table. When the statement carries
// audit values, the stored version is incremented and the modification
// columns are set first, guarded by the expected version if one is given;
// a guarded update matching no row is a version conflict. The changed
// attributes of the table are written by a second update. Both must affect
// exactly one row.
func (g *Graph) Update(ctx context.Context, drv dialect.ExecQuerier, s *statement.Update) error {
	inst := s.Instance
	chain, err := g.tables(inst)
	if err != nil {
		return err
	}
	attrs, err := g.attributes(inst, chain)
	if err != nil {
		return err
	}
	id, err := g.value(inst.ID)
	if err != nil {
		return err
	}
	for _, t := range chain {
		table := g.provider.TableOf(t)
		if !s.Audit.Empty() {
			if err := g.updateAudit(ctx, drv, inst, table, id, s.Audit); err != nil {
				return err
			}
		}
		if len(attrs[t]) == 0 {
			continue
		}
		upd := g.builder().Update(table)
		for _, a := range attrs[t] {
			v, err := g.value(inst.Values[a])
			if err != nil {
				return err
			}
			upd.Set(g.provider.AttributeColumn(a), v)
		}
		if err := exec(ctx, drv, "update", table, inst.ID, upd.Where(sql.EQ(g.columns.ID, id))); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) updateAudit(ctx context.Context, drv dialect.ExecQuerier, inst *statement.Instance, table string, id any, a statement.Audit) error {
	upd := g.builder().Update(table).Add(g.columns.Version, 1)
	if a.Timestamp != nil {
		ts, err := g.value(*a.Timestamp)
		if err != nil {
			return err
		}
		upd.Set(g.columns.UpdatedAt, ts)
	}
	if a.UserID != nil {
		uid, err := g.value(a.UserID)
		if err != nil {
			return err
		}
		upd.Set(g.columns.UpdatedByID, uid)
	}
	if a.UserName != "" {
		upd.Set(g.columns.UpdatedByName, a.UserName)
	}
	pred := sql.EQ(g.columns.ID, id)
	if a.Version != nil {
		pred = sql.And(pred, sql.EQ(g.columns.Version, *a.Version))
	}
	n, err := sql.ExecAffected(ctx, drv, upd.Where(pred))
	switch {
	case err != nil:
		return fmt.Errorf("sqlgraph: update %s: %w", table, wrapConstraint(err))
	case n == 0 && a.Version != nil:
		return strata.NewVersionConflictError(inst.Type.Name, table, inst.ID, *a.Version)
	case n != 1:
		return strata.NewRowCountError("update", table, inst.ID, n)
	}
	return nil
}
