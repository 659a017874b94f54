package sqlgraph

import (
	"context"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/statement"
)

// Insert writes one row into every table of the instance chain, most-specific
// first. Each row carries the identifier, the type marker, the audit columns
// present in the statement, the attributes declared on that table and the
// inline assignments whose cell belongs to that row. Every row insert must
// affect exactly one row.
func (g *Graph) Insert(ctx context.Context, drv dialect.ExecQuerier, s *statement.Insert, inline []Assignment) error {
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
		ins := g.builder().Insert(table).
			Set(g.columns.ID, id).
			Set(g.columns.Type, inst.Type.Name)
		if err := g.insertAudit(ins, s.Audit); err != nil {
			return err
		}
		for _, a := range attrs[t] {
			v, err := g.value(inst.Values[a])
			if err != nil {
				return err
			}
			ins.Set(g.provider.AttributeColumn(a), v)
		}
		for _, as := range inline {
			if as.Table != table || as.Holder != inst.ID {
				continue
			}
			v, err := g.value(as.Value)
			if err != nil {
				return err
			}
			ins.Set(as.Column, v)
		}
		if err := exec(ctx, drv, "insert", table, inst.ID, ins); err != nil {
			return err
		}
	}
	return nil
}

// insertAudit sets the creation and modification audit columns.
func (g *Graph) insertAudit(ins *sql.InsertBuilder, a statement.Audit) error {
	if a.Version != nil {
		ins.Set(g.columns.Version, *a.Version)
	}
	if a.Timestamp != nil {
		ts, err := g.value(*a.Timestamp)
		if err != nil {
			return err
		}
		ins.Set(g.columns.CreatedAt, ts).Set(g.columns.UpdatedAt, ts)
	}
	if a.UserID != nil {
		uid, err := g.value(a.UserID)
		if err != nil {
			return err
		}
		ins.Set(g.columns.CreatedByID, uid).Set(g.columns.UpdatedByID, uid)
	}
	if a.UserName != "" {
		ins.Set(g.columns.CreatedByName, a.UserName).Set(g.columns.UpdatedByName, a.UserName)
	}
	return nil
}
