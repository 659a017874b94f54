package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
)

// AddReference stores the edge. Foreign-key edges set the column of the
// holder row to the opposite identifier. Join-table edges insert a new row
// with a fresh surrogate key, failing with a *strata.DuplicateJoinRowError
// if the pair is already stored.
func (g *Graph) AddReference(ctx context.Context, drv dialect.ExecQuerier, e Edge) error {
	if e.Rule == schema.JoinTable {
		return g.addJoinRow(ctx, drv, e)
	}
	as, err := g.Cell(e)
	if err != nil {
		return err
	}
	return g.SetCell(ctx, drv, as)
}

// SetCell writes the value of the assignment into its cell.
func (g *Graph) SetCell(ctx context.Context, drv dialect.ExecQuerier, as Assignment) error {
	holder, err := g.value(as.Holder)
	if err != nil {
		return err
	}
	v, err := g.value(as.Value)
	if err != nil {
		return err
	}
	upd := g.builder().Update(as.Table).
		Set(as.Column, v).
		Where(sql.EQ(g.columns.ID, holder))
	return exec(ctx, drv, "update", as.Table, as.Holder, upd)
}

// ReplaceCell writes the value of the assignment into its cell if the cell
// currently holds old. A cell holding anything else leaves the row
// untouched and fails with a *strata.RowCountError.
func (g *Graph) ReplaceCell(ctx context.Context, drv dialect.ExecQuerier, as Assignment, old any) error {
	holder, err := g.value(as.Holder)
	if err != nil {
		return err
	}
	v, err := g.value(as.Value)
	if err != nil {
		return err
	}
	prev, err := g.value(old)
	if err != nil {
		return err
	}
	upd := g.builder().Update(as.Table).
		Set(as.Column, v).
		Where(sql.And(sql.EQ(g.columns.ID, holder), sql.EQ(as.Column, prev)))
	return exec(ctx, drv, "update", as.Table, as.Holder, upd)
}

// RemoveReference deletes the edge. Foreign-key edges clear the column of
// the holder row, which must currently point at the opposite identifier.
// Join-table edges delete the row of the pair, failing with a
// *strata.MissingJoinRowError if there is none.
func (g *Graph) RemoveReference(ctx context.Context, drv dialect.ExecQuerier, e Edge) error {
	if e.Rule == schema.JoinTable {
		return g.removeJoinRow(ctx, drv, e)
	}
	as, err := g.Cell(e)
	if err != nil {
		return err
	}
	holder, err := g.value(as.Holder)
	if err != nil {
		return err
	}
	v, err := g.value(as.Value)
	if err != nil {
		return err
	}
	upd := g.builder().Update(as.Table).
		SetNull(as.Column).
		Where(sql.And(sql.EQ(g.columns.ID, holder), sql.EQ(as.Column, v)))
	return exec(ctx, drv, "update", as.Table, as.Holder, upd)
}

// joinPredicate returns the join table of the edge and the predicate
// matching its pair.
func (g *Graph) joinPredicate(e Edge) (*schema.Join, sql.Predicate, []any, error) {
	j, err := g.provider.JoinTableOf(e.Reference)
	if err != nil {
		return nil, nil, nil, err
	}
	near, err := g.value(e.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	far, err := g.value(e.OppositeID)
	if err != nil {
		return nil, nil, nil, err
	}
	return j, sql.And(sql.EQ(j.Near, near), sql.EQ(j.Far, far)), []any{near, far}, nil
}

func (g *Graph) addJoinRow(ctx context.Context, drv dialect.ExecQuerier, e Edge) error {
	j, pred, pair, err := g.joinPredicate(e)
	if err != nil {
		return err
	}
	n, err := sql.QueryInt(ctx, drv, g.builder().Count(j.Table).Where(pred))
	if err != nil {
		return fmt.Errorf("sqlgraph: count %s: %w", j.Table, err)
	}
	dup := &strata.DuplicateJoinRowError{Table: j.Table, Reference: e.Reference.String(), Near: e.ID, Far: e.OppositeID}
	if n > 0 {
		return dup
	}
	key, err := g.ids.New()
	if err != nil {
		return fmt.Errorf("sqlgraph: new join key: %w", err)
	}
	kv, err := g.value(key)
	if err != nil {
		return err
	}
	ins := g.builder().Insert(j.Table).
		Set(j.Key, kv).
		Set(j.Near, pair[0]).
		Set(j.Far, pair[1])
	if err := exec(ctx, drv, "insert", j.Table, key, ins); err != nil {
		if IsUniqueConstraintError(err) {
			return dup
		}
		return err
	}
	return nil
}

func (g *Graph) removeJoinRow(ctx context.Context, drv dialect.ExecQuerier, e Edge) error {
	j, pred, _, err := g.joinPredicate(e)
	if err != nil {
		return err
	}
	n, err := sql.QueryInt(ctx, drv, g.builder().Count(j.Table).Where(pred))
	if err != nil {
		return fmt.Errorf("sqlgraph: count %s: %w", j.Table, err)
	}
	if n == 0 {
		return &strata.MissingJoinRowError{Table: j.Table, Reference: e.Reference.String(), Near: e.ID, Far: e.OppositeID}
	}
	return exec(ctx, drv, "delete", j.Table, fmt.Sprintf("%v/%v", e.ID, e.OppositeID), g.builder().Delete(j.Table).Where(pred))
}
