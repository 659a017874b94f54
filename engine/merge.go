package engine

import (
	"context"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
)

// merge is a foreign-key cell that the batch both clears and sets. It is
// written once, with the new value, and only while it still holds the
// removed one.
type merge struct {
	assignment sqlgraph.Assignment
	old        any
	removes    []*link
	adds       []*link
}

// pair matches the removes and adds of each foreign-key cell. Only links of
// the same batch are paired; join-table rows are never merged.
func (p *plan) pair() error {
	var (
		cells  []sqlgraph.Cell
		byCell = make(map[sqlgraph.Cell]*merge)
	)
	for _, l := range p.removes {
		if l.cell == nil || l.dup {
			continue
		}
		m, ok := byCell[l.cell.Cell]
		if !ok {
			m = &merge{}
			byCell[l.cell.Cell] = m
			cells = append(cells, l.cell.Cell)
		}
		m.removes = append(m.removes, l)
	}
	for _, l := range p.adds {
		if l.cell == nil || l.dup {
			continue
		}
		m, ok := byCell[l.cell.Cell]
		if !ok {
			continue
		}
		if len(m.adds) > 0 && m.assignment.Value != l.cell.Value {
			return fmt.Errorf("%w: %s is assigned both %v and %v", strata.ErrInternal, l.cell.Cell, m.assignment.Value, l.cell.Value)
		}
		m.assignment = *l.cell
		m.adds = append(m.adds, l)
	}
	for _, c := range cells {
		m := byCell[c]
		if len(m.adds) == 0 {
			continue
		}
		m.old = m.removes[0].cell.Value
		for _, l := range m.removes[1:] {
			if l.cell.Value != m.old {
				return fmt.Errorf("%w: %s is cleared of both %v and %v", strata.ErrInternal, c, m.old, l.cell.Value)
			}
		}
		for _, l := range m.removes {
			l.merged = true
		}
		for _, l := range m.adds {
			l.merged = true
		}
		p.merges = append(p.merges, m)
	}
	return nil
}

// runMerges writes every merged cell with a single update. A cell that no
// longer holds the removed value fails with a *strata.RowCountError, as the
// unmerged remove would.
func (r *run) runMerges(ctx context.Context) error {
	for _, m := range r.merges {
		if err := r.graph.ReplaceCell(ctx, r.eq, m.assignment, m.old); err != nil {
			return err
		}
		r.report.Merged++
	}
	return nil
}
