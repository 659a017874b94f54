package sqlgraph

import (
	"context"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/statement"
)

// Delete removes the rows of an instance from every table of its chain,
// most-specific first. Every delete must affect exactly one row.
func (g *Graph) Delete(ctx context.Context, drv dialect.ExecQuerier, s *statement.Delete) error {
	inst := s.Instance
	chain, err := g.tables(inst)
	if err != nil {
		return err
	}
	id, err := g.value(inst.ID)
	if err != nil {
		return err
	}
	for _, t := range chain {
		table := g.provider.TableOf(t)
		del := g.builder().Delete(table).Where(sql.EQ(g.columns.ID, id))
		if err := exec(ctx, drv, "delete", table, inst.ID, del); err != nil {
			return err
		}
	}
	return nil
}
