package engine

import (
	"fmt"
	"slices"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/statement"
)

// link is an AddReference or RemoveReference statement with its resolved
// edges.
type link struct {
	near        *statement.Instance
	far         any
	ref         *schema.Reference
	referencing []any
	// edges[0] follows the declared reference; edges[1], if any, is its
	// mirror.
	edges []sqlgraph.Edge
	// cell is set for foreign-key edges.
	cell *sqlgraph.Assignment
	// row identifies the stored link: the cell assignment, or the join row.
	row any

	// dup is set when an earlier statement stated the same link from the
	// opposite end.
	dup bool
	// inlined is set when the link is written by the insert of its holder.
	inlined bool
	// merged is set when the link is part of a remove/add pair on one cell.
	merged bool
}

func (l *link) String() string {
	return fmt.Sprintf("%s.%s -> %v", l.near, l.ref.Name, l.far)
}

// joinRow identifies a join-table row independently of the end it is
// stated from.
type joinRow struct {
	table string
	a, b  any
}

// end is one side of a reference: the instance id and the reference it
// declares.
type end struct {
	ref *schema.Reference
	id  any
}

// plan holds everything derived from a batch before the first statement
// runs.
type plan struct {
	batch    statement.Batch
	inserts  []*statement.Insert
	deletes  []*statement.Delete
	updates  []*statement.Update
	adds     []*link
	removes  []*link
	inserted map[any]*statement.Instance
	deleted  map[any]*statement.Instance

	// unlinked holds, per reference end, the ids removed from it.
	unlinked map[end]map[any]struct{}

	insertOrder []int
	deleteOrder []int
	// inline holds the mandatory cells written by each insert, by holder.
	inline map[any][]sqlgraph.Assignment
	merges []*merge
}

// newPlan resolves the references of the batch, schedules its inserts and
// deletes, and pairs the cells to merge. Errors are fatal.
func newPlan(g *sqlgraph.Graph, b statement.Batch) (*plan, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", strata.ErrInternal, err)
	}
	p := &plan{
		batch:    b,
		inserts:  b.Inserts(),
		deletes:  b.Deletes(),
		updates:  b.Updates(),
		inserted: make(map[any]*statement.Instance),
		deleted:  make(map[any]*statement.Instance),
		unlinked: make(map[end]map[any]struct{}),
		inline:   make(map[any][]sqlgraph.Assignment),
	}
	for _, s := range p.inserts {
		if _, ok := p.inserted[s.Instance.ID]; ok {
			return nil, fmt.Errorf("%w: %s inserted twice", strata.ErrInternal, s.Instance)
		}
		p.inserted[s.Instance.ID] = s.Instance
	}
	for _, s := range p.deletes {
		if _, ok := p.deleted[s.Instance.ID]; ok {
			return nil, fmt.Errorf("%w: %s deleted twice", strata.ErrInternal, s.Instance)
		}
		p.deleted[s.Instance.ID] = s.Instance
	}
	for _, s := range b.AddReferences() {
		l, err := newLink(g, s.Instance, s.Reference, s.ID)
		if err != nil {
			return nil, err
		}
		l.referencing = s.Referencing
		p.adds = append(p.adds, l)
	}
	for _, s := range b.RemoveReferences() {
		l, err := newLink(g, s.Instance, s.Reference, s.ID)
		if err != nil {
			return nil, err
		}
		p.removes = append(p.removes, l)
		p.unlink(l)
	}
	markDups(p.adds)
	markDups(p.removes)
	if err := p.schedule(g); err != nil {
		return nil, err
	}
	if err := p.pair(); err != nil {
		return nil, err
	}
	if err := p.inlineCells(g); err != nil {
		return nil, err
	}
	return p, nil
}

func newLink(g *sqlgraph.Graph, near *statement.Instance, ref *schema.Reference, far any) (*link, error) {
	edges, err := g.Resolver().Resolve(ref, near.ID, far)
	if err != nil {
		return nil, err
	}
	l := &link{near: near, far: far, ref: ref, edges: edges}
	e := edges[0]
	if e.Rule == schema.JoinTable {
		j, err := g.Provider().JoinTableOf(ref)
		if err != nil {
			return nil, err
		}
		row := joinRow{table: j.Table, a: near.ID, b: far}
		if j.Near > j.Far {
			row.a, row.b = far, near.ID
		}
		l.row = row
		return l, nil
	}
	as, err := g.Cell(e)
	if err != nil {
		return nil, err
	}
	l.cell, l.row = &as, as
	return l, nil
}

// markDups flags the links restating an earlier link from the opposite
// end. Restating a link from the same end is left to the executors, which
// reject it.
func markDups(links []*link) {
	seen := make(map[any]*schema.Reference, len(links))
	for _, l := range links {
		ref, ok := seen[l.row]
		if ok && ref != l.ref {
			l.dup = true
			continue
		}
		if !ok {
			seen[l.row] = l.ref
		}
	}
}

func (p *plan) unlink(l *link) {
	addTo(p.unlinked, end{l.ref, l.near.ID}, l.far)
	if l.ref.Opposite != nil {
		addTo(p.unlinked, end{l.ref.Opposite, l.far}, l.near.ID)
	}
}

// schedule orders inserts along the edges being added and deletes along
// the edges being removed.
func (p *plan) schedule(g *sqlgraph.Graph) error {
	nodes := make([]*statement.Instance, len(p.inserts))
	for i, s := range p.inserts {
		nodes[i] = s.Instance
	}
	order, err := sqlgraph.Schedule(nodes, g.Dependencies(edgesOf(p.adds), sqlgraph.Creation))
	if err != nil {
		return err
	}
	p.insertOrder = order

	nodes = make([]*statement.Instance, len(p.deletes))
	for i, s := range p.deletes {
		nodes[i] = s.Instance
	}
	order, err = sqlgraph.Schedule(nodes, g.Dependencies(edgesOf(p.removes), sqlgraph.Deletion))
	if err != nil {
		return err
	}
	p.deleteOrder = order
	return nil
}

func edgesOf(links []*link) []sqlgraph.Edge {
	var edges []sqlgraph.Edge
	for _, l := range links {
		edges = append(edges, l.edges...)
	}
	return edges
}

// inlineCells hands the mandatory foreign-key cells of inserted holders to
// their insert. The scheduler has placed the referenced row first, or it
// already exists.
func (p *plan) inlineCells(g *sqlgraph.Graph) error {
	for _, l := range p.adds {
		if l.cell == nil || l.dup || l.merged || !g.Mandatory(l.edges[0]) {
			continue
		}
		holder := l.cell.Holder
		if _, ok := p.inserted[holder]; !ok {
			continue
		}
		l.inlined = true
		if i := slices.IndexFunc(p.inline[holder], func(as sqlgraph.Assignment) bool { return as.Cell == l.cell.Cell }); i >= 0 {
			if p.inline[holder][i].Value != l.cell.Value {
				return fmt.Errorf("%w: %s is assigned both %v and %v", strata.ErrInternal, l.cell.Cell, p.inline[holder][i].Value, l.cell.Value)
			}
			continue
		}
		p.inline[holder] = append(p.inline[holder], *l.cell)
	}
	return nil
}
