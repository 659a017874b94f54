// Package sqlgraph turns statements and reference edges into keyed SQL
// writes. It resolves how each reference is stored, orders inserts and
// deletes along mandatory references, and runs the per-kind executors.
package sqlgraph

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/statement"
)

// Graph executes statements against the tables described by a schema
// provider. It holds no per-batch state and is safe for concurrent use.
type Graph struct {
	provider schema.Provider
	coercer  field.Coercer
	ids      schema.IDProvider
	dialect  string
	columns  schema.SystemColumns
	resolver *Resolver
}

// Option configures a Graph.
type Option func(*Graph)

// WithCoercer sets the value coercer. Defaults to field.DefaultCoercer.
func WithCoercer(c field.Coercer) Option {
	return func(g *Graph) {
		g.coercer = c
	}
}

// WithIDProvider sets the generator of join-row surrogate keys. Defaults to
// schema.UUIDProvider.
func WithIDProvider(p schema.IDProvider) Option {
	return func(g *Graph) {
		g.ids = p
	}
}

// New returns a Graph issuing SQL in the given dialect.
func New(d string, p schema.Provider, opts ...Option) *Graph {
	g := &Graph{
		provider: p,
		coercer:  field.DefaultCoercer{},
		ids:      schema.UUIDProvider{},
		dialect:  d,
		columns:  p.Columns(),
		resolver: NewResolver(p),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider returns the schema provider of the graph.
func (g *Graph) Provider() schema.Provider { return g.provider }

// Resolver returns the reference resolver of the graph.
func (g *Graph) Resolver() *Resolver { return g.resolver }

// Cell is one foreign-key column of one row.
type Cell struct {
	// Holder is the identifier of the row holding the column.
	Holder any
	Table  string
	Column string
}

// String returns "table.column[holder]".
func (c Cell) String() string {
	return fmt.Sprintf("%s.%s[%v]", c.Table, c.Column, c.Holder)
}

// Assignment is a cell together with the identifier it points to.
type Assignment struct {
	Cell
	Value any
}

// Cell returns the cell storing a ForeignKey or InverseForeignKey edge and
// the identifier written into it.
func (g *Graph) Cell(e Edge) (Assignment, error) {
	col, err := g.provider.ReferenceColumn(e.Reference)
	if err != nil {
		return Assignment{}, err
	}
	holder, value := e.Holder()
	var t *schema.Type
	switch e.Rule {
	case schema.ForeignKey:
		t = e.Reference.Owner
	case schema.InverseForeignKey:
		t = e.Reference.Target
	default:
		return Assignment{}, strata.NewSchemaResolutionError(e.Reference.String(), "join table reference has no cell")
	}
	table := g.provider.TableOf(t)
	if table == "" {
		return Assignment{}, strata.NewSchemaResolutionError(e.Reference.String(), fmt.Sprintf("type %s has no table", t))
	}
	return Assignment{Cell: Cell{Holder: holder, Table: table, Column: col}, Value: value}, nil
}

// Mandatory reports whether the edge links rows that cannot exist without
// each other: the reference or its opposite has a lower bound of one.
func (g *Graph) Mandatory(e Edge) bool {
	if g.provider.IsMandatory(e.Reference) {
		return true
	}
	return e.Reference.Opposite != nil && g.provider.IsMandatory(e.Reference.Opposite)
}

func (g *Graph) builder() *sql.DialectBuilder { return sql.Dialect(g.dialect) }

// value coerces v into a driver parameter.
func (g *Graph) value(v any) (any, error) {
	dv, err := g.coercer.Value(v)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: %w", err)
	}
	return dv, nil
}

// tables returns the table-backed types of the instance chain.
func (g *Graph) tables(inst *statement.Instance) ([]*schema.Type, error) {
	chain := g.provider.AncestorChain(inst.Type)
	if len(chain) == 0 {
		return nil, strata.NewSchemaResolutionError(inst.Type.Name, "type has no table")
	}
	return chain, nil
}

// attributes groups the set attributes of the instance by the chain type
// declaring them, in declaration order.
func (g *Graph) attributes(inst *statement.Instance, chain []*schema.Type) (map[*schema.Type][]*schema.Attribute, error) {
	byType := make(map[*schema.Type][]*schema.Attribute, len(chain))
	n := 0
	for _, t := range chain {
		for _, a := range t.Attributes {
			if _, ok := inst.Values[a]; ok {
				byType[t] = append(byType[t], a)
				n++
			}
		}
	}
	if n == len(inst.Values) {
		return byType, nil
	}
	for a := range inst.Values {
		if !slices.Contains(byType[a.Owner], a) {
			return nil, strata.NewSchemaResolutionError(a.String(), fmt.Sprintf("attribute is not stored for %s", inst.Type))
		}
	}
	return byType, nil
}

// exec runs a keyed write and checks that it touched exactly one row.
func exec(ctx context.Context, drv dialect.ExecQuerier, op, table string, id any, q sql.Querier) error {
	n, err := sql.ExecAffected(ctx, drv, q)
	if err != nil {
		return fmt.Errorf("sqlgraph: %s %s: %w", op, table, wrapConstraint(err))
	}
	if n != 1 {
		return strata.NewRowCountError(op, table, id, n)
	}
	return nil
}
