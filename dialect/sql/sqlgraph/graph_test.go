package sqlgraph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/schema"
)

// fixture declares:
//
//	Order 0..* items <-> order 1..1 Item   (items.order_id)
//	Order 0..* tags  <-> orders 0..* Tag   (order_tags)
//	Person -> Party                         (people, parties)
type fixture struct {
	reg              *schema.Registry
	order, item, tag *schema.Type
	party, person    *schema.Type
	items, itemOrder *schema.Reference
	tags, tagOrders  *schema.Reference
	graph            *sqlgraph.Graph
}

func newFixture(t *testing.T, opts ...sqlgraph.Option) *fixture {
	t.Helper()
	f := &fixture{
		order: &schema.Type{Name: "Order", Attributes: []*schema.Attribute{
			{Name: "orderNumber", Identifying: true},
			{Name: "status"},
		}},
		item:  &schema.Type{Name: "Item", Attributes: []*schema.Attribute{{Name: "sku"}}},
		tag:   &schema.Type{Name: "Tag", Attributes: []*schema.Attribute{{Name: "label", Identifying: true}}},
		party: &schema.Type{Name: "Party", Attributes: []*schema.Attribute{{Name: "name"}}},
	}
	f.person = &schema.Type{Name: "Person", Parent: f.party, Attributes: []*schema.Attribute{{Name: "birthday"}}}
	f.items = &schema.Reference{Name: "items", Target: f.item, Upper: schema.Many}
	f.itemOrder = &schema.Reference{Name: "order", Target: f.order, Lower: 1, Upper: 1}
	f.tags = &schema.Reference{Name: "tags", Target: f.tag, Upper: schema.Many}
	f.tagOrders = &schema.Reference{Name: "orders", Target: f.order, Upper: schema.Many}
	f.order.References = []*schema.Reference{f.items, f.tags}
	f.item.References = []*schema.Reference{f.itemOrder}
	f.tag.References = []*schema.Reference{f.tagOrders}
	schema.Link(f.items, f.itemOrder)
	schema.Link(f.tags, f.tagOrders)

	f.reg = schema.NewRegistry()
	require.NoError(t, f.reg.Register(f.order, f.item, f.tag, f.party, f.person))
	require.NoError(t, f.reg.Finalize())
	f.graph = sqlgraph.New(dialect.SQLite, f.reg, opts...)
	return f
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	r := f.graph.Resolver()

	edges, err := r.Resolve(f.itemOrder, 10, 1)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, sqlgraph.Edge{ID: 10, OppositeID: 1, Reference: f.itemOrder, Rule: schema.ForeignKey}, edges[0])
	assert.Equal(t, sqlgraph.Edge{ID: 1, OppositeID: 10, Reference: f.items, Rule: schema.InverseForeignKey, Mirror: true}, edges[1])

	edges, err = r.Resolve(f.tags, 1, 5)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, schema.JoinTable, edges[0].Rule)
	assert.Equal(t, schema.JoinTable, edges[1].Rule)
	assert.Same(t, f.tagOrders, edges[1].Reference)
}

func TestResolveUnidirectional(t *testing.T) {
	customer := &schema.Type{Name: "Customer"}
	order := &schema.Type{Name: "Order"}
	ref := &schema.Reference{Name: "customer", Target: customer}
	order.References = []*schema.Reference{ref}
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(order, customer))
	require.NoError(t, reg.Finalize())

	edges, err := sqlgraph.NewResolver(reg).Resolve(ref, 1, 2)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.False(t, edges[0].Mirror)
}

func TestResolveMismatch(t *testing.T) {
	f := newFixture(t)
	// Both sides claiming the foreign key is an unresolvable mapping.
	f.items.Rule = schema.ForeignKey
	_, err := f.graph.Resolver().Resolve(f.itemOrder, 10, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, strata.ErrSchemaResolution))
	assert.True(t, strata.IsFatal(err))

	_, err = f.graph.Resolver().Resolve(&schema.Reference{Name: "dangling"}, 1, 2)
	assert.True(t, errors.Is(err, strata.ErrSchemaResolution))
}

func TestEdgeHolder(t *testing.T) {
	f := newFixture(t)
	edges, err := f.graph.Resolver().Resolve(f.itemOrder, 10, 1)
	require.NoError(t, err)

	holder, value := edges[0].Holder()
	assert.Equal(t, 10, holder)
	assert.Equal(t, 1, value)
	holder, value = edges[1].Holder()
	assert.Equal(t, 10, holder)
	assert.Equal(t, 1, value)

	edges, err = f.graph.Resolver().Resolve(f.tags, 1, 5)
	require.NoError(t, err)
	holder, value = edges[0].Holder()
	assert.Nil(t, holder)
	assert.Nil(t, value)
}

func TestCell(t *testing.T) {
	f := newFixture(t)
	edges, err := f.graph.Resolver().Resolve(f.items, 1, 10)
	require.NoError(t, err)

	// An edge and its mirror address the same cell.
	a, err := f.graph.Cell(edges[0])
	require.NoError(t, err)
	b, err := f.graph.Cell(edges[1])
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, sqlgraph.Cell{Holder: 10, Table: "items", Column: "order_id"}, a.Cell)
	assert.Equal(t, 1, a.Value)
	assert.Equal(t, "items.order_id[10]", a.String())

	edges, err = f.graph.Resolver().Resolve(f.tags, 1, 5)
	require.NoError(t, err)
	_, err = f.graph.Cell(edges[0])
	assert.True(t, errors.Is(err, strata.ErrSchemaResolution))
}

func TestMandatory(t *testing.T) {
	f := newFixture(t)
	edges, err := f.graph.Resolver().Resolve(f.items, 1, 10)
	require.NoError(t, err)
	assert.True(t, f.graph.Mandatory(edges[0]), "opposite is mandatory")
	assert.True(t, f.graph.Mandatory(edges[1]))

	edges, err = f.graph.Resolver().Resolve(f.tags, 1, 5)
	require.NoError(t, err)
	assert.False(t, f.graph.Mandatory(edges[0]))
}
