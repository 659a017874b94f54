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
	"github.com/syssam/strata/statement"
)

func TestDependencies(t *testing.T) {
	f := newFixture(t)
	edges, err := f.graph.Resolver().Resolve(f.itemOrder, 10, 1)
	require.NoError(t, err)
	tagEdges, err := f.graph.Resolver().Resolve(f.tags, 1, 5)
	require.NoError(t, err)
	edges = append(edges, tagEdges...)

	// The mirror yields the same constraint and join edges yield none.
	assert.Equal(t, []sqlgraph.Dependency{{Before: 1, After: 10}}, f.graph.Dependencies(edges, sqlgraph.Creation))
	assert.Equal(t, []sqlgraph.Dependency{{Before: 10, After: 1}}, f.graph.Dependencies(edges, sqlgraph.Deletion))
}

func TestDependenciesOptional(t *testing.T) {
	customer := &schema.Type{Name: "Customer"}
	order := &schema.Type{Name: "Order"}
	ref := &schema.Reference{Name: "customer", Target: customer}
	order.References = []*schema.Reference{ref}
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(order, customer))
	require.NoError(t, reg.Finalize())
	g := sqlgraph.New(dialect.SQLite, reg)

	edges, err := g.Resolver().Resolve(ref, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, g.Dependencies(edges, sqlgraph.Creation))
}

func TestSchedule(t *testing.T) {
	f := newFixture(t)
	item := statement.NewInstance(f.item, 10)
	order := statement.NewInstance(f.order, 1)
	tag := statement.NewInstance(f.tag, 5)
	nodes := []*statement.Instance{item, tag, order}
	edges, err := f.graph.Resolver().Resolve(f.itemOrder, 10, 1)
	require.NoError(t, err)

	t.Run("Creation", func(t *testing.T) {
		order, err := sqlgraph.Schedule(nodes, f.graph.Dependencies(edges, sqlgraph.Creation))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 0}, order)
	})
	t.Run("Deletion", func(t *testing.T) {
		order, err := sqlgraph.Schedule(nodes, f.graph.Dependencies(edges, sqlgraph.Deletion))
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, order)
	})
	t.Run("Unconstrained", func(t *testing.T) {
		order, err := sqlgraph.Schedule(nodes, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, order)
	})
	t.Run("Ignored", func(t *testing.T) {
		deps := []sqlgraph.Dependency{
			{Before: 10, After: 10},
			{Before: 99, After: 10},
			{Before: 5, After: 98},
		}
		order, err := sqlgraph.Schedule(nodes, deps)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, order)
	})
}

func TestScheduleChain(t *testing.T) {
	node := &schema.Type{Name: "Node"}
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(node))
	nodes := []*statement.Instance{
		statement.NewInstance(node, "c"),
		statement.NewInstance(node, "a"),
		statement.NewInstance(node, "d"),
		statement.NewInstance(node, "b"),
	}
	deps := []sqlgraph.Dependency{
		{Before: "a", After: "b"},
		{Before: "b", After: "c"},
		{Before: "a", After: "b"},
	}
	order, err := sqlgraph.Schedule(nodes, deps)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 0}, order)
}

func TestScheduleCycle(t *testing.T) {
	node := &schema.Type{Name: "Node"}
	next := &schema.Reference{Name: "next", Target: node, Lower: 1, Upper: 1}
	node.References = []*schema.Reference{next}
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(node))
	require.NoError(t, reg.Finalize())
	g := sqlgraph.New(dialect.SQLite, reg)

	var edges []sqlgraph.Edge
	for _, pair := range [][2]int{{1, 2}, {2, 1}} {
		e, err := g.Resolver().Resolve(next, pair[0], pair[1])
		require.NoError(t, err)
		edges = append(edges, e...)
	}
	nodes := []*statement.Instance{
		statement.NewInstance(node, 1),
		statement.NewInstance(node, 2),
		statement.NewInstance(node, 3),
	}
	_, err := sqlgraph.Schedule(nodes, g.Dependencies(edges, sqlgraph.Creation))
	require.Error(t, err)
	assert.True(t, strata.IsFatal(err))
	assert.True(t, strata.IsCyclicMandatoryReference(err))
	var cerr *strata.CyclicMandatoryReferenceError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"Node(1)", "Node(2)"}, cerr.Nodes)
}

func TestScheduleCycleMembers(t *testing.T) {
	node := &schema.Type{Name: "Node"}
	var nodes []*statement.Instance
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		nodes = append(nodes, statement.NewInstance(node, id))
	}
	tests := []struct {
		name string
		deps []sqlgraph.Dependency
		want []string
	}{
		{
			name: "Downstream",
			deps: []sqlgraph.Dependency{
				{Before: "a", After: "b"},
				{Before: "b", After: "a"},
				{Before: "b", After: "c"},
				{Before: "c", After: "d"},
			},
			want: []string{"Node(a)", "Node(b)"},
		},
		{
			name: "Between",
			deps: []sqlgraph.Dependency{
				{Before: "b", After: "a"},
				{Before: "a", After: "b"},
				{Before: "b", After: "c"},
				{Before: "c", After: "e"},
				{Before: "e", After: "f"},
				{Before: "f", After: "e"},
			},
			want: []string{"Node(a)", "Node(b)", "Node(e)", "Node(f)"},
		},
		{
			name: "Ring",
			deps: []sqlgraph.Dependency{
				{Before: "f", After: "d"},
				{Before: "d", After: "c"},
				{Before: "c", After: "f"},
				{Before: "a", After: "c"},
			},
			want: []string{"Node(c)", "Node(d)", "Node(f)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqlgraph.Schedule(nodes, tt.deps)
			var cerr *strata.CyclicMandatoryReferenceError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.want, cerr.Nodes)
		})
	}
}
