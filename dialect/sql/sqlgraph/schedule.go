package sqlgraph

import (
	"slices"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/statement"
)

// Direction selects how mandatory edges constrain the order of statements.
type Direction int

const (
	// Creation orders the row referenced by a mandatory edge before the row
	// holding it.
	Creation Direction = iota
	// Deletion orders the row holding a mandatory edge before the row it
	// references.
	Deletion
)

// Dependency requires the statement of Before to run before the one of
// After.
type Dependency struct {
	Before, After any
}

// Dependencies derives the ordering constraints of the edges. Only
// mandatory ForeignKey and InverseForeignKey edges constrain the order;
// join-table rows are written separately and never do.
func (g *Graph) Dependencies(edges []Edge, dir Direction) []Dependency {
	var deps []Dependency
	for _, e := range edges {
		if e.Rule == schema.JoinTable || !g.Mandatory(e) {
			continue
		}
		holder, value := e.Holder()
		d := Dependency{Before: value, After: holder}
		if dir == Deletion {
			d = Dependency{Before: holder, After: value}
		}
		if !slices.Contains(deps, d) {
			deps = append(deps, d)
		}
	}
	return deps
}

// Schedule returns an execution order of the nodes, as indexes into nodes,
// honoring every dependency between two of them. Nodes without a relative
// constraint keep their input order. Dependencies on identifiers outside
// nodes and self-dependencies are ignored. A cycle fails with a
// *strata.CyclicMandatoryReferenceError naming the instances on it.
func Schedule(nodes []*statement.Instance, deps []Dependency) ([]int, error) {
	index := make(map[any]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}
	inDegree := make([]int, len(nodes))
	dependents := make(map[int][]int)
	for _, d := range deps {
		before, ok1 := index[d.Before]
		after, ok2 := index[d.After]
		if !ok1 || !ok2 || before == after || slices.Contains(dependents[before], after) {
			continue
		}
		dependents[before] = append(dependents[before], after)
		inDegree[after]++
	}

	// ready is kept sorted so the earliest input wins each tie.
	var ready []int
	for i, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, len(nodes))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				pos, _ := slices.BinarySearch(ready, dep)
				ready = slices.Insert(ready, pos, dep)
			}
		}
	}
	if len(order) != len(nodes) {
		var cyclic []string
		for _, i := range cycles(inDegree, dependents) {
			cyclic = append(cyclic, nodes[i].String())
		}
		return nil, &strata.CyclicMandatoryReferenceError{Nodes: cyclic}
	}
	return order, nil
}

// cycles returns, in input order, the nodes left unscheduled that lie on a
// cycle: the members of the strongly connected components with more than
// one node. Nodes only downstream of a cycle are left out.
func cycles(inDegree []int, dependents map[int][]int) []int {
	t := &tarjan{
		dependents: dependents,
		index:      make(map[int]int),
		low:        make(map[int]int),
		onStack:    make(map[int]bool),
	}
	for i, deg := range inDegree {
		if _, seen := t.index[i]; deg > 0 && !seen {
			t.visit(i)
		}
	}
	slices.Sort(t.cyclic)
	return t.cyclic
}

type tarjan struct {
	dependents map[int][]int
	index, low map[int]int
	onStack    map[int]bool
	stack      []int
	next       int
	cyclic     []int
}

func (t *tarjan) visit(v int) {
	t.index[v], t.low[v] = t.next, t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true
	for _, w := range t.dependents[v] {
		if _, seen := t.index[w]; !seen {
			t.visit(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.onStack[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}
	if t.low[v] != t.index[v] {
		return
	}
	var scc []int
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	if len(scc) > 1 {
		t.cyclic = append(t.cyclic, scc...)
	}
}
