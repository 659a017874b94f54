package sqlgraph

import (
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// Edge is a reference between two identifiers with its resolved storage
// rule. ID is the near end, declaring Reference; OppositeID the far end.
type Edge struct {
	ID         any
	OppositeID any
	Reference  *schema.Reference
	Rule       schema.Rule
	// Mirror is set on the edge derived from the opposite reference.
	Mirror bool
}

// Holder returns the identifier of the row storing the edge and the
// identifier stored in it. Both are nil for join-table edges.
func (e Edge) Holder() (holder, value any) {
	switch e.Rule {
	case schema.ForeignKey:
		return e.ID, e.OppositeID
	case schema.InverseForeignKey:
		return e.OppositeID, e.ID
	default:
		return nil, nil
	}
}

// String returns a short description of the edge.
func (e Edge) String() string {
	return fmt.Sprintf("%v -%s(%s)-> %v", e.ID, e.Reference.Name, e.Rule, e.OppositeID)
}

// Resolver classifies references by storage rule.
type Resolver struct {
	provider schema.Provider
}

// NewResolver returns a resolver backed by p.
func NewResolver(p schema.Provider) *Resolver {
	return &Resolver{provider: p}
}

// Resolve returns the edge of ref between nearID and farID and, when ref has
// an opposite, the mirrored edge from farID back to nearID. It fails with a
// *strata.SchemaResolutionError if either reference is not mapped or the
// two sides disagree on storage.
func (r *Resolver) Resolve(ref *schema.Reference, nearID, farID any) ([]Edge, error) {
	rule, err := r.rule(ref)
	if err != nil {
		return nil, err
	}
	edges := []Edge{{ID: nearID, OppositeID: farID, Reference: ref, Rule: rule}}
	if ref.Opposite == nil {
		return edges, nil
	}
	orule, err := r.rule(ref.Opposite)
	if err != nil {
		return nil, err
	}
	if orule != mirrorRule(rule) {
		return nil, strata.NewSchemaResolutionError(ref.String(), fmt.Sprintf("opposite %s is stored as %s", ref.Opposite, orule))
	}
	return append(edges, Edge{ID: farID, OppositeID: nearID, Reference: ref.Opposite, Rule: orule, Mirror: true}), nil
}

// rule returns the storage rule of ref after checking that its storage is
// fully mapped.
func (r *Resolver) rule(ref *schema.Reference) (schema.Rule, error) {
	rule, err := r.provider.RuleOf(ref)
	if err != nil {
		return 0, err
	}
	switch rule {
	case schema.ForeignKey, schema.InverseForeignKey:
		_, err = r.provider.ReferenceColumn(ref)
	case schema.JoinTable:
		_, err = r.provider.JoinTableOf(ref)
	default:
		err = strata.NewSchemaResolutionError(ref.String(), fmt.Sprintf("unknown rule %s", rule))
	}
	return rule, err
}

func mirrorRule(r schema.Rule) schema.Rule {
	switch r {
	case schema.ForeignKey:
		return schema.InverseForeignKey
	case schema.InverseForeignKey:
		return schema.ForeignKey
	default:
		return r
	}
}
