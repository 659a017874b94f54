package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/field"
)

// Registry is the in-memory schema mapping. Types are registered first,
// then Finalize fills default names and storage rules and validates the
// result. A finalized registry is read-only and safe for concurrent use.
type Registry struct {
	columns SystemColumns
	types   []*Type
	byName  map[string]*Type
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithColumns overrides the system column names.
func WithColumns(c SystemColumns) RegistryOption {
	return func(r *Registry) {
		r.columns = c
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{columns: DefaultColumns(), byName: make(map[string]*Type)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds the types to the registry and sets the owner of their
// attributes and references.
func (r *Registry) Register(types ...*Type) error {
	for _, t := range types {
		if t.Name == "" {
			return fmt.Errorf("schema: type without a name")
		}
		if _, ok := r.byName[t.Name]; ok {
			return fmt.Errorf("schema: duplicate type %q", t.Name)
		}
		for p, n := t.Parent, 0; p != nil; p, n = p.Parent, n+1 {
			if p == t || n > len(r.types)+len(types) {
				return fmt.Errorf("schema: type %q inherits from itself", t.Name)
			}
		}
		for _, a := range t.Attributes {
			a.Owner = t
		}
		for _, ref := range t.References {
			ref.Owner = t
		}
		r.byName[t.Name] = t
		r.types = append(r.types, t)
	}
	return nil
}

// Link declares a and b as opposite references of each other.
func Link(a, b *Reference) {
	a.Opposite, b.Opposite = b, a
}

// Type returns the registered type with the given name.
func (r *Registry) Type(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*Type { return r.types }

// References returns every registered reference in registration order.
func (r *Registry) References() []*Reference {
	var refs []*Reference
	for _, t := range r.types {
		refs = append(refs, t.References...)
	}
	return refs
}

// Finalize fills unset table, column and join-table names and storage rules,
// then validates the registry.
func (r *Registry) Finalize() error {
	for _, t := range r.types {
		if !t.Abstract && t.Table == "" {
			t.Table = inflect.Pluralize(inflect.Underscore(t.Name))
		}
		for _, a := range t.Attributes {
			if a.Column == "" {
				a.Column = inflect.Underscore(a.Name)
			}
			if a.Type == field.TypeInvalid {
				a.Type = field.TypeString
			}
		}
		for _, ref := range t.References {
			if ref.Upper == 0 {
				ref.Upper = 1
			}
		}
	}
	refs := r.References()
	for _, ref := range refs {
		if ref.Rule == 0 {
			ref.Rule = defaultRule(ref)
		}
	}
	for _, ref := range refs {
		switch ref.Rule {
		case ForeignKey, InverseForeignKey:
			if ref.Column != "" {
				break
			}
			if ref.Opposite != nil && ref.Opposite.Column != "" {
				ref.Column = ref.Opposite.Column
				break
			}
			ref.Column = defaultColumn(ref)
		case JoinTable:
			if ref.Join != nil || ref.Target == nil {
				break
			}
			if ref.Opposite != nil && ref.Opposite.Join != nil {
				ref.Join = ref.Opposite.Join.Mirror()
				break
			}
			ref.Join = defaultJoin(ref)
		}
	}
	return r.Validate()
}

// defaultRule picks the storage of a reference from its cardinality and the
// one of its opposite.
func defaultRule(ref *Reference) Rule {
	opp := ref.Opposite
	if opp != nil && opp.Rule != 0 {
		switch opp.Rule {
		case ForeignKey:
			return InverseForeignKey
		case InverseForeignKey:
			return ForeignKey
		default:
			return JoinTable
		}
	}
	switch {
	case !ref.Many():
		return ForeignKey
	case opp == nil || !opp.Many():
		return InverseForeignKey
	default:
		return JoinTable
	}
}

func defaultColumn(ref *Reference) string {
	switch {
	case ref.Rule == ForeignKey:
		return inflect.Underscore(ref.Name) + "_id"
	case ref.Opposite != nil:
		return inflect.Underscore(ref.Opposite.Name) + "_id"
	default:
		return inflect.Underscore(ref.Owner.Name) + "_" + inflect.Underscore(ref.Name)
	}
}

func defaultJoin(ref *Reference) *Join {
	owner := inflect.Underscore(ref.Owner.Name)
	j := &Join{
		Table: owner + "_" + inflect.Underscore(ref.Name),
		Key:   "id",
		Near:  owner + "_id",
		Far:   inflect.Underscore(ref.Target.Name) + "_id",
	}
	if j.Far == j.Near {
		j.Far = inflect.Underscore(inflect.Singularize(ref.Name)) + "_id"
	}
	return j
}

// Validate checks that every reference has a consistent storage mapping.
// All problems are reported as *strata.SchemaResolutionError values joined
// in a *strata.AggregateError.
func (r *Registry) Validate() error {
	var errs []error
	fail := func(ref fmt.Stringer, format string, args ...any) {
		errs = append(errs, strata.NewSchemaResolutionError(ref.String(), fmt.Sprintf(format, args...)))
	}
	for _, t := range r.types {
		if t.Abstract && len(t.Attributes) > 0 {
			fail(t, "abstract type declares attributes")
		}
		for _, ref := range t.References {
			if ref.Target == nil {
				fail(ref, "missing target type")
				continue
			}
			if _, ok := r.byName[ref.Target.Name]; !ok {
				fail(ref, "target type %q is not registered", ref.Target.Name)
			}
			if ref.Lower < 0 || ref.Upper < Many || ref.Upper == 0 || (ref.Bounded() && ref.Lower > ref.Upper) {
				fail(ref, "invalid bounds %d..%d", ref.Lower, ref.Upper)
			}
			switch ref.Rule {
			case ForeignKey:
				if ref.Many() {
					fail(ref, "foreign key on a many-valued reference")
				}
				if t.Abstract {
					fail(ref, "foreign key on an abstract type")
				}
			case InverseForeignKey:
				if ref.Opposite != nil && ref.Opposite.Many() {
					fail(ref, "inverse foreign key with a many-valued opposite")
				}
				if ref.Target.Abstract {
					fail(ref, "inverse foreign key targets an abstract type")
				}
			case JoinTable:
				if j := ref.Join; j == nil || j.Table == "" || j.Key == "" || j.Near == "" || j.Far == "" {
					fail(ref, "incomplete join table")
				}
			default:
				fail(ref, "no storage rule")
			}
			if ref.Rule != JoinTable && ref.Column == "" && ref.Rule != 0 {
				fail(ref, "missing foreign-key column")
			}
			if ref.Opposite != nil {
				validateOpposite(ref, fail)
			}
		}
	}
	return strata.NewAggregateError(errs...)
}

func validateOpposite(ref *Reference, fail func(fmt.Stringer, string, ...any)) {
	opp := ref.Opposite
	switch {
	case opp.Opposite != ref:
		fail(ref, "opposite %s does not point back", opp)
		return
	case opp.Owner == nil || !ref.Target.IsA(opp.Owner) && !opp.Owner.IsA(ref.Target):
		fail(ref, "opposite %s is not declared on the target type", opp)
		return
	}
	switch ref.Rule {
	case ForeignKey, InverseForeignKey:
		want := ForeignKey
		if ref.Rule == ForeignKey {
			want = InverseForeignKey
		}
		if opp.Rule != want {
			fail(ref, "opposite %s is stored as %s, want %s", opp, opp.Rule, want)
		} else if opp.Column != ref.Column {
			fail(ref, "opposite %s uses column %q, want %q", opp, opp.Column, ref.Column)
		}
	case JoinTable:
		if opp.Rule != JoinTable {
			fail(ref, "opposite %s is stored as %s, want %s", opp, opp.Rule, JoinTable)
			return
		}
		if ref.Join != nil && opp.Join != nil && (opp.Join.Table != ref.Join.Table || opp.Join.Near != ref.Join.Far || opp.Join.Far != ref.Join.Near) {
			fail(ref, "opposite %s uses join table %s(%s, %s)", opp, opp.Join.Table, opp.Join.Near, opp.Join.Far)
		}
	}
}
