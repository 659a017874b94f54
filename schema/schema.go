package schema

import (
	"fmt"
	"strconv"

	"github.com/syssam/strata/schema/field"
)

// Many is the upper bound of an unbounded reference.
const Many = -1

// Rule is the storage strategy of a reference.
type Rule int

// Reference storage rules.
const (
	// ForeignKey stores the target id in a column of the owner's table.
	ForeignKey Rule = iota + 1
	// InverseForeignKey stores the owner id in a column of the target's table.
	InverseForeignKey
	// JoinTable stores both ids in a separate association table.
	JoinTable
)

var ruleNames = map[Rule]string{
	ForeignKey:        "foreign_key",
	InverseForeignKey: "inverse_foreign_key",
	JoinTable:         "join_table",
}

// String returns the textual representation of the rule.
func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return "Rule(" + strconv.Itoa(int(r)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (r Rule) MarshalText() ([]byte, error) {
	if _, ok := ruleNames[r]; !ok {
		return nil, fmt.Errorf("schema: invalid rule %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rule) UnmarshalText(text []byte) error {
	for k, v := range ruleNames {
		if v == string(text) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("schema: unknown reference rule %q", text)
}

// Type describes an entity type. A type maps to one table; its ancestors
// map to their own tables (multi-table inheritance). Abstract types have no
// table of their own.
type Type struct {
	Name       string
	Table      string
	Abstract   bool
	Parent     *Type
	Attributes []*Attribute
	References []*Reference
}

// Chain returns the type followed by its ancestors, most-specific first.
func (t *Type) Chain() []*Type {
	var chain []*Type
	for c := t; c != nil; c = c.Parent {
		chain = append(chain, c)
	}
	return chain
}

// IsA reports whether t is u or one of its descendants.
func (t *Type) IsA(u *Type) bool {
	for c := t; c != nil; c = c.Parent {
		if c == u {
			return true
		}
	}
	return false
}

// Attribute returns the attribute with the given name declared on t or one
// of its ancestors.
func (t *Type) Attribute(name string) (*Attribute, bool) {
	for _, c := range t.Chain() {
		for _, a := range c.Attributes {
			if a.Name == name {
				return a, true
			}
		}
	}
	return nil, false
}

// Reference returns the reference with the given name declared on t or one
// of its ancestors.
func (t *Type) Reference(name string) (*Reference, bool) {
	for _, c := range t.Chain() {
		for _, r := range c.References {
			if r.Name == name {
				return r, true
			}
		}
	}
	return nil, false
}

// String returns the type name.
func (t *Type) String() string { return t.Name }

// Attribute describes a scalar attribute of a type.
type Attribute struct {
	Name   string
	Column string
	Owner  *Type
	// Identifying attributes must hold a unique value combination among all
	// rows of the owner table.
	Identifying bool
	Mandatory   bool
	// Type is the storage kind of the column. Defaults to field.TypeString.
	Type field.Type
}

// String returns the qualified attribute name.
func (a *Attribute) String() string { return qualified(a.Owner, a.Name) }

// Reference describes a relationship from Owner to Target.
type Reference struct {
	Name   string
	Owner  *Type
	Target *Type
	// Lower and Upper bound the number of targets one owner references.
	// Upper is Many for unbounded references.
	Lower, Upper int
	// Opposite is the reference declared on Target pointing back, if any.
	Opposite *Reference
	Rule     Rule
	// Column is the foreign-key column. It lives on the owner's table for
	// ForeignKey and on the target's table for InverseForeignKey.
	Column string
	Join   *Join
}

// Mandatory reports whether the lower bound is at least one.
func (r *Reference) Mandatory() bool { return r.Lower >= 1 }

// Many reports whether the reference may hold more than one target.
func (r *Reference) Many() bool { return r.Upper != 1 }

// Bounded reports whether the upper bound is finite.
func (r *Reference) Bounded() bool { return r.Upper != Many }

// String returns the qualified reference name.
func (r *Reference) String() string { return qualified(r.Owner, r.Name) }

// Join describes the association table of a JoinTable reference.
type Join struct {
	Table string
	// Key is the surrogate key column.
	Key string
	// Near holds the owner id, Far the target id.
	Near, Far string
}

// Mirror returns the join table seen from the opposite reference.
func (j *Join) Mirror() *Join {
	return &Join{Table: j.Table, Key: j.Key, Near: j.Far, Far: j.Near}
}

func qualified(t *Type, name string) string {
	if t == nil {
		return name
	}
	return t.Name + "." + name
}
