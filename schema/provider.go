package schema

import (
	"github.com/syssam/strata"
)

// Provider answers storage-mapping questions for entity types and their
// references. The engine never inspects descriptors for mapping decisions
// directly; it always asks a Provider.
type Provider interface {
	// TableOf returns the table backing the type, or "" for abstract types.
	TableOf(*Type) string
	// AttributeColumn returns the column backing the attribute.
	AttributeColumn(*Attribute) string
	// ReferenceColumn returns the foreign-key column of a ForeignKey or
	// InverseForeignKey reference.
	ReferenceColumn(*Reference) (string, error)
	// RuleOf returns the storage rule of the reference.
	RuleOf(*Reference) (Rule, error)
	// IsMandatory reports whether the reference has a lower bound of one.
	IsMandatory(*Reference) bool
	// JoinTableOf returns the association table of a JoinTable reference.
	JoinTableOf(*Reference) (*Join, error)
	// AncestorChain returns the table-backed types of the chain of t,
	// most-specific first.
	AncestorChain(*Type) []*Type
	// Columns returns the names of the system columns carried by every
	// entity table.
	Columns() SystemColumns
}

// SystemColumns names the fixed columns present on every entity table.
type SystemColumns struct {
	ID            string `yaml:"id" env:"ID" env-default:"id"`
	Type          string `yaml:"type" env:"TYPE" env-default:"type"`
	Version       string `yaml:"version" env:"VERSION" env-default:"version"`
	CreatedByID   string `yaml:"created_by_id" env:"CREATED_BY_ID" env-default:"created_by_id"`
	CreatedByName string `yaml:"created_by_name" env:"CREATED_BY_NAME" env-default:"created_by_name"`
	CreatedAt     string `yaml:"created_at" env:"CREATED_AT" env-default:"created_at"`
	UpdatedByID   string `yaml:"updated_by_id" env:"UPDATED_BY_ID" env-default:"updated_by_id"`
	UpdatedByName string `yaml:"updated_by_name" env:"UPDATED_BY_NAME" env-default:"updated_by_name"`
	UpdatedAt     string `yaml:"updated_at" env:"UPDATED_AT" env-default:"updated_at"`
}

// DefaultColumns returns the default system column names.
func DefaultColumns() SystemColumns {
	return SystemColumns{
		ID:            "id",
		Type:          "type",
		Version:       "version",
		CreatedByID:   "created_by_id",
		CreatedByName: "created_by_name",
		CreatedAt:     "created_at",
		UpdatedByID:   "updated_by_id",
		UpdatedByName: "updated_by_name",
		UpdatedAt:     "updated_at",
	}
}

// TableOf implements Provider.
func (r *Registry) TableOf(t *Type) string {
	if t.Abstract {
		return ""
	}
	return t.Table
}

// AttributeColumn implements Provider.
func (r *Registry) AttributeColumn(a *Attribute) string { return a.Column }

// ReferenceColumn implements Provider.
func (r *Registry) ReferenceColumn(ref *Reference) (string, error) {
	rule, err := r.RuleOf(ref)
	if err != nil {
		return "", err
	}
	if rule == JoinTable {
		return "", strata.NewSchemaResolutionError(ref.String(), "join table reference has no foreign-key column")
	}
	if ref.Column == "" {
		return "", strata.NewSchemaResolutionError(ref.String(), "missing foreign-key column")
	}
	return ref.Column, nil
}

// RuleOf implements Provider.
func (r *Registry) RuleOf(ref *Reference) (Rule, error) {
	if ref == nil {
		return 0, strata.NewSchemaResolutionError("<nil>", "unknown reference")
	}
	if _, ok := ruleNames[ref.Rule]; !ok {
		return 0, strata.NewSchemaResolutionError(ref.String(), "no storage rule")
	}
	if ref.Owner == nil || ref.Target == nil {
		return 0, strata.NewSchemaResolutionError(ref.String(), "reference is not registered")
	}
	return ref.Rule, nil
}

// IsMandatory implements Provider.
func (r *Registry) IsMandatory(ref *Reference) bool { return ref.Mandatory() }

// JoinTableOf implements Provider.
func (r *Registry) JoinTableOf(ref *Reference) (*Join, error) {
	rule, err := r.RuleOf(ref)
	if err != nil {
		return nil, err
	}
	if rule != JoinTable || ref.Join == nil {
		return nil, strata.NewSchemaResolutionError(ref.String(), "no join table")
	}
	return ref.Join, nil
}

// AncestorChain implements Provider.
func (r *Registry) AncestorChain(t *Type) []*Type {
	var chain []*Type
	for _, c := range t.Chain() {
		if r.TableOf(c) != "" {
			chain = append(chain, c)
		}
	}
	return chain
}

// Columns implements Provider.
func (r *Registry) Columns() SystemColumns { return r.columns }

var _ Provider = (*Registry)(nil)
