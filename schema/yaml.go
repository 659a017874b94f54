package schema

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/syssam/strata/schema/field"
)

// Mapping file layout.
//
//	columns:
//	  version: lock_version
//	types:
//	  - name: Order
//	    attributes:
//	      - {name: number, identifying: true}
//	      - {name: total, type: decimal}
//	    references:
//	      - {name: items, target: Item, upper: "*", opposite: order}
//	  - name: Item
//	    references:
//	      - {name: order, target: Order, lower: 1, upper: 1, opposite: items}
type (
	mappingFile struct {
		Columns *SystemColumns `yaml:"columns"`
		Types   []typeDef      `yaml:"types"`
	}
	typeDef struct {
		Name       string         `yaml:"name"`
		Table      string         `yaml:"table"`
		Abstract   bool           `yaml:"abstract"`
		Parent     string         `yaml:"parent"`
		Attributes []attributeDef `yaml:"attributes"`
		References []referenceDef `yaml:"references"`
	}
	attributeDef struct {
		Name        string     `yaml:"name"`
		Column      string     `yaml:"column"`
		Identifying bool       `yaml:"identifying"`
		Mandatory   bool       `yaml:"mandatory"`
		Type        field.Type `yaml:"type"`
	}
	referenceDef struct {
		Name     string `yaml:"name"`
		Target   string `yaml:"target"`
		Lower    int    `yaml:"lower"`
		Upper    bound  `yaml:"upper"`
		Opposite string `yaml:"opposite"`
		Rule     Rule   `yaml:"rule"`
		Column   string `yaml:"column"`
		Join     *Join  `yaml:"join"`
	}
)

// bound is an upper bound written as an integer or "*".
type bound int

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *bound) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "*" {
		*b = Many
		return nil
	}
	n, err := strconv.Atoi(node.Value)
	if err != nil {
		return fmt.Errorf("schema: line %d: invalid upper bound %q", node.Line, node.Value)
	}
	*b = bound(n)
	return nil
}

// LoadYAMLFile reads a mapping file and returns the finalized registry.
func LoadYAMLFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open mapping: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// LoadYAML decodes a mapping document and returns the finalized registry.
func LoadYAML(r io.Reader) (*Registry, error) {
	var m mappingFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("schema: decode mapping: %w", err)
	}
	var opts []RegistryOption
	if m.Columns != nil {
		opts = append(opts, WithColumns(mergeColumns(*m.Columns)))
	}
	reg := NewRegistry(opts...)
	types := make(map[string]*Type, len(m.Types))
	for _, td := range m.Types {
		t := &Type{Name: td.Name, Table: td.Table, Abstract: td.Abstract}
		for _, ad := range td.Attributes {
			t.Attributes = append(t.Attributes, &Attribute{
				Name:        ad.Name,
				Column:      ad.Column,
				Identifying: ad.Identifying,
				Mandatory:   ad.Mandatory,
				Type:        ad.Type,
			})
		}
		types[td.Name] = t
	}
	ordered := make([]*Type, 0, len(m.Types))
	for _, td := range m.Types {
		t := types[td.Name]
		if td.Parent != "" {
			p, ok := types[td.Parent]
			if !ok {
				return nil, fmt.Errorf("schema: type %q: unknown parent %q", td.Name, td.Parent)
			}
			t.Parent = p
		}
		for _, rd := range td.References {
			target, ok := types[rd.Target]
			if !ok {
				return nil, fmt.Errorf("schema: reference %s.%s: unknown target %q", td.Name, rd.Name, rd.Target)
			}
			t.References = append(t.References, &Reference{
				Name:   rd.Name,
				Target: target,
				Lower:  rd.Lower,
				Upper:  int(rd.Upper),
				Rule:   rd.Rule,
				Column: rd.Column,
				Join:   rd.Join,
			})
		}
		ordered = append(ordered, t)
	}
	for _, td := range m.Types {
		t := types[td.Name]
		for i, rd := range td.References {
			if rd.Opposite == "" {
				continue
			}
			ref := t.References[i]
			opp, ok := ref.Target.Reference(rd.Opposite)
			if !ok {
				return nil, fmt.Errorf("schema: reference %s.%s: unknown opposite %q", td.Name, rd.Name, rd.Opposite)
			}
			Link(ref, opp)
		}
	}
	if err := reg.Register(ordered...); err != nil {
		return nil, err
	}
	if err := reg.Finalize(); err != nil {
		return nil, err
	}
	return reg, nil
}

// mergeColumns fills the names left empty in c with the defaults.
func mergeColumns(c SystemColumns) SystemColumns {
	d := DefaultColumns()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.ID, d.ID)
	fill(&c.Type, d.Type)
	fill(&c.Version, d.Version)
	fill(&c.CreatedByID, d.CreatedByID)
	fill(&c.CreatedByName, d.CreatedByName)
	fill(&c.CreatedAt, d.CreatedAt)
	fill(&c.UpdatedByID, d.UpdatedByID)
	fill(&c.UpdatedByName, d.UpdatedByName)
	fill(&c.UpdatedAt, d.UpdatedAt)
	return c
}
