package schema

import (
	"fmt"
	"reflect"
	"strings"

	"ariga.io/atlas/sql/schema"
	"github.com/google/uuid"

	"github.com/syssam/strata/dialect"
	mapping "github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// Mapping is a schema provider that can enumerate its types.
// *mapping.Registry implements it.
type Mapping interface {
	mapping.Provider
	Types() []*mapping.Type
}

// Option configures table generation and creation.
type Option func(*config)

type config struct {
	idType      field.Type
	foreignKeys bool
	validate    []ValidateOption
}

// WithIDType sets the storage kind of identifier columns. Defaults to
// field.TypeUUID.
func WithIDType(t field.Type) Option {
	return func(c *config) {
		c.idType = t
	}
}

// WithIDProvider derives the identifier column kind from the values p
// generates.
func WithIDProvider(p mapping.IDProvider) Option {
	return WithIDType(IDType(p))
}

// WithForeignKeys adds foreign-key constraints for reference columns and
// join tables whose target type has a table of its own.
func WithForeignKeys() Option {
	return func(c *config) {
		c.foreignKeys = true
	}
}

// WithValidateOptions sets the options used to vet the changes Create
// applies.
func WithValidateOptions(opts ...ValidateOption) Option {
	return func(c *config) {
		c.validate = append(c.validate, opts...)
	}
}

func newConfig(opts []Option) *config {
	c := &config{idType: field.TypeUUID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IDType returns the storage kind of the identifiers generated by p.
func IDType(p mapping.IDProvider) field.Type {
	switch t := p.Type(); {
	case t == reflect.TypeFor[uuid.UUID]():
		return field.TypeUUID
	case t.Kind() == reflect.String:
		return field.TypeString
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Uint64:
		return field.TypeInt64
	default:
		return field.TypeBytes
	}
}

// Tables returns the tables storing the mapping: one per table-backed type,
// holding the system columns, the attributes declared on the type and the
// foreign-key columns stored in its rows, plus one per join table.
func Tables(d string, m Mapping, opts ...Option) ([]*schema.Table, error) {
	return buildTables(d, m, newConfig(opts))
}

func buildTables(d string, m Mapping, c *config) ([]*schema.Table, error) {
	b := &tableBuilder{
		dialect: d,
		mapping: m,
		config:  c,
		byName:  make(map[string]*schema.Table),
		owners:  make(map[string]*mapping.Type),
	}
	return b.build()
}

type tableBuilder struct {
	*config
	dialect string
	mapping Mapping
	tables  []*schema.Table
	byName  map[string]*schema.Table
	owners  map[string]*mapping.Type
}

func (b *tableBuilder) build() ([]*schema.Table, error) {
	for _, t := range b.mapping.Types() {
		if err := b.entity(t); err != nil {
			return nil, err
		}
	}
	var fks []func()
	for _, t := range b.mapping.Types() {
		for _, ref := range t.References {
			rule, err := b.mapping.RuleOf(ref)
			if err != nil {
				return nil, err
			}
			switch rule {
			case mapping.ForeignKey, mapping.InverseForeignKey:
				f, err := b.reference(ref, rule)
				if err != nil {
					return nil, err
				}
				fks = append(fks, f)
			case mapping.JoinTable:
				if err := b.join(ref); err != nil {
					return nil, err
				}
			}
		}
	}
	if b.foreignKeys {
		for _, f := range fks {
			f()
		}
	}
	return b.tables, nil
}

func (b *tableBuilder) entity(t *mapping.Type) error {
	name := b.mapping.TableOf(t)
	if name == "" {
		return nil
	}
	if prev, ok := b.owners[name]; ok {
		return fmt.Errorf("dialect/sql/schema: types %s and %s share table %q", prev, t, name)
	}
	b.owners[name] = t
	sc := b.mapping.Columns()
	id := b.column(sc.ID, b.idType, false)
	tbl := schema.NewTable(name).AddColumns(
		id,
		b.column(sc.Type, field.TypeString, false),
		b.column(sc.Version, field.TypeInt64, true),
		b.column(sc.CreatedByID, b.idType, true),
		b.column(sc.CreatedByName, field.TypeString, true),
		b.column(sc.CreatedAt, field.TypeTime, true),
		b.column(sc.UpdatedByID, b.idType, true),
		b.column(sc.UpdatedByName, field.TypeString, true),
		b.column(sc.UpdatedAt, field.TypeTime, true),
	)
	tbl.SetPrimaryKey(schema.NewPrimaryKey(id))
	var unique []*schema.Column
	for _, a := range t.Attributes {
		col := b.column(b.mapping.AttributeColumn(a), a.Type, !a.Mandatory)
		if _, ok := tbl.Column(col.Name); ok {
			return fmt.Errorf("dialect/sql/schema: attribute %s: column %q already defined on %q", a, col.Name, name)
		}
		tbl.AddColumns(col)
		if a.Identifying {
			unique = append(unique, col)
		}
	}
	if len(unique) > 0 {
		names := make([]string, len(unique))
		for i, c := range unique {
			names[i] = c.Name
		}
		tbl.AddIndexes(schema.NewUniqueIndex(name + "_" + strings.Join(names, "_") + "_key").AddColumns(unique...))
	}
	b.add(tbl)
	return nil
}

// reference adds the foreign-key column of ref to the table holding it.
// The returned function adds the constraint once every table exists.
func (b *tableBuilder) reference(ref *mapping.Reference, rule mapping.Rule) (func(), error) {
	holder, target := ref.Owner, ref.Target
	if rule == mapping.InverseForeignKey {
		holder, target = ref.Target, ref.Owner
	}
	col, err := b.mapping.ReferenceColumn(ref)
	if err != nil {
		return nil, err
	}
	tbl, ok := b.byName[b.mapping.TableOf(holder)]
	if !ok {
		return nil, fmt.Errorf("dialect/sql/schema: reference %s: type %s has no table", ref, holder)
	}
	c, ok := tbl.Column(col)
	if !ok {
		c = b.column(col, b.idType, true)
		tbl.AddColumns(c)
	}
	return func() { b.foreignKey(tbl, c, target) }, nil
}

func (b *tableBuilder) join(ref *mapping.Reference) error {
	j, err := b.mapping.JoinTableOf(ref)
	if err != nil {
		return err
	}
	if _, ok := b.byName[j.Table]; ok {
		if _, entity := b.owners[j.Table]; entity {
			return fmt.Errorf("dialect/sql/schema: join table %q of %s is an entity table", j.Table, ref)
		}
		// Mirror of a join table already built.
		return nil
	}
	key := b.column(j.Key, b.idType, false)
	near := b.column(j.Near, b.idType, false)
	far := b.column(j.Far, b.idType, false)
	tbl := schema.NewTable(j.Table).AddColumns(key, near, far)
	tbl.SetPrimaryKey(schema.NewPrimaryKey(key))
	tbl.AddIndexes(schema.NewUniqueIndex(j.Table + "_" + j.Near + "_" + j.Far + "_key").AddColumns(near, far))
	if b.foreignKeys {
		b.foreignKey(tbl, near, ref.Owner)
		b.foreignKey(tbl, far, ref.Target)
	}
	b.add(tbl)
	return nil
}

// foreignKey constrains c to the identifiers of the table of target, if
// the target has one.
func (b *tableBuilder) foreignKey(tbl *schema.Table, c *schema.Column, target *mapping.Type) {
	ref, ok := b.byName[b.mapping.TableOf(target)]
	if !ok {
		return
	}
	for _, fk := range tbl.ForeignKeys {
		if len(fk.Columns) == 1 && fk.Columns[0] == c {
			return
		}
	}
	refID, _ := ref.Column(b.mapping.Columns().ID)
	tbl.AddForeignKeys(schema.NewForeignKey(tbl.Name + "_" + c.Name).
		AddColumns(c).
		SetRefTable(ref).
		AddRefColumns(refID).
		SetOnDelete(schema.NoAction))
}

func (b *tableBuilder) add(t *schema.Table) {
	b.tables = append(b.tables, t)
	b.byName[t.Name] = t
}

func (b *tableBuilder) column(name string, t field.Type, null bool) *schema.Column {
	return &schema.Column{
		Name: name,
		Type: &schema.ColumnType{Type: columnType(b.dialect, t), Null: null},
	}
}

// columnType returns the column type storing values of kind t.
func columnType(d string, t field.Type) schema.Type {
	switch t {
	case field.TypeBool:
		if d == dialect.SQLite {
			return &schema.BoolType{T: "bool"}
		}
		return &schema.BoolType{T: "boolean"}
	case field.TypeTime:
		switch d {
		case dialect.Postgres:
			return &schema.TimeType{T: "timestamp with time zone"}
		case dialect.MySQL:
			return &schema.TimeType{T: "timestamp"}
		default:
			return &schema.TimeType{T: "datetime"}
		}
	case field.TypeUUID:
		switch d {
		case dialect.Postgres:
			return &schema.UUIDType{T: "uuid"}
		case dialect.MySQL:
			return &schema.StringType{T: "char", Size: 36}
		default:
			return &schema.StringType{T: "text"}
		}
	case field.TypeBytes:
		if d == dialect.Postgres {
			return &schema.BinaryType{T: "bytea"}
		}
		return &schema.BinaryType{T: "blob"}
	case field.TypeDecimal:
		switch d {
		case dialect.Postgres:
			return &schema.DecimalType{T: "numeric", Precision: 38, Scale: 10}
		case dialect.MySQL:
			return &schema.DecimalType{T: "decimal", Precision: 38, Scale: 10}
		default:
			// Kept as text so that the exact decimal string survives.
			return &schema.StringType{T: "text"}
		}
	case field.TypeInt, field.TypeInt64:
		if d == dialect.SQLite {
			return &schema.IntegerType{T: "integer"}
		}
		return &schema.IntegerType{T: "bigint"}
	case field.TypeFloat64:
		switch d {
		case dialect.Postgres:
			return &schema.FloatType{T: "double precision"}
		case dialect.MySQL:
			return &schema.FloatType{T: "double"}
		default:
			return &schema.FloatType{T: "real"}
		}
	default:
		if d == dialect.MySQL {
			return &schema.StringType{T: "varchar", Size: 255}
		}
		return &schema.StringType{T: "text"}
	}
}
