package sql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/syssam/strata/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// IsValidIdentifier checks if the string is a valid SQL identifier.
func IsValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Builder is the low-level SQL string builder. It quotes identifiers and
// numbers placeholders according to its dialect.
type Builder struct {
	sb      *strings.Builder
	dialect string
	args    []any
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// DialectBuilder prefixes all root builders with the dialect.
type DialectBuilder struct {
	dialect string
}

func (d *DialectBuilder) builder() Builder {
	return Builder{sb: &strings.Builder{}, dialect: d.dialect}
}

// Insert creates an InsertBuilder for the given table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{Builder: d.builder(), table: table}
}

// Update creates an UpdateBuilder for the given table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{Builder: d.builder(), table: table}
}

// Delete creates a DeleteBuilder for the given table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{Builder: d.builder(), table: table}
}

// Count creates a Selector that counts the rows of the given table.
func (d *DialectBuilder) Count(table string) *Selector {
	return &Selector{Builder: d.builder(), table: table, count: true}
}

// Select creates a Selector for the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{Builder: d.builder(), columns: columns}
}

// Quote quotes the given identifier for the builder dialect.
func (b *Builder) Quote(ident string) string {
	switch b.dialect {
	case dialect.MySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case dialect.Postgres:
		return pq.QuoteIdentifier(ident)
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

// Ident writes the quoted identifier.
func (b *Builder) Ident(s string) *Builder {
	b.sb.WriteString(b.Quote(s))
	return b
}

// WriteString writes the raw string.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Arg appends an argument and writes its placeholder.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteString("?")
	}
	return b
}

// String returns the accumulated SQL.
func (b *Builder) String() string { return b.sb.String() }

// Args returns the accumulated arguments.
func (b *Builder) Args() []any { return b.args }

// Predicate writes a boolean expression into a builder.
type Predicate func(*Builder)

// EQ returns a "column = value" predicate.
func EQ(column string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" = ").Arg(v)
	}
}

// NEQ returns a "column <> value" predicate.
func NEQ(column string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" <> ").Arg(v)
	}
}

// IsNull returns a "column IS NULL" predicate.
func IsNull(column string) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" IS NULL")
	}
}

// And combines the predicates with AND.
func And(preds ...Predicate) Predicate {
	return func(b *Builder) {
		if len(preds) > 1 {
			b.WriteString("(")
		}
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p(b)
		}
		if len(preds) > 1 {
			b.WriteString(")")
		}
	}
}

// InsertBuilder builds a single-row INSERT statement.
type InsertBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
}

// Set adds a column/value pair to the row.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Columns returns the columns set so far.
func (i *InsertBuilder) Columns() []string { return i.columns }

// Query returns the query and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	i.WriteString("INSERT INTO ").Ident(i.table).WriteString(" (")
	for j, c := range i.columns {
		if j > 0 {
			i.WriteString(", ")
		}
		i.Ident(c)
	}
	i.WriteString(") VALUES (")
	for j, v := range i.values {
		if j > 0 {
			i.WriteString(", ")
		}
		i.Arg(v)
	}
	i.WriteString(")")
	return i.String(), i.Args()
}

type assignment struct {
	column string
	expr   func(*Builder)
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	Builder
	table string
	sets  []assignment
	where Predicate
}

// Set assigns the value to the column.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, assignment{column, func(b *Builder) { b.Arg(v) }})
	return u
}

// SetNull sets the column to NULL.
func (u *UpdateBuilder) SetNull(column string) *UpdateBuilder {
	u.sets = append(u.sets, assignment{column, func(b *Builder) { b.WriteString("NULL") }})
	return u
}

// Add increments the column by n, treating NULL as zero.
func (u *UpdateBuilder) Add(column string, n any) *UpdateBuilder {
	u.sets = append(u.sets, assignment{column, func(b *Builder) {
		b.WriteString("COALESCE(").Ident(column).WriteString(", 0) + ").Arg(n)
	}})
	return u
}

// Empty reports whether no assignment was added.
func (u *UpdateBuilder) Empty() bool { return len(u.sets) == 0 }

// Where sets the predicate of the statement.
func (u *UpdateBuilder) Where(p Predicate) *UpdateBuilder {
	u.where = p
	return u
}

// Query returns the query and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	u.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, s := range u.sets {
		if i > 0 {
			u.WriteString(", ")
		}
		u.Ident(s.column).WriteString(" = ")
		s.expr(&u.Builder)
	}
	if u.where != nil {
		u.WriteString(" WHERE ")
		u.where(&u.Builder)
	}
	return u.String(), u.Args()
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	Builder
	table string
	where Predicate
}

// Where sets the predicate of the statement.
func (d *DeleteBuilder) Where(p Predicate) *DeleteBuilder {
	d.where = p
	return d
}

// Query returns the query and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	d.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		d.WriteString(" WHERE ")
		d.where(&d.Builder)
	}
	return d.String(), d.Args()
}

// Selector builds a SELECT statement.
type Selector struct {
	Builder
	columns []string
	table   string
	count   bool
	where   Predicate
}

// From sets the source table.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Where sets the predicate of the statement.
func (s *Selector) Where(p Predicate) *Selector {
	s.where = p
	return s
}

// Query returns the query and its arguments.
func (s *Selector) Query() (string, []any) {
	s.WriteString("SELECT ")
	switch {
	case s.count:
		s.WriteString("COUNT(*)")
	case len(s.columns) == 0:
		s.WriteString("*")
	default:
		for i, c := range s.columns {
			if i > 0 {
				s.WriteString(", ")
			}
			s.Ident(c)
		}
	}
	s.WriteString(" FROM ").Ident(s.table)
	if s.where != nil {
		s.WriteString(" WHERE ")
		s.where(&s.Builder)
	}
	return s.String(), s.Args()
}
