package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/syssam/strata/dialect"
)

// Driver is a dialect.Driver over a database/sql pool.
type Driver struct {
	Conn
	dialect string
}

// NewDriver returns a driver of the given dialect executing on c.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{dialect: dialect, Conn: c}
}

// Open opens a pool for the dialect. The database/sql driver registered
// under the dialect name must be linked in by the caller.
func Open(name, source string) (*Driver, error) {
	dsn, err := DSN(name, source)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	return OpenDB(name, db), nil
}

// DSN returns the data source Open passes to database/sql. MySQL sources
// are rewritten to report found rows instead of changed rows, so that a
// keyed update writing an unchanged value still affects one row.
func DSN(name, source string) (string, error) {
	switch name {
	case dialect.MySQL:
		cfg, err := mysql.ParseDSN(source)
		if err != nil {
			return "", fmt.Errorf("dialect/sql: parse mysql dsn: %w", err)
		}
		cfg.ClientFoundRows = true
		return cfg.FormatDSN(), nil
	case dialect.Postgres, dialect.SQLite:
		return source, nil
	default:
		return "", fmt.Errorf("dialect/sql: unsupported dialect %q", name)
	}
}

// OpenDB returns a driver of the given dialect over an open pool.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{db})
}

// DB returns the underlying pool.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the dialect name the driver was opened with.
func (d Driver) Dialect() string { return d.dialect }

// Tx begins a transaction with the default options.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx begins a transaction. Statements issued on the returned Tx run
// on its connection until Commit or Rollback.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{Conn: Conn{tx}, Tx: tx}, nil
}

// Close closes the pool.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx is a dialect.Tx over a database/sql transaction.
type Tx struct {
	Conn
	driver.Tx
}

// ExecQuerier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn adapts an ExecQuerier to dialect.ExecQuerier. Arguments are passed
// as []any; Exec stores into a *Result (or discards with nil) and Query
// into a *Rows.
type Conn struct {
	ExecQuerier
}

// Exec runs a statement that returns no rows.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	res, ok := v.(*Result)
	if !ok && v != nil {
		return fmt.Errorf("dialect/sql: exec into %T, want *sql.Result", v)
	}
	argv, err := arguments(args)
	if err != nil {
		return err
	}
	r, err := c.ExecContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if res != nil {
		*res = r
	}
	return nil
}

// Query runs a statement returning rows. The caller closes the rows.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	rv, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: query into %T, want *sql.Rows", v)
	}
	argv, err := arguments(args)
	if err != nil {
		return err
	}
	rows, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*rv = Rows{rows}
	return nil
}

func arguments(args any) ([]any, error) {
	switch args := args.(type) {
	case nil:
		return nil, nil
	case []any:
		return args, nil
	default:
		return nil, fmt.Errorf("dialect/sql: arguments of type %T, want []any", args)
	}
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)

type (
	// Rows holds the rows of a Query.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the subset of *sql.Rows the executors scan through.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}
