// Package dialect provides database dialect abstraction for strata.
//
// This package defines the interfaces used by the write engine to talk to a
// relational backend, so that the ordering and integrity logic never depends
// on a concrete database driver. PostgreSQL, MySQL and SQLite are supported.
//
// # Dialect Constants
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The engine only needs an ExecQuerier: it is handed the caller's
// transaction and never commits or rolls back by itself, except through
// the engine.ApplyTx convenience.
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, SQL builder and execution helpers
//   - dialect/sql/sqlgraph: reference resolution, scheduling and executors
//   - dialect/sql/schema: DDL and mapping validation
package dialect
