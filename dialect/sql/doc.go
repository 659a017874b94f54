// Package sql implements the dialect interfaces on top of database/sql and
// provides the small statement builder used by the write engine.
//
// # Builder Types
//
// The builders cover the keyed single-row statements the engine issues:
//
//   - InsertBuilder: single-row INSERT
//   - UpdateBuilder: UPDATE with plain, NULL and increment assignments
//   - DeleteBuilder: DELETE with a WHERE predicate
//   - Selector: SELECT of columns or COUNT(*)
//
// Identifiers are always quoted and values always bound as arguments.
// Placeholders follow the dialect:
//
//	sql.Dialect(dialect.Postgres).Count("users").
//	    Where(sql.And(sql.EQ("email", email), sql.NEQ("id", id)))
//	// SELECT COUNT(*) FROM "users" WHERE ("email" = $1 AND "id" <> $2)
//
// # Opening
//
// Open checks the dialect and prepares its data source; MySQL sources are
// opened with clientFoundRows so that affected-row counts of keyed updates
// match the rows found:
//
//	drv, err := sql.Open(dialect.MySQL, "app@tcp(db:3306)/shop")
//
// # Execution
//
// ExecAffected, QueryInt and QueryRows run a builder against any
// dialect.ExecQuerier, which is usually the transaction the engine was
// handed. StatsQuerier and DebugQuerier wrap an ExecQuerier with query
// statistics and statement logging.
package sql
