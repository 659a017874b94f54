package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ConstraintError wraps a driver error caused by a database constraint
// violation on a statement issued by an executor.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string { return "sqlgraph: constraint failed: " + e.msg }

// Unwrap implements the errors.Wrapper interface.
func (e *ConstraintError) Unwrap() error { return e.wrap }

// wrapConstraint wraps err in a ConstraintError if the driver reported a
// constraint violation, and returns it unchanged otherwise.
func wrapConstraint(err error) error {
	if err != nil && IsConstraintError(err) {
		return &ConstraintError{msg: err.Error(), wrap: err}
	}
	return err
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by: pq.Error, pgx, and some MySQL drivers.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// classify reports whether err carries one of the given Postgres SQLSTATE
// codes or MySQL error numbers.
func classify(err error, state string, numbers ...uint16) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == state {
		return true
	}
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == state {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		for _, n := range numbers {
			if myErr.Number == n {
				return true
			}
		}
	}
	return false
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if classify(err, pgUniqueViolation, mysqlDuplicateEntry) {
		return true
	}
	// Fallback to string matching for drivers without typed errors.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL (string fallback)
		"violates unique constraint", // Postgres (string fallback)
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if classify(err, pgForeignKeyViolation, mysqlForeignKeyParent, mysqlForeignKeyChild) {
		return true
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (Cannot delete or update a parent row)
		"Error 1452",                      // MySQL (Cannot add or update a child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if classify(err, pgCheckViolation, mysqlCheckConstraintViolate) {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
