package sql

import (
	"context"
	"fmt"

	"github.com/syssam/strata/dialect"
)

// Querier is implemented by the statement builders of this package.
type Querier interface {
	Query() (string, []any)
}

// ExecAffected executes a write statement and returns the number of rows it
// affected.
func ExecAffected(ctx context.Context, drv dialect.ExecQuerier, q Querier) (int64, error) {
	query, args := q.Query()
	var res Result
	if err := drv.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dialect/sql: rows affected: %w", err)
	}
	return n, nil
}

// QueryInt executes a query returning a single integer column in a single
// row, typically a COUNT(*).
func QueryInt(ctx context.Context, drv dialect.ExecQuerier, q Querier) (int64, error) {
	var n int64
	err := QueryRows(ctx, drv, q, func(rows ColumnScanner) error {
		if !rows.Next() {
			return fmt.Errorf("dialect/sql: scalar query returned no rows")
		}
		return rows.Scan(&n)
	})
	return n, err
}

// QueryRows executes a query and hands the open rows to scan. Rows are
// closed when scan returns.
func QueryRows(ctx context.Context, drv dialect.ExecQuerier, q Querier, scan func(ColumnScanner) error) error {
	query, args := q.Query()
	rows := &Rows{}
	if err := drv.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}
