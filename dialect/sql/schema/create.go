package schema

import (
	"context"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
)

// Open returns the atlas driver of the given dialect over db.
func Open(d string, db schema.ExecQuerier) (migrate.Driver, error) {
	switch d {
	case dialect.SQLite:
		return sqlite.Open(db)
	case dialect.MySQL:
		return mysql.Open(db)
	case dialect.Postgres:
		return postgres.Open(db)
	default:
		return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", d)
	}
}

// Changes returns the changes bringing the database to the tables of the
// mapping. Only the mapped tables are inspected; other tables are left
// alone.
func Changes(ctx context.Context, drv *sql.Driver, m Mapping, opts ...Option) ([]schema.Change, error) {
	_, changes, err := diff(ctx, drv, m, newConfig(opts))
	return changes, err
}

func diff(ctx context.Context, drv *sql.Driver, m Mapping, c *config) (migrate.Driver, []schema.Change, error) {
	d := drv.Dialect()
	adrv, err := Open(d, drv.DB())
	if err != nil {
		return nil, nil, err
	}
	tables, err := buildTables(d, m, c)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	current, err := adrv.InspectSchema(ctx, "", &schema.InspectOptions{Tables: names})
	if err != nil {
		return nil, nil, fmt.Errorf("dialect/sql/schema: inspect: %w", err)
	}
	desired := schema.New(current.Name).AddTables(tables...)
	changes, err := adrv.SchemaDiff(current, desired)
	if err != nil {
		return nil, nil, fmt.Errorf("dialect/sql/schema: diff: %w", err)
	}
	return adrv, changes, nil
}

// Plan returns the DDL statements Create would execute.
func Plan(ctx context.Context, drv *sql.Driver, m Mapping, opts ...Option) ([]string, error) {
	adrv, changes, err := diff(ctx, drv, m, newConfig(opts))
	if err != nil || len(changes) == 0 {
		return nil, err
	}
	plan, err := adrv.PlanChanges(ctx, "create", changes)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: plan: %w", err)
	}
	stmts := make([]string, len(plan.Changes))
	for i, c := range plan.Changes {
		stmts[i] = c.Cmd
	}
	return stmts, nil
}

// Create creates or upgrades the tables of the mapping. Changes that could
// lose data fail unless allowed through WithValidateOptions.
func Create(ctx context.Context, drv *sql.Driver, m Mapping, opts ...Option) error {
	c := newConfig(opts)
	adrv, changes, err := diff(ctx, drv, m, c)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	if res := ValidateChanges(changes, c.validate...); res.HasErrors() {
		return fmt.Errorf("dialect/sql/schema: refusing changes:\n%s", res)
	}
	if err := adrv.ApplyChanges(ctx, changes); err != nil {
		return fmt.Errorf("dialect/sql/schema: apply: %w", err)
	}
	return nil
}
