package sqlgraph_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/statement"
)

func mockDriver(t *testing.T) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(dialect.SQLite, db), mock
}

func countRows(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Attributes", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`INSERT INTO "orders" ("id", "type", "order_number") VALUES (?, ?, ?)`).
			WithArgs(1, "Order", "A-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		inst := statement.NewInstance(f.order, 1).Set("orderNumber", "A-1")
		require.NoError(t, f.graph.Insert(ctx, drv, &statement.Insert{Instance: inst}, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Chain", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`INSERT INTO "people" ("id", "type", "birthday") VALUES (?, ?, ?)`).
			WithArgs(7, "Person", "2000-01-01").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "parties" ("id", "type", "name") VALUES (?, ?, ?)`).
			WithArgs(7, "Person", "ann").
			WillReturnResult(sqlmock.NewResult(0, 1))
		inst := statement.NewInstance(f.person, 7).Set("name", "ann").Set("birthday", "2000-01-01")
		require.NoError(t, f.graph.Insert(ctx, drv, &statement.Insert{Instance: inst}, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Inline", func(t *testing.T) {
		drv, mock := mockDriver(t)
		edges, err := f.graph.Resolver().Resolve(f.itemOrder, 10, 1)
		require.NoError(t, err)
		as, err := f.graph.Cell(edges[0])
		require.NoError(t, err)
		other := as
		other.Holder = 11

		mock.ExpectExec(`INSERT INTO "items" ("id", "type", "sku", "order_id") VALUES (?, ?, ?, ?)`).
			WithArgs(10, "Item", "X", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		inst := statement.NewInstance(f.item, 10).Set("sku", "X")
		err = f.graph.Insert(ctx, drv, &statement.Insert{Instance: inst}, []sqlgraph.Assignment{as, other})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Audit", func(t *testing.T) {
		drv, mock := mockDriver(t)
		ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		version := int64(1)
		mock.ExpectExec(`INSERT INTO "tags" ("id", "type", "version", "created_at", "updated_at", "created_by_id", "updated_by_id", "created_by_name", "updated_by_name") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`).
			WithArgs(5, "Tag", 1, ts, ts, 3, 3, "ann", "ann").
			WillReturnResult(sqlmock.NewResult(0, 1))
		s := &statement.Insert{
			Instance: statement.NewInstance(f.tag, 5),
			Audit:    statement.Audit{Version: &version, Timestamp: &ts, UserID: 3, UserName: "ann"},
		}
		require.NoError(t, f.graph.Insert(ctx, drv, s, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RowCount", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`INSERT INTO "tags" ("id", "type") VALUES (?, ?)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := f.graph.Insert(ctx, drv, &statement.Insert{Instance: statement.NewInstance(f.tag, 5)}, nil)
		require.Error(t, err)
		assert.True(t, strata.IsFatal(err))
		var rerr *strata.RowCountError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, "insert", rerr.Op)
		assert.Equal(t, "tags", rerr.Table)
		assert.Equal(t, int64(0), rerr.Affected)
	})

	t.Run("Constraint", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`INSERT INTO "tags" ("id", "type") VALUES (?, ?)`).
			WillReturnError(errors.New("UNIQUE constraint failed: tags.id"))
		err := f.graph.Insert(ctx, drv, &statement.Insert{Instance: statement.NewInstance(f.tag, 5)}, nil)
		require.Error(t, err)
		var cerr *sqlgraph.ConstraintError
		assert.True(t, errors.As(err, &cerr))
		assert.True(t, sqlgraph.IsUniqueConstraintError(err))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	version := int64(3)

	t.Run("Versioned", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`UPDATE "orders" SET "version" = COALESCE("version", 0) + ?, "updated_by_name" = ? WHERE ("id" = ? AND "version" = ?)`).
			WithArgs(1, "bob", 1, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "orders" SET "status" = ? WHERE "id" = ?`).
			WithArgs("paid", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s := &statement.Update{
			Instance: statement.NewInstance(f.order, 1).Set("status", "paid"),
			Audit:    statement.Audit{Version: &version, UserName: "bob"},
		}
		require.NoError(t, f.graph.Update(ctx, drv, s))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("VersionConflict", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`UPDATE "orders" SET "version" = COALESCE("version", 0) + ?, "updated_by_name" = ? WHERE ("id" = ? AND "version" = ?)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		s := &statement.Update{
			Instance: statement.NewInstance(f.order, 1).Set("status", "paid"),
			Audit:    statement.Audit{Version: &version, UserName: "bob"},
		}
		err := f.graph.Update(ctx, drv, s)
		require.Error(t, err)
		assert.True(t, strata.IsValidation(err))
		assert.True(t, strata.IsCode(err, strata.CodeVersionConflict))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unversioned", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`UPDATE "orders" SET "version" = COALESCE("version", 0) + ?, "updated_by_id" = ? WHERE "id" = ?`).
			WithArgs(1, 9, 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		s := &statement.Update{
			Instance: statement.NewInstance(f.order, 1),
			Audit:    statement.Audit{UserID: 9},
		}
		err := f.graph.Update(ctx, drv, s)
		assert.True(t, errors.Is(err, strata.ErrRowCount))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Chain", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`UPDATE "parties" SET "name" = ? WHERE "id" = ?`).
			WithArgs("ann", 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s := &statement.Update{Instance: statement.NewInstance(f.person, 7).Set("name", "ann")}
		require.NoError(t, f.graph.Update(ctx, drv, s))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	drv, mock := mockDriver(t)
	mock.ExpectExec(`DELETE FROM "people" WHERE "id" = ?`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "parties" WHERE "id" = ?`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	err := f.graph.Delete(ctx, drv, &statement.Delete{Instance: statement.NewInstance(f.person, 7)})
	require.Error(t, err)
	var rerr *strata.RowCountError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "parties", rerr.Table)
	assert.Equal(t, int64(2), rerr.Affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForeignKeyReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	edges, err := f.graph.Resolver().Resolve(f.items, 1, 10)
	require.NoError(t, err)

	t.Run("Add", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`UPDATE "items" SET "order_id" = ? WHERE "id" = ?`).
			WithArgs(1, 10).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, f.graph.AddReference(ctx, drv, edges[0]))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Remove", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`UPDATE "items" SET "order_id" = NULL WHERE ("id" = ? AND "order_id" = ?)`).
			WithArgs(10, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, f.graph.RemoveReference(ctx, drv, edges[1]))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RemoveStale", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec(`UPDATE "items" SET "order_id" = NULL WHERE ("id" = ? AND "order_id" = ?)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := f.graph.RemoveReference(ctx, drv, edges[0])
		assert.True(t, errors.Is(err, strata.ErrRowCount))
	})

	t.Run("Replace", func(t *testing.T) {
		drv, mock := mockDriver(t)
		as := sqlgraph.Assignment{Cell: sqlgraph.Cell{Holder: 10, Table: "items", Column: "order_id"}, Value: 2}
		mock.ExpectExec(`UPDATE "items" SET "order_id" = ? WHERE ("id" = ? AND "order_id" = ?)`).
			WithArgs(2, 10, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, f.graph.ReplaceCell(ctx, drv, as, 1))

		mock.ExpectExec(`UPDATE "items" SET "order_id" = ? WHERE ("id" = ? AND "order_id" = ?)`).
			WithArgs(2, 10, 3).
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := f.graph.ReplaceCell(ctx, drv, as, 3)
		assert.True(t, errors.Is(err, strata.ErrRowCount))
		assert.True(t, strata.IsFatal(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJoinTableReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sqlgraph.WithIDProvider(schema.NewSequenceProvider(100)))
	edges, err := f.graph.Resolver().Resolve(f.tags, 1, 5)
	require.NoError(t, err)
	const count = `SELECT COUNT(*) FROM "order_tags" WHERE ("order_id" = ? AND "tag_id" = ?)`

	t.Run("Add", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(count).WithArgs(1, 5).WillReturnRows(countRows(0))
		mock.ExpectExec(`INSERT INTO "order_tags" ("id", "order_id", "tag_id") VALUES (?, ?, ?)`).
			WithArgs(100, 1, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, f.graph.AddReference(ctx, drv, edges[0]))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AddMirror", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(`SELECT COUNT(*) FROM "order_tags" WHERE ("tag_id" = ? AND "order_id" = ?)`).
			WithArgs(5, 1).
			WillReturnRows(countRows(0))
		mock.ExpectExec(`INSERT INTO "order_tags" ("id", "tag_id", "order_id") VALUES (?, ?, ?)`).
			WithArgs(sqlmock.AnyArg(), 5, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, f.graph.AddReference(ctx, drv, edges[1]))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(count).WithArgs(1, 5).WillReturnRows(countRows(1))
		err := f.graph.AddReference(ctx, drv, edges[0])
		require.Error(t, err)
		assert.True(t, strata.IsDuplicateJoinRow(err))
		assert.True(t, strata.IsValidation(err))
		var derr *strata.DuplicateJoinRowError
		require.True(t, errors.As(err, &derr))
		assert.Equal(t, "order_tags", derr.Table)
		assert.Equal(t, "Order.tags", derr.Reference)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateRace", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(count).WillReturnRows(countRows(0))
		mock.ExpectExec(`INSERT INTO "order_tags" ("id", "order_id", "tag_id") VALUES (?, ?, ?)`).
			WillReturnError(errors.New("UNIQUE constraint failed: order_tags.order_id, order_tags.tag_id"))
		err := f.graph.AddReference(ctx, drv, edges[0])
		assert.True(t, strata.IsDuplicateJoinRow(err))
	})

	t.Run("Remove", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(count).WithArgs(1, 5).WillReturnRows(countRows(1))
		mock.ExpectExec(`DELETE FROM "order_tags" WHERE ("order_id" = ? AND "tag_id" = ?)`).
			WithArgs(1, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, f.graph.RemoveReference(ctx, drv, edges[0]))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(count).WithArgs(1, 5).WillReturnRows(countRows(0))
		err := f.graph.RemoveReference(ctx, drv, edges[0])
		require.Error(t, err)
		assert.True(t, strata.IsMissingJoinRow(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const query = `SELECT COUNT(*) FROM "orders" WHERE ("order_number" = ? AND "id" <> ?)`

	t.Run("Free", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(query).WithArgs("A-1", 1).WillReturnRows(countRows(0))
		s := &statement.CheckUnique{Instance: statement.NewInstance(f.order, 1).Set("orderNumber", "A-1")}
		require.NoError(t, f.graph.CheckUnique(ctx, drv, s))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Taken", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(query).WithArgs("A-1", 1).WillReturnRows(countRows(1))
		s := &statement.CheckUnique{Instance: statement.NewInstance(f.order, 1).Set("orderNumber", "A-1")}
		err := f.graph.CheckUnique(ctx, drv, s)
		require.Error(t, err)
		assert.True(t, strata.IsCode(err, strata.CodeNotUnique))
		verrs := strata.ValidationErrors(err)
		require.Len(t, verrs, 1)
		assert.Equal(t, "Order", verrs[0].Entity)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unset", func(t *testing.T) {
		drv, mock := mockDriver(t)
		s := &statement.CheckUnique{Instance: statement.NewInstance(f.order, 1).Set("status", "new")}
		require.NoError(t, f.graph.CheckUnique(ctx, drv, s))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckUniquePartial(t *testing.T) {
	ctx := context.Background()
	invoice := &schema.Type{Name: "Invoice", Attributes: []*schema.Attribute{
		{Name: "number", Identifying: true},
		{Name: "region", Identifying: true},
		{Name: "total"},
	}}
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(invoice))
	require.NoError(t, reg.Finalize())
	g := sqlgraph.New(dialect.SQLite, reg)
	const (
		stored = `SELECT "region" FROM "invoices" WHERE "id" = ?`
		count  = `SELECT COUNT(*) FROM "invoices" WHERE ("number" = ? AND "region" = ? AND "id" <> ?)`
	)
	s := &statement.CheckUnique{Instance: statement.NewInstance(invoice, 1).Set("number", "N-1")}

	t.Run("Stored", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(stored).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"region"}).AddRow("EU"))
		mock.ExpectQuery(count).WithArgs("N-1", "EU", 1).WillReturnRows(countRows(1))
		err := g.CheckUnique(ctx, drv, s)
		require.Error(t, err)
		assert.True(t, strata.IsCode(err, strata.CodeNotUnique))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotStored", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(stored).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"region"}))
		require.NoError(t, g.CheckUnique(ctx, drv, s))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StoredNull", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(stored).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"region"}).AddRow(nil))
		require.NoError(t, g.CheckUnique(ctx, drv, s))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Complete", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(count).WithArgs("N-1", "US", 1).WillReturnRows(countRows(0))
		full := &statement.CheckUnique{Instance: statement.NewInstance(invoice, 1).Set("number", "N-1").Set("region", "US")}
		require.NoError(t, g.CheckUnique(ctx, drv, full))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInstanceExists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const query = `SELECT COUNT(*) FROM "people" WHERE "id" = ?`
	s := &statement.InstanceExists{Instance: statement.NewInstance(f.person, 7)}

	for _, tt := range []struct {
		name  string
		count int
		check func(*testing.T, error)
	}{
		{"Found", 1, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"NotFound", 0, func(t *testing.T, err error) {
			assert.True(t, strata.IsCode(err, strata.CodeEntityNotFound))
			assert.False(t, strata.IsFatal(err))
		}},
		{"Ambiguous", 2, func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, strata.ErrRowCount))
			assert.True(t, strata.IsFatal(err))
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			drv, mock := mockDriver(t)
			mock.ExpectQuery(query).WithArgs(7).WillReturnRows(countRows(tt.count))
			tt.check(t, f.graph.InstanceExists(ctx, drv, s))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
