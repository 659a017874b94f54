package sqlgraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type stateError string

func (e stateError) Error() string    { return "state " + string(e) }
func (e stateError) SQLState() string { return string(e) }

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name                   string
		err                    error
		unique, foreign, check bool
	}{
		{"PostgresUnique", &pq.Error{Code: "23505"}, true, false, false},
		{"PostgresForeign", &pq.Error{Code: "23503"}, false, true, false},
		{"PostgresCheck", &pq.Error{Code: "23514"}, false, false, true},
		{"MySQLDuplicate", &mysql.MySQLError{Number: 1062}, true, false, false},
		{"MySQLParent", &mysql.MySQLError{Number: 1451}, false, true, false},
		{"MySQLChild", &mysql.MySQLError{Number: 1452}, false, true, false},
		{"MySQLCheck", &mysql.MySQLError{Number: 3819}, false, false, true},
		{"SQLState", fmt.Errorf("exec: %w", stateError("23505")), true, false, false},
		{"SQLiteUnique", errors.New("UNIQUE constraint failed: tags.label"), true, false, false},
		{"SQLiteForeign", errors.New("FOREIGN KEY constraint failed"), false, true, false},
		{"SQLiteCheck", errors.New("CHECK constraint failed: positive"), false, false, true},
		{"Other", errors.New("connection reset"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreign, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.check, IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreign || tt.check, IsConstraintError(tt.err))
		})
	}
	assert.False(t, IsConstraintError(nil))
}

func TestWrapConstraint(t *testing.T) {
	assert.NoError(t, wrapConstraint(nil))

	plain := errors.New("syntax error")
	assert.Same(t, plain, wrapConstraint(plain))

	cause := &pq.Error{Code: "23505", Message: "duplicate key"}
	err := wrapConstraint(cause)
	var cerr *ConstraintError
	assert.True(t, errors.As(err, &cerr))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "sqlgraph: constraint failed")
}
