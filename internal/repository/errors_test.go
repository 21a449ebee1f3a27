package repository

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_StoreErr_Classifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, KindConflict},
		{"mysql foreign key", &mysql.MySQLError{Number: 1451}, KindConflict},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, KindConflict},
		{"postgres foreign key", &pgconn.PgError{Code: "23503"}, KindConflict},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: books.book_code (2067)"), KindConflict},
		{"sqlite foreign key", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), KindConflict},
		{"other", errors.New("connection reset"), KindStore},
		{"already classified", NotFoundf("missing"), KindNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(storeErr(tc.err, "op")))
		})
	}
	assert.NoError(t, storeErr(nil, "op"))
}

func Test_Error_MatchesSentinels(t *testing.T) {
	err := errors.Wrap(Validationf("quantity must be positive"), "place order")

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "quantity must be positive", Message(err))
	assert.Equal(t, "validation", KindOf(err).String())
	assert.Equal(t, KindStore, KindOf(errors.New("plain")))
}
