package repository

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/iliyamo/book-panel/internal/database"
)

// store carries the handle and dialect every repository builds queries
// with.  Methods taking a sqlx.QueryerContext or sqlx.ExtContext run on
// either the pool or an open transaction.
type store struct {
	db        *sqlx.DB
	dialect   goqu.DialectWrapper
	rowLocks  bool // SELECT ... FOR UPDATE
	returning bool // INSERT ... RETURNING id instead of LastInsertId
}

func newStore(db *sqlx.DB) store {
	driver := db.DriverName()
	return store{
		db:        db,
		dialect:   database.Dialect(driver),
		rowLocks:  driver != database.DriverSQLite,
		returning: driver == database.DriverPostgres,
	}
}

// DB exposes the underlying handle so callers can open transactions.
func (s store) DB() *sqlx.DB { return s.db }

func (s store) from(table any) *goqu.SelectDataset {
	return s.dialect.From(table).Prepared(true)
}

func (s store) insertInto(table string) *goqu.InsertDataset {
	return s.dialect.Insert(table).Prepared(true)
}

func (s store) update(table string) *goqu.UpdateDataset {
	return s.dialect.Update(table).Prepared(true)
}

func (s store) deleteFrom(table string) *goqu.DeleteDataset {
	return s.dialect.Delete(table).Prepared(true)
}

// builder is satisfied by every goqu dataset.
type builder interface {
	ToSQL() (string, []any, error)
}

func getOne(ctx context.Context, q sqlx.QueryerContext, dest any, b builder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return errors.Wrap(err, "build query")
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest any, b builder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return errors.Wrap(err, "build query")
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func execute(ctx context.Context, e sqlx.ExecerContext, b builder) (sql.Result, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build query")
	}
	return e.ExecContext(ctx, query, args...)
}

// insert runs ds and returns the generated id.
func (s store) insert(ctx context.Context, e sqlx.ExtContext, ds *goqu.InsertDataset) (int64, error) {
	if s.returning {
		query, args, err := ds.Returning(goqu.C("id")).ToSQL()
		if err != nil {
			return 0, errors.Wrap(err, "build query")
		}
		var id int64
		err = e.QueryRowxContext(ctx, query, args...).Scan(&id)
		return id, err
	}
	res, err := execute(ctx, e, ds)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// forUpdate adds a row lock where the dialect supports one.  sqlite takes a
// database-wide write lock inside the transaction instead.
func (s store) forUpdate(ds *goqu.SelectDataset, lock bool) *goqu.SelectDataset {
	if lock && s.rowLocks {
		return ds.ForUpdate(exp.Wait)
	}
	return ds
}

// RunInTx runs fn inside a transaction.  The transaction is committed when
// fn returns nil and rolled back otherwise, including on panic.
func RunInTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err, "commit transaction")
	}
	committed = true
	return nil
}

// loadByIDs fetches rows of table whose id is in ids and indexes them with key.
func loadByIDs[T any](ctx context.Context, q sqlx.QueryerContext, s store, table string, cols []any, ids []int64, key func(*T) int64) (map[int64]*T, error) {
	out := make(map[int64]*T, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []T
	if err := selectAll(ctx, q, &rows, s.from(table).Select(cols...).Where(goqu.C("id").In(ids))); err != nil {
		return nil, err
	}
	for i := range rows {
		out[key(&rows[i])] = &rows[i]
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
