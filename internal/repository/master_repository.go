package repository

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-panel/internal/model"
)

var masterColumns = []any{"id", "name"}

// MasterRepo persists one of the name-only master tables (languages,
// categories).  Deleting a master leaves its books uncategorised.
type MasterRepo[T model.Language | model.Category] struct {
	store
	table string
	noun  string
}

// NewLanguageRepo returns the repository for the languages table.
func NewLanguageRepo(db *sqlx.DB) *MasterRepo[model.Language] {
	return &MasterRepo[model.Language]{store: newStore(db), table: "languages", noun: "Language"}
}

// NewCategoryRepo returns the repository for the categories table.
func NewCategoryRepo(db *sqlx.DB) *MasterRepo[model.Category] {
	return &MasterRepo[model.Category]{store: newStore(db), table: "categories", noun: "Category"}
}

// List returns every row ordered by name.
func (r *MasterRepo[T]) List(ctx context.Context) ([]T, error) {
	out := []T{}
	err := selectAll(ctx, r.db, &out, r.from(r.table).Select(masterColumns...).Order(goqu.C("name").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, storeErr(err, "list "+r.table)
	}
	return out, nil
}

// Get returns the row with the given id.
func (r *MasterRepo[T]) Get(ctx context.Context, id int64) (*T, error) {
	var v T
	if err := getOne(ctx, r.db, &v, r.from(r.table).Select(masterColumns...).Where(goqu.C("id").Eq(id))); err != nil {
		if isNoRows(err) {
			return nil, NotFoundf("%s with ID %d not found", r.noun, id)
		}
		return nil, storeErr(err, "get "+r.noun)
	}
	return &v, nil
}

// Create inserts a row and returns it.
func (r *MasterRepo[T]) Create(ctx context.Context, name string) (*T, error) {
	id, err := r.insert(ctx, r.db, r.insertInto(r.table).Rows(goqu.Record{"name": name}))
	if err != nil {
		return nil, storeErr(err, "create "+r.noun)
	}
	return r.Get(ctx, id)
}

// Update renames the row with the given id.
func (r *MasterRepo[T]) Update(ctx context.Context, id int64, name string) (*T, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	if _, err := execute(ctx, r.db, r.update(r.table).Set(goqu.Record{"name": name}).Where(goqu.C("id").Eq(id))); err != nil {
		return nil, storeErr(err, "update "+r.noun)
	}
	return r.Get(ctx, id)
}

// Delete removes the row with the given id.
func (r *MasterRepo[T]) Delete(ctx context.Context, id int64) error {
	res, err := execute(ctx, r.db, r.deleteFrom(r.table).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return storeErr(err, "delete "+r.noun)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFoundf("%s with ID %d not found", r.noun, id)
	}
	return nil
}
