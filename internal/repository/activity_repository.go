package repository

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-panel/internal/model"
)

var activityColumns = []any{"id", "action", "description", "order_id", "reader_id", "created_at"}

// ActivityRepo persists the audit trail.  Listings are most recent first.
type ActivityRepo struct {
	store
}

// NewActivityRepo returns a new ActivityRepo bound to the given database.
func NewActivityRepo(db *sqlx.DB) *ActivityRepo { return &ActivityRepo{store: newStore(db)} }

// CreateTx appends a log entry and populates its ID.
func (r *ActivityRepo) CreateTx(ctx context.Context, e sqlx.ExtContext, a *model.ActivityLog) error {
	id, err := r.insert(ctx, e, r.insertInto("activity_logs").Rows(goqu.Record{
		"action":      a.Action,
		"description": a.Description,
		"order_id":    a.OrderID,
		"reader_id":   a.ReaderID,
		"created_at":  a.CreatedAt,
	}))
	if err != nil {
		return storeErr(err, "create activity log")
	}
	a.ID = id
	return nil
}

// Create appends a log entry outside of any transaction.
func (r *ActivityRepo) Create(ctx context.Context, a *model.ActivityLog) error {
	return r.CreateTx(ctx, r.db, a)
}

// Get returns the entry with the given id.
func (r *ActivityRepo) Get(ctx context.Context, id int64) (*model.ActivityLog, error) {
	var a model.ActivityLog
	if err := getOne(ctx, r.db, &a, r.from("activity_logs").Select(activityColumns...).Where(goqu.C("id").Eq(id))); err != nil {
		if isNoRows(err) {
			return nil, NotFoundf("Activity log with ID %d not found", id)
		}
		return nil, storeErr(err, "get activity log")
	}
	return &a, nil
}

// Update corrects an existing entry.  created_at is left untouched.
func (r *ActivityRepo) Update(ctx context.Context, a *model.ActivityLog) error {
	if _, err := r.Get(ctx, a.ID); err != nil {
		return err
	}
	_, err := execute(ctx, r.db, r.update("activity_logs").Set(goqu.Record{
		"action":      a.Action,
		"description": a.Description,
		"order_id":    a.OrderID,
		"reader_id":   a.ReaderID,
	}).Where(goqu.C("id").Eq(a.ID)))
	return storeErr(err, "update activity log")
}

// Delete removes the entry with the given id.
func (r *ActivityRepo) Delete(ctx context.Context, id int64) error {
	res, err := execute(ctx, r.db, r.deleteFrom("activity_logs").Where(goqu.C("id").Eq(id)))
	if err != nil {
		return storeErr(err, "delete activity log")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFoundf("Activity log with ID %d not found", id)
	}
	return nil
}

// List returns every entry.
func (r *ActivityRepo) List(ctx context.Context) ([]model.ActivityLog, error) {
	return r.list(ctx, nil)
}

// ByOrder returns the entries linked to an order.
func (r *ActivityRepo) ByOrder(ctx context.Context, orderID int64) ([]model.ActivityLog, error) {
	return r.list(ctx, goqu.C("order_id").Eq(orderID))
}

// ByReader returns the entries linked to a reader.
func (r *ActivityRepo) ByReader(ctx context.Context, readerID int64) ([]model.ActivityLog, error) {
	return r.list(ctx, goqu.C("reader_id").Eq(readerID))
}

func (r *ActivityRepo) list(ctx context.Context, where exp.Expression) ([]model.ActivityLog, error) {
	out := []model.ActivityLog{}
	ds := r.from("activity_logs").Select(activityColumns...).Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if where != nil {
		ds = ds.Where(where)
	}
	if err := selectAll(ctx, r.db, &out, ds); err != nil {
		return nil, storeErr(err, "list activity logs")
	}
	return out, nil
}
