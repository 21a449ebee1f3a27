package repository

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-panel/internal/model"
)

var readerColumns = []any{
	"id", "firstname", "lastname", "mobile", "email", "address",
	"city", "state", "pincode", "isactive", "created_at",
}

var historyColumns = []any{
	"id", "reader_id", "firstname", "lastname", "email", "address",
	"city", "state", "pincode", "changed_at",
}

// ReaderRepo persists readers and their change history.  Mobile numbers are
// unique; the store rejects a second reader with the same number.
type ReaderRepo struct {
	store
}

// NewReaderRepo returns a new ReaderRepo bound to the given database.
func NewReaderRepo(db *sqlx.DB) *ReaderRepo { return &ReaderRepo{store: newStore(db)} }

// ReaderSummary is a reader together with the number of orders placed.
type ReaderSummary struct {
	model.Reader
	OrderCount int64 `json:"orderCount"`
}

// FindByMobileTx returns the reader owning mobile, or nil when there is none.
func (r *ReaderRepo) FindByMobileTx(ctx context.Context, q sqlx.QueryerContext, mobile string) (*model.Reader, error) {
	var rd model.Reader
	if err := getOne(ctx, q, &rd, r.from("readers").Select(readerColumns...).Where(goqu.C("mobile").Eq(mobile))); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storeErr(err, "find reader")
	}
	return &rd, nil
}

// GetTx returns the reader with the given id.
func (r *ReaderRepo) GetTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Reader, error) {
	var rd model.Reader
	if err := getOne(ctx, q, &rd, r.from("readers").Select(readerColumns...).Where(goqu.C("id").Eq(id))); err != nil {
		if isNoRows(err) {
			return nil, NotFoundf("Reader with ID %d not found", id)
		}
		return nil, storeErr(err, "get reader")
	}
	return &rd, nil
}

// Get returns the reader with the given id.
func (r *ReaderRepo) Get(ctx context.Context, id int64) (*model.Reader, error) {
	return r.GetTx(ctx, r.db, id)
}

// ByIDs returns the readers with the given ids keyed by id.
func (r *ReaderRepo) ByIDs(ctx context.Context, q sqlx.QueryerContext, ids []int64) (map[int64]*model.Reader, error) {
	m, err := loadByIDs(ctx, q, r.store, "readers", readerColumns, ids, func(rd *model.Reader) int64 { return rd.ID })
	if err != nil {
		return nil, storeErr(err, "load readers")
	}
	return m, nil
}

// List returns all readers, newest first, with their order counts.
func (r *ReaderRepo) List(ctx context.Context) ([]ReaderSummary, error) {
	readers := []model.Reader{}
	ds := r.from("readers").Select(readerColumns...).Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if err := selectAll(ctx, r.db, &readers, ds); err != nil {
		return nil, storeErr(err, "list readers")
	}
	ids := make([]int64, len(readers))
	for i := range readers {
		ids[i] = readers[i].ID
	}

	counts := map[int64]int64{}
	if len(ids) > 0 {
		var rows []struct {
			ReaderID int64 `db:"reader_id"`
			N        int64 `db:"n"`
		}
		cs := r.from("orders").
			Select(goqu.C("reader_id"), goqu.COUNT(goqu.Star()).As("n")).
			Where(goqu.C("reader_id").In(ids)).
			GroupBy(goqu.C("reader_id"))
		if err := selectAll(ctx, r.db, &rows, cs); err != nil {
			return nil, storeErr(err, "count reader orders")
		}
		for _, row := range rows {
			counts[row.ReaderID] = row.N
		}
	}

	out := make([]ReaderSummary, len(readers))
	for i := range readers {
		out[i] = ReaderSummary{Reader: readers[i], OrderCount: counts[readers[i].ID]}
	}
	return out, nil
}

func readerRecord(rd *model.Reader) goqu.Record {
	return goqu.Record{
		"firstname": rd.Firstname,
		"lastname":  rd.Lastname,
		"mobile":    rd.Mobile,
		"email":     rd.Email,
		"address":   rd.Address,
		"city":      rd.City,
		"state":     rd.State,
		"pincode":   rd.Pincode,
		"isactive":  rd.IsActive,
	}
}

// CreateTx inserts rd and populates its ID.
func (r *ReaderRepo) CreateTx(ctx context.Context, e sqlx.ExtContext, rd *model.Reader) error {
	rec := readerRecord(rd)
	rec["created_at"] = rd.CreatedAt
	id, err := r.insert(ctx, e, r.insertInto("readers").Rows(rec))
	if err != nil {
		if isDuplicate(err) {
			return Conflictf("Reader with mobile %s already exists", rd.Mobile)
		}
		return storeErr(err, "create reader")
	}
	rd.ID = id
	return nil
}

// UpdateTx overwrites every mutable column of the stored reader with rd.
func (r *ReaderRepo) UpdateTx(ctx context.Context, e sqlx.ExecerContext, rd *model.Reader) error {
	_, err := execute(ctx, e, r.update("readers").Set(readerRecord(rd)).Where(goqu.C("id").Eq(rd.ID)))
	if err != nil {
		if isDuplicate(err) {
			return Conflictf("Reader with mobile %s already exists", rd.Mobile)
		}
		return storeErr(err, "update reader")
	}
	return nil
}

// AddHistoryTx appends a history snapshot and populates its ID.
func (r *ReaderRepo) AddHistoryTx(ctx context.Context, e sqlx.ExtContext, h *model.ReaderHistory) error {
	id, err := r.insert(ctx, e, r.insertInto("reader_histories").Rows(goqu.Record{
		"reader_id":  h.ReaderID,
		"firstname":  h.Firstname,
		"lastname":   h.Lastname,
		"email":      h.Email,
		"address":    h.Address,
		"city":       h.City,
		"state":      h.State,
		"pincode":    h.Pincode,
		"changed_at": h.ChangedAt,
	}))
	if err != nil {
		return storeErr(err, "create reader history")
	}
	h.ID = id
	return nil
}

// History returns the snapshots of a reader, most recent first.
func (r *ReaderRepo) History(ctx context.Context, readerID int64) ([]model.ReaderHistory, error) {
	out := []model.ReaderHistory{}
	ds := r.from("reader_histories").Select(historyColumns...).
		Where(goqu.C("reader_id").Eq(readerID)).
		Order(goqu.C("changed_at").Desc(), goqu.C("id").Desc())
	if err := selectAll(ctx, r.db, &out, ds); err != nil {
		return nil, storeErr(err, "list reader history")
	}
	return out, nil
}

// DeleteTx removes a reader.  Readers referenced by orders are kept and the
// call fails with a conflict.
func (r *ReaderRepo) DeleteTx(ctx context.Context, e sqlx.ExtContext, id int64) error {
	var n int64
	if err := getOne(ctx, e, &n, r.from("orders").Select(goqu.COUNT(goqu.Star())).Where(goqu.C("reader_id").Eq(id))); err != nil {
		return storeErr(err, "count reader orders")
	}
	if n > 0 {
		return Conflictf("Reader with ID %d has %d order(s) and cannot be deleted", id, n)
	}
	res, err := execute(ctx, e, r.deleteFrom("readers").Where(goqu.C("id").Eq(id)))
	if err != nil {
		return storeErr(err, "delete reader")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFoundf("Reader with ID %d not found", id)
	}
	return nil
}
