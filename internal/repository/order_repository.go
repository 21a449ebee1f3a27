package repository

import (
	"context"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-panel/internal/model"
)

var orderColumns = []any{"id", "reader_id", "shipping_details", "status", "order_date", "created_at", "updated_at"}

var lineColumns = []any{"id", "order_id", "book_id", "quantity", "status"}

// qualify prefixes each column with a table alias for joined queries.
func qualify(alias string, cols []any) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = goqu.I(alias + "." + c.(string))
	}
	return out
}

// OrderRepo persists orders and their ordered_books lines, and answers the
// cross-entity reporting queries built on them.
type OrderRepo struct {
	store
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{store: newStore(db)} }

// OrderFilter narrows List.  Sets match any of their members.
type OrderFilter struct {
	Statuses []string
	Cities   []string // reader city
	States   []string // reader state
	// Search matches reader name, email or mobile and the shipping details.
	Search string
}

// BookOrderStats summarises the demand for one book.
type BookOrderStats struct {
	BookID               int64          `json:"bookId"`
	TotalOrderedQuantity int64          `json:"totalOrderedQuantity"`
	ReadersCount         int            `json:"readersCount"`
	Readers              []model.Reader `json:"readers"`
}

// CreateTx inserts o and populates its ID.
func (r *OrderRepo) CreateTx(ctx context.Context, e sqlx.ExtContext, o *model.Order) error {
	id, err := r.insert(ctx, e, r.insertInto("orders").Rows(goqu.Record{
		"reader_id":        o.ReaderID,
		"shipping_details": o.ShippingDetails,
		"status":           o.Status,
		"order_date":       o.OrderDate,
		"created_at":       o.CreatedAt,
		"updated_at":       o.UpdatedAt,
	}))
	if err != nil {
		return storeErr(err, "create order")
	}
	o.ID = id
	return nil
}

// GetTx returns the bare order row, optionally locking it.
func (r *OrderRepo) GetTx(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*model.Order, error) {
	var o model.Order
	ds := r.forUpdate(r.from("orders").Select(orderColumns...).Where(goqu.C("id").Eq(id)), lock)
	if err := getOne(ctx, q, &o, ds); err != nil {
		if isNoRows(err) {
			return nil, NotFoundf("Order with ID %d not found", id)
		}
		return nil, storeErr(err, "get order")
	}
	return &o, nil
}

// Get returns an order with its reader, lines (with books) and activity log.
func (r *OrderRepo) Get(ctx context.Context, id int64) (*model.Order, error) {
	o, err := r.GetTx(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	list := []model.Order{*o}
	if err := r.hydrate(ctx, r.db, list, true); err != nil {
		return nil, err
	}
	logs := []model.ActivityLog{}
	ds := r.from("activity_logs").Select(activityColumns...).
		Where(goqu.C("order_id").Eq(id)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if err := selectAll(ctx, r.db, &logs, ds); err != nil {
		return nil, storeErr(err, "load order activity")
	}
	list[0].ActivityLog = logs
	return &list[0], nil
}

// UpdateStatusTx sets the order status and bumps updated_at.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, e sqlx.ExecerContext, id int64, status string, at time.Time) error {
	_, err := execute(ctx, e, r.update("orders").Set(goqu.Record{"status": status, "updated_at": at}).Where(goqu.C("id").Eq(id)))
	return storeErr(err, "update order status")
}

// AddLineTx inserts an order line and populates its ID.
func (r *OrderRepo) AddLineTx(ctx context.Context, e sqlx.ExtContext, l *model.OrderedBook) error {
	id, err := r.insert(ctx, e, r.insertInto("ordered_books").Rows(goqu.Record{
		"order_id": l.OrderID,
		"book_id":  l.BookID,
		"quantity": l.Quantity,
		"status":   l.Status,
	}))
	if err != nil {
		return storeErr(err, "create ordered book")
	}
	l.ID = id
	return nil
}

// LineByBookTx returns the first line of orderID for bookID, or nil.
func (r *OrderRepo) LineByBookTx(ctx context.Context, q sqlx.QueryerContext, orderID, bookID int64) (*model.OrderedBook, error) {
	return r.findLine(ctx, q, goqu.Ex{"order_id": orderID, "book_id": bookID})
}

// LineByIDTx returns the line with the given id within orderID, or nil.
func (r *OrderRepo) LineByIDTx(ctx context.Context, q sqlx.QueryerContext, orderID, lineID int64) (*model.OrderedBook, error) {
	return r.findLine(ctx, q, goqu.Ex{"order_id": orderID, "id": lineID})
}

func (r *OrderRepo) findLine(ctx context.Context, q sqlx.QueryerContext, where goqu.Ex) (*model.OrderedBook, error) {
	var l model.OrderedBook
	ds := r.from("ordered_books").Select(lineColumns...).Where(where).Order(goqu.C("id").Asc()).Limit(1)
	if err := getOne(ctx, q, &l, ds); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storeErr(err, "find ordered book")
	}
	return &l, nil
}

// UpdateLineStatusTx sets the status of one line.
func (r *OrderRepo) UpdateLineStatusTx(ctx context.Context, e sqlx.ExecerContext, lineID int64, status string) error {
	_, err := execute(ctx, e, r.update("ordered_books").Set(goqu.Record{"status": status}).Where(goqu.C("id").Eq(lineID)))
	return storeErr(err, "update ordered book status")
}

// List returns the orders matching f, most recent first, each with its
// reader and lines.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	where := []exp.Expression{}
	if len(f.Statuses) > 0 {
		where = append(where, goqu.I("o.status").In(f.Statuses))
	}
	if len(f.Cities) > 0 {
		where = append(where, goqu.I("r.city").In(f.Cities))
	}
	if len(f.States) > 0 {
		where = append(where, goqu.I("r.state").In(f.States))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, goqu.Or(
			goqu.L("LOWER(?) LIKE ?", goqu.I("r.firstname"), like),
			goqu.L("LOWER(?) LIKE ?", goqu.I("r.lastname"), like),
			goqu.L("LOWER(?) LIKE ?", goqu.I("r.email"), like),
			goqu.I("r.mobile").Like("%"+s+"%"),
			goqu.L("LOWER(?) LIKE ?", goqu.I("o.shipping_details"), like),
		))
	}

	orders := []model.Order{}
	ds := r.from(goqu.T("orders").As("o")).
		Join(goqu.T("readers").As("r"), goqu.On(goqu.I("o.reader_id").Eq(goqu.I("r.id")))).
		Select(qualify("o", orderColumns)...).
		Where(where...).
		Order(goqu.I("o.order_date").Desc(), goqu.I("o.id").Desc())
	if err := selectAll(ctx, r.db, &orders, ds); err != nil {
		return nil, storeErr(err, "list orders")
	}
	if err := r.hydrate(ctx, r.db, orders, true); err != nil {
		return nil, err
	}
	return orders, nil
}

// ByReader returns a reader's orders, most recent first, with their lines.
func (r *OrderRepo) ByReader(ctx context.Context, readerID int64) ([]model.Order, error) {
	orders := []model.Order{}
	ds := r.from("orders").Select(orderColumns...).
		Where(goqu.C("reader_id").Eq(readerID)).
		Order(goqu.C("order_date").Desc(), goqu.C("id").Desc())
	if err := selectAll(ctx, r.db, &orders, ds); err != nil {
		return nil, storeErr(err, "list reader orders")
	}
	if err := r.hydrate(ctx, r.db, orders, false); err != nil {
		return nil, err
	}
	return orders, nil
}

// LinesForBook returns every line for bookID, oldest order first, each with
// its order and the order's reader.  A non-empty status restricts the lines,
// which with WAITLISTED yields the fulfilment queue for the book.
func (r *OrderRepo) LinesForBook(ctx context.Context, bookID int64, status string) ([]model.OrderedBook, error) {
	lines := []model.OrderedBook{}
	ds := r.from(goqu.T("ordered_books").As("ob")).
		Join(goqu.T("orders").As("o"), goqu.On(goqu.I("ob.order_id").Eq(goqu.I("o.id")))).
		Select(qualify("ob", lineColumns)...).
		Where(goqu.I("ob.book_id").Eq(bookID)).
		Order(goqu.I("o.created_at").Asc(), goqu.I("o.id").Asc(), goqu.I("ob.id").Asc())
	if status != "" {
		ds = ds.Where(goqu.I("ob.status").Eq(status))
	}
	if err := selectAll(ctx, r.db, &lines, ds); err != nil {
		return nil, storeErr(err, "list book orders")
	}

	orderIDs := make([]int64, len(lines))
	for i := range lines {
		orderIDs[i] = lines[i].OrderID
	}
	orders, err := loadByIDs(ctx, r.db, r.store, "orders", orderColumns, orderIDs, func(o *model.Order) int64 { return o.ID })
	if err != nil {
		return nil, storeErr(err, "load orders")
	}
	readerIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		readerIDs = append(readerIDs, o.ReaderID)
	}
	readers, err := loadByIDs(ctx, r.db, r.store, "readers", readerColumns, readerIDs, func(rd *model.Reader) int64 { return rd.ID })
	if err != nil {
		return nil, storeErr(err, "load readers")
	}
	for _, o := range orders {
		o.Reader = readers[o.ReaderID]
		o.Books = nil
	}
	for i := range lines {
		lines[i].Order = orders[lines[i].OrderID]
	}
	return lines, nil
}

// BookStats returns the total quantity ordered for a book and the distinct
// readers who ordered it.
func (r *OrderRepo) BookStats(ctx context.Context, bookID int64) (*BookOrderStats, error) {
	stats := &BookOrderStats{BookID: bookID, Readers: []model.Reader{}}
	total := r.from("ordered_books").
		Select(goqu.COALESCE(goqu.SUM(goqu.C("quantity")), 0)).
		Where(goqu.C("book_id").Eq(bookID))
	if err := getOne(ctx, r.db, &stats.TotalOrderedQuantity, total); err != nil {
		return nil, storeErr(err, "sum ordered quantity")
	}

	var readerIDs []int64
	ids := r.from(goqu.T("ordered_books").As("ob")).
		Join(goqu.T("orders").As("o"), goqu.On(goqu.I("ob.order_id").Eq(goqu.I("o.id")))).
		Select(goqu.I("o.reader_id")).
		Where(goqu.I("ob.book_id").Eq(bookID)).
		GroupBy(goqu.I("o.reader_id")).
		Order(goqu.I("o.reader_id").Asc())
	if err := selectAll(ctx, r.db, &readerIDs, ids); err != nil {
		return nil, storeErr(err, "list book readers")
	}
	readers, err := loadByIDs(ctx, r.db, r.store, "readers", readerColumns, readerIDs, func(rd *model.Reader) int64 { return rd.ID })
	if err != nil {
		return nil, storeErr(err, "load readers")
	}
	for _, id := range readerIDs {
		if rd, ok := readers[id]; ok {
			stats.Readers = append(stats.Readers, *rd)
		}
	}
	stats.ReadersCount = len(stats.Readers)
	return stats, nil
}

// hydrate attaches lines (with their books) and optionally readers to orders.
func (r *OrderRepo) hydrate(ctx context.Context, q sqlx.QueryerContext, orders []model.Order, withReader bool) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	readerIDs := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		readerIDs[i] = orders[i].ReaderID
		orders[i].Books = []model.OrderedBook{}
	}

	var lines []model.OrderedBook
	ds := r.from("ordered_books").Select(lineColumns...).Where(goqu.C("order_id").In(ids)).Order(goqu.C("id").Asc())
	if err := selectAll(ctx, q, &lines, ds); err != nil {
		return storeErr(err, "load ordered books")
	}
	bookIDs := make([]int64, len(lines))
	for i := range lines {
		bookIDs[i] = lines[i].BookID
	}
	books, err := loadByIDs(ctx, q, r.store, "books", bookColumns, bookIDs, func(b *model.Book) int64 { return b.ID })
	if err != nil {
		return storeErr(err, "load books")
	}

	idx := make(map[int64]int, len(orders))
	for i := range orders {
		idx[orders[i].ID] = i
	}
	for _, l := range lines {
		l.Book = books[l.BookID]
		if i, ok := idx[l.OrderID]; ok {
			orders[i].Books = append(orders[i].Books, l)
		}
	}

	if !withReader {
		return nil
	}
	readers, err := loadByIDs(ctx, q, r.store, "readers", readerColumns, readerIDs, func(rd *model.Reader) int64 { return rd.ID })
	if err != nil {
		return storeErr(err, "load readers")
	}
	for i := range orders {
		orders[i].Reader = readers[orders[i].ReaderID]
	}
	return nil
}
