// Package testutil arranges sqlite-backed fixtures for package tests.  It
// writes rows with plain SQL so that repository tests can use it without an
// import cycle.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/book-panel/internal/config"
	"github.com/iliyamo/book-panel/internal/database"
	"github.com/iliyamo/book-panel/internal/model"
)

// NewDB opens a migrated sqlite database in a per-test directory.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Open(config.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err, "error in arranging test database")
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db), "error in arranging test schema")
	return db
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Clock returns a deterministic clock starting at a fixed instant and
// advancing one second per call.
func Clock() func() time.Time {
	t := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// GivenLanguage inserts a language and returns its id.
func GivenLanguage(t testing.TB, db *sqlx.DB, name string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO languages (name) VALUES (?)`, name)
	require.NoError(t, err, "error in arranging test data")
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// GivenCategory inserts a category and returns its id.
func GivenCategory(t testing.TB, db *sqlx.DB, name string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO categories (name) VALUES (?)`, name)
	require.NoError(t, err, "error in arranging test data")
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// GivenBook inserts b, deriving availability from its stock, and sets b.ID.
// A zero CreatedAt is replaced with the current time.
func GivenBook(t testing.TB, db *sqlx.DB, b *model.Book) {
	t.Helper()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if b.Title == "" {
		b.Title = "Untitled"
	}
	b.IsAvailable = b.Stock() > 0
	res, err := db.NamedExec(`INSERT INTO books (
		book_code, title, author, description, front_image, back_image, stock_qty, is_available,
		featured, language_id, category_id, kabat_number, book_size, pages, year_ad,
		vikram_samvat, veer_samvat, price, created_at, updated_at
	) VALUES (
		:book_code, :title, :author, :description, :front_image, :back_image, :stock_qty, :is_available,
		:featured, :language_id, :category_id, :kabat_number, :book_size, :pages, :year_ad,
		:vikram_samvat, :veer_samvat, :price, :created_at, :updated_at
	)`, b)
	require.NoError(t, err, "error in arranging test data")
	b.ID, err = res.LastInsertId()
	require.NoError(t, err)
}

// GivenReader inserts r and sets r.ID.
func GivenReader(t testing.TB, db *sqlx.DB, r *model.Reader) {
	t.Helper()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := db.NamedExec(`INSERT INTO readers (
		firstname, lastname, mobile, email, address, city, state, pincode, isactive, created_at
	) VALUES (
		:firstname, :lastname, :mobile, :email, :address, :city, :state, :pincode, :isactive, :created_at
	)`, r)
	require.NoError(t, err, "error in arranging test data")
	r.ID, err = res.LastInsertId()
	require.NoError(t, err)
}

// GivenOrder inserts o with its lines and sets all ids.
func GivenOrder(t testing.TB, db *sqlx.DB, o *model.Order) {
	t.Helper()
	if o.Status == "" {
		o.Status = model.OrderPending
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = time.Now().UTC()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = o.OrderDate
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	res, err := db.NamedExec(`INSERT INTO orders (reader_id, shipping_details, status, order_date, created_at, updated_at)
		VALUES (:reader_id, :shipping_details, :status, :order_date, :created_at, :updated_at)`, o)
	require.NoError(t, err, "error in arranging test data")
	o.ID, err = res.LastInsertId()
	require.NoError(t, err)

	for i := range o.Books {
		l := &o.Books[i]
		l.OrderID = o.ID
		if l.Status == "" {
			l.Status = model.LineNewOrder
		}
		res, err := db.NamedExec(`INSERT INTO ordered_books (order_id, book_id, quantity, status)
			VALUES (:order_id, :book_id, :quantity, :status)`, l)
		require.NoError(t, err, "error in arranging test data")
		l.ID, err = res.LastInsertId()
		require.NoError(t, err)
	}
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, db *sqlx.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

// BookStock reads the stored stock and availability of a book.
func BookStock(t testing.TB, db *sqlx.DB, id int64) (*int64, bool) {
	t.Helper()
	var row struct {
		Stock     *int64 `db:"stock_qty"`
		Available bool   `db:"is_available"`
	}
	require.NoError(t, db.Get(&row, `SELECT stock_qty, is_available FROM books WHERE id = ?`, id))
	return row.Stock, row.Available
}
