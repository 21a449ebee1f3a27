package repository

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-panel/internal/database"
	"github.com/iliyamo/book-panel/internal/model"
)

// Default and upper bound page sizes for ListBooks.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var bookColumns = []any{
	"id", "book_code", "title", "description", "front_image", "back_image",
	"stock_qty", "is_available", "featured", "language_id", "category_id",
	"kabat_number", "book_size", "author", "tikakar", "prakashak", "sampadak",
	"anuvadak", "vishay", "shreni1", "shreni2", "shreni3", "pages", "year_ad",
	"vikram_samvat", "veer_samvat", "price", "prakar", "edition",
	"created_at", "updated_at",
}

// BookRepo persists catalog books.
type BookRepo struct {
	store
}

// NewBookRepo returns a new BookRepo bound to the given database.
func NewBookRepo(db *sqlx.DB) *BookRepo { return &BookRepo{store: newStore(db)} }

// BookFilter narrows ListBooks.  Zero values mean "no constraint"; all set
// predicates must hold together.
type BookFilter struct {
	// Search matches title or author case-insensitively, or the exact book
	// code when it parses as an integer.
	Search       string
	LanguageIDs  []int64
	CategoryIDs  []int64
	IsAvailable  *bool
	KabatNumber  string // substring of the stringified kabat number
	BookSize     string // case-insensitive substring
	MinPages     *int64
	MaxPages     *int64
	YearAD       *int64
	VikramSamvat *int64
	VeerSamvat   *int64
	Page         int
	Limit        int
}

// Pagination describes the page returned by a listing.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

// BookPage is one page of ListBooks results.
type BookPage struct {
	Books      []model.Book `json:"books"`
	Pagination Pagination   `json:"pagination"`
}

// List returns the books matching f, newest first, with their language and
// category attached.
func (r *BookRepo) List(ctx context.Context, f BookFilter) (*BookPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	where := r.conditions(f)

	var total int64
	if err := getOne(ctx, r.db, &total, r.from("books").Select(goqu.COUNT(goqu.Star())).Where(where...)); err != nil {
		return nil, storeErr(err, "count books")
	}

	books := []model.Book{}
	ds := r.from("books").Select(bookColumns...).Where(where...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(f.Limit)).Offset(uint((f.Page - 1) * f.Limit))
	if err := selectAll(ctx, r.db, &books, ds); err != nil {
		return nil, storeErr(err, "list books")
	}
	if err := r.attachMasters(ctx, r.db, books); err != nil {
		return nil, err
	}

	return &BookPage{
		Books: books,
		Pagination: Pagination{
			Total:      total,
			Page:       f.Page,
			Limit:      f.Limit,
			TotalPages: int64(math.Ceil(float64(total) / float64(f.Limit))),
		},
	}, nil
}

func (r *BookRepo) conditions(f BookFilter) []exp.Expression {
	where := []exp.Expression{}

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		anyOf := []exp.Expression{
			goqu.L("LOWER(?) LIKE ?", goqu.C("title"), like),
			goqu.L("LOWER(?) LIKE ?", goqu.C("author"), like),
		}
		if code, err := strconv.ParseInt(s, 10, 64); err == nil {
			anyOf = append(anyOf, goqu.C("book_code").Eq(code))
		}
		where = append(where, goqu.Or(anyOf...))
	}
	if len(f.LanguageIDs) > 0 {
		where = append(where, goqu.C("language_id").In(f.LanguageIDs))
	}
	if len(f.CategoryIDs) > 0 {
		where = append(where, goqu.C("category_id").In(f.CategoryIDs))
	}
	if f.IsAvailable != nil {
		// goqu renders Eq(bool) as IS ?, which mysql and postgres reject
		where = append(where, goqu.L("? = ?", goqu.C("is_available"), *f.IsAvailable))
	}
	if k := strings.TrimSpace(f.KabatNumber); k != "" {
		where = append(where, goqu.L("CAST(? AS "+r.textType()+") LIKE ?", goqu.C("kabat_number"), "%"+k+"%"))
	}
	if s := strings.TrimSpace(f.BookSize); s != "" {
		where = append(where, goqu.L("LOWER(?) LIKE ?", goqu.C("book_size"), "%"+strings.ToLower(s)+"%"))
	}
	if f.MinPages != nil {
		where = append(where, goqu.C("pages").Gte(*f.MinPages))
	}
	if f.MaxPages != nil {
		where = append(where, goqu.C("pages").Lte(*f.MaxPages))
	}
	if f.YearAD != nil {
		where = append(where, goqu.C("year_ad").Eq(*f.YearAD))
	}
	if f.VikramSamvat != nil {
		where = append(where, goqu.C("vikram_samvat").Eq(*f.VikramSamvat))
	}
	if f.VeerSamvat != nil {
		where = append(where, goqu.C("veer_samvat").Eq(*f.VeerSamvat))
	}
	return where
}

// textType is the CAST target for turning numbers into strings.
func (r *BookRepo) textType() string {
	if r.db.DriverName() == database.DriverMySQL {
		return "CHAR"
	}
	return "TEXT"
}

// Get returns a book with its language and category.
func (r *BookRepo) Get(ctx context.Context, id int64) (*model.Book, error) {
	b, err := r.GetTx(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	list := []model.Book{*b}
	if err := r.attachMasters(ctx, r.db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// GetTx fetches a book by id on q, optionally locking the row for the rest
// of the transaction.
func (r *BookRepo) GetTx(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*model.Book, error) {
	var b model.Book
	ds := r.forUpdate(r.from("books").Select(bookColumns...).Where(goqu.C("id").Eq(id)), lock)
	if err := getOne(ctx, q, &b, ds); err != nil {
		if isNoRows(err) {
			return nil, NotFoundf("Book with ID %d not found", id)
		}
		return nil, storeErr(err, "get book")
	}
	return &b, nil
}

// ByIDs returns the books with the given ids keyed by id.
func (r *BookRepo) ByIDs(ctx context.Context, q sqlx.QueryerContext, ids []int64) (map[int64]*model.Book, error) {
	m, err := loadByIDs(ctx, q, r.store, "books", bookColumns, ids, func(b *model.Book) int64 { return b.ID })
	if err != nil {
		return nil, storeErr(err, "load books")
	}
	return m, nil
}

func (r *BookRepo) attachMasters(ctx context.Context, q sqlx.QueryerContext, books []model.Book) error {
	var langIDs, catIDs []int64
	for _, b := range books {
		if b.LanguageID != nil {
			langIDs = append(langIDs, *b.LanguageID)
		}
		if b.CategoryID != nil {
			catIDs = append(catIDs, *b.CategoryID)
		}
	}
	langs, err := loadByIDs(ctx, q, r.store, "languages", masterColumns, langIDs, func(l *model.Language) int64 { return l.ID })
	if err != nil {
		return storeErr(err, "load languages")
	}
	cats, err := loadByIDs(ctx, q, r.store, "categories", masterColumns, catIDs, func(c *model.Category) int64 { return c.ID })
	if err != nil {
		return storeErr(err, "load categories")
	}
	for i := range books {
		if books[i].LanguageID != nil {
			books[i].Language = langs[*books[i].LanguageID]
		}
		if books[i].CategoryID != nil {
			books[i].Category = cats[*books[i].CategoryID]
		}
	}
	return nil
}

func bookRecord(b *model.Book) goqu.Record {
	return goqu.Record{
		"book_code":     b.BookCode,
		"title":         b.Title,
		"description":   b.Description,
		"front_image":   b.FrontImage,
		"back_image":    b.BackImage,
		"stock_qty":     b.StockQty,
		"is_available":  b.IsAvailable,
		"featured":      b.Featured,
		"language_id":   b.LanguageID,
		"category_id":   b.CategoryID,
		"kabat_number":  b.KabatNumber,
		"book_size":     b.BookSize,
		"author":        b.Author,
		"tikakar":       b.Tikakar,
		"prakashak":     b.Prakashak,
		"sampadak":      b.Sampadak,
		"anuvadak":      b.Anuvadak,
		"vishay":        b.Vishay,
		"shreni1":       b.Shreni1,
		"shreni2":       b.Shreni2,
		"shreni3":       b.Shreni3,
		"pages":         b.Pages,
		"year_ad":       b.YearAD,
		"vikram_samvat": b.VikramSamvat,
		"veer_samvat":   b.VeerSamvat,
		"price":         b.Price,
		"prakar":        b.Prakar,
		"edition":       b.Edition,
		"created_at":    b.CreatedAt,
		"updated_at":    b.UpdatedAt,
	}
}

// CreateTx inserts b and populates its ID.  A duplicate book code is a
// conflict.
func (r *BookRepo) CreateTx(ctx context.Context, e sqlx.ExtContext, b *model.Book) error {
	id, err := r.insert(ctx, e, r.insertInto("books").Rows(bookRecord(b)))
	if err != nil {
		if isDuplicate(err) {
			return Conflictf("Book with code %d already exists", b.BookCode)
		}
		return storeErr(err, "create book")
	}
	b.ID = id
	return nil
}

// Create inserts b outside of any transaction.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	return r.CreateTx(ctx, r.db, b)
}

// Update overwrites every column of the stored book with b.
func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	rec := bookRecord(b)
	delete(rec, "created_at")
	res, err := execute(ctx, r.db, r.update("books").Set(rec).Where(goqu.C("id").Eq(b.ID)))
	if err != nil {
		if isDuplicate(err) {
			return Conflictf("Book with code %d already exists", b.BookCode)
		}
		return storeErr(err, "update book")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetTx(ctx, r.db, b.ID, false); err != nil {
			return err
		}
	}
	return nil
}

// SetStockTx stores a new stock level and the availability derived from it.
func (r *BookRepo) SetStockTx(ctx context.Context, e sqlx.ExecerContext, id, stock int64, at time.Time) error {
	_, err := execute(ctx, e, r.update("books").Set(goqu.Record{
		"stock_qty":    stock,
		"is_available": stock > 0,
		"updated_at":   at,
	}).Where(goqu.C("id").Eq(id)))
	return storeErr(err, "update stock")
}

// CountOrderedTx returns how many order lines reference the book.
func (r *BookRepo) CountOrderedTx(ctx context.Context, q sqlx.QueryerContext, ids ...int64) (int64, error) {
	var n int64
	err := getOne(ctx, q, &n, r.from("ordered_books").Select(goqu.COUNT(goqu.Star())).Where(goqu.C("book_id").In(ids)))
	return n, storeErr(err, "count ordered books")
}

// DeleteTx removes the books with the given ids and reports how many rows
// went away.  Books referenced by order lines are a conflict.
func (r *BookRepo) DeleteTx(ctx context.Context, e sqlx.ExtContext, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.CountOrderedTx(ctx, e, ids...)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, Conflictf("book is referenced by %d order line(s)", n)
	}
	res, err := execute(ctx, e, r.deleteFrom("books").Where(goqu.C("id").In(ids)))
	if err != nil {
		return 0, storeErr(err, "delete books")
	}
	deleted, err := res.RowsAffected()
	return deleted, storeErr(err, "delete books")
}
