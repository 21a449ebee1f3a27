package service

import (
	"context"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/storage"
)

// Upload is an image file received with a book.
type Upload struct {
	Filename string
	Body     io.Reader
}

// BookImages carries the optional cover uploads of a create or update.
type BookImages struct {
	Front *Upload
	Back  *Upload
}

// BulkError reports why one item of a bulk create failed.
type BulkError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkResult summarises a bulk create. Items are independent; one failure
// does not undo the others.
type BulkResult struct {
	Count          int          `json:"count"`
	TotalProcessed int          `json:"totalProcessed"`
	Failed         int          `json:"failed"`
	CreatedBooks   []model.Book `json:"createdBooks"`
	Errors         []BulkError  `json:"errors,omitempty"`
}

// BulkBook is one item of a bulk create.
type BulkBook struct {
	Book   model.Book
	Images BookImages
}

// CatalogService administers books, their cover images and stock, and the
// language and category masters.
type CatalogService struct {
	books      *repository.BookRepo
	Languages  *MasterService[model.Language]
	Categories *MasterService[model.Category]
	blobs      storage.Blobs
	opts       options
	log        *zap.Logger
}

// NewCatalogService returns a CatalogService.
func NewCatalogService(books *repository.BookRepo, languages *repository.MasterRepo[model.Language], categories *repository.MasterRepo[model.Category], blobs storage.Blobs, log *zap.Logger, opts ...Option) *CatalogService {
	return &CatalogService{
		books:      books,
		Languages:  &MasterService[model.Language]{repo: languages},
		Categories: &MasterService[model.Category]{repo: categories},
		blobs:      blobs,
		opts:       newOptions(opts),
		log:        log,
	}
}

// ListBooks returns one page of the books matching f.
func (s *CatalogService) ListBooks(ctx context.Context, f repository.BookFilter) (*repository.BookPage, error) {
	return s.books.List(ctx, f)
}

// GetBook returns a book with its language and category.
func (s *CatalogService) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	return s.books.Get(ctx, id)
}

func (s *CatalogService) validate(ctx context.Context, b *model.Book) error {
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" || b.BookCode == 0 {
		return repository.Validationf("title and bookCode are required")
	}
	if b.LanguageID != nil {
		if _, err := s.Languages.repo.Get(ctx, *b.LanguageID); err != nil {
			return asValidation(err)
		}
	}
	if b.CategoryID != nil {
		if _, err := s.Categories.repo.Get(ctx, *b.CategoryID); err != nil {
			return asValidation(err)
		}
	}
	return nil
}

// asValidation turns a missing reference into invalid input.
func asValidation(err error) error {
	if repository.KindOf(err) == repository.KindNotFound {
		return repository.Validationf("%s", repository.Message(err))
	}
	return err
}

// saveImages stores the uploads and returns their names, empty for images
// not supplied. On failure anything already stored is removed.
func (s *CatalogService) saveImages(img BookImages) (front, back string, err error) {
	if img.Front != nil {
		if front, err = s.blobs.Save("frontImage", img.Front.Filename, img.Front.Body); err != nil {
			return "", "", repository.Validationf("frontImage: %v", err)
		}
	}
	if img.Back != nil {
		if back, err = s.blobs.Save("backImage", img.Back.Filename, img.Back.Body); err != nil {
			s.deleteBlobs(front)
			return "", "", repository.Validationf("backImage: %v", err)
		}
	}
	return front, back, nil
}

func (s *CatalogService) deleteBlobs(names ...string) {
	for _, n := range names {
		if err := s.blobs.Delete(n); err != nil {
			s.log.Warn("delete blob failed", zap.String("name", n), zap.Error(err))
		}
	}
}

// CreateBook stores b with its cover images. Availability follows the
// stock; a missing stock counts as zero.
func (s *CatalogService) CreateBook(ctx context.Context, b *model.Book, img BookImages) (*model.Book, error) {
	if err := s.validate(ctx, b); err != nil {
		return nil, err
	}
	front, back, err := s.saveImages(img)
	if err != nil {
		return nil, err
	}
	b.FrontImage, b.BackImage = nameOrNil(front), nameOrNil(back)
	b.SetStock(b.Stock())
	b.CreatedAt = s.opts.clock()
	b.UpdatedAt = b.CreatedAt
	if err := s.books.Create(ctx, b); err != nil {
		s.deleteBlobs(front, back)
		return nil, err
	}
	return s.books.Get(ctx, b.ID)
}

func nameOrNil(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

// UpdateBook overwrites book id with b. A newly uploaded image replaces the
// stored one, whose blob is deleted once the update succeeds; images not
// uploaded are kept.
func (s *CatalogService) UpdateBook(ctx context.Context, id int64, b *model.Book, img BookImages) (*model.Book, error) {
	old, err := s.books.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, b); err != nil {
		return nil, err
	}
	front, back, err := s.saveImages(img)
	if err != nil {
		return nil, err
	}

	b.ID = id
	b.FrontImage, b.BackImage = old.FrontImage, old.BackImage
	var replaced []string
	if front != "" {
		b.FrontImage = &front
		replaced = append(replaced, deref(old.FrontImage))
	}
	if back != "" {
		b.BackImage = &back
		replaced = append(replaced, deref(old.BackImage))
	}
	b.SetStock(b.Stock())
	b.CreatedAt = old.CreatedAt
	b.UpdatedAt = s.opts.clock()
	if err := s.books.Update(ctx, b); err != nil {
		s.deleteBlobs(front, back)
		return nil, err
	}
	s.deleteBlobs(replaced...)
	return s.books.Get(ctx, id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DeleteBook removes a book that no order references, then its images.
func (s *CatalogService) DeleteBook(ctx context.Context, id int64) error {
	b, err := s.books.Get(ctx, id)
	if err != nil {
		return err
	}
	err = repository.RunInTx(ctx, s.books.DB(), func(tx *sqlx.Tx) error {
		_, err := s.books.DeleteTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	s.deleteBlobs(deref(b.FrontImage), deref(b.BackImage))
	return nil
}

// CreateBooks creates each item independently and reports per-item errors.
func (s *CatalogService) CreateBooks(ctx context.Context, items []BulkBook) (*BulkResult, error) {
	if len(items) == 0 {
		return nil, repository.Validationf("Data must be an array of books")
	}
	res := &BulkResult{TotalProcessed: len(items), CreatedBooks: []model.Book{}}
	for i := range items {
		b, err := s.CreateBook(ctx, &items[i].Book, items[i].Images)
		if err != nil {
			res.Errors = append(res.Errors, BulkError{Index: i, Error: repository.Message(err)})
			continue
		}
		res.CreatedBooks = append(res.CreatedBooks, *b)
	}
	res.Count = len(res.CreatedBooks)
	res.Failed = len(res.Errors)
	return res, nil
}

// DeleteBooks removes the existing books among ids and returns how many
// were deleted. The call fails if none of the ids exist.
func (s *CatalogService) DeleteBooks(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, repository.Validationf("Please provide an array of book IDs")
	}
	var (
		deleted int64
		blobs   []string
	)
	err := repository.RunInTx(ctx, s.books.DB(), func(tx *sqlx.Tx) error {
		found, err := s.books.ByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return repository.NotFoundf("No books found for the given IDs")
		}
		existing := make([]int64, 0, len(found))
		for id, b := range found {
			existing = append(existing, id)
			blobs = append(blobs, deref(b.FrontImage), deref(b.BackImage))
		}
		deleted, err = s.books.DeleteTx(ctx, tx, existing...)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.deleteBlobs(blobs...)
	return deleted, nil
}

// MutateStock adds delta to the stock of a book and recomputes its
// availability.
func (s *CatalogService) MutateStock(ctx context.Context, bookID, delta int64) (*model.Book, error) {
	err := repository.RunInTx(ctx, s.books.DB(), func(tx *sqlx.Tx) error {
		_, err := s.MutateStockTx(ctx, tx, bookID, delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.books.Get(ctx, bookID)
}

// MutateStockTx is MutateStock inside the caller's transaction. The book
// row stays locked until the transaction ends.
func (s *CatalogService) MutateStockTx(ctx context.Context, tx *sqlx.Tx, bookID, delta int64) (*model.Book, error) {
	b, err := s.books.GetTx(ctx, tx, bookID, true)
	if err != nil {
		return nil, err
	}
	return b, s.adjustTx(ctx, tx, b, delta)
}

// adjustTx applies delta to an already locked book.
func (s *CatalogService) adjustTx(ctx context.Context, tx *sqlx.Tx, b *model.Book, delta int64) error {
	b.SetStock(b.Stock() + delta)
	b.UpdatedAt = s.opts.clock()
	return s.books.SetStockTx(ctx, tx, b.ID, b.Stock(), b.UpdatedAt)
}

// MasterService administers one of the name-only masters.
type MasterService[T model.Language | model.Category] struct {
	repo *repository.MasterRepo[T]
}

func masterName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", repository.Validationf("name is required")
	}
	return name, nil
}

// List returns every entry ordered by name.
func (m *MasterService[T]) List(ctx context.Context) ([]T, error) { return m.repo.List(ctx) }

// Create adds an entry.
func (m *MasterService[T]) Create(ctx context.Context, name string) (*T, error) {
	name, err := masterName(name)
	if err != nil {
		return nil, err
	}
	return m.repo.Create(ctx, name)
}

// Update renames an entry.
func (m *MasterService[T]) Update(ctx context.Context, id int64, name string) (*T, error) {
	name, err := masterName(name)
	if err != nil {
		return nil, err
	}
	return m.repo.Update(ctx, id, name)
}

// Delete removes an entry; its books lose the reference.
func (m *MasterService[T]) Delete(ctx context.Context, id int64) error { return m.repo.Delete(ctx, id) }
