package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/service"
)

// BookHandler serves the catalog endpoints under /api/books.
type BookHandler struct {
	catalog *service.CatalogService
	log     *zap.Logger
}

// NewBookHandler panics if the catalog is nil.
func NewBookHandler(catalog *service.CatalogService, log *zap.Logger) *BookHandler {
	if catalog == nil {
		panic("nil catalog passed to NewBookHandler")
	}
	return &BookHandler{catalog: catalog, log: log}
}

// List handles GET /api/books.
func (h *BookHandler) List(c echo.Context) error {
	f, err := bookFilter(c)
	if err != nil {
		return fail(c, h.log, err)
	}
	page, err := h.catalog.ListBooks(c.Request().Context(), f)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, page)
}

func bookFilter(c echo.Context) (repository.BookFilter, error) {
	f := repository.BookFilter{
		Search:      c.QueryParam("search"),
		KabatNumber: strings.TrimSpace(c.QueryParam("kabatNumber")),
		BookSize:    strings.TrimSpace(c.QueryParam("bookSize")),
	}
	// malformed paging falls back to the defaults
	f.Page, _ = strconv.Atoi(c.QueryParam("page"))
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	var err error
	if f.LanguageIDs, err = queryIDs(c, "languageId"); err != nil {
		return f, err
	}
	if f.CategoryIDs, err = queryIDs(c, "categoryId"); err != nil {
		return f, err
	}
	if raw := c.QueryParam("isAvailable"); raw != "" {
		v := raw == "true"
		f.IsAvailable = &v
	}
	ints := map[string]**int64{
		"minPages":     &f.MinPages,
		"maxPages":     &f.MaxPages,
		"yearAD":       &f.YearAD,
		"vikramSamvat": &f.VikramSamvat,
		"veerSamvat":   &f.VeerSamvat,
	}
	for name, dst := range ints {
		if *dst, err = queryInt(c, name); err != nil {
			return f, err
		}
	}
	return f, nil
}

// Get handles GET /api/books/:id.
func (h *BookHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	b, err := h.catalog.GetBook(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Create handles POST /api/books with a JSON body or a multipart form
// carrying frontImage/backImage files.
func (h *BookHandler) Create(c echo.Context) error {
	b, img, closeFiles, err := readBook(c)
	if err != nil {
		return fail(c, h.log, err)
	}
	defer closeFiles()
	created, err := h.catalog.CreateBook(c.Request().Context(), b, img)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Update handles PUT /api/books/:id.  Covers not uploaded are kept.
func (h *BookHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	b, img, closeFiles, err := readBook(c)
	if err != nil {
		return fail(c, h.log, err)
	}
	defer closeFiles()
	updated, err := h.catalog.UpdateBook(c.Request().Context(), id, b, img)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/books/:id.
func (h *BookHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	if err := h.catalog.DeleteBook(c.Request().Context(), id); err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Book deleted successfully"})
}

// MutateStock handles PATCH /api/books/:id/stock with {"delta": n}.
func (h *BookHandler) MutateStock(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	var body struct {
		Delta *int64 `json:"delta"`
	}
	if err := c.Bind(&body); err != nil || body.Delta == nil {
		return badRequest(c, "delta is required")
	}
	b, err := h.catalog.MutateStock(c.Request().Context(), id, *body.Delta)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// bulkField matches multipart keys of the form books[3][title].
var bulkField = regexp.MustCompile(`^books\[(\d+)\]\[(.+)\]$`)

// CreateBulk handles POST /api/books/bulk.  The books arrive either as
// {"books": [...]} or as a multipart form with books[i][field] values and
// books[i][frontImage] / books[i][backImage] files.
func (h *BookHandler) CreateBulk(c echo.Context) error {
	var items []service.BulkBook
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, "invalid multipart form")
		}
		var closeFiles func()
		items, closeFiles, err = bulkFromForm(form)
		defer closeFiles()
		if err != nil {
			return fail(c, h.log, err)
		}
	} else {
		var body struct {
			Books []model.Book `json:"books"`
		}
		if err := c.Bind(&body); err != nil {
			return badRequest(c, "Data must be an array of books")
		}
		for _, b := range body.Books {
			items = append(items, service.BulkBook{Book: b})
		}
	}
	if len(items) == 0 {
		return badRequest(c, "Data must be an array of books")
	}

	res, err := h.catalog.CreateBooks(c.Request().Context(), items)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, struct {
		Message string `json:"message"`
		*service.BulkResult
	}{
		Message:    strconv.Itoa(res.Count) + " books created successfully",
		BulkResult: res,
	})
}

func bulkFromForm(form *multipart.Form) ([]service.BulkBook, func(), error) {
	fields := map[int]map[string]string{}
	for key, vals := range form.Value {
		m := bulkField.FindStringSubmatch(key)
		if m == nil || len(vals) == 0 {
			continue
		}
		i, _ := strconv.Atoi(m[1])
		if fields[i] == nil {
			fields[i] = map[string]string{}
		}
		fields[i][m[2]] = vals[0]
	}
	idx := make([]int, 0, len(fields))
	for i := range fields {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	var files []io.Closer
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	open := func(key string) (*service.Upload, error) {
		fhs := form.File[key]
		if len(fhs) == 0 {
			return nil, nil
		}
		f, err := fhs[0].Open()
		if err != nil {
			return nil, repository.Validationf("unreadable file %s", key)
		}
		files = append(files, f)
		return &service.Upload{Filename: fhs[0].Filename, Body: f}, nil
	}

	items := make([]service.BulkBook, 0, len(idx))
	for _, i := range idx {
		vals := fields[i]
		b, err := bookFromValues(func(k string) string { return vals[k] })
		if err != nil {
			return nil, closeFiles, err
		}
		item := service.BulkBook{Book: *b}
		prefix := "books[" + strconv.Itoa(i) + "]"
		if item.Images.Front, err = open(prefix + "[frontImage]"); err != nil {
			return nil, closeFiles, err
		}
		if item.Images.Back, err = open(prefix + "[backImage]"); err != nil {
			return nil, closeFiles, err
		}
		items = append(items, item)
	}
	return items, closeFiles, nil
}

// DeleteBulk handles DELETE /api/books/bulk-delete with {"ids": [...]}.
func (h *BookHandler) DeleteBulk(c echo.Context) error {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Please provide an array of book IDs")
	}
	n, err := h.catalog.DeleteBooks(c.Request().Context(), body.IDs)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":      strconv.FormatInt(n, 10) + " book(s) deleted successfully",
		"deletedCount": n,
	})
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// readBook decodes a book from either body format.  The returned func
// closes any opened uploads.
func readBook(c echo.Context) (*model.Book, service.BookImages, func(), error) {
	var img service.BookImages
	var files []io.Closer
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	if !isMultipart(c) {
		var b model.Book
		if err := c.Bind(&b); err != nil {
			return nil, img, closeFiles, repository.Validationf("invalid request body")
		}
		return &b, img, closeFiles, nil
	}

	b, err := bookFromValues(c.FormValue)
	if err != nil {
		return nil, img, closeFiles, err
	}
	for field, dst := range map[string]**service.Upload{"frontImage": &img.Front, "backImage": &img.Back} {
		fh, err := c.FormFile(field)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			return nil, img, closeFiles, repository.Validationf("invalid %s upload", field)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, img, closeFiles, repository.Validationf("unreadable %s upload", field)
		}
		files = append(files, f)
		*dst = &service.Upload{Filename: fh.Filename, Body: f}
	}
	return b, img, closeFiles, nil
}

// formParser reads typed form values and keeps the first parse error.
type formParser struct {
	get func(string) string
	err error
}

func (p *formParser) str(key string) *string {
	v := strings.TrimSpace(p.get(key))
	if v == "" {
		return nil
	}
	return &v
}

func (p *formParser) num(key string) *int64 {
	v := strings.TrimSpace(p.get(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		if p.err == nil {
			p.err = repository.Validationf("invalid %s %q", key, v)
		}
		return nil
	}
	return &n
}

func (p *formParser) flag(key string) bool {
	return p.get(key) == "true"
}

func (p *formParser) price(key string) decimal.NullDecimal {
	v := strings.TrimSpace(p.get(key))
	if v == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		if p.err == nil {
			p.err = repository.Validationf("invalid %s %q", key, v)
		}
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// bookFromValues builds a book from flat form values.
func bookFromValues(get func(string) string) (*model.Book, error) {
	p := &formParser{get: get}
	b := &model.Book{
		Title:        strings.TrimSpace(get("title")),
		Description:  p.str("description"),
		StockQty:     p.num("stockQty"),
		Featured:     p.flag("featured"),
		LanguageID:   p.num("languageId"),
		CategoryID:   p.num("categoryId"),
		KabatNumber:  p.num("kabatNumber"),
		BookSize:     p.str("bookSize"),
		Author:       p.str("author"),
		Tikakar:      p.str("tikakar"),
		Prakashak:    p.str("prakashak"),
		Sampadak:     p.str("sampadak"),
		Anuvadak:     p.str("anuvadak"),
		Vishay:       p.str("vishay"),
		Shreni1:      p.str("shreni1"),
		Shreni2:      p.str("shreni2"),
		Shreni3:      p.str("shreni3"),
		Pages:        p.num("pages"),
		YearAD:       p.num("yearAD"),
		VikramSamvat: p.num("vikramSamvat"),
		VeerSamvat:   p.num("veerSamvat"),
		Price:        p.price("price"),
		Prakar:       p.str("prakar"),
		Edition:      p.num("edition"),
	}
	if code := p.num("bookCode"); code != nil {
		b.BookCode = *code
	}
	return b, p.err
}
