package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/service"
)

// ReaderHandler serves /api/readers.
type ReaderHandler struct {
	readers *service.ReaderRegistry
	log     *zap.Logger
}

func NewReaderHandler(readers *service.ReaderRegistry, log *zap.Logger) *ReaderHandler {
	if readers == nil {
		panic("nil registry passed to NewReaderHandler")
	}
	return &ReaderHandler{readers: readers, log: log}
}

// List returns every reader with their order count.
func (h *ReaderHandler) List(c echo.Context) error {
	list, err := h.readers.List(c.Request().Context())
	if err != nil {
		return fail(c, h.log, err)
	}
	if list == nil {
		list = []repository.ReaderSummary{}
	}
	return c.JSON(http.StatusOK, list)
}

// Get returns the reader with their orders and history.
func (h *ReaderHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	rd, err := h.readers.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, rd)
}

func (h *ReaderHandler) Create(c echo.Context) error {
	var in service.ReaderInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	rd, err := h.readers.Create(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, rd)
}

func (h *ReaderHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	var in service.ReaderInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	rd, err := h.readers.Update(c.Request().Context(), id, in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, rd)
}

func (h *ReaderHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	if err := h.readers.Delete(c.Request().Context(), id); err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Reader deleted successfully"})
}
