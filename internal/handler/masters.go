package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/service"
)

// MasterHandler serves one master list (languages or categories).
type MasterHandler[T model.Language | model.Category] struct {
	svc   *service.MasterService[T]
	label string // "Language" or "Category"
	log   *zap.Logger
}

// NewMasterHandler binds a master service to its display label.
func NewMasterHandler[T model.Language | model.Category](svc *service.MasterService[T], label string, log *zap.Logger) *MasterHandler[T] {
	if svc == nil {
		panic("nil master service passed to NewMasterHandler")
	}
	return &MasterHandler[T]{svc: svc, label: label, log: log}
}

type nameBody struct {
	Name string `json:"name"`
}

func (h *MasterHandler[T]) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return fail(c, h.log, err)
	}
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *MasterHandler[T]) Create(c echo.Context) error {
	var body nameBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	item, err := h.svc.Create(c.Request().Context(), body.Name)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *MasterHandler[T]) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	var body nameBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	item, err := h.svc.Update(c.Request().Context(), id, body.Name)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *MasterHandler[T]) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": h.label + " deleted successfully"})
}
