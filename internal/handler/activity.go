package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/service"
)

// ActivityHandler serves /api/activity-logs.
type ActivityHandler struct {
	logs *service.ActivityService
	log  *zap.Logger
}

func NewActivityHandler(logs *service.ActivityService, log *zap.Logger) *ActivityHandler {
	if logs == nil {
		panic("nil activity service passed to NewActivityHandler")
	}
	return &ActivityHandler{logs: logs, log: log}
}

func (h *ActivityHandler) respondList(c echo.Context, list []model.ActivityLog, err error) error {
	if err != nil {
		return fail(c, h.log, err)
	}
	if list == nil {
		list = []model.ActivityLog{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ActivityHandler) List(c echo.Context) error {
	list, err := h.logs.List(c.Request().Context())
	return h.respondList(c, list, err)
}

func (h *ActivityHandler) ByOrder(c echo.Context) error {
	id, err := pathID(c, "orderId")
	if err != nil {
		return fail(c, h.log, err)
	}
	list, err := h.logs.ByOrder(c.Request().Context(), id)
	return h.respondList(c, list, err)
}

func (h *ActivityHandler) ByReader(c echo.Context) error {
	id, err := pathID(c, "readerId")
	if err != nil {
		return fail(c, h.log, err)
	}
	list, err := h.logs.ByReader(c.Request().Context(), id)
	return h.respondList(c, list, err)
}

func (h *ActivityHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	a, err := h.logs.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *ActivityHandler) Create(c echo.Context) error {
	var in service.ActivityInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	a, err := h.logs.Create(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *ActivityHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	var in service.ActivityInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	a, err := h.logs.Update(c.Request().Context(), id, in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *ActivityHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	if err := h.logs.Delete(c.Request().Context(), id); err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Activity log deleted successfully"})
}
