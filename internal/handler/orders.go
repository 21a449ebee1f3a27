package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/service"
)

// OrderHandler serves /api/orders.
type OrderHandler struct {
	orders *service.OrderService
	log    *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, log *zap.Logger) *OrderHandler {
	if orders == nil {
		panic("nil order service passed to NewOrderHandler")
	}
	return &OrderHandler{orders: orders, log: log}
}

// Place handles POST /api/orders.
func (h *OrderHandler) Place(c echo.Context) error {
	var in service.PlaceOrderInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	o, err := h.orders.PlaceOrder(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// List handles GET /api/orders?status=&city=&state=&search=.  The list
// filters accept repeated or comma separated values.
func (h *OrderHandler) List(c echo.Context) error {
	f := repository.OrderFilter{
		Statuses: queryList(c, "status"),
		Cities:   queryList(c, "city"),
		States:   queryList(c, "state"),
		Search:   strings.TrimSpace(c.QueryParam("search")),
	}
	list, err := h.orders.ListOrders(c.Request().Context(), f)
	return h.respondOrders(c, list, err)
}

func (h *OrderHandler) respondOrders(c echo.Context, list []model.Order, err error) error {
	if err != nil {
		return fail(c, h.log, err)
	}
	if list == nil {
		list = []model.Order{}
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	o, err := h.orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, o)
}

// UpdateStatus handles PUT /api/orders/:id/status with
// {"status": "...", "description": "..."}.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.log, err)
	}
	var body struct {
		Status      string `json:"status"`
		Description string `json:"description"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	o, err := h.orders.UpdateOrderStatus(c.Request().Context(), id, body.Status, body.Description)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, o)
}

// UpdateLineStatus handles PUT /api/orders/:orderId/books/:bookId/status.
// The second key is tried as a book id first, then as a line id.
func (h *OrderHandler) UpdateLineStatus(c echo.Context) error {
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return fail(c, h.log, err)
	}
	key, err := pathID(c, "bookId")
	if err != nil {
		return fail(c, h.log, err)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	line, err := h.orders.UpdateOrderedBookStatus(c.Request().Context(), orderID, key, body.Status)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, line)
}

// ByReader handles GET /api/orders/reader/:readerId.
func (h *OrderHandler) ByReader(c echo.Context) error {
	id, err := pathID(c, "readerId")
	if err != nil {
		return fail(c, h.log, err)
	}
	list, err := h.orders.OrdersByReader(c.Request().Context(), id)
	return h.respondOrders(c, list, err)
}

// ForBook handles GET /api/orders/book/:bookId, optionally narrowed with
// ?status=WAITLISTED for the waitlist in priority order.
func (h *OrderHandler) ForBook(c echo.Context) error {
	id, err := pathID(c, "bookId")
	if err != nil {
		return fail(c, h.log, err)
	}
	lines, err := h.orders.OrdersForBook(c.Request().Context(), id, strings.TrimSpace(c.QueryParam("status")))
	if err != nil {
		return fail(c, h.log, err)
	}
	if lines == nil {
		lines = []model.OrderedBook{}
	}
	return c.JSON(http.StatusOK, lines)
}

// BookStats handles GET /api/orders/book/:bookId/stats.
func (h *OrderHandler) BookStats(c echo.Context) error {
	id, err := pathID(c, "bookId")
	if err != nil {
		return fail(c, h.log, err)
	}
	stats, err := h.orders.BookOrderStats(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, stats)
}
