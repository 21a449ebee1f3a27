package router // package router registers the HTTP routes of the admin API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-panel/internal/handler"
	"github.com/iliyamo/book-panel/internal/model"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health     *handler.Health
	Books      *handler.BookHandler
	Languages  *handler.MasterHandler[model.Language]
	Categories *handler.MasterHandler[model.Category]
	Readers    *handler.ReaderHandler
	Orders     *handler.OrderHandler
	Activity   *handler.ActivityHandler
}

// Register mounts the health check, the uploaded covers under /uploads
// and the admin API under /api.  Middleware passed in mw applies to the
// API group only.
func Register(e *echo.Echo, h Handlers, uploadDir string, mw ...echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health.Check)
	e.Static("/uploads", uploadDir)

	api := e.Group("/api", mw...)

	// static segments (bulk, bulk-delete) win over :id in echo's router
	books := api.Group("/books")
	books.GET("", h.Books.List)
	books.POST("", h.Books.Create)
	books.POST("/bulk", h.Books.CreateBulk)
	books.DELETE("/bulk-delete", h.Books.DeleteBulk)
	books.GET("/:id", h.Books.Get)
	books.PUT("/:id", h.Books.Update)
	books.DELETE("/:id", h.Books.Delete)
	books.PATCH("/:id/stock", h.Books.MutateStock)

	masters := api.Group("/masters")
	masters.GET("/languages", h.Languages.List)
	masters.POST("/languages", h.Languages.Create)
	masters.PUT("/languages/:id", h.Languages.Update)
	masters.DELETE("/languages/:id", h.Languages.Delete)
	masters.GET("/categories", h.Categories.List)
	masters.POST("/categories", h.Categories.Create)
	masters.PUT("/categories/:id", h.Categories.Update)
	masters.DELETE("/categories/:id", h.Categories.Delete)

	readers := api.Group("/readers")
	readers.GET("", h.Readers.List)
	readers.POST("", h.Readers.Create)
	readers.GET("/:id", h.Readers.Get)
	readers.PUT("/:id", h.Readers.Update)
	readers.DELETE("/:id", h.Readers.Delete)

	orders := api.Group("/orders")
	orders.POST("", h.Orders.Place)
	orders.GET("", h.Orders.List)
	orders.GET("/reader/:readerId", h.Orders.ByReader)
	orders.GET("/book/:bookId", h.Orders.ForBook)
	orders.GET("/book/:bookId/stats", h.Orders.BookStats)
	orders.GET("/:id", h.Orders.Get)
	orders.PUT("/:id/status", h.Orders.UpdateStatus)
	orders.PUT("/:orderId/books/:bookId/status", h.Orders.UpdateLineStatus)

	logs := api.Group("/activity-logs")
	logs.GET("", h.Activity.List)
	logs.POST("", h.Activity.Create)
	logs.GET("/order/:orderId", h.Activity.ByOrder)
	logs.GET("/reader/:readerId", h.Activity.ByReader)
	logs.GET("/:id", h.Activity.Get)
	logs.PUT("/:id", h.Activity.Update)
	logs.DELETE("/:id", h.Activity.Delete)
}
