package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/queue"
	"github.com/iliyamo/book-panel/internal/repository"
)

// LineInput is one requested book of an order.
type LineInput struct {
	BookID   int64 `json:"bookId"`
	Quantity int64 `json:"quantity"`
}

// PlaceOrderInput is an order request: the reader's details, where to ship
// and the books wanted.
type PlaceOrderInput struct {
	ReaderInput
	ShippingDetails *string     `json:"shippingDetails"`
	Books           []LineInput `json:"books"`
}

// OrderService runs the order workflow and the order reporting queries.
type OrderService struct {
	orders   *repository.OrderRepo
	books    *repository.BookRepo
	readers  *ReaderRegistry
	catalog  *CatalogService
	activity *repository.ActivityRepo
	opts     options
	log      *zap.Logger
}

// NewOrderService returns an OrderService.
func NewOrderService(orders *repository.OrderRepo, books *repository.BookRepo, readers *ReaderRegistry, catalog *CatalogService, activity *repository.ActivityRepo, log *zap.Logger, opts ...Option) *OrderService {
	return &OrderService{
		orders:   orders,
		books:    books,
		readers:  readers,
		catalog:  catalog,
		activity: activity,
		opts:     newOptions(opts),
		log:      log,
	}
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return repository.Validationf("at least one book is required")
	}
	for i, l := range lines {
		if l.BookID <= 0 {
			return repository.Validationf("books[%d]: bookId is required", i)
		}
		if l.Quantity <= 0 {
			return repository.Validationf("books[%d]: quantity must be a positive integer", i)
		}
	}
	return nil
}

// PlaceOrder resolves the reader, creates the order with one line per
// requested book, takes the quantities off stock and records the placement
// in the activity log, all in one transaction. A line asking for more than
// the stock on hand is WAITLISTED and drives the stock negative, unless
// overselling is disabled, in which case the order fails with a conflict.
// Any failure leaves no trace of the request.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error) {
	if strings.TrimSpace(in.Mobile) == "" {
		return nil, repository.Validationf("mobile is required")
	}
	if err := validateLines(in.Books); err != nil {
		return nil, err
	}

	var (
		order  *model.Order
		reader *model.Reader
	)
	err := retryOnReaderRace(func() (bool, error) {
		raced := false
		err := repository.RunInTx(ctx, s.orders.DB(), func(tx *sqlx.Tx) error {
			rd, err := s.readers.Resolve(ctx, tx, in.ReaderInput)
			if err != nil {
				raced = errors.Is(err, repository.ErrConflict)
				return err
			}
			reader = rd

			now := s.opts.clock()
			o := &model.Order{
				ReaderID:        rd.ID,
				ShippingDetails: in.ShippingDetails,
				Status:          model.OrderPending,
				OrderDate:       now,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.orders.CreateTx(ctx, tx, o); err != nil {
				return err
			}

			for _, item := range in.Books {
				b, err := s.books.GetTx(ctx, tx, item.BookID, true)
				if err != nil {
					return err
				}
				stock := b.Stock()
				status := model.LineNewOrder
				if stock < item.Quantity {
					if !s.opts.oversell {
						return repository.Conflictf("Insufficient stock for book with ID %d: %d available, %d requested", b.ID, stock, item.Quantity)
					}
					status = model.LineWaitlisted
				}
				if err := s.catalog.adjustTx(ctx, tx, b, -item.Quantity); err != nil {
					return err
				}
				line := model.OrderedBook{OrderID: o.ID, BookID: b.ID, Quantity: item.Quantity, Status: status}
				if err := s.orders.AddLineTx(ctx, tx, &line); err != nil {
					return err
				}
				o.Books = append(o.Books, line)
			}

			if err := s.activity.CreateTx(ctx, tx, &model.ActivityLog{
				Action:      model.ActionNote,
				Description: "Order placed",
				OrderID:     &o.ID,
				ReaderID:    &rd.ID,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
			order = o
			return nil
		})
		return raced, err
	})
	if err != nil {
		return nil, err
	}

	ev := placedEvent(order, reader)
	s.log.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("reader_id", reader.ID),
		zap.Int("lines", len(order.Books)),
		zap.Int("waitlisted", ev.Waitlisted))
	_ = s.opts.publisher.Publish(ctx, ev)

	full, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		// committed; answer with what was written rather than fail the request
		s.log.Warn("reload placed order", zap.Int64("order_id", order.ID), zap.Error(err))
		order.Reader = reader
		return order, nil
	}
	return full, nil
}

// placeAttempts bounds PlaceOrder transactions. Two requests registering the
// same new mobile at once race on the unique index; the loser's second
// attempt finds the winner's reader.
const placeAttempts = 2

// retryOnReaderRace runs fn again while it reports a lost reader race, up to
// placeAttempts times in total.
func retryOnReaderRace(fn func() (raced bool, err error)) error {
	var err error
	for i := 0; i < placeAttempts; i++ {
		var raced bool
		raced, err = fn()
		if err == nil || !raced {
			return err
		}
	}
	return err
}

func placedEvent(o *model.Order, rd *model.Reader) queue.OrderEvent {
	ev := queue.OrderEvent{
		ID:         uuid.NewString(),
		Type:       queue.OrderPlacedQueue,
		OrderID:    o.ID,
		ReaderID:   rd.ID,
		Mobile:     rd.Mobile,
		Status:     o.Status,
		OccurredAt: o.CreatedAt,
	}
	for _, l := range o.Books {
		ev.Lines = append(ev.Lines, queue.OrderLine{BookID: l.BookID, Quantity: l.Quantity, Status: l.Status})
		if l.Status == model.LineWaitlisted {
			ev.Waitlisted++
		}
	}
	return ev
}

// UpdateOrderStatus moves an order to status and appends a STATUS_CHANGE
// entry to the activity log. An empty description is replaced with one
// naming both statuses.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status, description string) (*model.Order, error) {
	status = strings.TrimSpace(status)
	if !model.ValidOrderStatus(status) {
		return nil, repository.Validationf("invalid order status %q", status)
	}

	var prev string
	var readerID int64
	var updated *model.Order
	err := repository.RunInTx(ctx, s.orders.DB(), func(tx *sqlx.Tx) error {
		o, err := s.orders.GetTx(ctx, tx, id, true)
		if err != nil {
			return err
		}
		prev, readerID = o.Status, o.ReaderID

		now := s.opts.clock()
		o.Status, o.UpdatedAt = status, now
		updated = o
		if err := s.orders.UpdateStatusTx(ctx, tx, id, status, now); err != nil {
			return err
		}
		desc := strings.TrimSpace(description)
		if desc == "" {
			desc = fmt.Sprintf("Order status updated from %s -> %s", prev, status)
		}
		return s.activity.CreateTx(ctx, tx, &model.ActivityLog{
			Action:      model.ActionStatusChange,
			Description: desc,
			OrderID:     &id,
			ReaderID:    &readerID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed", zap.Int64("order_id", id), zap.String("from", prev), zap.String("to", status))
	_ = s.opts.publisher.Publish(ctx, queue.OrderEvent{
		ID:         uuid.NewString(),
		Type:       queue.OrderStatusChangedQueue,
		OrderID:    id,
		ReaderID:   readerID,
		Status:     status,
		PrevStatus: prev,
		OccurredAt: s.opts.clock(),
	})

	full, err := s.orders.Get(ctx, id)
	if err != nil {
		s.log.Warn("reload updated order", zap.Int64("order_id", id), zap.Error(err))
		return updated, nil
	}
	return full, nil
}

// UpdateOrderedBookStatus sets the status of one line of an order. key is
// matched against the book id of the order's lines first and, when no
// line orders that book, against the line ids.
func (s *OrderService) UpdateOrderedBookStatus(ctx context.Context, orderID, key int64, status string) (*model.OrderedBook, error) {
	status = strings.TrimSpace(status)
	if !model.ValidLineStatus(status) {
		return nil, repository.Validationf("invalid ordered book status %q", status)
	}

	var line *model.OrderedBook
	err := repository.RunInTx(ctx, s.orders.DB(), func(tx *sqlx.Tx) error {
		if _, err := s.orders.GetTx(ctx, tx, orderID, false); err != nil {
			return err
		}
		l, err := s.orders.LineByBookTx(ctx, tx, orderID, key)
		if err != nil {
			return err
		}
		if l == nil {
			if l, err = s.orders.LineByIDTx(ctx, tx, orderID, key); err != nil {
				return err
			}
		}
		if l == nil {
			return repository.NotFoundf("Ordered book not found in this order")
		}
		if err := s.orders.UpdateLineStatusTx(ctx, tx, l.ID, status); err != nil {
			return err
		}
		l.Status = status
		line = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// GetOrder returns an order with its reader, lines and activity log.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.orders.Get(ctx, id)
}

// ListOrders returns the orders matching f, most recent first.
func (s *OrderService) ListOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error) {
	for _, st := range f.Statuses {
		if !model.ValidOrderStatus(st) {
			return nil, repository.Validationf("invalid order status %q", st)
		}
	}
	return s.orders.List(ctx, f)
}

// OrdersByReader returns a reader's orders, most recent first.
func (s *OrderService) OrdersByReader(ctx context.Context, readerID int64) ([]model.Order, error) {
	if _, err := s.readers.readers.Get(ctx, readerID); err != nil {
		return nil, err
	}
	return s.orders.ByReader(ctx, readerID)
}

// OrdersForBook returns the lines ordering a book, oldest order first. With
// status WAITLISTED this is the queue in which backorders are to be served.
func (s *OrderService) OrdersForBook(ctx context.Context, bookID int64, status string) ([]model.OrderedBook, error) {
	status = strings.TrimSpace(status)
	if status != "" && !model.ValidLineStatus(status) {
		return nil, repository.Validationf("invalid ordered book status %q", status)
	}
	if _, err := s.books.GetTx(ctx, s.books.DB(), bookID, false); err != nil {
		return nil, err
	}
	return s.orders.LinesForBook(ctx, bookID, status)
}

// BookOrderStats returns how many copies of a book were ordered and by whom.
func (s *OrderService) BookOrderStats(ctx context.Context, bookID int64) (*repository.BookOrderStats, error) {
	if _, err := s.books.GetTx(ctx, s.books.DB(), bookID, false); err != nil {
		return nil, err
	}
	return s.orders.BookStats(ctx, bookID)
}
