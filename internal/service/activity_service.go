package service

import (
	"context"
	"strings"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
)

// ActivityInput is an administrator's log entry.
type ActivityInput struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	OrderID     *int64 `json:"orderId"`
	ReaderID    *int64 `json:"readerId"`
}

// ActivityService administers the activity log.
type ActivityService struct {
	logs    *repository.ActivityRepo
	orders  *repository.OrderRepo
	readers *repository.ReaderRepo
	opts    options
}

// NewActivityService returns an ActivityService.
func NewActivityService(logs *repository.ActivityRepo, orders *repository.OrderRepo, readers *repository.ReaderRepo, opts ...Option) *ActivityService {
	return &ActivityService{logs: logs, orders: orders, readers: readers, opts: newOptions(opts)}
}

// entry validates in and applies the NOTE default action.
func (s *ActivityService) entry(ctx context.Context, in ActivityInput) (*model.ActivityLog, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, repository.Validationf("description is required")
	}
	action := strings.TrimSpace(in.Action)
	if action == "" {
		action = model.ActionNote
	}
	if in.OrderID != nil {
		if _, err := s.orders.GetTx(ctx, s.orders.DB(), *in.OrderID, false); err != nil {
			return nil, asValidation(err)
		}
	}
	if in.ReaderID != nil {
		if _, err := s.readers.Get(ctx, *in.ReaderID); err != nil {
			return nil, asValidation(err)
		}
	}
	return &model.ActivityLog{Action: action, Description: desc, OrderID: in.OrderID, ReaderID: in.ReaderID}, nil
}

// Create appends an entry.
func (s *ActivityService) Create(ctx context.Context, in ActivityInput) (*model.ActivityLog, error) {
	a, err := s.entry(ctx, in)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = s.opts.clock()
	if err := s.logs.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update replaces the content of an entry; its timestamp is kept.
func (s *ActivityService) Update(ctx context.Context, id int64, in ActivityInput) (*model.ActivityLog, error) {
	a, err := s.entry(ctx, in)
	if err != nil {
		return nil, err
	}
	a.ID = id
	if err := s.logs.Update(ctx, a); err != nil {
		return nil, err
	}
	return s.logs.Get(ctx, id)
}

// Get returns one entry.
func (s *ActivityService) Get(ctx context.Context, id int64) (*model.ActivityLog, error) {
	return s.logs.Get(ctx, id)
}

// Delete removes one entry.
func (s *ActivityService) Delete(ctx context.Context, id int64) error { return s.logs.Delete(ctx, id) }

// List returns every entry, most recent first.
func (s *ActivityService) List(ctx context.Context) ([]model.ActivityLog, error) {
	return s.logs.List(ctx)
}

// ByOrder returns the entries of an order, most recent first.
func (s *ActivityService) ByOrder(ctx context.Context, orderID int64) ([]model.ActivityLog, error) {
	return s.logs.ByOrder(ctx, orderID)
}

// ByReader returns the entries of a reader, most recent first.
func (s *ActivityService) ByReader(ctx context.Context, readerID int64) ([]model.ActivityLog, error) {
	return s.logs.ByReader(ctx, readerID)
}
