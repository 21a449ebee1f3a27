package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
)

// ReaderInput is the reader part of an order or an admin request. Mobile
// identifies the reader; the other fields are candidate values. Name is a
// freeform full name used when Firstname is not supplied.
type ReaderInput struct {
	Name      *string `json:"name,omitempty"`
	Firstname *string `json:"firstname"`
	Lastname  *string `json:"lastname"`
	Mobile    string  `json:"mobile"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	Pincode   *string `json:"pincode"`
	IsActive  *bool   `json:"isactive,omitempty"`
}

// fields returns the candidate tracked fields, splitting Name into first
// and last name when no first name was given.
func (in ReaderInput) fields() model.ReaderFields {
	f := model.ReaderFields{
		Firstname: in.Firstname,
		Lastname:  in.Lastname,
		Email:     in.Email,
		Address:   in.Address,
		City:      in.City,
		State:     in.State,
		Pincode:   in.Pincode,
	}
	if f.Firstname == nil && in.Name != nil {
		first, last := splitName(*in.Name)
		f.Firstname, f.Lastname = &first, &last
	}
	return f
}

// splitName returns the first token and the remaining tokens joined by a
// single space.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func orEmpty(s *string) *string {
	if s == nil {
		e := ""
		return &e
	}
	return s
}

// ReaderDetail is a reader with its orders and change history.
type ReaderDetail struct {
	model.Reader
	Orders  []model.Order         `json:"orders"`
	History []model.ReaderHistory `json:"history"`
}

// ReaderRegistry finds or creates readers by mobile number and keeps a
// history snapshot of every change to their tracked fields.
type ReaderRegistry struct {
	readers *repository.ReaderRepo
	orders  *repository.OrderRepo
	opts    options
	log     *zap.Logger
}

// NewReaderRegistry returns a ReaderRegistry.
func NewReaderRegistry(readers *repository.ReaderRepo, orders *repository.OrderRepo, log *zap.Logger, opts ...Option) *ReaderRegistry {
	return &ReaderRegistry{readers: readers, orders: orders, opts: newOptions(opts), log: log}
}

// Resolve returns the reader owning in.Mobile on e, creating it when absent.
// For an existing reader whose tracked fields differ from the candidates, a
// snapshot of the previous values is written before every tracked field is
// overwritten; fields missing from in are stored as NULL. An unchanged
// reader is returned as is.
func (r *ReaderRegistry) Resolve(ctx context.Context, e sqlx.ExtContext, in ReaderInput) (*model.Reader, error) {
	mobile := strings.TrimSpace(in.Mobile)
	if mobile == "" {
		return nil, repository.Validationf("mobile is required")
	}
	want := in.fields()

	rd, err := r.readers.FindByMobileTx(ctx, e, mobile)
	if err != nil {
		return nil, err
	}
	now := r.opts.clock()

	if rd == nil {
		rd = &model.Reader{Mobile: mobile, IsActive: true, CreatedAt: now}
		rd.SetTracked(model.ReaderFields{
			Firstname: orEmpty(want.Firstname),
			Lastname:  orEmpty(want.Lastname),
			Email:     orEmpty(want.Email),
			Address:   orEmpty(want.Address),
			City:      orEmpty(want.City),
			State:     orEmpty(want.State),
			Pincode:   orEmpty(want.Pincode),
		})
		if err := r.readers.CreateTx(ctx, e, rd); err != nil {
			return nil, err
		}
		r.log.Info("reader created", zap.Int64("reader_id", rd.ID))
		return rd, nil
	}

	if rd.Tracked().Equal(want) {
		return rd, nil
	}
	if err := r.readers.AddHistoryTx(ctx, e, model.NewReaderHistory(rd, now)); err != nil {
		return nil, err
	}
	rd.SetTracked(want)
	if err := r.readers.UpdateTx(ctx, e, rd); err != nil {
		return nil, err
	}
	r.log.Info("reader updated", zap.Int64("reader_id", rd.ID))
	return rd, nil
}

// List returns every reader with its order count, newest first.
func (r *ReaderRegistry) List(ctx context.Context) ([]repository.ReaderSummary, error) {
	return r.readers.List(ctx)
}

// Get returns a reader with its orders and history.
func (r *ReaderRegistry) Get(ctx context.Context, id int64) (*ReaderDetail, error) {
	rd, err := r.readers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	orders, err := r.orders.ByReader(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := r.readers.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReaderDetail{Reader: *rd, Orders: orders, History: history}, nil
}

// Create registers a new reader. City, state and pincode default to the
// empty string and the reader is active unless stated otherwise.
func (r *ReaderRegistry) Create(ctx context.Context, in ReaderInput) (*model.Reader, error) {
	mobile := strings.TrimSpace(in.Mobile)
	if mobile == "" {
		return nil, repository.Validationf("mobile is required")
	}
	f := in.fields()
	f.City, f.State, f.Pincode = orEmpty(f.City), orEmpty(f.State), orEmpty(f.Pincode)

	rd := &model.Reader{Mobile: mobile, IsActive: in.IsActive == nil || *in.IsActive, CreatedAt: r.opts.clock()}
	rd.SetTracked(f)
	if err := r.readers.CreateTx(ctx, r.readers.DB(), rd); err != nil {
		return nil, err
	}
	return rd, nil
}

// Update overwrites a reader with in. A change to any tracked field is
// recorded in the history exactly as Resolve does.
func (r *ReaderRegistry) Update(ctx context.Context, id int64, in ReaderInput) (*model.Reader, error) {
	mobile := strings.TrimSpace(in.Mobile)
	if mobile == "" {
		return nil, repository.Validationf("mobile is required")
	}
	want := in.fields()

	var out *model.Reader
	err := repository.RunInTx(ctx, r.readers.DB(), func(tx *sqlx.Tx) error {
		rd, err := r.readers.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !rd.Tracked().Equal(want) {
			if err := r.readers.AddHistoryTx(ctx, tx, model.NewReaderHistory(rd, r.opts.clock())); err != nil {
				return err
			}
		}
		rd.SetTracked(want)
		rd.Mobile = mobile
		rd.IsActive = in.IsActive == nil || *in.IsActive
		if err := r.readers.UpdateTx(ctx, tx, rd); err != nil {
			return err
		}
		out = rd
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a reader without orders.
func (r *ReaderRegistry) Delete(ctx context.Context, id int64) error {
	return repository.RunInTx(ctx, r.readers.DB(), func(tx *sqlx.Tx) error {
		return r.readers.DeleteTx(ctx, tx, id)
	})
}
