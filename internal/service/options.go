// Package service implements the admin operations on top of the
// repositories: reader resolution with change history, the order workflow,
// catalog administration with cover images, and the activity log. Every
// operation that writes more than one row runs in a single transaction.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/book-panel/internal/queue"
)

// EventPublisher delivers order events after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.OrderEvent) error { return nil }

type options struct {
	now       func() time.Time
	oversell  bool
	publisher EventPublisher
}

// Option configures a service.
type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithOversell controls whether orders may take stock below zero. When
// disabled an order line exceeding the stock on hand fails the order.
func WithOversell(allow bool) Option {
	return func(o *options) { o.oversell = allow }
}

// WithPublisher sets the destination of order events.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, oversell: true, publisher: nopPublisher{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// clock returns the current time in UTC at the precision every supported
// store can round-trip.
func (o options) clock() time.Time {
	return o.now().UTC().Truncate(time.Microsecond)
}
