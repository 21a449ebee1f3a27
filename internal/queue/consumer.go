package queue

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer listens to the order queues and appends one line per event to
// an event log.
type Consumer struct {
	URL    string
	Queues []string
	Out    io.Writer
	Log    *zap.Logger
}

// Run connects to RabbitMQ, declares every queue (durable) and consumes
// messages until ctx is cancelled. A dropped connection is re-dialled with
// exponential backoff. Messages that cannot be handled are rejected without
// requeue so a poison message does not cause a tight loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("order-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("order-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("order-consumer: set QoS failed", zap.Error(err))
	}

	deliveries := make(chan amqp.Delivery)
	done := make(chan struct{})
	defer close(done)
	for _, q := range c.Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "queue declare %s", q)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return errors.Wrapf(err, "queue consume %s", q)
		}
		go func(msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-done:
					return
				}
			}
		}(msgs)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d := <-deliveries:
			if err := HandleMessage(c.Out, d.Body); err != nil {
				c.Log.Error("order-consumer: handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes an order event and writes it to w as a single
// human-friendly line.
func HandleMessage(w io.Writer, body []byte) error {
	ev, err := DecodeOrderEvent(body)
	if err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	if ev.OrderID == 0 {
		return errors.New("event without order_id")
	}
	if _, err := io.WriteString(w, FormatEvent(ev)); err != nil {
		return errors.Wrap(err, "write log")
	}
	return nil
}

// FormatEvent renders ev as one newline-terminated log line.
func FormatEvent(ev OrderEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", ev.OccurredAt.UTC().Format(time.RFC3339))
	switch ev.Type {
	case OrderStatusChangedQueue:
		fmt.Fprintf(&b, "Order status changed | order_id=%d | reader_id=%d | %s -> %s", ev.OrderID, ev.ReaderID, ev.PrevStatus, ev.Status)
	default:
		fmt.Fprintf(&b, "Order placed | order_id=%d | reader_id=%d | mobile=%q | status=%s | waitlisted=%d", ev.OrderID, ev.ReaderID, ev.Mobile, ev.Status, ev.Waitlisted)
		lines := make([]string, len(ev.Lines))
		for i, l := range ev.Lines {
			lines[i] = fmt.Sprintf("%d:%d:%s", l.BookID, l.Quantity, l.Status)
		}
		fmt.Fprintf(&b, " | books=[%s]", strings.Join(lines, ","))
	}
	b.WriteByte('\n')
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
