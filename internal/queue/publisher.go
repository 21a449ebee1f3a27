package queue

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrBufferFull is returned by Publish when the outbound buffer is full and
// the event was dropped.
var ErrBufferFull = errors.New("publish buffer full")

const (
	defaultBuffer      = 256
	defaultDialTimeout = 5 * time.Second
	defaultSendTimeout = 10 * time.Second
	drainTimeout       = 3 * time.Second
)

// Publisher sends order events to RabbitMQ.  Publish only enqueues; Run
// drains the queue in the background, so a slow or unreachable broker never
// delays the request that produced the event.  A connection is dialled
// lazily and re-dialled after it drops.
type Publisher struct {
	url         string
	log         *zap.Logger
	events      chan OrderEvent
	dialTimeout time.Duration
	sendTimeout time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewPublisher returns a Publisher for the broker at url.  Nothing is sent
// until Run is started.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{
		url:         url,
		log:         log,
		events:      make(chan OrderEvent, defaultBuffer),
		dialTimeout: defaultDialTimeout,
		sendTimeout: defaultSendTimeout,
	}
}

// Publish enqueues ev without blocking.  When the buffer is full the event
// is dropped and ErrBufferFull returned.
func (p *Publisher) Publish(_ context.Context, ev OrderEvent) error {
	select {
	case p.events <- ev:
		return nil
	default:
		p.log.Warn("rabbitmq: buffer full, event dropped", zap.String("queue", ev.Type), zap.Int64("order_id", ev.OrderID))
		return ErrBufferFull
	}
}

// Run sends queued events until ctx is cancelled, then makes one bounded
// attempt at whatever is still buffered.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-p.events:
			p.sendLogged(ctx, ev)
		case <-ctx.Done():
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.events:
			if ctx.Err() != nil {
				p.log.Warn("rabbitmq: shutting down, event dropped", zap.Int64("order_id", ev.OrderID))
				continue
			}
			p.sendLogged(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) sendLogged(ctx context.Context, ev OrderEvent) {
	ctx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()
	if err := p.Send(ctx, ev); err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.String("queue", ev.Type), zap.Int64("order_id", ev.OrderID), zap.Error(err))
	}
}

// Send declares the event's queue (durable) and publishes ev as a
// persistent message routed by its Type.  It returns once ctx is done even
// if the broker does not answer.
func (p *Publisher) Send(ctx context.Context, ev OrderEvent) error {
	body, err := ev.Encode()
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	conn, err := p.connection(ctx)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	// idempotent
	if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "queue declare")
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	return errors.Wrap(ch.PublishWithContext(ctx, "", ev.Type, false, false, pub), "publish")
}

// connection returns the open connection or dials a new one.  The lock is
// not held while dialling.
func (p *Publisher) connection(ctx context.Context) (*amqp.Connection, error) {
	p.mu.Lock()
	if p.conn != nil && !p.conn.IsClosed() {
		conn := p.conn
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		_ = conn.Close()
		return p.conn, nil
	}
	p.conn = conn
	return conn, nil
}

// dial connects with a bounded handshake and gives up when ctx is done.
// A connection completing after that is closed.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := amqp.DialConfig(p.url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(p.dialTimeout),
		})
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "dial broker")
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "dial broker")
	}
}

// Close closes the broker connection if one is open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
