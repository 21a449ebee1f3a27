// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Queue names. Routing keys equal queue names on the default exchange.
const (
	OrderPlacedQueue        = "order.placed"
	OrderStatusChangedQueue = "order.status_changed"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OrderLine is the per-book part of an order event.
type OrderLine struct {
	BookID   int64  `json:"book_id"`
	Quantity int64  `json:"quantity"`
	Status   string `json:"status"`
}

// OrderEvent is published after an order is placed or its status changes.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type OrderEvent struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"` // queue name the event was routed to
	OrderID    int64       `json:"order_id"`
	ReaderID   int64       `json:"reader_id"`
	Mobile     string      `json:"mobile,omitempty"`
	Status     string      `json:"status"`
	PrevStatus string      `json:"prev_status,omitempty"`
	Lines      []OrderLine `json:"lines,omitempty"`
	Waitlisted int         `json:"waitlisted"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Encode serialises ev as JSON.
func (ev OrderEvent) Encode() ([]byte, error) { return json.Marshal(ev) }

// DecodeOrderEvent parses a message body produced by Encode.
func DecodeOrderEvent(body []byte) (OrderEvent, error) {
	var ev OrderEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
