package model

import "time"

// Activity log actions written by the application itself. Administrators
// may store any other tag.
const (
	ActionNote         = "NOTE"
	ActionStatusChange = "STATUS_CHANGE"
)

// ActivityLog is an audit entry optionally linked to an order and a reader.
type ActivityLog struct {
	ID          int64     `db:"id" json:"id"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
	OrderID     *int64    `db:"order_id" json:"orderId"`
	ReaderID    *int64    `db:"reader_id" json:"readerId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
