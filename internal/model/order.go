package model

import "time"

// Order statuses.
const (
	OrderPending    = "PENDING"
	OrderConfirmed  = "CONFIRMED"
	OrderProcessing = "PROCESSING"
	OrderShipped    = "SHIPPED"
	OrderDelivered  = "DELIVERED"
	OrderCancelled  = "CANCELLED"
)

// Line item statuses. They move independently of the order status.
const (
	LineNewOrder   = "NEW_ORDER"
	LineWaitlisted = "WAITLISTED"
	LineDispatched = "DISPATCHED"
	LineDelivered  = "DELIVERED"
	LineCancelled  = "CANCELLED"
)

var (
	orderStatuses = map[string]bool{
		OrderPending: true, OrderConfirmed: true, OrderProcessing: true,
		OrderShipped: true, OrderDelivered: true, OrderCancelled: true,
	}
	lineStatuses = map[string]bool{
		LineNewOrder: true, LineWaitlisted: true, LineDispatched: true,
		LineDelivered: true, LineCancelled: true,
	}
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool { return orderStatuses[s] }

// ValidLineStatus reports whether s is a known line item status.
func ValidLineStatus(s string) bool { return lineStatuses[s] }

// Order is a reader's request for one or more books. It owns its
// OrderedBook rows; deleting an order removes its lines.
type Order struct {
	ID              int64     `db:"id" json:"id"`
	ReaderID        int64     `db:"reader_id" json:"readerId"`
	ShippingDetails *string   `db:"shipping_details" json:"shippingDetails"`
	Status          string    `db:"status" json:"status"`
	OrderDate       time.Time `db:"order_date" json:"orderDate"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`

	Reader      *Reader       `db:"-" json:"reader,omitempty"`
	Books       []OrderedBook `db:"-" json:"orderedBooks"`
	ActivityLog []ActivityLog `db:"-" json:"activityLogs,omitempty"`
}

// OrderedBook is one line of an order. OrderID and BookID never change
// after creation.
type OrderedBook struct {
	ID       int64  `db:"id" json:"id"`
	OrderID  int64  `db:"order_id" json:"orderId"`
	BookID   int64  `db:"book_id" json:"bookId"`
	Quantity int64  `db:"quantity" json:"quantity"`
	Status   string `db:"status" json:"status"`

	Book  *Book  `db:"-" json:"book,omitempty"`
	Order *Order `db:"-" json:"order,omitempty"`
}
