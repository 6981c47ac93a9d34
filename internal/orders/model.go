package orders

import (
	"time"

	"github.com/google/uuid"
)

// OrderType categorises the commercial work behind an order.
type OrderType string

const (
	OrderTypeStandard   OrderType = "standard"
	OrderTypeLarge      OrderType = "large"
	OrderTypeCustomCake OrderType = "custom_cake"
	OrderTypeWedding    OrderType = "wedding"
)

// OrderStatus follows inquiry → pending_payment → deposit_paid → confirmed →
// completed, with cancelled reachable from any non-terminal state.
type OrderStatus string

const (
	OrderStatusInquiry        OrderStatus = "inquiry"
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusDepositPaid    OrderStatus = "deposit_paid"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether the order can no longer change status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order is the commercial unit of work owned by a tenant. The core never
// deletes orders; deletion is an admin concern handled elsewhere.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	TenantID       uuid.UUID   `json:"tenant_id"`
	OrderNumber    string      `json:"order_number"`
	Type           OrderType   `json:"order_type"`
	Status         OrderStatus `json:"status"`
	TotalAmount    int64       `json:"total_amount"`
	DepositAmount  int64       `json:"deposit_amount"`
	CustomerName   string      `json:"customer_name"`
	CustomerEmail  string      `json:"customer_email"`
	CustomerPhone  *string     `json:"customer_phone,omitempty"`
	EventDate      *time.Time  `json:"event_date,omitempty"`
	EventTime      *string     `json:"event_time,omitempty"`
	InquiryDetails *string     `json:"inquiry_details,omitempty"`
	InvoiceRef     *string     `json:"invoice_ref,omitempty"`
	InvoiceURL     *string     `json:"invoice_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
