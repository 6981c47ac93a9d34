package quotes

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/documents"
)

// Quote is a proposed price for one order. The access token is generated once
// at creation and never rotated; whoever presents it may view and approve the
// quote.
type Quote struct {
	ID              uuid.UUID        `json:"id"`
	TenantID        uuid.UUID        `json:"-"`
	OrderID         uuid.UUID        `json:"order_id"`
	QuoteNumber     string           `json:"quote_number"`
	Status          documents.Status `json:"status"`
	Subtotal        int64            `json:"subtotal"`
	DepositPercent  int              `json:"deposit_percent"`
	DepositAmount   int64            `json:"deposit_amount"`
	TotalAmount     int64            `json:"total_amount"`
	CustomerMessage *string          `json:"customer_message,omitempty"`
	ValidUntil      time.Time        `json:"valid_until"`
	AccessToken     string           `json:"-"`
	InvoiceRef      *string          `json:"-"`
	InvoiceURL      *string          `json:"invoice_url,omitempty"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Lines           []LineItem       `json:"lines,omitempty"`
}

// LineItem is a priced row of a quote. Items are immutable once the quote
// leaves draft.
type LineItem struct {
	ID          uuid.UUID `json:"id"`
	QuoteID     uuid.UUID `json:"-"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	Position    int       `json:"position"`
}

// Total returns quantity times unit price in minor units.
func (l LineItem) Total() int64 {
	return int64(l.Quantity) * l.UnitPrice
}
