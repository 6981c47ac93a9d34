package quotes

import "github.com/google/uuid"

type CreateQuoteRequest struct {
	OrderID         uuid.UUID           `json:"order_id" validate:"required"`
	DepositPercent  *int                `json:"deposit_percent,omitempty" validate:"omitempty,gt=0,lte=100"`
	ValidDays       *int                `json:"valid_days,omitempty" validate:"omitempty,gt=0,lte=365"`
	CustomerMessage *string             `json:"customer_message,omitempty"`
	Lines           []CreateLineItemReq `json:"lines" validate:"omitempty,dive"`
}

type CreateLineItemReq struct {
	Description string `json:"description" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	Position    int    `json:"position" validate:"gte=0"`
}

// ApproveResult is the public approval outcome. AlreadyApproved is true when
// a repeated call hit an approved or converted quote; the stored invoice URL
// is returned either way so a double-submitting customer still lands on the
// payment page.
type ApproveResult struct {
	Quote           *Quote `json:"quote"`
	InvoiceURL      string `json:"invoice_url"`
	AlreadyApproved bool   `json:"already_approved"`
}
