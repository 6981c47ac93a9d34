package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/documents"
)

// Contract is the signable agreement for a wedding order. The body holds
// {{placeholder}} tokens substituted at render time from the contract's own
// event fields.
type Contract struct {
	ID              uuid.UUID        `json:"id"`
	TenantID        uuid.UUID        `json:"-"`
	OrderID         uuid.UUID        `json:"order_id"`
	ContractNumber  string           `json:"contract_number"`
	Status          documents.Status `json:"status"`
	EventDate       *time.Time       `json:"event_date,omitempty"`
	Venue           *string          `json:"venue,omitempty"`
	GuestCount      *int             `json:"guest_count,omitempty"`
	StartTime       *string          `json:"start_time,omitempty"`
	Body            string           `json:"body"`
	PaymentSchedule *string          `json:"payment_schedule,omitempty"`
	AccessToken     string           `json:"-"`
	ValidUntil      time.Time        `json:"valid_until"`
	SignerName      *string          `json:"signer_name,omitempty"`
	SignerIP        *string          `json:"-"`
	SignedAt        *time.Time       `json:"signed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
