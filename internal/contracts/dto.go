package contracts

import "github.com/google/uuid"

type CreateContractRequest struct {
	OrderID         uuid.UUID `json:"order_id" validate:"required"`
	ValidDays       *int      `json:"valid_days,omitempty" validate:"omitempty,gt=0,lte=365"`
	Body            *string   `json:"body,omitempty"`
	PaymentSchedule *string   `json:"payment_schedule,omitempty"`
}

type SignContractRequest struct {
	SignerName string `json:"signer_name"`
	Agreed     bool   `json:"agreed"`
}

// RenderedContract is the public view: the contract plus its body with all
// placeholders substituted.
type RenderedContract struct {
	Contract     *Contract `json:"contract"`
	RenderedBody string    `json:"rendered_body"`
}

// SignResult reports the signature outcome. AlreadySigned is true when a
// repeated call hit a signed contract; stored signer metadata is never
// overwritten.
type SignResult struct {
	Contract      *Contract `json:"contract"`
	AlreadySigned bool      `json:"already_signed"`
}
