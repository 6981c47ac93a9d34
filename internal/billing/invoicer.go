// Package billing wraps the external invoicing provider behind a narrow
// interface. Invoice creation is at-least-once: idempotency comes from the
// caller short-circuiting on already-approved documents and from the
// order/quote metadata attached to every invoice, not from provider-side
// deduplication.
package billing

import "context"

// DepositInvoiceRequest describes the single deposit line item invoiced
// immediately on quote approval. Amounts are integer minor currency units.
type DepositInvoiceRequest struct {
	CustomerEmail string
	CustomerName  string
	Amount        int64
	Currency      string
	Descriptor    string
	Metadata      map[string]string
}

// DepositInvoice is the provider-side result: the invoice identifier and the
// hosted payment page handed to the customer.
type DepositInvoice struct {
	ID        string
	HostedURL string
}

// Invoicer creates a finalized, sent deposit invoice. Any provider error
// aborts the calling lifecycle transition; the document stays in its prior
// state and the operation is safe to retry.
type Invoicer interface {
	CreateDepositInvoice(ctx context.Context, req DepositInvoiceRequest) (*DepositInvoice, error)
}
