package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/meridianhq/meridian/internal/platform/httpx"
)

// StripeInvoicer implements Invoicer against the Stripe invoicing API using
// send_invoice collection semantics.
type StripeInvoicer struct {
	sc        *client.API
	dueInDays int64
	logger    *slog.Logger
}

// NewStripeInvoicer constructs a StripeInvoicer. dueInDays controls the
// invoice payment window.
func NewStripeInvoicer(apiKey string, dueInDays int, logger *slog.Logger) *StripeInvoicer {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeInvoicer{sc: sc, dueInDays: int64(dueInDays), logger: logger}
}

// CreateDepositInvoice creates (or reuses) the provider customer, attaches a
// single deposit line item, then finalizes and sends the invoice. Every
// provider failure is logged with full context and surfaced as
// httpx.ErrPaymentProvider so the caller leaves the document untouched.
func (s *StripeInvoicer) CreateDepositInvoice(ctx context.Context, req DepositInvoiceRequest) (*DepositInvoice, error) {
	customerID, err := s.findOrCreateCustomer(ctx, req.CustomerEmail, req.CustomerName)
	if err != nil {
		return nil, s.providerErr("create customer", req, err)
	}

	invParams := &stripe.InvoiceParams{
		Params:                      stripe.Params{Context: ctx},
		Customer:                    stripe.String(customerID),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:                stripe.Int64(s.dueInDays),
		Description:                 stripe.String(req.Descriptor),
		AutoAdvance:                 stripe.Bool(false),
		PendingInvoiceItemsBehavior: stripe.String("exclude"),
	}
	for k, v := range req.Metadata {
		invParams.AddMetadata(k, v)
	}
	inv, err := s.sc.Invoices.New(invParams)
	if err != nil {
		return nil, s.providerErr("create invoice", req, err)
	}

	_, err = s.sc.InvoiceItems.New(&stripe.InvoiceItemParams{
		Params:      stripe.Params{Context: ctx},
		Customer:    stripe.String(customerID),
		Invoice:     stripe.String(inv.ID),
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Descriptor),
	})
	if err != nil {
		return nil, s.providerErr("create invoice item", req, err)
	}

	// Finalizing locks the line items.
	finalized, err := s.sc.Invoices.FinalizeInvoice(inv.ID, &stripe.InvoiceFinalizeInvoiceParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, s.providerErr("finalize invoice", req, err)
	}

	sent, err := s.sc.Invoices.SendInvoice(finalized.ID, &stripe.InvoiceSendInvoiceParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, s.providerErr("send invoice", req, err)
	}

	return &DepositInvoice{ID: sent.ID, HostedURL: sent.HostedInvoiceURL}, nil
}

func (s *StripeInvoicer) findOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	iter := s.sc.Customers.List(&stripe.CustomerListParams{
		ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(1)},
		Email:      stripe.String(email),
	})
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", err
	}

	customer, err := s.sc.Customers.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
	})
	if err != nil {
		return "", err
	}
	return customer.ID, nil
}

func (s *StripeInvoicer) providerErr(step string, req DepositInvoiceRequest, err error) error {
	s.logger.Error("stripe call failed",
		slog.String("step", step),
		slog.String("customer_email", req.CustomerEmail),
		slog.Int64("amount", req.Amount),
		slog.Any("error", err))
	return fmt.Errorf("billing: %s: %w", step, httpx.ErrPaymentProvider)
}
