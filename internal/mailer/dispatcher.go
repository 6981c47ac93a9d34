package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
)

// Dispatcher renders and fires lifecycle notifications. Every method is
// fire-and-forget: errors are logged with context and swallowed.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	baseURL string
}

// NewDispatcher constructs a Dispatcher. baseURL is the public origin used to
// build token-bearing document links.
func NewDispatcher(sender Sender, logger *slog.Logger, baseURL string) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger, baseURL: baseURL}
}

// QuoteURL returns the customer-facing link for a quote token.
func (d *Dispatcher) QuoteURL(token string) string {
	return fmt.Sprintf("%s/quotes/%s", d.baseURL, token)
}

// ContractURL returns the customer-facing link for a contract token.
func (d *Dispatcher) ContractURL(token string) string {
	return fmt.Sprintf("%s/contracts/%s", d.baseURL, token)
}

// QuoteSent notifies the customer that a quote awaits their review.
func (d *Dispatcher) QuoteSent(ctx context.Context, to, customerName, quoteNumber, token, replyTo string) {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your quote %s is ready for review. You can view and approve it here:</p><p><a href=%q>%s</a></p>",
		html.EscapeString(customerName), html.EscapeString(quoteNumber), d.QuoteURL(token), d.QuoteURL(token))
	d.dispatch(ctx, Message{To: to, Subject: "Your quote " + quoteNumber, HTML: body, ReplyTo: replyTo}, "quote_sent")
}

// QuoteApproved confirms the approval and hands over the invoice link.
func (d *Dispatcher) QuoteApproved(ctx context.Context, to, customerName, quoteNumber, invoiceURL, replyTo string) {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Thanks for approving quote %s. Your deposit invoice is ready:</p><p><a href=%q>Pay deposit</a></p>",
		html.EscapeString(customerName), html.EscapeString(quoteNumber), invoiceURL)
	d.dispatch(ctx, Message{To: to, Subject: "Quote " + quoteNumber + " approved", HTML: body, ReplyTo: replyTo}, "quote_approved")
}

// ContractSent notifies the customer that a contract awaits signature.
func (d *Dispatcher) ContractSent(ctx context.Context, to, customerName, contractNumber, token, replyTo string) {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your contract %s is ready to sign:</p><p><a href=%q>Review and sign</a></p>",
		html.EscapeString(customerName), html.EscapeString(contractNumber), d.ContractURL(token))
	d.dispatch(ctx, Message{To: to, Subject: "Your contract " + contractNumber, HTML: body, ReplyTo: replyTo}, "contract_sent")
}

// ContractSigned confirms the signature to both the customer and the tenant's
// administrative address.
func (d *Dispatcher) ContractSigned(ctx context.Context, customerEmail, adminEmail, signerName, contractNumber string) {
	body := fmt.Sprintf(
		"<p>Contract %s was signed by %s.</p><p>A copy is kept on file for your records.</p>",
		html.EscapeString(contractNumber), html.EscapeString(signerName))
	d.dispatch(ctx, Message{To: customerEmail, Subject: "Contract " + contractNumber + " signed", HTML: body}, "contract_signed_customer")
	if adminEmail != "" {
		d.dispatch(ctx, Message{To: adminEmail, Subject: "Contract " + contractNumber + " signed", HTML: body}, "contract_signed_admin")
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message, kind string) {
	if d.sender == nil {
		return
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("notification dispatch failed",
			slog.String("kind", kind),
			slog.String("to", msg.To),
			slog.Any("error", err))
	}
}
