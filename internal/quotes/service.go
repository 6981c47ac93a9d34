package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/billing"
	"github.com/meridianhq/meridian/internal/documents"
	"github.com/meridianhq/meridian/internal/mailer"
	"github.com/meridianhq/meridian/internal/observability"
	"github.com/meridianhq/meridian/internal/orders"
	"github.com/meridianhq/meridian/internal/platform/httpx"
	"github.com/meridianhq/meridian/internal/platform/token"
	"github.com/meridianhq/meridian/internal/shared"
)

// ServiceConfig carries tenant-level defaults for quote creation.
type ServiceConfig struct {
	DefaultValidDays      int
	DefaultDepositPercent int
	Currency              string
}

// ServiceParams groups the collaborators of the quote lifecycle engine.
type ServiceParams struct {
	Repo       Repository
	Orders     orders.Repository
	Projector  *orders.Projector
	Invoicer   billing.Invoicer
	Notifier   *mailer.Dispatcher
	Audit      *shared.AuditLogger
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	IssueToken token.Issuer
	Config     ServiceConfig

	// NewID and Now are injectable for deterministic tests.
	NewID func() uuid.UUID
	Now   func() time.Time
}

// Service owns the quote state machine: draft → sent → (approved | expired),
// approved → converted.
type Service struct {
	repo       Repository
	orders     orders.Repository
	projector  *orders.Projector
	invoicer   billing.Invoicer
	notifier   *mailer.Dispatcher
	audit      *shared.AuditLogger
	logger     *slog.Logger
	metrics    *observability.Metrics
	issueToken token.Issuer
	cfg        ServiceConfig
	newID      func() uuid.UUID
	now        func() time.Time
}

// NewService constructs the quote engine, filling unset defaults.
func NewService(p ServiceParams) *Service {
	if p.NewID == nil {
		p.NewID = uuid.New
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.IssueToken == nil {
		p.IssueToken = token.NewIssuer()
	}
	if p.Config.DefaultValidDays <= 0 {
		p.Config.DefaultValidDays = 30
	}
	if p.Config.DefaultDepositPercent <= 0 {
		p.Config.DefaultDepositPercent = 50
	}
	if p.Config.Currency == "" {
		p.Config.Currency = "usd"
	}
	return &Service{
		repo:       p.Repo,
		orders:     p.Orders,
		projector:  p.Projector,
		invoicer:   p.Invoicer,
		notifier:   p.Notifier,
		audit:      p.Audit,
		logger:     p.Logger,
		metrics:    p.Metrics,
		issueToken: p.IssueToken,
		cfg:        p.Config,
		newID:      p.NewID,
		now:        p.Now,
	}
}

// Create persists a new draft quote for an order owned by the caller's
// tenant. No side effects beyond the write: the token exists but stays dark
// until Send.
func (s *Service) Create(ctx context.Context, principal shared.Principal, req CreateQuoteRequest) (*Quote, error) {
	order, err := s.orders.GetForTenant(ctx, principal.TenantID, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("verify order: %w", err)
	}

	now := s.now()

	depositPct := s.cfg.DefaultDepositPercent
	if req.DepositPercent != nil {
		depositPct = *req.DepositPercent
	}
	validDays := s.cfg.DefaultValidDays
	if req.ValidDays != nil {
		validDays = *req.ValidDays
	}

	accessToken, err := s.issueToken()
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	number, err := s.repo.GenerateNumber(ctx, principal.TenantID, now)
	if err != nil {
		return nil, fmt.Errorf("generate quote number: %w", err)
	}

	var subtotal int64
	lines := make([]LineItem, 0, len(req.Lines))
	for i, lineReq := range req.Lines {
		line := LineItem{
			ID:          s.newID(),
			Description: lineReq.Description,
			Quantity:    lineReq.Quantity,
			UnitPrice:   lineReq.UnitPrice,
			Position:    lineReq.Position,
		}
		if line.Position == 0 {
			line.Position = i + 1
		}
		subtotal += line.Total()
		lines = append(lines, line)
	}

	quote := Quote{
		ID:              s.newID(),
		TenantID:        order.TenantID,
		OrderID:         order.ID,
		QuoteNumber:     number,
		Status:          documents.StatusDraft,
		Subtotal:        subtotal,
		DepositPercent:  depositPct,
		DepositAmount:   depositFor(subtotal, depositPct),
		TotalAmount:     subtotal,
		CustomerMessage: req.CustomerMessage,
		ValidUntil:      now.AddDate(0, 0, validDays),
		AccessToken:     accessToken,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Create(ctx, quote); err != nil {
			return err
		}
		for i := range lines {
			lines[i].QuoteID = quote.ID
			if err := repo.InsertLine(ctx, lines[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetForTenant(ctx, principal.TenantID, quote.ID)
}

// GetForStaff is the tenant-scoped staff read. Lazy expiry applies here too
// so staff and customer views never disagree about validity.
func (s *Service) GetForStaff(ctx context.Context, principal shared.Principal, quoteID uuid.UUID) (*Quote, error) {
	quote, err := s.repo.GetForTenant(ctx, principal.TenantID, quoteID)
	if err != nil {
		return nil, err
	}
	return s.applyExpiry(ctx, quote)
}

// Send transitions draft → sent and emails the customer a token-bearing link.
// A quote without line items cannot be sent.
func (s *Service) Send(ctx context.Context, principal shared.Principal, quoteID uuid.UUID) (*Quote, error) {
	quote, err := s.repo.GetForTenant(ctx, principal.TenantID, quoteID)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}

	if quote.Status != documents.StatusDraft {
		return nil, fmt.Errorf("%w: only draft quotes can be sent", httpx.ErrInvalidState)
	}
	if len(quote.Lines) == 0 {
		return nil, fmt.Errorf("%w: quote needs at least one line item", httpx.ErrValidation)
	}

	applied, err := s.repo.UpdateStatus(ctx, quoteID, documents.StatusDraft, documents.StatusSent)
	if err != nil {
		return nil, fmt.Errorf("send quote: %w", err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: quote is no longer draft", httpx.ErrInvalidState)
	}
	s.metrics.ObserveTransition("quote", "sent")

	if order, err := s.orders.Get(ctx, quote.OrderID); err == nil {
		s.notifier.QuoteSent(ctx, order.CustomerEmail, order.CustomerName, quote.QuoteNumber, quote.AccessToken, "")
	} else {
		s.logger.Warn("load order for send notification", slog.Any("error", err))
	}

	return s.repo.GetForTenant(ctx, principal.TenantID, quoteID)
}

// GetByToken is the public read. Lazy expiry runs here: a sent quote past its
// validity day is persisted as expired before being returned.
func (s *Service) GetByToken(ctx context.Context, accessToken string) (*Quote, error) {
	quote, err := s.repo.GetByToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.applyExpiry(ctx, quote)
}

// Approve is the public terminal action for quotes. Repeated calls against an
// approved quote are safe no-ops returning the stored invoice URL; that is
// the idempotency mechanism, not provider-level deduplication.
func (s *Service) Approve(ctx context.Context, accessToken string) (*ApproveResult, error) {
	quote, err := s.repo.GetByToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	quote, err = s.applyExpiry(ctx, quote)
	if err != nil {
		return nil, err
	}

	switch quote.Status {
	case documents.StatusApproved, documents.StatusConverted:
		url := ""
		if quote.InvoiceURL != nil {
			url = *quote.InvoiceURL
		}
		return &ApproveResult{Quote: quote, InvoiceURL: url, AlreadyApproved: true}, nil
	case documents.StatusExpired:
		return nil, fmt.Errorf("approve quote: %w", httpx.ErrExpired)
	case documents.StatusDraft:
		return nil, fmt.Errorf("%w: quote has not been sent", httpx.ErrInvalidState)
	}

	if len(quote.Lines) == 0 {
		return nil, fmt.Errorf("%w: quote has no line items", httpx.ErrValidation)
	}

	order, err := s.orders.Get(ctx, quote.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	// Guard against a second quote on the same order producing a second
	// invoice while the first is still awaiting payment.
	pending, err := s.projector.PendingFromOtherQuote(ctx, order.ID, "")
	if err != nil {
		return nil, fmt.Errorf("check order state: %w", err)
	}
	if pending {
		return nil, fmt.Errorf("%w: order already has a pending invoice", httpx.ErrInvalidState)
	}

	invoice, err := s.invoicer.CreateDepositInvoice(ctx, billing.DepositInvoiceRequest{
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Amount:        quote.DepositAmount,
		Currency:      s.cfg.Currency,
		Descriptor:    fmt.Sprintf("Deposit for quote %s", quote.QuoteNumber),
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"quote_id":     quote.ID.String(),
			"quote_number": quote.QuoteNumber,
			"payment_type": "deposit",
		},
	})
	if err != nil {
		// The quote stays sent; a later Approve retries cleanly.
		return nil, err
	}

	now := s.now()
	applied, err := s.repo.MarkApproved(ctx, quote.ID, invoice.ID, invoice.HostedURL, now)
	if err != nil {
		return nil, fmt.Errorf("persist approval: %w", err)
	}
	if !applied {
		// A concurrent Approve won the write; fall back to its outcome.
		current, err := s.repo.GetByToken(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		url := ""
		if current.InvoiceURL != nil {
			url = *current.InvoiceURL
		}
		return &ApproveResult{Quote: current, InvoiceURL: url, AlreadyApproved: true}, nil
	}
	s.metrics.ObserveTransition("quote", "approved")

	projected, err := s.projector.ApplyDocumentApproval(ctx, order.ID, quote.TotalAmount, quote.DepositAmount, invoice.ID, invoice.HostedURL)
	if err != nil {
		// The approval itself stands; the projection can be re-driven.
		s.logger.Error("order projection failed",
			slog.String("quote_id", quote.ID.String()),
			slog.Any("error", err))
	} else if projected {
		if err := s.repo.MarkConverted(ctx, quote.ID); err != nil {
			s.logger.Error("convert quote", slog.String("quote_id", quote.ID.String()), slog.Any("error", err))
		} else {
			s.metrics.ObserveTransition("quote", "converted")
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: quote.TenantID,
			Actor:    "customer",
			Action:   "quote_approved",
			Entity:   "quote",
			EntityID: quote.ID.String(),
			Meta: map[string]any{
				"invoice_ref":    invoice.ID,
				"deposit_amount": quote.DepositAmount,
			},
		})
	}

	s.notifier.QuoteApproved(ctx, order.CustomerEmail, order.CustomerName, quote.QuoteNumber, invoice.HostedURL, "")

	final, err := s.repo.GetByToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &ApproveResult{Quote: final, InvoiceURL: invoice.HostedURL}, nil
}

// Convert re-drives the approved → converted transition for a quote whose
// order projection applied but whose conversion write was lost. The
// conditional write makes repeated calls harmless.
func (s *Service) Convert(ctx context.Context, principal shared.Principal, quoteID uuid.UUID) (*Quote, error) {
	quote, err := s.repo.GetForTenant(ctx, principal.TenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != documents.StatusApproved {
		return nil, fmt.Errorf("%w: only approved quotes convert", httpx.ErrInvalidState)
	}

	order, err := s.orders.Get(ctx, quote.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.Status == orders.OrderStatusInquiry {
		return nil, fmt.Errorf("%w: order projection has not applied", httpx.ErrInvalidState)
	}

	if err := s.repo.MarkConverted(ctx, quoteID); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition("quote", "converted")
	return s.repo.GetForTenant(ctx, principal.TenantID, quoteID)
}

// applyExpiry persists a lazy expiry transition when the evaluator decides
// one. Duplicate persistence from concurrent reads is harmless; the
// conditional write is idempotent.
func (s *Service) applyExpiry(ctx context.Context, quote *Quote) (*Quote, error) {
	evaluated := documents.Evaluate(quote.Status, quote.ValidUntil, s.now())
	if evaluated == quote.Status {
		return quote, nil
	}

	if _, err := s.repo.UpdateStatus(ctx, quote.ID, documents.StatusSent, documents.StatusExpired); err != nil {
		return nil, fmt.Errorf("persist expiry: %w", err)
	}
	quote.Status = documents.StatusExpired
	s.metrics.ObserveTransition("quote", "expired")

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: quote.TenantID,
			Actor:    "system",
			Action:   "document_expired",
			Entity:   "quote",
			EntityID: quote.ID.String(),
		})
	}
	return quote, nil
}

// depositFor rounds half-up in integer minor units.
func depositFor(total int64, percent int) int64 {
	return (total*int64(percent) + 50) / 100
}
