package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/documents"
	"github.com/meridianhq/meridian/internal/mailer"
	"github.com/meridianhq/meridian/internal/observability"
	"github.com/meridianhq/meridian/internal/orders"
	"github.com/meridianhq/meridian/internal/platform/httpx"
	"github.com/meridianhq/meridian/internal/platform/token"
	"github.com/meridianhq/meridian/internal/shared"
)

// defaultBody is used when staff create a contract without supplying text.
const defaultBody = `This agreement is between {{customer_name}} and the venue team for the event on {{event_date}} at {{venue}}.

Guest count: {{guest_count}}
Start time: {{start_time}}

Total: {{total}}
Deposit due: {{deposit}}

Payment schedule: {{payment_schedule}}`

// ServiceConfig carries tenant-level defaults for contract creation.
type ServiceConfig struct {
	DefaultValidDays int
}

// ServiceParams groups the collaborators of the contract lifecycle engine.
type ServiceParams struct {
	Repo       Repository
	Orders     orders.Repository
	Projector  *orders.Projector
	Notifier   *mailer.Dispatcher
	Audit      *shared.AuditLogger
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	IssueToken token.Issuer
	Config     ServiceConfig
	AdminEmail string

	NewID func() uuid.UUID
	Now   func() time.Time
}

// Service owns the contract state machine: draft → sent → (signed | expired).
type Service struct {
	repo       Repository
	orders     orders.Repository
	projector  *orders.Projector
	notifier   *mailer.Dispatcher
	audit      *shared.AuditLogger
	logger     *slog.Logger
	metrics    *observability.Metrics
	issueToken token.Issuer
	cfg        ServiceConfig
	adminEmail string
	newID      func() uuid.UUID
	now        func() time.Time
}

// NewService constructs the contract engine, filling unset defaults.
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
	return &Service{
		repo:       p.Repo,
		orders:     p.Orders,
		projector:  p.Projector,
		notifier:   p.Notifier,
		audit:      p.Audit,
		logger:     p.Logger,
		metrics:    p.Metrics,
		issueToken: p.IssueToken,
		cfg:        p.Config,
		adminEmail: p.AdminEmail,
		newID:      p.NewID,
		now:        p.Now,
	}
}

// Create drafts a contract for a wedding order. Event fields are prefilled
// from the order's structured fields and, best effort, from its free-form
// inquiry details. A parse miss never fails creation.
func (s *Service) Create(ctx context.Context, principal shared.Principal, req CreateContractRequest) (*Contract, error) {
	order, err := s.orders.GetForTenant(ctx, principal.TenantID, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("verify order: %w", err)
	}
	if order.Type != orders.OrderTypeWedding {
		return nil, fmt.Errorf("%w: contracts are only issued for wedding orders", httpx.ErrValidation)
	}

	now := s.now()
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
		return nil, fmt.Errorf("generate contract number: %w", err)
	}

	body := defaultBody
	if req.Body != nil && strings.TrimSpace(*req.Body) != "" {
		body = *req.Body
	}

	contract := Contract{
		ID:              s.newID(),
		TenantID:        order.TenantID,
		OrderID:         order.ID,
		ContractNumber:  number,
		Status:          documents.StatusDraft,
		EventDate:       order.EventDate,
		StartTime:       order.EventTime,
		Body:            body,
		PaymentSchedule: req.PaymentSchedule,
		AccessToken:     accessToken,
		ValidUntil:      now.AddDate(0, 0, validDays),
	}
	prefillFromInquiry(&contract, order.InquiryDetails)

	if err := s.repo.Create(ctx, contract); err != nil {
		return nil, err
	}
	return s.repo.GetForTenant(ctx, principal.TenantID, contract.ID)
}

// GetForStaff is the tenant-scoped staff read with lazy expiry applied.
func (s *Service) GetForStaff(ctx context.Context, principal shared.Principal, contractID uuid.UUID) (*Contract, error) {
	contract, err := s.repo.GetForTenant(ctx, principal.TenantID, contractID)
	if err != nil {
		return nil, err
	}
	return s.applyExpiry(ctx, contract)
}

// Send transitions draft → sent and emails the customer a token-bearing link.
// A contract without body text cannot be sent.
func (s *Service) Send(ctx context.Context, principal shared.Principal, contractID uuid.UUID) (*Contract, error) {
	contract, err := s.repo.GetForTenant(ctx, principal.TenantID, contractID)
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}

	if contract.Status != documents.StatusDraft {
		return nil, fmt.Errorf("%w: only draft contracts can be sent", httpx.ErrInvalidState)
	}
	if strings.TrimSpace(contract.Body) == "" {
		return nil, fmt.Errorf("%w: contract body must not be empty", httpx.ErrValidation)
	}

	applied, err := s.repo.UpdateStatus(ctx, contractID, documents.StatusDraft, documents.StatusSent)
	if err != nil {
		return nil, fmt.Errorf("send contract: %w", err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: contract is no longer draft", httpx.ErrInvalidState)
	}
	s.metrics.ObserveTransition("contract", "sent")

	if order, err := s.orders.Get(ctx, contract.OrderID); err == nil {
		s.notifier.ContractSent(ctx, order.CustomerEmail, order.CustomerName, contract.ContractNumber, contract.AccessToken, "")
	} else {
		s.logger.Warn("load order for send notification", slog.Any("error", err))
	}

	return s.repo.GetForTenant(ctx, principal.TenantID, contractID)
}

// Render is the public read. Lazy expiry runs first; the body is returned
// with every {{placeholder}} substituted from the contract and its order,
// unresolved event fields rendering as "TBD".
func (s *Service) Render(ctx context.Context, accessToken string) (*RenderedContract, error) {
	contract, err := s.repo.GetByToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	contract, err = s.applyExpiry(ctx, contract)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, contract.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	return &RenderedContract{
		Contract:     contract,
		RenderedBody: renderBody(contract, order),
	}, nil
}

// Sign is the public terminal action for contracts. A repeated call against a
// signed contract is a safe no-op; stored signer metadata is never
// overwritten.
func (s *Service) Sign(ctx context.Context, accessToken, signerName string, agreed bool, sourceIP string) (*SignResult, error) {
	if strings.TrimSpace(signerName) == "" {
		return nil, fmt.Errorf("%w: signer name must not be blank", httpx.ErrValidation)
	}
	if !agreed {
		return nil, fmt.Errorf("%w: agreement must be confirmed", httpx.ErrValidation)
	}

	contract, err := s.repo.GetByToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	contract, err = s.applyExpiry(ctx, contract)
	if err != nil {
		return nil, err
	}

	switch contract.Status {
	case documents.StatusSigned:
		return &SignResult{Contract: contract, AlreadySigned: true}, nil
	case documents.StatusExpired:
		return nil, fmt.Errorf("sign contract: %w", httpx.ErrExpired)
	case documents.StatusDraft:
		return nil, fmt.Errorf("%w: contract has not been sent", httpx.ErrInvalidState)
	}

	applied, err := s.repo.MarkSigned(ctx, contract.ID, signerName, sourceIP, s.now())
	if err != nil {
		return nil, fmt.Errorf("persist signature: %w", err)
	}
	if !applied {
		// A concurrent Sign won the write; return its outcome untouched.
		current, err := s.repo.GetByToken(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		return &SignResult{Contract: current, AlreadySigned: true}, nil
	}
	s.metrics.ObserveTransition("contract", "signed")

	if _, err := s.projector.ApplyContractSignature(ctx, contract.OrderID); err != nil {
		// The signature stands; the projection can be re-driven.
		s.logger.Error("order projection failed",
			slog.String("contract_id", contract.ID.String()),
			slog.Any("error", err))
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: contract.TenantID,
			Actor:    "customer",
			Action:   "contract_signed",
			Entity:   "contract",
			EntityID: contract.ID.String(),
			Meta:     map[string]any{"signer_name": signerName},
		})
	}

	if order, err := s.orders.Get(ctx, contract.OrderID); err == nil {
		s.notifier.ContractSigned(ctx, order.CustomerEmail, s.adminEmail, signerName, contract.ContractNumber)
	} else {
		s.logger.Warn("load order for signed notification", slog.Any("error", err))
	}

	final, err := s.repo.GetByToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &SignResult{Contract: final}, nil
}

func (s *Service) applyExpiry(ctx context.Context, contract *Contract) (*Contract, error) {
	evaluated := documents.Evaluate(contract.Status, contract.ValidUntil, s.now())
	if evaluated == contract.Status {
		return contract, nil
	}

	if _, err := s.repo.UpdateStatus(ctx, contract.ID, documents.StatusSent, documents.StatusExpired); err != nil {
		return nil, fmt.Errorf("persist expiry: %w", err)
	}
	contract.Status = documents.StatusExpired
	s.metrics.ObserveTransition("contract", "expired")

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: contract.TenantID,
			Actor:    "system",
			Action:   "document_expired",
			Entity:   "contract",
			EntityID: contract.ID.String(),
		})
	}
	return contract, nil
}

// renderBody substitutes {{placeholder}} tokens. Event fields that have no
// value render as "TBD" so an incomplete draft still reads as a document.
func renderBody(c *Contract, o *orders.Order) string {
	eventDate := "TBD"
	if c.EventDate != nil {
		eventDate = c.EventDate.Format("January 2, 2006")
	}
	venue := "TBD"
	if c.Venue != nil && *c.Venue != "" {
		venue = *c.Venue
	}
	guestCount := "TBD"
	if c.GuestCount != nil {
		guestCount = strconv.Itoa(*c.GuestCount)
	}
	startTime := "TBD"
	if c.StartTime != nil && *c.StartTime != "" {
		startTime = *c.StartTime
	}
	paymentSchedule := "TBD"
	if c.PaymentSchedule != nil && *c.PaymentSchedule != "" {
		paymentSchedule = *c.PaymentSchedule
	}

	return strings.NewReplacer(
		"{{event_date}}", eventDate,
		"{{venue}}", venue,
		"{{guest_count}}", guestCount,
		"{{start_time}}", startTime,
		"{{customer_name}}", o.CustomerName,
		"{{total}}", formatMinorUnits(o.TotalAmount),
		"{{deposit}}", formatMinorUnits(o.DepositAmount),
		"{{payment_schedule}}", paymentSchedule,
	).Replace(c.Body)
}

func formatMinorUnits(v int64) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

// prefillFromInquiry scans "key: value" lines in the free-form inquiry text
// for venue and guest count. Anything it cannot parse is simply left unset.
func prefillFromInquiry(c *Contract, details *string) {
	if details == nil {
		return
	}
	for _, line := range strings.Split(*details, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "venue", "location":
			if c.Venue == nil {
				v := value
				c.Venue = &v
			}
		case "guests", "guest count", "guest_count":
			if c.GuestCount == nil {
				if n, err := strconv.Atoi(strings.Fields(value)[0]); err == nil && n > 0 {
					c.GuestCount = &n
				}
			}
		}
	}
}
