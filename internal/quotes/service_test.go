package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/billing"
	"github.com/meridianhq/meridian/internal/documents"
	"github.com/meridianhq/meridian/internal/mailer"
	"github.com/meridianhq/meridian/internal/orders"
	"github.com/meridianhq/meridian/internal/platform/httpx"
	"github.com/meridianhq/meridian/internal/shared"
)

// ============================================================================
// MOCK QUOTE REPOSITORY
// ============================================================================

type mockRepo struct {
	quotes  map[uuid.UUID]*Quote
	byToken map[string]uuid.UUID
	seq     int64

	txError     error
	createError error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		quotes:  make(map[uuid.UUID]*Quote),
		byToken: make(map[string]uuid.UUID),
	}
}

func (m *mockRepo) put(q *Quote) {
	cp := *q
	m.quotes[q.ID] = &cp
	m.byToken[q.AccessToken] = q.ID
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, m)
}

func (m *mockRepo) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Quote, error) {
	q, ok := m.quotes[id]
	if !ok || q.TenantID != tenantID {
		return nil, httpx.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *mockRepo) GetByToken(ctx context.Context, token string) (*Quote, error) {
	id, ok := m.byToken[token]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *m.quotes[id]
	return &cp, nil
}

func (m *mockRepo) Create(ctx context.Context, q Quote) error {
	if m.createError != nil {
		return m.createError
	}
	m.put(&q)
	return nil
}

func (m *mockRepo) InsertLine(ctx context.Context, line LineItem) error {
	q, ok := m.quotes[line.QuoteID]
	if !ok {
		return errors.New("quote missing")
	}
	q.Lines = append(q.Lines, line)
	return nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to documents.Status) (bool, error) {
	q, ok := m.quotes[id]
	if !ok || q.Status != from {
		return false, nil
	}
	q.Status = to
	return true, nil
}

func (m *mockRepo) MarkApproved(ctx context.Context, id uuid.UUID, invoiceRef, invoiceURL string, at time.Time) (bool, error) {
	q, ok := m.quotes[id]
	if !ok || q.Status != documents.StatusSent {
		return false, nil
	}
	q.Status = documents.StatusApproved
	q.InvoiceRef = &invoiceRef
	q.InvoiceURL = &invoiceURL
	q.ApprovedAt = &at
	return true, nil
}

func (m *mockRepo) MarkConverted(ctx context.Context, id uuid.UUID) error {
	q, ok := m.quotes[id]
	if ok && q.Status == documents.StatusApproved {
		q.Status = documents.StatusConverted
	}
	return nil
}

func (m *mockRepo) GenerateNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error) {
	m.seq++
	return fmt.Sprintf("Q-%s-%04d", date.Format("0601"), m.seq), nil
}

// ============================================================================
// MOCK ORDER REPOSITORY
// ============================================================================

type mockOrderRepo struct {
	orders map[uuid.UUID]*orders.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*orders.Order)}
}

func (m *mockOrderRepo) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*orders.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, httpx.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) UpdateProjection(ctx context.Context, id uuid.UUID, status orders.OrderStatus, total, deposit int64, invoiceRef, invoiceURL string) error {
	o, ok := m.orders[id]
	if !ok {
		return httpx.ErrNotFound
	}
	o.Status = status
	o.TotalAmount = total
	o.DepositAmount = deposit
	o.InvoiceRef = &invoiceRef
	o.InvoiceURL = &invoiceURL
	return nil
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to orders.OrderStatus) error {
	o, ok := m.orders[id]
	if ok && o.Status == from {
		o.Status = to
	}
	return nil
}

// ============================================================================
// MOCK INVOICER
// ============================================================================

type mockInvoicer struct {
	calls     int
	lastReq   billing.DepositInvoiceRequest
	failError error
}

func (m *mockInvoicer) CreateDepositInvoice(ctx context.Context, req billing.DepositInvoiceRequest) (*billing.DepositInvoice, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	m.calls++
	m.lastReq = req
	return &billing.DepositInvoice{
		ID:        fmt.Sprintf("in_test_%d", m.calls),
		HostedURL: fmt.Sprintf("https://pay.example.test/in_test_%d", m.calls),
	}, nil
}

// ============================================================================
// FIXTURES
// ============================================================================

var (
	testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testNow      = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc      *Service
	repo     *mockRepo
	orders   *mockOrderRepo
	invoicer *mockInvoicer
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMockRepo(),
		orders:   newMockOrderRepo(),
		invoicer: &mockInvoicer{},
		now:      testNow,
	}
	logger := slog.New(slog.DiscardHandler)
	nextToken := 0
	f.svc = NewService(ServiceParams{
		Repo:      f.repo,
		Orders:    f.orders,
		Projector: orders.NewProjector(f.orders, nil, logger),
		Invoicer:  f.invoicer,
		Notifier:  mailer.NewDispatcher(nil, logger, "https://shop.example.test"),
		Logger:    logger,
		IssueToken: func() (string, error) {
			nextToken++
			return fmt.Sprintf("tok-%04d", nextToken), nil
		},
		Now: func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) addOrder(status orders.OrderStatus) *orders.Order {
	o := &orders.Order{
		ID:            uuid.New(),
		TenantID:      testTenantID,
		OrderNumber:   "ORD-1001",
		Type:          orders.OrderTypeCustomCake,
		Status:        status,
		CustomerName:  "Dana Reyes",
		CustomerEmail: "dana@example.test",
	}
	f.orders.orders[o.ID] = o
	return o
}

func (f *fixture) addQuote(orderID uuid.UUID, status documents.Status, lines ...LineItem) *Quote {
	q := &Quote{
		ID:             uuid.New(),
		TenantID:       testTenantID,
		OrderID:        orderID,
		QuoteNumber:    "Q-2603-0001",
		Status:         status,
		DepositPercent: 50,
		ValidUntil:     testNow.AddDate(0, 0, 14),
		AccessToken:    "tok-" + uuid.NewString()[:8],
		Lines:          lines,
	}
	for _, l := range lines {
		q.Subtotal += l.Total()
	}
	q.TotalAmount = q.Subtotal
	q.DepositAmount = depositFor(q.Subtotal, q.DepositPercent)
	f.repo.put(q)
	return q
}

func line(desc string, qty int, unit int64) LineItem {
	return LineItem{ID: uuid.New(), Description: desc, Quantity: qty, UnitPrice: unit, Position: 1}
}

func principal() shared.Principal {
	return shared.Principal{UserID: uuid.New(), TenantID: testTenantID}
}

// ============================================================================
// CREATE / SEND
// ============================================================================

func TestCreateComputesTotalsAndDeposit(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)

	quote, err := f.svc.Create(context.Background(), principal(), CreateQuoteRequest{
		OrderID: order.ID,
		Lines: []CreateLineItemReq{
			{Description: "Three-tier cake", Quantity: 1, UnitPrice: 8000},
			{Description: "Cupcakes", Quantity: 20, UnitPrice: 100},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, documents.StatusDraft, quote.Status)
	assert.Equal(t, int64(10000), quote.Subtotal)
	assert.Equal(t, int64(10000), quote.TotalAmount)
	assert.Equal(t, 50, quote.DepositPercent)
	assert.Equal(t, int64(5000), quote.DepositAmount)
	assert.Len(t, quote.Lines, 2)
	assert.NotEmpty(t, quote.QuoteNumber)
}

func TestCreateRejectsForeignOrder(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	order.TenantID = uuid.New()

	_, err := f.svc.Create(context.Background(), principal(), CreateQuoteRequest{OrderID: order.ID})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateHonorsCustomDepositPercent(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	pct := 30

	quote, err := f.svc.Create(context.Background(), principal(), CreateQuoteRequest{
		OrderID:        order.ID,
		DepositPercent: &pct,
		Lines:          []CreateLineItemReq{{Description: "Cake", Quantity: 1, UnitPrice: 9999}},
	})
	require.NoError(t, err)

	// 9999 * 30% = 2999.7, rounds half-up to 3000.
	assert.Equal(t, int64(3000), quote.DepositAmount)
}

func TestSendRequiresDraft(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 5000))

	_, err := f.svc.Send(context.Background(), principal(), quote.ID)
	assert.ErrorIs(t, err, httpx.ErrInvalidState)
}

func TestSendRequiresLineItems(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusDraft)

	_, err := f.svc.Send(context.Background(), principal(), quote.ID)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, documents.StatusDraft, f.repo.quotes[quote.ID].Status)
}

func TestSendTransitionsToSent(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusDraft, line("Cake", 1, 5000))

	updated, err := f.svc.Send(context.Background(), principal(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusSent, updated.Status)
}

// ============================================================================
// APPROVE
// ============================================================================

func TestApproveHappyPath(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	result, err := f.svc.Approve(context.Background(), quote.AccessToken)
	require.NoError(t, err)

	assert.False(t, result.AlreadyApproved)
	assert.Equal(t, "https://pay.example.test/in_test_1", result.InvoiceURL)
	assert.Equal(t, 1, f.invoicer.calls)
	assert.Equal(t, int64(5000), f.invoicer.lastReq.Amount)
	assert.Equal(t, "deposit", f.invoicer.lastReq.Metadata["payment_type"])
	assert.Equal(t, quote.ID.String(), f.invoicer.lastReq.Metadata["quote_id"])

	// Approval plus applied projection lands the quote in converted.
	assert.Equal(t, documents.StatusConverted, f.repo.quotes[quote.ID].Status)

	stored := f.orders.orders[order.ID]
	assert.Equal(t, orders.OrderStatusPendingPayment, stored.Status)
	assert.Equal(t, int64(10000), stored.TotalAmount)
	assert.Equal(t, int64(5000), stored.DepositAmount)
	require.NotNil(t, stored.InvoiceRef)
	assert.Equal(t, "in_test_1", *stored.InvoiceRef)
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	first, err := f.svc.Approve(context.Background(), quote.AccessToken)
	require.NoError(t, err)

	second, err := f.svc.Approve(context.Background(), quote.AccessToken)
	require.NoError(t, err)

	assert.True(t, second.AlreadyApproved)
	assert.Equal(t, first.InvoiceURL, second.InvoiceURL)
	assert.Equal(t, 1, f.invoicer.calls, "repeated approval must not create a second invoice")
}

func TestApproveDraftRejectedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusDraft, line("Cake", 1, 10000))

	_, err := f.svc.Approve(context.Background(), quote.AccessToken)
	assert.ErrorIs(t, err, httpx.ErrInvalidState)
	assert.Equal(t, 0, f.invoicer.calls)
	assert.Equal(t, documents.StatusDraft, f.repo.quotes[quote.ID].Status)
	assert.Equal(t, orders.OrderStatusInquiry, f.orders.orders[order.ID].Status)
}

func TestApproveUnknownTokenNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestApproveExpiredQuote(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))
	f.repo.quotes[quote.ID].ValidUntil = testNow.AddDate(0, 0, -3)

	_, err := f.svc.Approve(context.Background(), quote.AccessToken)
	assert.ErrorIs(t, err, httpx.ErrExpired)
	assert.Equal(t, documents.StatusExpired, f.repo.quotes[quote.ID].Status)
	assert.Equal(t, 0, f.invoicer.calls)
}

func TestApproveValidThroughEndOfValidityDay(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	validUntil := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.repo.quotes[quote.ID].ValidUntil = validUntil

	// 23:00 on the validity day is still inside the window.
	f.now = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	result, err := f.svc.Approve(context.Background(), quote.AccessToken)
	require.NoError(t, err)
	assert.False(t, result.AlreadyApproved)
}

func TestViewExpiresLazilyAtMidnight(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))
	f.repo.quotes[quote.ID].ValidUntil = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	f.now = time.Date(2026, 3, 11, 0, 0, 0, 1, time.UTC)
	viewed, err := f.svc.GetByToken(context.Background(), quote.AccessToken)
	require.NoError(t, err)

	assert.Equal(t, documents.StatusExpired, viewed.Status)
	assert.Equal(t, documents.StatusExpired, f.repo.quotes[quote.ID].Status)
}

func TestApproveProviderFailureLeavesQuoteRetriable(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	f.invoicer.failError = fmt.Errorf("stripe is down: %w", httpx.ErrPaymentProvider)
	_, err := f.svc.Approve(context.Background(), quote.AccessToken)
	assert.ErrorIs(t, err, httpx.ErrPaymentProvider)
	assert.Equal(t, documents.StatusSent, f.repo.quotes[quote.ID].Status)

	f.invoicer.failError = nil
	result, err := f.svc.Approve(context.Background(), quote.AccessToken)
	require.NoError(t, err)
	assert.False(t, result.AlreadyApproved)
	assert.Equal(t, 1, f.invoicer.calls)
}

func TestApproveBlockedByPendingInvoiceFromOtherQuote(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusPendingPayment)
	ref := "in_other_quote"
	order.InvoiceRef = &ref
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	_, err := f.svc.Approve(context.Background(), quote.AccessToken)
	assert.ErrorIs(t, err, httpx.ErrInvalidState)
	assert.Equal(t, 0, f.invoicer.calls)
}

func TestConvertRedrivesApprovedQuote(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusPendingPayment)
	quote := f.addQuote(order.ID, documents.StatusApproved, line("Cake", 1, 10000))

	converted, err := f.svc.Convert(context.Background(), principal(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusConverted, converted.Status)
}

func TestConvertRejectsUnprojectedOrder(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusApproved, line("Cake", 1, 10000))

	_, err := f.svc.Convert(context.Background(), principal(), quote.ID)
	assert.ErrorIs(t, err, httpx.ErrInvalidState)
	assert.Equal(t, documents.StatusApproved, f.repo.quotes[quote.ID].Status)
}

func TestApproveSkipsProjectionOnProgressedOrder(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusConfirmed)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	result, err := f.svc.Approve(context.Background(), quote.AccessToken)
	require.NoError(t, err)

	// The approval stands but the order keeps its state, so the quote stays
	// approved rather than converted.
	assert.False(t, result.AlreadyApproved)
	assert.Equal(t, documents.StatusApproved, f.repo.quotes[quote.ID].Status)
	assert.Equal(t, orders.OrderStatusConfirmed, f.orders.orders[order.ID].Status)
}
