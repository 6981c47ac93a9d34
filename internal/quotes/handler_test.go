package quotes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/documents"
	"github.com/meridianhq/meridian/internal/orders"
)

func newPublicRouter(f *fixture) http.Handler {
	h := NewHandler(f.svc.logger, f.svc, validator.New())
	r := chi.NewRouter()
	h.MountPublicRoutes(r)
	return r
}

func TestViewByTokenReturnsQuote(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	rec := httptest.NewRecorder()
	newPublicRouter(f).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/quotes/"+quote.AccessToken, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sent", body["status"])
	assert.NotContains(t, body, "access_token", "token never echoed back")
	assert.NotContains(t, body, "tenant_id")
}

func TestViewByTokenUnknownIs404WithFixedDetail(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	newPublicRouter(f).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/quotes/not-a-real-token", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "document not found", problem["detail"])
}

func TestApproveByTokenDraftIs409(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusDraft, line("Cake", 1, 10000))

	rec := httptest.NewRecorder()
	newPublicRouter(f).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/quotes/"+quote.AccessToken+"/approve", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApproveByTokenExpiredIs410(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))
	f.repo.quotes[quote.ID].ValidUntil = testNow.AddDate(0, 0, -5)

	rec := httptest.NewRecorder()
	newPublicRouter(f).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/quotes/"+quote.AccessToken+"/approve", nil))

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestApproveByTokenHappyPathReturnsInvoiceURL(t *testing.T) {
	f := newFixture(t)
	order := f.addOrder(orders.OrderStatusInquiry)
	quote := f.addQuote(order.ID, documents.StatusSent, line("Cake", 1, 10000))

	rec := httptest.NewRecorder()
	newPublicRouter(f).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/quotes/"+quote.AccessToken+"/approve", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		InvoiceURL      string `json:"invoice_url"`
		AlreadyApproved bool   `json:"already_approved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.AlreadyApproved)
	assert.NotEmpty(t, body.InvoiceURL)
}
