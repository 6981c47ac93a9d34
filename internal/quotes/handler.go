package quotes

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/platform/httpx"
	"github.com/meridianhq/meridian/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// ViewByToken is the public read. Expired quotes still render with a 200 so
// the customer sees an expiry notice instead of a dead link.
func (h *Handler) ViewByToken(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.GetByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// ApproveByToken is the public approval action.
func (h *Handler) ApproveByToken(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Approve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.logger.Error("approve quote failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// Create is the staff endpoint for drafting a quote against an order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}

	quote, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.logger.Error("create quote failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

// Get is the staff read by quote id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid quote id", httpx.ErrValidation))
		return
	}

	quote, err := h.service.GetForStaff(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// Convert re-drives a lost approved → converted transition.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid quote id", httpx.ErrValidation))
		return
	}

	quote, err := h.service.Convert(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// Send transitions a draft quote to sent and notifies the customer.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid quote id", httpx.ErrValidation))
		return
	}

	quote, err := h.service.Send(r.Context(), principal, id)
	if err != nil {
		h.logger.Error("send quote failed", slog.String("quote_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}
