package contracts

import (
	"fmt"
	"log/slog"
	"net"
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

// ViewByToken is the public read, returning the contract with its body
// rendered. Expired contracts still render with a 200 so the customer sees an
// expiry notice instead of a dead link.
func (h *Handler) ViewByToken(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.service.Render(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rendered)
}

// SignByToken is the public signature action.
func (h *Handler) SignByToken(w http.ResponseWriter, r *http.Request) {
	var req SignContractRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}

	result, err := h.service.Sign(r.Context(), chi.URLParam(r, "token"), req.SignerName, req.Agreed, clientIP(r))
	if err != nil {
		h.logger.Error("sign contract failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// Create is the staff endpoint for drafting a contract against a wedding
// order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req CreateContractRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}

	contract, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.logger.Error("create contract failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, contract)
}

// Get is the staff read by contract id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid contract id", httpx.ErrValidation))
		return
	}

	contract, err := h.service.GetForStaff(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, contract)
}

// Send transitions a draft contract to sent and notifies the customer.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid contract id", httpx.ErrValidation))
		return
	}

	contract, err := h.service.Send(r.Context(), principal, id)
	if err != nil {
		h.logger.Error("send contract failed", slog.String("contract_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, contract)
}

// clientIP returns the request's source address. RealIP middleware has
// already rewritten RemoteAddr when a trusted forwarding header is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
