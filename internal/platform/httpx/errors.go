// Package httpx provides HTTP response utilities and the shared error taxonomy.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the document lifecycle domain. Services wrap these with
// context; handlers map them to status codes via RespondError.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidState    = errors.New("invalid state for operation")
	ErrExpired         = errors.New("document expired")
	ErrPaymentProvider = errors.New("payment provider failure")
	ErrUnauthorized    = errors.New("unauthorized")
)

// RespondError maps domain errors to RFC7807 responses.
//
// NotFound deliberately carries a fixed detail string so that token lookup
// failures never leak whether a document exists.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "document not found")
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrExpired):
		Problem(w, http.StatusGone, "Expired", "this document is no longer available")
	case errors.Is(err, ErrPaymentProvider):
		Problem(w, http.StatusBadGateway, "Payment Unavailable", "we could not reach the payment provider, please try again")
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
