package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridianhq/meridian/internal/platform/httpx"
)

// SessionCookieName is set by the external login flow; this service only
// resolves it back into a principal.
const SessionCookieName = "meridian_session"

type sessionPayload struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// Authenticator resolves staff session cookies against Redis into a tenant
// scoped Principal. Session issuance, login, and logout live outside this
// service.
type Authenticator struct {
	client *redis.Client
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(client *redis.Client, logger *slog.Logger) *Authenticator {
	return &Authenticator{client: client, logger: logger}
}

// Resolve looks up the session id and returns the principal stored for it.
func (a *Authenticator) Resolve(ctx context.Context, sessionID string) (Principal, error) {
	if sessionID == "" {
		return Principal{}, httpx.ErrUnauthorized
	}

	raw, err := a.client.Get(ctx, "session:"+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, httpx.ErrUnauthorized
		}
		return Principal{}, err
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Principal{}, err
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return Principal{}, httpx.ErrUnauthorized
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return Principal{}, httpx.ErrUnauthorized
	}

	return Principal{UserID: userID, TenantID: tenantID}, nil
}

// Middleware guards staff-only routes. Requests without a resolvable session
// are rejected with 401; public token routes never pass through here.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		principal, err := a.Resolve(ctx, cookie.Value)
		if err != nil {
			if !errors.Is(err, httpx.ErrUnauthorized) {
				a.logger.Error("resolve session", slog.Any("error", err))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}
