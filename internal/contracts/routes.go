package contracts

import (
	"github.com/go-chi/chi/v5"
)

// MountPublicRoutes exposes the token-addressed customer surface. These routes
// sit behind the public rate limiter, not behind staff auth.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/contracts/{token}", h.ViewByToken)
	r.Post("/contracts/{token}/sign", h.SignByToken)
}

// MountStaffRoutes exposes the authenticated staff surface.
func (h *Handler) MountStaffRoutes(r chi.Router) {
	r.Post("/contracts", h.Create)
	r.Get("/contracts/{id}", h.Get)
	r.Post("/contracts/{id}/send", h.Send)
}
