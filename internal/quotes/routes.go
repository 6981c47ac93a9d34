package quotes

import (
	"github.com/go-chi/chi/v5"
)

// MountPublicRoutes exposes the token-addressed customer surface. These routes
// sit behind the public rate limiter, not behind staff auth.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/quotes/{token}", h.ViewByToken)
	r.Post("/quotes/{token}/approve", h.ApproveByToken)
}

// MountStaffRoutes exposes the authenticated staff surface.
func (h *Handler) MountStaffRoutes(r chi.Router) {
	r.Post("/quotes", h.Create)
	r.Get("/quotes/{id}", h.Get)
	r.Post("/quotes/{id}/send", h.Send)
	r.Post("/quotes/{id}/convert", h.Convert)
}
