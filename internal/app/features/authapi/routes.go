package authapi

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the auth endpoints on the given router.
//
// When the router is mounted at /api:
//   - POST /api/login  - credentials in, session cookie out
//   - POST /api/logout - clear the session
//   - GET  /api/me     - current user, 401 when signed out
func MountRoutes(r chi.Router, h *Handler) {
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	r.Get("/me", h.HandleMe)
}
