package predictionsapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/stockboard/stockboard/internal/app/system/auth"
)

// MountRoutes registers the prediction endpoints on the given router.
// All of them require a signed-in user; predictions run against the
// caller's own branch.
//
// When the router is mounted at /api:
//   - POST /api/predictions      - run a prediction
//   - GET  /api/predictions      - list the caller's history
//   - GET  /api/predictions/{id} - fetch one stored run
func MountRoutes(r chi.Router, h *Handler, sm *auth.SessionManager) {
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/predictions", h.HandlePredict)
		pr.Get("/predictions", h.HandleHistory)
		pr.Get("/predictions/{id}", h.HandleGet)
	})
}
