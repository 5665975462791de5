package activityapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/system/apicors"
	"github.com/stockboard/stockboard/internal/app/system/auth"
)

// MountRoutes registers the activity tracking endpoints on the given
// router.
//
// When the router is mounted at /api:
//   - POST /api/activity-session   - session lifecycle (start/update/end)
//   - POST /api/activity-actions   - record a user action event
//   - GET  /api/activity-report    - 24-hour summary, or a per-day
//     rollup when a period parameter is given (admin key)
//   - GET  /api/activity-stats     - lifetime stats for one user,
//     self-healing drifted counters on read (admin key)
//   - POST /api/activity-archive   - archive old daily records (admin key)
//   - POST /api/activity-recompute - rebuild lifetime stats (admin key)
//
// The session and action endpoints take no authentication: the
// dashboard client fires them before login state is known and drops
// every failure silently. CORS is permissive.
func MountRoutes(r chi.Router, h *Handler, adminKey string, logger *zap.Logger) {
	r.Group(func(tr chi.Router) {
		tr.Use(apicors.Middleware())
		tr.Post("/activity-session", h.HandleSession)
		tr.Post("/activity-actions", h.HandleAction)
	})

	// Reporting and maintenance need the admin key
	r.Group(func(ar chi.Router) {
		ar.Use(auth.AdminKeyAuth(adminKey, logger))
		ar.Get("/activity-report", h.HandleReport)
		ar.Get("/activity-stats", h.HandleStats)
		ar.Post("/activity-archive", h.HandleArchive)
		ar.Post("/activity-recompute", h.HandleRecompute)
	})
}
