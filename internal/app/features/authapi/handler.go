// internal/app/features/authapi/handler.go

// Package authapi provides JSON login and logout for the dashboard.
package authapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/system/auth"
	"github.com/stockboard/stockboard/internal/app/system/jsonutil"
)

// loginInput is the request body for POST /login.
type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handler serves login, logout and the current-user lookup.
type Handler struct {
	registry *auth.Registry
	sessions *auth.SessionManager
	logger   *zap.Logger
}

// New creates an auth Handler.
func New(registry *auth.Registry, sessions *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, sessions: sessions, logger: logger}
}

// HandleLogin validates credentials and establishes a session cookie.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}
	if in.Username == "" || in.Password == "" {
		jsonutil.BadRequest(w, "username and password are required")
		return
	}

	start := time.Now()
	user := h.registry.Authenticate(in.Username, in.Password)
	if user == nil {
		h.logger.Info("login rejected",
			zap.String("username", in.Username),
			zap.String("remote_addr", r.RemoteAddr))
		jsonutil.Unauthorized(w, "invalid username or password")
		return
	}

	if err := h.sessions.CreateSession(w, r, user); err != nil {
		h.logger.Error("session create failed", zap.Error(err))
		jsonutil.InternalError(w, "failed to establish session")
		return
	}

	h.logger.Info("login succeeded",
		zap.String("user_id", user.ID),
		zap.String("branch", user.Branch),
		zap.Duration("elapsed", time.Since(start)))
	jsonutil.Success(w, map[string]any{"user": userPayload(user)})
}

// HandleLogout clears the session. Logging out while logged out is not
// an error.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.CurrentUser(r); ok {
		h.logger.Info("logout", zap.String("user_id", user.ID))
	}
	h.sessions.DestroySession(w, r)
	jsonutil.Success(w, nil)
}

// HandleMe reports the signed-in user, letting the dashboard restore
// its state after a page reload.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "not signed in")
		return
	}
	jsonutil.Success(w, map[string]any{"user": userPayload(user)})
}

func userPayload(u *auth.SessionUser) map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
		"branch":   u.Branch,
		"role":     u.Role,
	}
}
