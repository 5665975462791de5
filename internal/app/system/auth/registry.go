package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/stockboard/stockboard/internal/app/system/authutil"
)

// Account is one configured dashboard user. Accounts are seeded from
// configuration at startup; the dashboard has a small fixed staff list
// rather than self-service signup.
type Account struct {
	ID           string
	Username     string
	Name         string
	Branch       string
	Role         string
	PasswordHash string // bcrypt
	Disabled     bool
}

// Registry is the in-memory account directory. It implements
// UserFetcher for LoadSessionUser.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]Account
	byUsername map[string]Account
}

// NewRegistry creates a Registry seeded with the given accounts.
// Accounts without an explicit ID use their username.
func NewRegistry(accounts []Account) *Registry {
	r := &Registry{
		byID:       make(map[string]Account, len(accounts)),
		byUsername: make(map[string]Account, len(accounts)),
	}
	for _, a := range accounts {
		if a.ID == "" {
			a.ID = a.Username
		}
		r.byID[a.ID] = a
		r.byUsername[strings.ToLower(a.Username)] = a
	}
	return r
}

// Authenticate checks a username/password pair and returns the session
// user on success, or nil.
func (r *Registry) Authenticate(username, password string) *SessionUser {
	r.mu.RLock()
	a, ok := r.byUsername[strings.ToLower(username)]
	r.mu.RUnlock()
	if !ok || a.Disabled {
		return nil
	}
	if !authutil.CheckPassword(password, a.PasswordHash) {
		return nil
	}
	return sessionUser(a)
}

// FetchUser retrieves a user by ID. Returns nil if the user is unknown
// or disabled. This implements UserFetcher.
func (r *Registry) FetchUser(_ context.Context, userID string) *SessionUser {
	r.mu.RLock()
	a, ok := r.byID[userID]
	r.mu.RUnlock()
	if !ok || a.Disabled {
		return nil
	}
	return sessionUser(a)
}

func sessionUser(a Account) *SessionUser {
	return &SessionUser{
		ID:       a.ID,
		Username: a.Username,
		Name:     a.Name,
		Branch:   a.Branch,
		Role:     a.Role,
	}
}
