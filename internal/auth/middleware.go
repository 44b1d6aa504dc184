// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/database"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/models"
)

// SessionCookieName is the cookie carrying the session token for
// browser clients. API clients use the Authorization header.
const SessionCookieName = "registrar_session"

// touchInterval throttles login-activity writes per user.
const touchInterval = time.Minute

type contextKey string

const identityKey contextKey = "auth_identity"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Email  string
}

// ContextWithIdentity attaches an identity to the context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated identity, or nil when
// the request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// Authenticator guards protected routes and records login activity.
type Authenticator struct {
	jwt  *JWTManager
	db   *database.DB
	mode string

	mu        sync.Mutex
	lastTouch map[string]time.Time
}

// NewAuthenticator creates the middleware. With AuthMode "none" every
// request passes unauthenticated; main() logs a warning for that mode.
func NewAuthenticator(jwt *JWTManager, db *database.DB, cfg *config.SecurityConfig) *Authenticator {
	return &Authenticator{
		jwt:       jwt,
		db:        db,
		mode:      cfg.AuthMode,
		lastTouch: make(map[string]time.Time),
	}
}

// Authenticate rejects requests without a valid session token and
// attaches the caller's identity to the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.mode == "none" {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			unauthorized(w, "missing session token")
			return
		}

		claims, err := a.jwt.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Msg("session token rejected")
			unauthorized(w, "invalid or expired session token")
			return
		}

		identity := &Identity{UserID: claims.UserID, Email: claims.Email}
		a.touch(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// touch upserts login activity at most once per touchInterval per user.
func (a *Authenticator) touch(ctx context.Context, id *Identity) {
	now := time.Now().UTC()

	a.mu.Lock()
	if last, ok := a.lastTouch[id.UserID]; ok && now.Sub(last) < touchInterval {
		a.mu.Unlock()
		return
	}
	a.lastTouch[id.UserID] = now
	a.mu.Unlock()

	if err := a.db.TouchLoginActivity(ctx, id.UserID, id.Email, now, false); err != nil {
		logging.Warn().Err(err).Str("user_id", id.UserID).Msg("failed to record login activity")
	}
}

// extractToken reads the session token from the Authorization header or
// the session cookie.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: "UNAUTHORIZED", Message: message},
	})
}
