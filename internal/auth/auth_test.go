// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/database"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		AuthMode:           "jwt",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		SessionTimeout:     time.Hour,
		MagicLinkTTL:       15 * time.Minute,
		TokenStoreInMemory: true,
	}
}

func newTestTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	store, err := NewTokenStore(testSecurityConfig())
	if err != nil {
		t.Fatalf("failed to open token store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestJWTRoundTrip(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, err := m.GenerateToken("u1", "u1@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "u1@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestJWTRejectsTamperedAndExpired(t *testing.T) {
	cfg := testSecurityConfig()
	m, _ := NewJWTManager(cfg)

	token, _ := m.GenerateToken("u1", "u1@example.com")
	if _, err := m.ValidateToken(token + "x"); err == nil {
		t.Error("expected tampered token to fail")
	}

	other, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "ffffffffffffffffffffffffffffffff",
		SessionTimeout: time.Hour,
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("expected token signed with other secret to fail")
	}

	expired, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      cfg.JWTSecret,
		SessionTimeout: -time.Minute,
	})
	tok, _ := expired.GenerateToken("u1", "u1@example.com")
	if _, err := m.ValidateToken(tok); err == nil {
		t.Error("expected expired token to fail")
	}
}

func TestJWTRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestMagicLinkRoundTrip(t *testing.T) {
	store := newTestTokenStore(t)

	token, err := store.Issue("speaker@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.Contains(token, ".") {
		t.Fatalf("expected id.secret format, got %q", token)
	}

	email, err := store.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if email != "speaker@example.com" {
		t.Errorf("email = %q", email)
	}

	// Single use: the same token must not verify twice.
	if _, err := store.Verify(token); !errors.Is(err, ErrTokenUsed) {
		t.Errorf("second verify = %v, want ErrTokenUsed", err)
	}
}

func TestMagicLinkRejectsBadTokens(t *testing.T) {
	store := newTestTokenStore(t)

	issued, err := store.Issue("speaker@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, _, _ := strings.Cut(issued, ".")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "justonepart"},
		{"unknown id", "nope." + strings.Repeat("a", 43)},
		{"wrong secret", id + "." + strings.Repeat("a", 43)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Verify(tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Verify(%q) = %v, want ErrTokenInvalid", tt.token, err)
			}
		})
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	db, err := database.NewInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := testSecurityConfig()
	m, _ := NewJWTManager(cfg)
	authn := NewAuthenticator(m, db, cfg)

	var seen *Identity
	handler := authn.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	// Bearer token.
	token, _ := m.GenerateToken("u1", "u1@example.com")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer token: status = %d", rec.Code)
	}
	if seen == nil || seen.UserID != "u1" {
		t.Fatalf("identity = %+v", seen)
	}

	// Session cookie.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie token: status = %d", rec.Code)
	}

	// Login activity was touched (throttled to once).
	activity, err := db.GetLoginActivity(req.Context(), "u1")
	if err != nil {
		t.Fatalf("expected login activity row: %v", err)
	}
	if activity.Email != "u1@example.com" {
		t.Errorf("activity email = %q", activity.Email)
	}
}

func TestAuthenticateModeNone(t *testing.T) {
	authn := NewAuthenticator(nil, nil, &config.SecurityConfig{AuthMode: "none"})

	handler := authn.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) != nil {
			t.Error("expected no identity in none mode")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
