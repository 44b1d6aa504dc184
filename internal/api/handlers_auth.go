// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openconf/registrar/internal/auth"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/notify"
)

// magicLinkRequest asks for a sign-in link.
type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// verifyRequest exchanges a magic-link token for a session.
type verifyRequest struct {
	Token string `json:"token" validate:"required,min=16,max=512"`
}

// sessionResponse carries the issued session token.
type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
}

// RequestMagicLink issues a single-use sign-in link and emails it. The
// response is 202 regardless of whether the address is known, so the
// endpoint cannot be used to probe for accounts.
func (h *Handler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	token, err := h.tokens.Issue(req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue sign-in link", err)
		return
	}

	link := fmt.Sprintf("%s/auth/verify?token=%s",
		strings.TrimRight(h.cfg.Server.BaseURL, "/"), url.QueryEscape(token))
	h.publish(r.Context(), notify.Notification{
		Kind:      notify.KindMagicLink,
		Recipient: req.Email,
		Subject:   "Your Registrar sign-in link",
		Body: fmt.Sprintf("Follow this link to sign in:\n\n%s\n\nThe link is valid for %s and can be used once.",
			link, h.cfg.Security.MagicLinkTTL),
	})

	respondData(w, http.StatusAccepted, map[string]string{"status": "link sent"})
}

// VerifyMagicLink consumes a token and issues a JWT session. The user
// ID is the lowercased email; memberships are keyed the same way.
func (h *Handler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	if h.jwt == nil {
		respondError(w, http.StatusServiceUnavailable, "AUTH_DISABLED", "session issuance is disabled", nil)
		return
	}

	var req verifyRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	email, err := h.tokens.Verify(req.Token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			respondError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "sign-in link has expired", nil)
		case errors.Is(err, auth.ErrTokenUsed):
			respondError(w, http.StatusUnauthorized, "TOKEN_USED", "sign-in link was already used", nil)
		default:
			respondError(w, http.StatusUnauthorized, "TOKEN_INVALID", "sign-in link is invalid", nil)
		}
		return
	}

	userID := strings.ToLower(email)
	token, err := h.jwt.GenerateToken(userID, email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue session", err)
		return
	}

	if err := h.db.TouchLoginActivity(r.Context(), userID, email, time.Now().UTC(), true); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("failed to record login")
	}

	expires := time.Now().Add(h.cfg.Security.SessionTimeout)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !h.cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
	respondData(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: expires, Email: email})
}

// publish queues a notification; delivery problems never fail the
// originating request.
func (h *Handler) publish(ctx context.Context, n notify.Notification) {
	if h.publisher == nil {
		return
	}
	msg, err := notify.NewMessage(n)
	if err != nil {
		logging.Warn().Err(err).Str("kind", n.Kind).Msg("failed to build notification")
		return
	}
	if err := h.publisher.Publish(notify.TopicNotifications, msg); err != nil {
		logging.Warn().Err(err).Str("kind", n.Kind).Msg("failed to publish notification")
	}
}
