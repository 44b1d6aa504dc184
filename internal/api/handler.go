// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package api provides the HTTP handlers and Chi routing for the
// Registrar REST API.
package api

import (
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"

	"github.com/openconf/registrar/internal/auth"
	"github.com/openconf/registrar/internal/authz"
	"github.com/openconf/registrar/internal/badge"
	"github.com/openconf/registrar/internal/checkout"
	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/database"
	"github.com/openconf/registrar/internal/models"
	"github.com/openconf/registrar/internal/presence"
	"github.com/openconf/registrar/internal/travel"
	"github.com/openconf/registrar/internal/ws"
)

// Deps are the collaborators a Handler needs. Optional fields may be
// nil; the corresponding endpoints then respond 503.
type Deps struct {
	DB        *database.DB
	Config    *config.Config
	Checkout  *checkout.Service
	Extractor *travel.ExtractionClient
	Signer    *badge.Signer
	Enforcer  *authz.Enforcer
	JWT       *auth.JWTManager
	Tokens    *auth.TokenStore
	Presence  *presence.Service
	Hub       *ws.Hub
	Publisher message.Publisher
}

// Handler implements every API endpoint.
type Handler struct {
	db        *database.DB
	cfg       *config.Config
	checkout  *checkout.Service
	extractor *travel.ExtractionClient
	signer    *badge.Signer
	enforcer  *authz.Enforcer
	jwt       *auth.JWTManager
	tokens    *auth.TokenStore
	presence  *presence.Service
	hub       *ws.Hub
	publisher message.Publisher
	upgrader  websocket.Upgrader
}

// NewHandler creates the handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		db:        deps.DB,
		cfg:       deps.Config,
		checkout:  deps.Checkout,
		extractor: deps.Extractor,
		signer:    deps.Signer,
		enforcer:  deps.Enforcer,
		jwt:       deps.JWT,
		tokens:    deps.Tokens,
		presence:  deps.Presence,
		hub:       deps.Hub,
		publisher: deps.Publisher,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkWebSocketOrigin,
	}
	return h
}

// checkWebSocketOrigin accepts same-origin requests and the configured
// CORS origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// authorize resolves the caller's team role and checks the action
// against the RBAC policy. It writes the error response itself and
// returns false when the request must not proceed. With auth disabled
// there is no identity to check, so everything is allowed.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, teamID, resource, action string) bool {
	if h.cfg.Security.AuthMode == "none" {
		return true
	}

	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return false
	}

	membership, err := h.db.GetMembership(r.Context(), teamID, identity.UserID)
	if err != nil {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "not a member of this team", nil)
		return false
	}

	allowed, err := h.enforcer.Allows(membership.Role, resource, action)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUTHZ_ERROR", "authorization check failed", err)
		return false
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "role does not permit this operation", nil)
		return false
	}
	return true
}

// eventForAuthz loads the event so handlers can scope RBAC to its team.
func (h *Handler) eventForAuthz(w http.ResponseWriter, r *http.Request, eventID string) (*models.Event, bool) {
	event, err := h.db.GetEvent(r.Context(), eventID)
	if err != nil {
		respondStoreError(w, err)
		return nil, false
	}
	return event, true
}
