// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/auth"
	"github.com/openconf/registrar/internal/authz"
	"github.com/openconf/registrar/internal/models"
)

// currentUser resolves the caller. With auth disabled a fixed
// development identity is used so team operations stay usable.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		return identity, true
	}
	if h.cfg.Security.AuthMode == "none" {
		return &auth.Identity{UserID: "dev@localhost", Email: "dev@localhost"}, true
	}
	respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	return nil, false
}

// CreateTeam creates a team with the caller as owner.
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateTeamRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	now := time.Now().UTC()
	team := &models.Team{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &models.Membership{
		TeamID:    team.ID,
		UserID:    identity.UserID,
		Email:     identity.Email,
		Role:      models.RoleOwner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.db.CreateTeam(r.Context(), team, owner); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, team)
}

// ListMyTeams lists teams the caller belongs to.
func (h *Handler) ListMyTeams(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	teams, err := h.db.ListTeamsForUser(r.Context(), identity.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, teams)
}

// ListMembers lists a team's memberships.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "id")
	if !h.authorize(w, r, teamID, authz.ResourceTeam, authz.ActionRead) {
		return
	}
	members, err := h.db.ListMembers(r.Context(), teamID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, members)
}

// AddMember adds a user to the team. User IDs are lowercased emails,
// matching the identity issued at magic-link verification.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "id")
	if !h.authorize(w, r, teamID, authz.ResourceTeam, authz.ActionWrite) {
		return
	}

	var req models.AddMemberRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	now := time.Now().UTC()
	m := &models.Membership{
		TeamID:    teamID,
		UserID:    strings.ToLower(req.Email),
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.db.AddMember(r.Context(), m); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, m)
}

// ChangeMemberRole updates a membership role. Demoting the last owner
// is rejected by the store.
func (h *Handler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "id")
	if !h.authorize(w, r, teamID, authz.ResourceTeam, authz.ActionWrite) {
		return
	}

	var req models.ChangeRoleRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.db.ChangeMemberRole(r.Context(), teamID, userID, req.Role); err != nil {
		respondStoreError(w, err)
		return
	}
	m, err := h.db.GetMembership(r.Context(), teamID, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, m)
}

// RemoveMember removes a membership. Removing the last owner is
// rejected by the store.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "id")
	if !h.authorize(w, r, teamID, authz.ResourceTeam, authz.ActionWrite) {
		return
	}
	if err := h.db.RemoveMember(r.Context(), teamID, chi.URLParam(r, "userID")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "removed"})
}
