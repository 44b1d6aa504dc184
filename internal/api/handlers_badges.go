// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/authz"
	"github.com/openconf/registrar/internal/badge"
	"github.com/openconf/registrar/internal/database"
	"github.com/openconf/registrar/internal/models"
)

// badgeRequest optionally customizes the printed role line ("Speaker",
// "Crew"). The body may be empty.
type badgeRequest struct {
	RoleLine string `json:"role_line"`
}

// IssueBadge issues a badge for a confirmed attendee. Without
// ?rotate=true the call is idempotent and returns the active badge;
// with it, a new code is issued and the previous one revoked.
func (h *Handler) IssueBadge(w http.ResponseWriter, r *http.Request) {
	attendee, err := h.db.GetAttendee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	event, ok := h.eventForAuthz(w, r, attendee.EventID)
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceBadges, authz.ActionWrite) {
		return
	}

	if attendee.Status != models.AttendeeConfirmed {
		respondError(w, http.StatusUnprocessableEntity, "ATTENDEE_NOT_CONFIRMED",
			"badges are issued to confirmed attendees only", nil)
		return
	}

	var req badgeRequest
	if body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", err)
			return
		}
	}

	rotate := r.URL.Query().Get("rotate") == "true"
	if !rotate {
		if existing, err := h.db.GetActiveBadgeByAttendee(r.Context(), attendee.ID); err == nil {
			respondData(w, http.StatusOK, existing)
			return
		} else if !errors.Is(err, database.ErrBadgeNotFound) {
			respondStoreError(w, err)
			return
		}
	}

	b := &models.Badge{
		ID:         uuid.NewString(),
		AttendeeID: attendee.ID,
		EventID:    event.ID,
		Name:       attendee.Name,
		Org:        attendee.Organization,
		RoleLine:   req.RoleLine,
		IssuedAt:   time.Now().UTC(),
	}
	b.Code = h.signer.Sign(b.ID, attendee.ID)

	if err := h.db.CreateBadge(r.Context(), b); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, b)
}

// ListBadges lists an event's issued badges.
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceBadges, authz.ActionRead) {
		return
	}

	limit, offset := h.pagination(r)
	badges, err := h.db.ListBadges(r.Context(), event.ID, limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	total, err := h.db.CountBadges(r.Context(), event.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, models.Page{Items: badges, TotalCount: total, Limit: limit, Offset: offset})
}

// badgeForAuthz loads a badge and checks team access.
func (h *Handler) badgeForAuthz(w http.ResponseWriter, r *http.Request, action string) (*models.Badge, bool) {
	b, err := h.db.GetBadge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return nil, false
	}
	event, ok := h.eventForAuthz(w, r, b.EventID)
	if !ok {
		return nil, false
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceBadges, action) {
		return nil, false
	}
	return b, true
}

// BadgePayload returns the QR content for badge printers.
func (h *Handler) BadgePayload(w http.ResponseWriter, r *http.Request) {
	b, ok := h.badgeForAuthz(w, r, authz.ActionRead)
	if !ok {
		return
	}
	if b.Revoked {
		respondError(w, http.StatusConflict, "BADGE_REVOKED", "badge has been revoked", nil)
		return
	}
	respondData(w, http.StatusOK, models.BadgePayload{
		Badge:   b,
		QRData:  b.Code,
		Version: badge.CodeVersion,
	})
}

// RevokeBadge invalidates a badge code permanently.
func (h *Handler) RevokeBadge(w http.ResponseWriter, r *http.Request) {
	b, ok := h.badgeForAuthz(w, r, authz.ActionWrite)
	if !ok {
		return
	}
	if err := h.db.RevokeBadge(r.Context(), b.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	b.Revoked = true
	respondData(w, http.StatusOK, b)
}
