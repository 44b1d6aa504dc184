// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/authz"
	"github.com/openconf/registrar/internal/models"
)

// ListPublishedEvents is the public catalog listing.
func (h *Handler) ListPublishedEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.pagination(r)
	events, err := h.db.ListEvents(r.Context(), "", models.EventPublished, limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	total, err := h.db.CountEvents(r.Context(), "", models.EventPublished)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, models.Page{Items: events, TotalCount: total, Limit: limit, Offset: offset})
}

// GetEventBySlug returns one published event with its ticket types.
func (h *Handler) GetEventBySlug(w http.ResponseWriter, r *http.Request) {
	event, err := h.db.GetEventBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if event.Visibility != models.EventPublished {
		respondError(w, http.StatusNotFound, "EVENT_NOT_FOUND", "event not found", nil)
		return
	}
	respondData(w, http.StatusOK, event)
}

// CreateEvent creates a draft event for a team.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "id")
	if !h.authorize(w, r, teamID, authz.ResourceEvents, authz.ActionWrite) {
		return
	}

	var req models.CreateEventRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	now := time.Now().UTC()
	event := &models.Event{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		City:        req.City,
		Country:     req.Country,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		TaxRateBP:   req.TaxRateBP,
		Currency:    req.Currency,
		Visibility:  models.EventDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.db.CreateEvent(r.Context(), event); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, event)
}

// GetEvent returns an event for its team, any visibility.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceEvents, authz.ActionRead) {
		return
	}
	respondData(w, http.StatusOK, event)
}

// UpdateEvent replaces an event's editable fields.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceEvents, authz.ActionWrite) {
		return
	}

	var req models.CreateEventRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	event.Slug = req.Slug
	event.Name = req.Name
	event.Description = req.Description
	event.Venue = req.Venue
	event.City = req.City
	event.Country = req.Country
	event.StartsAt = req.StartsAt
	event.EndsAt = req.EndsAt
	event.Capacity = req.Capacity
	event.TaxRateBP = req.TaxRateBP
	event.Currency = req.Currency
	event.UpdatedAt = time.Now().UTC()

	if err := h.db.UpdateEvent(r.Context(), event); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, event)
}

// DeleteEvent removes an event and its dependents.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceEvents, authz.ActionDelete) {
		return
	}
	if err := h.db.DeleteEvent(r.Context(), event.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PublishEvent moves a draft event to published.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, models.EventDraft, models.EventPublished)
}

// ArchiveEvent moves a published event to archived. Archived events
// reject new registrations but stay listed for their team.
func (h *Handler) ArchiveEvent(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, models.EventPublished, models.EventArchived)
}

func (h *Handler) setVisibility(w http.ResponseWriter, r *http.Request, from, to string) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceEvents, authz.ActionWrite) {
		return
	}
	if event.Visibility != from {
		respondError(w, http.StatusConflict, "INVALID_TRANSITION",
			"event is not in the required state for this transition", nil)
		return
	}
	if err := h.db.SetEventVisibility(r.Context(), event.ID, to); err != nil {
		respondStoreError(w, err)
		return
	}
	event.Visibility = to
	respondData(w, http.StatusOK, event)
}

// ticketTypeRequest creates or updates an admission class.
type ticketTypeRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=120"`
	PriceCents int64  `json:"price_cents" validate:"min=0"`
	Quota      int    `json:"quota" validate:"min=0"`
	Live       bool   `json:"live"`
}

// CreateTicketType adds an admission class to an event.
func (h *Handler) CreateTicketType(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceEvents, authz.ActionWrite) {
		return
	}

	var req ticketTypeRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	tt := &models.TicketType{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Quota:      req.Quota,
		Live:       req.Live,
	}
	if err := h.db.CreateTicketType(r.Context(), tt); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, tt)
}

// UpdateTicketType edits an admission class.
func (h *Handler) UpdateTicketType(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceEvents, authz.ActionWrite) {
		return
	}

	tt, err := h.db.GetTicketType(r.Context(), chi.URLParam(r, "ticketTypeID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if tt.EventID != event.ID {
		respondError(w, http.StatusNotFound, "TICKET_TYPE_NOT_FOUND", "ticket type not found", nil)
		return
	}

	var req ticketTypeRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	tt.Name = req.Name
	tt.PriceCents = req.PriceCents
	tt.Quota = req.Quota
	tt.Live = req.Live
	if err := h.db.UpdateTicketType(r.Context(), tt); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, tt)
}
