// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openconf/registrar/internal/authz"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/models"
	"github.com/openconf/registrar/internal/notify"
)

// ListAttendees is the team view over an event's registrations, with
// optional ?status= filtering.
func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceAttendees, authz.ActionRead) {
		return
	}

	limit, offset := h.pagination(r)
	status := r.URL.Query().Get("status")
	attendees, err := h.db.ListAttendees(r.Context(), event.ID, status, limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	total, err := h.db.CountAttendees(r.Context(), event.ID, status)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, models.Page{Items: attendees, TotalCount: total, Limit: limit, Offset: offset})
}

// CancelAttendee cancels a registration and promotes the next
// waitlisted attendee into the freed seat. Refunds are a manual
// back-office step, not triggered here.
func (h *Handler) CancelAttendee(w http.ResponseWriter, r *http.Request) {
	attendee, err := h.db.GetAttendee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	event, ok := h.eventForAuthz(w, r, attendee.EventID)
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceAttendees, authz.ActionWrite) {
		return
	}

	if attendee.Status == models.AttendeeCancelled {
		respondError(w, http.StatusConflict, "ALREADY_CANCELLED", "attendee is already cancelled", nil)
		return
	}
	wasActive := attendee.IsActive()

	if err := h.db.UpdateAttendeeStatus(r.Context(), attendee.ID, models.AttendeeCancelled); err != nil {
		respondStoreError(w, err)
		return
	}
	attendee.Status = models.AttendeeCancelled

	// An active cancellation frees a seat: release the quota unit and
	// hand the place to the waitlist head.
	if wasActive {
		if err := h.db.DecrementTicketSold(r.Context(), attendee.TicketTypeID, 1); err != nil {
			logging.Warn().Err(err).Str("ticket_type_id", attendee.TicketTypeID).Msg("failed to release quota")
		}
		h.promoteWaitlist(r, event)
	}

	respondData(w, http.StatusOK, attendee)
}

// promoteWaitlist confirms the longest-waiting attendee and notifies
// them. Failures are logged; the cancellation has already succeeded.
func (h *Handler) promoteWaitlist(r *http.Request, event *models.Event) {
	promoted, err := h.db.PromoteWaitlisted(r.Context(), event.ID, 1)
	if err != nil {
		logging.Warn().Err(err).Str("event_id", event.ID).Msg("waitlist promotion failed")
		return
	}

	for i := range promoted {
		a := &promoted[i]
		if err := h.db.IncrementTicketSold(r.Context(), a.TicketTypeID, 1); err != nil {
			logging.Warn().Err(err).Str("attendee_id", a.ID).Msg("failed to count promoted seat")
		}
		h.publish(r.Context(), notify.Notification{
			Kind:      notify.KindWaitlistPromoted,
			Recipient: a.Email,
			Subject:   fmt.Sprintf("You're in: %s", event.Name),
			Body: fmt.Sprintf("Good news %s,\n\nA place opened up at %s and your registration is now confirmed.",
				a.Name, event.Name),
		})
	}
}

// CheckIn verifies a scanned badge code and marks the attendee checked
// in. A rotated or revoked badge fails even with a valid signature.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceBadges, authz.ActionWrite) {
		return
	}

	var req models.CheckInRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	badgeID, attendeeID, err := h.signer.Verify(req.Code)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	b, err := h.db.GetBadge(r.Context(), badgeID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if b.Revoked || b.Code != req.Code || b.AttendeeID != attendeeID {
		respondError(w, http.StatusUnauthorized, "BADGE_REVOKED", "badge code is no longer valid", nil)
		return
	}
	if b.EventID != event.ID {
		respondError(w, http.StatusUnprocessableEntity, "WRONG_EVENT", "badge belongs to another event", nil)
		return
	}

	if err := h.db.CheckInAttendee(r.Context(), attendeeID, time.Now().UTC()); err != nil {
		respondStoreError(w, err)
		return
	}
	attendee, err := h.db.GetAttendee(r.Context(), attendeeID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastCheckIn(event.ID, attendeeID, badgeID)
	}
	respondData(w, http.StatusOK, attendee)
}
