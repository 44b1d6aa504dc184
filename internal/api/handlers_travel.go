// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/auth"
	"github.com/openconf/registrar/internal/authz"
	"github.com/openconf/registrar/internal/models"
	"github.com/openconf/registrar/internal/notify"
	"github.com/openconf/registrar/internal/travel"
	"github.com/openconf/registrar/internal/ws"
)

// maxTicketBytes bounds uploaded ticket documents.
const maxTicketBytes = 5 << 20

// CreateTravelRequest submits a speaker's requested itinerary.
func (h *Handler) CreateTravelRequest(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceTravel, authz.ActionWrite) {
		return
	}

	var req models.CreateTravelRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	now := time.Now().UTC()
	tr := &models.TravelRequest{
		ID:           uuid.NewString(),
		EventID:      event.ID,
		SpeakerName:  req.SpeakerName,
		SpeakerEmail: req.SpeakerEmail,
		Phone:        req.Phone,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, seg := range req.Segments {
		tr.Segments = append(tr.Segments, models.TravelSegment{
			ID:              uuid.NewString(),
			RequestID:       tr.ID,
			OriginCity:      seg.OriginCity,
			OriginIATA:      seg.OriginIATA,
			DestinationCity: seg.DestinationCity,
			DestinationIATA: seg.DestinationIATA,
			Date:            seg.Date,
			EarliestTime:    seg.EarliestTime,
			LatestTime:      seg.LatestTime,
		})
	}

	if err := h.db.CreateTravelRequest(r.Context(), tr); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, tr)
}

// ListTravelRequests lists an event's travel requests.
func (h *Handler) ListTravelRequests(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceTravel, authz.ActionRead) {
		return
	}

	limit, offset := h.pagination(r)
	requests, err := h.db.ListTravelRequests(r.Context(), event.ID, limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	total, err := h.db.CountTravelRequests(r.Context(), event.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, models.Page{Items: requests, TotalCount: total, Limit: limit, Offset: offset})
}

// travelRequestForAuthz loads a travel request and checks team access.
func (h *Handler) travelRequestForAuthz(w http.ResponseWriter, r *http.Request, action string) (*models.TravelRequest, bool) {
	tr, err := h.db.GetTravelRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return nil, false
	}
	event, ok := h.eventForAuthz(w, r, tr.EventID)
	if !ok {
		return nil, false
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceTravel, action) {
		return nil, false
	}
	return tr, true
}

// GetTravelRequest returns one request with segments and booking.
func (h *Handler) GetTravelRequest(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.travelRequestForAuthz(w, r, authz.ActionRead)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, tr)
}

// UpdateTravelRequest rewrites the speaker details and segments of a
// request, keeping any existing booking.
func (h *Handler) UpdateTravelRequest(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.travelRequestForAuthz(w, r, authz.ActionWrite)
	if !ok {
		return
	}

	var req models.CreateTravelRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	tr.SpeakerName = req.SpeakerName
	tr.SpeakerEmail = req.SpeakerEmail
	tr.Phone = req.Phone
	tr.Notes = req.Notes
	tr.Segments = tr.Segments[:0]
	for _, seg := range req.Segments {
		tr.Segments = append(tr.Segments, models.TravelSegment{
			ID:              uuid.NewString(),
			RequestID:       tr.ID,
			OriginCity:      seg.OriginCity,
			OriginIATA:      seg.OriginIATA,
			DestinationCity: seg.DestinationCity,
			DestinationIATA: seg.DestinationIATA,
			Date:            seg.Date,
			EarliestTime:    seg.EarliestTime,
			LatestTime:      seg.LatestTime,
		})
	}

	if err := h.db.UpdateTravelRequest(r.Context(), tr); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, tr)
}

// DeleteTravelRequest removes a request and its segments.
func (h *Handler) DeleteTravelRequest(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.travelRequestForAuthz(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	if err := h.db.DeleteTravelRequest(r.Context(), tr.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// bookingRequest attaches reservation details to a travel request.
type bookingRequest struct {
	Carrier string `json:"carrier" validate:"max=120"`
	PNR     string `json:"pnr" validate:"max=32"`
}

// CreateBooking attaches a pending booking to a request. One booking
// per request.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.travelRequestForAuthz(w, r, authz.ActionWrite)
	if !ok {
		return
	}

	var req bookingRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	now := time.Now().UTC()
	booking := &models.Booking{
		ID:        uuid.NewString(),
		RequestID: tr.ID,
		Carrier:   req.Carrier,
		PNR:       req.PNR,
		Status:    models.BookingPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.db.CreateBooking(r.Context(), booking); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, booking)
}

// bookingTransitionRequest moves a booking along its state machine.
type bookingTransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=booked confirmed cancelled"`
}

// TransitionBooking advances the booking attached to a travel request.
// Confirmed and cancelled outcomes notify the speaker.
func (h *Handler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.travelRequestForAuthz(w, r, authz.ActionWrite)
	if !ok {
		return
	}

	var req bookingTransitionRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	booking, err := h.db.GetBookingByRequest(r.Context(), tr.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if err := h.db.TransitionBooking(r.Context(), booking.ID, booking.Status, req.Status); err != nil {
		respondStoreError(w, err)
		return
	}
	booking.Status = req.Status

	if req.Status == models.BookingConfirmed || req.Status == models.BookingCancelled {
		h.publish(r.Context(), notify.Notification{
			Kind:      notify.KindBookingUpdate,
			Recipient: tr.SpeakerEmail,
			Phone:     tr.Phone,
			Subject:   fmt.Sprintf("Travel booking %s", req.Status),
			Body: fmt.Sprintf("Hello %s,\n\nYour travel booking (%s %s) is now %s.",
				tr.SpeakerName, booking.Carrier, booking.PNR, req.Status),
		})
	}
	if h.hub != nil {
		h.hub.Broadcast(ws.MessageTypeBooking, booking)
	}
	respondData(w, http.StatusOK, booking)
}

// matchResponse pairs the extraction output with the verdict.
type matchResponse struct {
	Ticket *models.ExtractedTicket `json:"ticket"`
	Match  models.MatchResult      `json:"match"`
}

// MatchTicket runs an uploaded ticket document through the extraction
// service and cross-checks it against the request's segments.
func (h *Handler) MatchTicket(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "ticket extraction is not configured", nil)
		return
	}

	tr, ok := h.travelRequestForAuthz(w, r, authz.ActionWrite)
	if !ok {
		return
	}

	document, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTicketBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE", "ticket document too large", err)
		return
	}
	if len(document) == 0 {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "empty ticket document", nil)
		return
	}

	ticket, err := h.extractor.Extract(r.Context(), r.Header.Get("Content-Type"), document)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	match := travel.MatchBest(tr.Segments, ticket)
	if match.Verdict == models.MatchReview {
		if identity := auth.IdentityFromContext(r.Context()); identity != nil {
			h.publish(r.Context(), notify.Notification{
				Kind:      notify.KindTravelMatchReview,
				Recipient: identity.Email,
				Subject:   fmt.Sprintf("Ticket needs review: %s", tr.SpeakerName),
				Body: fmt.Sprintf("The uploaded ticket for %s scored %.2f against the requested itinerary and needs a manual look.",
					tr.SpeakerName, match.Score),
			})
		}
	}
	respondData(w, http.StatusOK, matchResponse{Ticket: ticket, Match: match})
}
