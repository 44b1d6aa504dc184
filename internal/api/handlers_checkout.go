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
	"github.com/openconf/registrar/internal/checkout"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/models"
)

// WebhookSignatureHeader carries the gateway's HMAC over the raw body.
const WebhookSignatureHeader = "X-Gateway-Signature"

// checkoutResponse pairs the created order with the payment handshake.
// PaymentIntent is nil for free orders, which settle immediately.
type checkoutResponse struct {
	Order         *models.Order           `json:"order"`
	PaymentIntent *checkout.PaymentIntent `json:"payment_intent,omitempty"`
}

// QuoteCheckout prices a checkout without reserving anything.
func (h *Handler) QuoteCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	quote, err := h.checkout.Quote(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, quote)
}

// BeginCheckout registers the attendees and starts payment. Free
// totals settle immediately; paid totals return the gateway's client
// secret for the processor's browser SDK.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	eventID := chi.URLParam(r, "id")
	order, intent, err := h.checkout.Begin(r.Context(), eventID, &req)
	if errors.Is(err, checkout.ErrEventFull) {
		h.waitlistRegistrations(w, r, eventID, &req)
		return
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastOrderUpdate(order.ID, order.Status)
	}
	respondData(w, http.StatusCreated, checkoutResponse{Order: order, PaymentIntent: intent})
}

// waitlistResponse reports registrations parked on the waitlist.
type waitlistResponse struct {
	Waitlisted []models.Attendee `json:"waitlisted"`
}

// waitlistRegistrations parks a full event's registrations as waitlisted
// attendees. No order is created and no payment starts; a freed seat
// promotes the waitlist head in FIFO order.
func (h *Handler) waitlistRegistrations(w http.ResponseWriter, r *http.Request, eventID string, req *models.CheckoutRequest) {
	for _, reg := range req.Attendees {
		tt, err := h.db.GetTicketType(r.Context(), reg.TicketTypeID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if tt.EventID != eventID {
			respondStoreError(w, checkout.ErrTicketWrongEvent)
			return
		}
	}

	waitlisted := make([]models.Attendee, 0, len(req.Attendees))
	for _, reg := range req.Attendees {
		a := models.Attendee{
			EventID:      eventID,
			TicketTypeID: reg.TicketTypeID,
			Email:        reg.Email,
			Name:         reg.Name,
			Organization: reg.Organization,
			Dietary:      reg.Dietary,
			Status:       models.AttendeeWaitlisted,
		}
		if err := h.db.CreateAttendee(r.Context(), &a); err != nil {
			// A failed group leaves no spots behind.
			for i := range waitlisted {
				if cancelErr := h.db.UpdateAttendeeStatus(r.Context(), waitlisted[i].ID, models.AttendeeCancelled); cancelErr != nil {
					logging.Ctx(r.Context()).Error().Err(cancelErr).
						Str("attendee_id", waitlisted[i].ID).Msg("Failed to discard waitlisted attendee")
				}
			}
			respondStoreError(w, err)
			return
		}
		waitlisted = append(waitlisted, a)
	}

	logging.Ctx(r.Context()).Info().
		Str("event_id", eventID).
		Int("count", len(waitlisted)).
		Msg("Event at capacity, registrations waitlisted")
	respondData(w, http.StatusAccepted, waitlistResponse{Waitlisted: waitlisted})
}

// GetOrder returns one order. Order IDs are unguessable; the buyer
// holds the ID from checkout.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.db.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, order)
}

// ListOrders is the team view over an event's orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceOrders, authz.ActionRead) {
		return
	}

	limit, offset := h.pagination(r)
	status := r.URL.Query().Get("status")
	orders, err := h.db.ListOrders(r.Context(), event.ID, status, limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	total, err := h.db.CountOrders(r.Context(), event.ID, status)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, models.Page{Items: orders, TotalCount: total, Limit: limit, Offset: offset})
}

// PaymentWebhook receives the gateway's callback. Authentication is the
// HMAC signature over the raw body; replays of settled orders are
// absorbed as success.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable body", err)
		return
	}

	var hook models.GatewayWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid webhook payload", err)
		return
	}

	if err := h.checkout.HandleWebhook(r.Context(), body, r.Header.Get(WebhookSignatureHeader), &hook); err != nil {
		respondStoreError(w, err)
		return
	}

	if h.hub != nil {
		if order, err := h.db.GetOrderByIntent(r.Context(), hook.IntentID); err == nil {
			h.hub.BroadcastOrderUpdate(order.ID, order.Status)
		}
	}
	respondData(w, http.StatusOK, map[string]string{"status": "received"})
}

// discountRequest creates a promotional code for an event.
type discountRequest struct {
	Code           string     `json:"code" validate:"required,discount_code"`
	Kind           string     `json:"kind" validate:"required,oneof=percent amount"`
	Value          int64      `json:"value" validate:"required,min=1"`
	MaxRedemptions int        `json:"max_redemptions" validate:"min=0"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
}

// CreateDiscountCode adds a code scoped to the event.
func (h *Handler) CreateDiscountCode(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceDiscounts, authz.ActionWrite) {
		return
	}

	var req discountRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	if req.Kind == models.DiscountPercent && req.Value > 100 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "percent value must be 1-100", nil)
		return
	}

	code := &models.DiscountCode{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		Code:           req.Code,
		Kind:           req.Kind,
		Value:          req.Value,
		MaxRedemptions: req.MaxRedemptions,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.db.CreateDiscountCode(r.Context(), code); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, code)
}

// ListDiscountCodes lists an event's codes with redemption counts.
func (h *Handler) ListDiscountCodes(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventForAuthz(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.authorize(w, r, event.TeamID, authz.ResourceDiscounts, authz.ActionWrite) {
		return
	}

	codes, err := h.db.ListDiscountCodes(r.Context(), event.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, codes)
}
