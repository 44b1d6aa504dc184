// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/openconf/registrar/internal/badge"
	"github.com/openconf/registrar/internal/checkout"
	"github.com/openconf/registrar/internal/database"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/models"
	"github.com/openconf/registrar/internal/travel"
	"github.com/openconf/registrar/internal/validation"
)

// maxBodyBytes bounds request bodies; ticket uploads get their own
// larger limit in the travel handlers.
const maxBodyBytes = 1 << 20

// sanitizeLogValue strips control characters so request-derived strings
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes the standard response envelope.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondData wraps a payload in a success envelope.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// respondError writes an error envelope and logs the underlying error.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("api error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// storeErrorStatus maps store and service sentinels to HTTP codes.
var storeErrorStatus = []struct {
	err    error
	status int
	code   string
}{
	{database.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND"},
	{database.ErrTicketTypeNotFound, http.StatusNotFound, "TICKET_TYPE_NOT_FOUND"},
	{database.ErrAttendeeNotFound, http.StatusNotFound, "ATTENDEE_NOT_FOUND"},
	{database.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{database.ErrDiscountNotFound, http.StatusNotFound, "DISCOUNT_NOT_FOUND"},
	{database.ErrTravelRequestNotFound, http.StatusNotFound, "TRAVEL_REQUEST_NOT_FOUND"},
	{database.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
	{database.ErrBadgeNotFound, http.StatusNotFound, "BADGE_NOT_FOUND"},
	{database.ErrTeamNotFound, http.StatusNotFound, "TEAM_NOT_FOUND"},
	{database.ErrMembershipNotFound, http.StatusNotFound, "MEMBERSHIP_NOT_FOUND"},

	{database.ErrSlugConflict, http.StatusConflict, "SLUG_CONFLICT"},
	{database.ErrAlreadyRegistered, http.StatusConflict, "ALREADY_REGISTERED"},
	{database.ErrAlreadyCheckedIn, http.StatusConflict, "ALREADY_CHECKED_IN"},
	{database.ErrDiscountCodeConflict, http.StatusConflict, "DISCOUNT_CODE_CONFLICT"},
	{database.ErrBookingExists, http.StatusConflict, "BOOKING_EXISTS"},
	{database.ErrMemberExists, http.StatusConflict, "MEMBER_EXISTS"},
	{database.ErrBadgeRevoked, http.StatusConflict, "BADGE_REVOKED"},
	{database.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{database.ErrInvalidBookingTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{database.ErrLastOwner, http.StatusConflict, "LAST_OWNER"},

	{database.ErrQuotaExhausted, http.StatusConflict, "QUOTA_EXHAUSTED"},
	{database.ErrDiscountExhausted, http.StatusConflict, "DISCOUNT_EXHAUSTED"},

	{checkout.ErrEventNotOpen, http.StatusUnprocessableEntity, "EVENT_NOT_OPEN"},
	{checkout.ErrEventFull, http.StatusUnprocessableEntity, "EVENT_FULL"},
	{checkout.ErrTicketNotLive, http.StatusUnprocessableEntity, "TICKET_NOT_LIVE"},
	{checkout.ErrTicketWrongEvent, http.StatusUnprocessableEntity, "TICKET_WRONG_EVENT"},
	{checkout.ErrDiscountNotUsable, http.StatusUnprocessableEntity, "DISCOUNT_NOT_USABLE"},
	{checkout.ErrUnknownIntent, http.StatusNotFound, "UNKNOWN_INTENT"},
	{checkout.ErrBadWebhookStatus, http.StatusBadRequest, "BAD_WEBHOOK_STATUS"},
	{checkout.ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE"},
	{checkout.ErrGatewayUnavailable, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE"},

	{travel.ErrExtractionUnavailable, http.StatusServiceUnavailable, "EXTRACTION_UNAVAILABLE"},
	{travel.ErrNothingExtracted, http.StatusUnprocessableEntity, "NOTHING_EXTRACTED"},

	{badge.ErrMalformedCode, http.StatusBadRequest, "MALFORMED_CODE"},
	{badge.ErrBadSignature, http.StatusUnauthorized, "BAD_SIGNATURE"},
	{badge.ErrWrongVersion, http.StatusBadRequest, "WRONG_VERSION"},
}

// respondStoreError translates a sentinel error into an API error, or
// 500 for anything unexpected.
func respondStoreError(w http.ResponseWriter, err error) {
	for _, m := range storeErrorStatus {
		if errors.Is(err, m.err) {
			respondError(w, m.status, m.code, m.err.Error(), nil)
			return
		}
	}
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
}

// decodeJSON reads and unmarshals a bounded request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", err)
		return false
	}
	return true
}

// validateRequest validates a decoded payload and writes the 400 on
// failure.
func validateRequest(w http.ResponseWriter, v interface{}) bool {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return true
	}

	apiErr := validationErr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
	return false
}

// getIntParam extracts an integer query parameter with a default.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// pagination returns clamped limit/offset query parameters.
func (h *Handler) pagination(r *http.Request) (limit, offset int) {
	limit = getIntParam(r, "limit", h.cfg.API.DefaultPageSize)
	if limit <= 0 {
		limit = h.cfg.API.DefaultPageSize
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}
	offset = getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
