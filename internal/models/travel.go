// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import "time"

// Booking states. Transitions are enforced by BookingCanTransition:
//
//	pending -> booked -> confirmed
//	pending|booked -> cancelled
const (
	BookingPending   = "pending"
	BookingBooked    = "booked"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

var bookingTransitions = map[string][]string{
	BookingPending: {BookingBooked, BookingCancelled},
	BookingBooked:  {BookingConfirmed, BookingCancelled},
}

// BookingCanTransition reports whether a booking may move between the two
// states. Confirmed and cancelled are terminal.
func BookingCanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TravelRequest is a speaker's or faculty member's requested itinerary
// for an event.
type TravelRequest struct {
	ID           string          `json:"id"`
	EventID      string          `json:"event_id"`
	SpeakerName  string          `json:"speaker_name"`
	SpeakerEmail string          `json:"speaker_email"`
	Phone        string          `json:"phone,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Segments     []TravelSegment `json:"segments"`
	Booking      *Booking        `json:"booking,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TravelSegment is one requested leg of an itinerary.
type TravelSegment struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`

	OriginCity      string `json:"origin_city"`
	OriginIATA      string `json:"origin_iata,omitempty"`
	DestinationCity string `json:"destination_city"`
	DestinationIATA string `json:"destination_iata,omitempty"`

	// Date is the requested travel date (local, YYYY-MM-DD).
	Date string `json:"date"`

	// EarliestTime and LatestTime bound acceptable departure times
	// (HH:MM, 24h). Empty means unbounded.
	EarliestTime string `json:"earliest_time,omitempty"`
	LatestTime   string `json:"latest_time,omitempty"`
}

// Booking is the travel desk's reservation attached to a request.
type Booking struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Carrier   string    `json:"carrier,omitempty"`
	PNR       string    `json:"pnr,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractedTicket is the structured output of the hosted document
// extraction service for an uploaded ticket or confirmation email.
type ExtractedTicket struct {
	Passenger   string `json:"passenger"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM, 24h
	Flight      string `json:"flight,omitempty"`
	Carrier     string `json:"carrier,omitempty"`

	// Confidence is the extractor's self-reported confidence [0,1].
	Confidence float64 `json:"confidence"`
}

// Itinerary match verdicts.
const (
	MatchOK       = "match"
	MatchReview   = "review"
	MatchMismatch = "mismatch"
)

// MatchResult is the outcome of cross-checking an extracted ticket
// against one requested segment.
type MatchResult struct {
	SegmentID string  `json:"segment_id"`
	Score     float64 `json:"score"`
	Verdict   string  `json:"verdict"`

	OriginMatch      bool `json:"origin_match"`
	DestinationMatch bool `json:"destination_match"`
	DateMatch        bool `json:"date_match"`

	// DateOffByOne flags a date exactly one day off the request, which
	// usually indicates a red-eye or timezone shift rather than a wrong
	// booking.
	DateOffByOne bool `json:"date_off_by_one,omitempty"`
	TimeInWindow bool `json:"time_in_window"`

	Notes []string `json:"notes,omitempty"`
}

// CreateTravelRequest is the submission payload for a travel request.
type CreateTravelRequest struct {
	SpeakerName  string                `json:"speaker_name" validate:"required,min=2,max=200"`
	SpeakerEmail string                `json:"speaker_email" validate:"required,email"`
	Phone        string                `json:"phone" validate:"omitempty,e164"`
	Notes        string                `json:"notes" validate:"max=2000"`
	Segments     []CreateTravelSegment `json:"segments" validate:"required,min=1,max=8,dive"`
}

// CreateTravelSegment is one leg in a travel request submission.
type CreateTravelSegment struct {
	OriginCity      string `json:"origin_city" validate:"required,min=2,max=100"`
	OriginIATA      string `json:"origin_iata" validate:"omitempty,iata"`
	DestinationCity string `json:"destination_city" validate:"required,min=2,max=100"`
	DestinationIATA string `json:"destination_iata" validate:"omitempty,iata"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	EarliestTime    string `json:"earliest_time" validate:"omitempty,datetime=15:04"`
	LatestTime      string `json:"latest_time" validate:"omitempty,datetime=15:04"`
}
