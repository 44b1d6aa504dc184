// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import "time"

// Event visibility states.
const (
	EventDraft     = "draft"
	EventPublished = "published"
	EventArchived  = "archived"
)

// Event represents a conference or meetup managed by a team.
//
// Visibility transitions: draft -> published -> archived. Archived events
// remain listed for their team but reject new registrations.
type Event struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"team_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`

	// Capacity is the maximum number of confirmed attendees. Zero means
	// unlimited.
	Capacity int `json:"capacity"`

	// TaxRateBP is the tax rate in basis points applied to paid orders
	// (e.g. 825 = 8.25%).
	TaxRateBP int `json:"tax_rate_bp"`

	Currency   string    `json:"currency"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	TicketTypes []TicketType `json:"ticket_types,omitempty"`
}

// AcceptsRegistrations reports whether the event can take new attendees.
func (e *Event) AcceptsRegistrations() bool {
	return e.Visibility == EventPublished && time.Now().Before(e.EndsAt)
}

// TicketType is a purchasable admission class for an event.
type TicketType struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`

	// PriceCents is the unit price in minor currency units. Zero marks a
	// free ticket; registrations for free tickets confirm without an
	// order.
	PriceCents int64 `json:"price_cents"`

	// Quota limits sales of this type. Zero means unlimited.
	Quota int  `json:"quota"`
	Sold  int  `json:"sold"`
	Live  bool `json:"live"`
}

// CreateEventRequest is the payload for creating or updating an event.
type CreateEventRequest struct {
	Slug        string    `json:"slug" validate:"required,min=3,max=64,slug"`
	Name        string    `json:"name" validate:"required,min=3,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	Venue       string    `json:"venue" validate:"max=200"`
	City        string    `json:"city" validate:"max=100"`
	Country     string    `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Capacity    int       `json:"capacity" validate:"min=0"`
	TaxRateBP   int       `json:"tax_rate_bp" validate:"min=0,max=10000"`
	Currency    string    `json:"currency" validate:"required,iso4217"`
}
