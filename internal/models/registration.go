// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import "time"

// Attendee registration states.
const (
	AttendeePending    = "pending"
	AttendeeConfirmed  = "confirmed"
	AttendeeCancelled  = "cancelled"
	AttendeeWaitlisted = "waitlisted"
)

// Attendee represents a person registered for an event.
//
// Lifecycle: registrations for free tickets are confirmed immediately.
// Paid registrations stay pending until the associated order reaches
// paid. A registration against a full event is waitlisted.
type Attendee struct {
	ID           string `json:"id"`
	EventID      string `json:"event_id"`
	TicketTypeID string `json:"ticket_type_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Dietary      string `json:"dietary,omitempty"`
	Status       string `json:"status"`

	// OrderID links a paid registration to its checkout order.
	OrderID string `json:"order_id,omitempty"`

	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsActive reports whether the attendee still holds a place (confirmed or
// pending payment).
func (a *Attendee) IsActive() bool {
	return a.Status == AttendeeConfirmed || a.Status == AttendeePending
}

// RegisterRequest is the public registration payload. Group registrations
// submit multiple entries in one checkout request instead.
type RegisterRequest struct {
	TicketTypeID string `json:"ticket_type_id" validate:"required,uuid4"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Name         string `json:"name" validate:"required,min=2,max=200"`
	Organization string `json:"organization" validate:"max=200"`
	Dietary      string `json:"dietary" validate:"max=500"`
}
