// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import "time"

// Badge is an issued event badge for a confirmed attendee.
//
// The Code is a versioned, HMAC-signed string embedded in the badge QR.
// Re-issuing rotates the code; verification rejects revoked or rotated
// codes.
type Badge struct {
	ID         string     `json:"id"`
	AttendeeID string     `json:"attendee_id"`
	EventID    string     `json:"event_id"`
	Name       string     `json:"name"`
	Org        string     `json:"org,omitempty"`
	RoleLine   string     `json:"role_line,omitempty"`
	Code       string     `json:"code"`
	Revoked    bool       `json:"revoked"`
	IssuedAt   time.Time  `json:"issued_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// BadgePayload is the rendered QR content returned to badge printers.
type BadgePayload struct {
	Badge   *Badge `json:"badge"`
	QRData  string `json:"qr_data"`
	Version int    `json:"version"`
}

// CheckInRequest verifies a scanned badge code and marks the attendee
// checked in.
type CheckInRequest struct {
	Code string `json:"code" validate:"required,min=16,max=512"`
}
