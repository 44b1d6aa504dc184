// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import "time"

// Presence states derived from login-activity timestamps.
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

// LoginActivity records the most recent authenticated activity for a
// user. One row per user, upserted on each authenticated request
// (throttled) and on magic-link verification.
type LoginActivity struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	LastSeenAt time.Time `json:"last_seen_at"`
	LastLogin  time.Time `json:"last_login"`
}

// Presence is the derived indicator for a user at a point in time.
type Presence struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	State      string    `json:"state"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
