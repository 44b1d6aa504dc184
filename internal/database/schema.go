// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS memberships (
			team_id UUID NOT NULL,
			user_id UUID NOT NULL,
			email TEXT NOT NULL,
			name TEXT,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (team_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			team_id UUID NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT,
			venue TEXT,
			city TEXT,
			country TEXT,
			starts_at TIMESTAMP NOT NULL,
			ends_at TIMESTAMP NOT NULL,
			capacity INTEGER NOT NULL DEFAULT 0,
			tax_rate_bp INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'draft',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ticket_types (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			quota INTEGER NOT NULL DEFAULT 0,
			sold INTEGER NOT NULL DEFAULT 0,
			live BOOLEAN NOT NULL DEFAULT true
		)`,

		`CREATE TABLE IF NOT EXISTS attendees (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			ticket_type_id UUID NOT NULL,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			organization TEXT,
			dietary TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			order_id UUID,
			checked_in_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			email TEXT NOT NULL,
			currency TEXT NOT NULL,
			subtotal_cents BIGINT NOT NULL,
			discount_cents BIGINT NOT NULL DEFAULT 0,
			tax_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL,
			discount_code TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			gateway_intent_id TEXT,
			failure_reason TEXT,
			expires_at TIMESTAMP NOT NULL,
			paid_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS order_lines (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL,
			ticket_type_id UUID NOT NULL,
			ticket_type_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			attendee_ids TEXT NOT NULL DEFAULT '[]'
		)`,

		`CREATE TABLE IF NOT EXISTS discount_codes (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			code TEXT NOT NULL,
			kind TEXT NOT NULL,
			value BIGINT NOT NULL,
			max_redemptions INTEGER NOT NULL DEFAULT 0,
			redeemed INTEGER NOT NULL DEFAULT 0,
			valid_from TIMESTAMP,
			valid_until TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (event_id, code)
		)`,

		`CREATE TABLE IF NOT EXISTS travel_requests (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			speaker_name TEXT NOT NULL,
			speaker_email TEXT NOT NULL,
			phone TEXT,
			notes TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS travel_segments (
			id UUID PRIMARY KEY,
			request_id UUID NOT NULL,
			origin_city TEXT NOT NULL,
			origin_iata TEXT,
			destination_city TEXT NOT NULL,
			destination_iata TEXT,
			date TEXT NOT NULL,
			earliest_time TEXT,
			latest_time TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			request_id UUID NOT NULL UNIQUE,
			carrier TEXT,
			pnr TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS badges (
			id UUID PRIMARY KEY,
			attendee_id UUID NOT NULL,
			event_id UUID NOT NULL,
			name TEXT NOT NULL,
			org TEXT,
			role_line TEXT,
			code TEXT NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT false,
			issued_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS login_activity (
			user_id UUID PRIMARY KEY,
			email TEXT NOT NULL,
			last_seen_at TIMESTAMP NOT NULL,
			last_login TIMESTAMP NOT NULL
		)`,
	}
}

// createIndexes creates indexes for frequently filtered columns.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_team ON events (team_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_visibility ON events (visibility, starts_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_types_event ON ticket_types (event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attendees_event ON attendees (event_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_attendees_email ON attendees (event_id, email)`,
		`CREATE INDEX IF NOT EXISTS idx_attendees_order ON attendees (order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_event ON orders (event_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_intent ON orders (gateway_intent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_expiry ON orders (status, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines (order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_discount_codes_event ON discount_codes (event_id, code)`,
		`CREATE INDEX IF NOT EXISTS idx_travel_requests_event ON travel_requests (event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_travel_segments_request ON travel_segments (request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_badges_attendee ON badges (attendee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_badges_event ON badges (event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships (user_id)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}
