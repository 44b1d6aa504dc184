// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/models"
)

// Event errors
var (
	ErrEventNotFound      = errors.New("event not found")
	ErrSlugConflict       = errors.New("event with this slug already exists")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrQuotaExhausted     = errors.New("ticket type quota exhausted")
)

const eventColumns = `id, team_id, slug, name, description, venue, city, country,
	starts_at, ends_at, capacity, tax_rate_bp, currency, visibility, created_at, updated_at`

// CreateEvent creates a new event.
func (db *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Visibility == "" {
		event.Visibility = models.EventDraft
	}

	query := `INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		event.ID, event.TeamID, event.Slug, event.Name, event.Description,
		event.Venue, event.City, event.Country,
		event.StartsAt, event.EndsAt, event.Capacity, event.TaxRateBP,
		event.Currency, event.Visibility, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSlugConflict
		}
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// GetEvent retrieves an event by ID, including its ticket types.
func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return db.scanEventWithTickets(ctx, row)
}

// GetEventBySlug retrieves an event by its public slug.
func (db *DB) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE slug = ?`, slug)
	return db.scanEventWithTickets(ctx, row)
}

// ListEvents returns events, optionally filtered by team and visibility,
// newest start date first.
func (db *DB) ListEvents(ctx context.Context, teamID, visibility string, limit, offset int) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	args := []any{}
	if teamID != "" {
		query += " AND team_id = ?"
		args = append(args, teamID)
	}
	if visibility != "" {
		query += " AND visibility = ?"
		args = append(args, visibility)
	}
	query += " ORDER BY starts_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer closeWithLog(rows, "rows")

	events := make([]models.Event, 0)
	for rows.Next() {
		event, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// UpdateEvent updates an event's editable fields.
func (db *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()

	query := `UPDATE events SET
		slug = ?, name = ?, description = ?, venue = ?, city = ?, country = ?,
		starts_at = ?, ends_at = ?, capacity = ?, tax_rate_bp = ?, currency = ?,
		updated_at = ?
	WHERE id = ?`

	result, err := db.conn.ExecContext(ctx, query,
		event.Slug, event.Name, event.Description, event.Venue, event.City, event.Country,
		event.StartsAt, event.EndsAt, event.Capacity, event.TaxRateBP, event.Currency,
		event.UpdatedAt, event.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSlugConflict
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}

	return nil
}

// CountEvents counts events matching the ListEvents filters.
func (db *DB) CountEvents(ctx context.Context, teamID, visibility string) (int, error) {
	query := `SELECT COUNT(*) FROM events WHERE 1=1`
	args := []any{}
	if teamID != "" {
		query += " AND team_id = ?"
		args = append(args, teamID)
	}
	if visibility != "" {
		query += " AND visibility = ?"
		args = append(args, visibility)
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// SetEventVisibility moves an event between draft, published and archived.
func (db *DB) SetEventVisibility(ctx context.Context, id, visibility string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE events SET visibility = ?, updated_at = ? WHERE id = ?`,
		visibility, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set visibility: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes an event and its ticket types.
func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}

	_, err = db.conn.ExecContext(ctx, `DELETE FROM ticket_types WHERE event_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket types: %w", err)
	}

	return nil
}

// CreateTicketType adds a ticket type to an event.
func (db *DB) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	if tt.ID == "" {
		tt.ID = uuid.New().String()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO ticket_types (id, event_id, name, price_cents, quota, sold, live)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tt.ID, tt.EventID, tt.Name, tt.PriceCents, tt.Quota, tt.Sold, tt.Live)
	if err != nil {
		return fmt.Errorf("failed to create ticket type: %w", err)
	}

	return nil
}

// GetTicketType retrieves a ticket type by ID.
func (db *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, event_id, name, price_cents, quota, sold, live
		FROM ticket_types WHERE id = ?`, id)

	var tt models.TicketType
	err := row.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.PriceCents, &tt.Quota, &tt.Sold, &tt.Live)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketTypeNotFound
		}
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}
	return &tt, nil
}

// ListTicketTypes returns all ticket types for an event.
func (db *DB) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, event_id, name, price_cents, quota, sold, live
		FROM ticket_types WHERE event_id = ? ORDER BY price_cents, name`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}
	defer closeWithLog(rows, "rows")

	types := make([]models.TicketType, 0)
	for rows.Next() {
		var tt models.TicketType
		if err := rows.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.PriceCents, &tt.Quota, &tt.Sold, &tt.Live); err != nil {
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		types = append(types, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket types: %w", err)
	}

	return types, nil
}

// UpdateTicketType updates a ticket type's editable fields.
func (db *DB) UpdateTicketType(ctx context.Context, tt *models.TicketType) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE ticket_types SET name = ?, price_cents = ?, quota = ?, live = ? WHERE id = ?`,
		tt.Name, tt.PriceCents, tt.Quota, tt.Live, tt.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket type: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrTicketTypeNotFound
	}
	return nil
}

// IncrementTicketSold reserves quantity units of a ticket type. The guard
// in the WHERE clause makes the reservation atomic: a zero-row update
// means the quota would be exceeded.
func (db *DB) IncrementTicketSold(ctx context.Context, id string, quantity int) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE ticket_types SET sold = sold + ?
		WHERE id = ? AND (quota = 0 OR sold + ? <= quota)`,
		quantity, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to reserve tickets: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := db.GetTicketType(ctx, id); getErr != nil {
			return getErr
		}
		return ErrQuotaExhausted
	}
	return nil
}

// DecrementTicketSold releases quantity units, e.g. when an order expires.
func (db *DB) DecrementTicketSold(ctx context.Context, id string, quantity int) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE ticket_types SET sold = CASE WHEN sold >= ? THEN sold - ? ELSE 0 END WHERE id = ?`,
		quantity, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to release tickets: %w", err)
	}
	return nil
}

// CountActiveAttendees counts confirmed and pending attendees for an
// event, used against the event capacity.
func (db *DB) CountActiveAttendees(ctx context.Context, eventID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendees WHERE event_id = ? AND status IN (?, ?)`,
		eventID, models.AttendeeConfirmed, models.AttendeePending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendees: %w", err)
	}
	return n, nil
}

func (db *DB) scanEventWithTickets(ctx context.Context, row *sql.Row) (*models.Event, error) {
	event, err := scanEvent(row)
	if err != nil {
		return nil, err
	}
	types, err := db.ListTicketTypes(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	event.TicketTypes = types
	return event, nil
}

func scanEvent(row *sql.Row) (*models.Event, error) {
	var e models.Event
	var description, venue, city, country sql.NullString
	err := row.Scan(&e.ID, &e.TeamID, &e.Slug, &e.Name, &description, &venue, &city, &country,
		&e.StartsAt, &e.EndsAt, &e.Capacity, &e.TaxRateBP, &e.Currency, &e.Visibility,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	e.Description = description.String
	e.Venue = venue.String
	e.City = city.String
	e.Country = country.String
	return &e, nil
}

func scanEventRows(rows *sql.Rows) (*models.Event, error) {
	var e models.Event
	var description, venue, city, country sql.NullString
	err := rows.Scan(&e.ID, &e.TeamID, &e.Slug, &e.Name, &description, &venue, &city, &country,
		&e.StartsAt, &e.EndsAt, &e.Capacity, &e.TaxRateBP, &e.Currency, &e.Visibility,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	e.Description = description.String
	e.Venue = venue.String
	e.City = city.String
	e.Country = country.String
	return &e, nil
}
