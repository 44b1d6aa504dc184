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

// Attendee errors
var (
	ErrAttendeeNotFound  = errors.New("attendee not found")
	ErrAlreadyRegistered = errors.New("email already registered for this event")
	ErrAlreadyCheckedIn  = errors.New("attendee already checked in")
)

const attendeeColumns = `id, event_id, ticket_type_id, email, name, organization, dietary,
	status, order_id, checked_in_at, created_at, updated_at`

// CreateAttendee inserts a new registration.
func (db *DB) CreateAttendee(ctx context.Context, a *models.Attendee) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = models.AttendeePending
	}

	// One live registration per email per event; a waitlist spot counts.
	var existing int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendees WHERE event_id = ? AND email = ? AND status IN (?, ?, ?)`,
		a.EventID, a.Email, models.AttendeeConfirmed, models.AttendeePending, models.AttendeeWaitlisted).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check existing registration: %w", err)
	}
	if existing > 0 {
		return ErrAlreadyRegistered
	}

	query := `INSERT INTO attendees (` + attendeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.conn.ExecContext(ctx, query,
		a.ID, a.EventID, a.TicketTypeID, a.Email, a.Name, a.Organization, a.Dietary,
		a.Status, nullString(a.OrderID), a.CheckedInAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create attendee: %w", err)
	}

	return nil
}

// GetAttendee retrieves an attendee by ID.
func (db *DB) GetAttendee(ctx context.Context, id string) (*models.Attendee, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE id = ?`, id)
	return scanAttendee(row)
}

// ListAttendees returns attendees for an event, optionally filtered by
// status, newest first.
func (db *DB) ListAttendees(ctx context.Context, eventID, status string, limit, offset int) ([]models.Attendee, error) {
	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE event_id = ?`
	args := []any{eventID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	defer closeWithLog(rows, "rows")

	attendees := make([]models.Attendee, 0)
	for rows.Next() {
		a, err := scanAttendeeRows(rows)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendees: %w", err)
	}

	return attendees, nil
}

// CountAttendees counts an event's attendees, optionally filtered by
// status, matching the ListAttendees filters.
func (db *DB) CountAttendees(ctx context.Context, eventID, status string) (int, error) {
	query := `SELECT COUNT(*) FROM attendees WHERE event_id = ?`
	args := []any{eventID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attendees: %w", err)
	}
	return n, nil
}

// ListAttendeesByOrder returns the attendees linked to an order.
func (db *DB) ListAttendeesByOrder(ctx context.Context, orderID string) ([]models.Attendee, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE order_id = ? ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees by order: %w", err)
	}
	defer closeWithLog(rows, "rows")

	attendees := make([]models.Attendee, 0)
	for rows.Next() {
		a, err := scanAttendeeRows(rows)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendees: %w", err)
	}

	return attendees, nil
}

// UpdateAttendeeStatus moves a single attendee to a new status.
func (db *DB) UpdateAttendeeStatus(ctx context.Context, id, status string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE attendees SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update attendee status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

// UpdateAttendeeStatusByOrder moves every attendee of an order to a new
// status, used when an order is paid, fails or expires.
func (db *DB) UpdateAttendeeStatusByOrder(ctx context.Context, orderID, status string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE attendees SET status = ?, updated_at = ? WHERE order_id = ?`,
		status, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("failed to update attendees by order: %w", err)
	}
	return nil
}

// CheckInAttendee marks an attendee as checked in. A second check-in is
// rejected so door staff see duplicate scans.
func (db *DB) CheckInAttendee(ctx context.Context, id string, at time.Time) error {
	attendee, err := db.GetAttendee(ctx, id)
	if err != nil {
		return err
	}
	if attendee.CheckedInAt != nil {
		return ErrAlreadyCheckedIn
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE attendees SET checked_in_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to check in attendee: %w", err)
	}
	return nil
}

// PromoteWaitlisted confirms up to n waitlisted attendees in FIFO order
// and returns the promoted rows.
func (db *DB) PromoteWaitlisted(ctx context.Context, eventID string, n int) ([]models.Attendee, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+attendeeColumns+` FROM attendees
		WHERE event_id = ? AND status = ? ORDER BY created_at LIMIT ?`,
		eventID, models.AttendeeWaitlisted, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query waitlist: %w", err)
	}
	defer closeWithLog(rows, "rows")

	promoted := make([]models.Attendee, 0, n)
	for rows.Next() {
		a, err := scanAttendeeRows(rows)
		if err != nil {
			return nil, err
		}
		promoted = append(promoted, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waitlist: %w", err)
	}

	for i := range promoted {
		if err := db.UpdateAttendeeStatus(ctx, promoted[i].ID, models.AttendeeConfirmed); err != nil {
			return nil, err
		}
		promoted[i].Status = models.AttendeeConfirmed
	}

	return promoted, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanAttendee(row *sql.Row) (*models.Attendee, error) {
	var a models.Attendee
	var organization, dietary, orderID sql.NullString
	var checkedIn sql.NullTime
	err := row.Scan(&a.ID, &a.EventID, &a.TicketTypeID, &a.Email, &a.Name,
		&organization, &dietary, &a.Status, &orderID, &checkedIn, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("failed to scan attendee: %w", err)
	}
	a.Organization = organization.String
	a.Dietary = dietary.String
	a.OrderID = orderID.String
	if checkedIn.Valid {
		t := checkedIn.Time
		a.CheckedInAt = &t
	}
	return &a, nil
}

func scanAttendeeRows(rows *sql.Rows) (*models.Attendee, error) {
	var a models.Attendee
	var organization, dietary, orderID sql.NullString
	var checkedIn sql.NullTime
	err := rows.Scan(&a.ID, &a.EventID, &a.TicketTypeID, &a.Email, &a.Name,
		&organization, &dietary, &a.Status, &orderID, &checkedIn, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendee: %w", err)
	}
	a.Organization = organization.String
	a.Dietary = dietary.String
	a.OrderID = orderID.String
	if checkedIn.Valid {
		t := checkedIn.Time
		a.CheckedInAt = &t
	}
	return &a, nil
}
