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

// Badge errors
var (
	ErrBadgeNotFound = errors.New("badge not found")
	ErrBadgeRevoked  = errors.New("badge has been revoked")
)

// CreateBadge stores an issued badge. Re-issuing for the same attendee
// revokes any previous badge first.
func (db *DB) CreateBadge(ctx context.Context, b *models.Badge) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.IssuedAt = time.Now().UTC()

	now := b.IssuedAt
	_, err := db.conn.ExecContext(ctx,
		`UPDATE badges SET revoked = true, revoked_at = ? WHERE attendee_id = ? AND revoked = false`,
		now, b.AttendeeID)
	if err != nil {
		return fmt.Errorf("failed to revoke previous badges: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO badges (id, attendee_id, event_id, name, org, role_line, code, revoked, issued_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AttendeeID, b.EventID, b.Name, nullString(b.Org), nullString(b.RoleLine),
		b.Code, b.Revoked, b.IssuedAt, b.RevokedAt)
	if err != nil {
		return fmt.Errorf("failed to create badge: %w", err)
	}

	return nil
}

// GetBadge retrieves a badge by ID.
func (db *DB) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, attendee_id, event_id, name, org, role_line, code, revoked, issued_at, revoked_at
		FROM badges WHERE id = ?`, id)
	return scanBadge(row)
}

// GetActiveBadgeByAttendee retrieves the current non-revoked badge for an
// attendee.
func (db *DB) GetActiveBadgeByAttendee(ctx context.Context, attendeeID string) (*models.Badge, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, attendee_id, event_id, name, org, role_line, code, revoked, issued_at, revoked_at
		FROM badges WHERE attendee_id = ? AND revoked = false ORDER BY issued_at DESC LIMIT 1`,
		attendeeID)
	return scanBadge(row)
}

// GetBadgeByCode retrieves a badge by its signed code, used at check-in.
func (db *DB) GetBadgeByCode(ctx context.Context, code string) (*models.Badge, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, attendee_id, event_id, name, org, role_line, code, revoked, issued_at, revoked_at
		FROM badges WHERE code = ?`, code)
	return scanBadge(row)
}

// CountBadges counts an event's issued badges.
func (db *DB) CountBadges(ctx context.Context, eventID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM badges WHERE event_id = ?`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count badges: %w", err)
	}
	return n, nil
}

// ListBadges returns badges for an event, newest first.
func (db *DB) ListBadges(ctx context.Context, eventID string, limit, offset int) ([]models.Badge, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, attendee_id, event_id, name, org, role_line, code, revoked, issued_at, revoked_at
		FROM badges WHERE event_id = ? ORDER BY issued_at DESC LIMIT ? OFFSET ?`,
		eventID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer closeWithLog(rows, "rows")

	badges := make([]models.Badge, 0)
	for rows.Next() {
		b, err := scanBadgeRows(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}

	return badges, nil
}

// RevokeBadge marks a badge revoked.
func (db *DB) RevokeBadge(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE badges SET revoked = true, revoked_at = ? WHERE id = ? AND revoked = false`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke badge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := db.GetBadge(ctx, id); getErr != nil {
			return getErr
		}
		return ErrBadgeRevoked
	}
	return nil
}

func scanBadge(row *sql.Row) (*models.Badge, error) {
	var b models.Badge
	var org, roleLine sql.NullString
	var revokedAt sql.NullTime
	err := row.Scan(&b.ID, &b.AttendeeID, &b.EventID, &b.Name, &org, &roleLine,
		&b.Code, &b.Revoked, &b.IssuedAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("failed to scan badge: %w", err)
	}
	b.Org = org.String
	b.RoleLine = roleLine.String
	if revokedAt.Valid {
		t := revokedAt.Time
		b.RevokedAt = &t
	}
	return &b, nil
}

func scanBadgeRows(rows *sql.Rows) (*models.Badge, error) {
	var b models.Badge
	var org, roleLine sql.NullString
	var revokedAt sql.NullTime
	err := rows.Scan(&b.ID, &b.AttendeeID, &b.EventID, &b.Name, &org, &roleLine,
		&b.Code, &b.Revoked, &b.IssuedAt, &revokedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan badge: %w", err)
	}
	b.Org = org.String
	b.RoleLine = roleLine.String
	if revokedAt.Valid {
		t := revokedAt.Time
		b.RevokedAt = &t
	}
	return &b, nil
}
