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

	"github.com/openconf/registrar/internal/models"
)

// ErrActivityNotFound is returned when a user has no login activity row.
var ErrActivityNotFound = errors.New("login activity not found")

// TouchLoginActivity upserts the last-seen timestamp for a user. When
// login is true the last_login timestamp is updated as well.
func (db *DB) TouchLoginActivity(ctx context.Context, userID, email string, at time.Time, login bool) error {
	at = at.UTC()

	var query string
	if login {
		query = `INSERT INTO login_activity (user_id, email, last_seen_at, last_login)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET email = excluded.email,
				last_seen_at = excluded.last_seen_at, last_login = excluded.last_login`
	} else {
		query = `INSERT INTO login_activity (user_id, email, last_seen_at, last_login)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET email = excluded.email,
				last_seen_at = excluded.last_seen_at`
	}

	_, err := db.conn.ExecContext(ctx, query, userID, email, at, at)
	if err != nil {
		return fmt.Errorf("failed to touch login activity: %w", err)
	}
	return nil
}

// GetLoginActivity retrieves the activity row for one user.
func (db *DB) GetLoginActivity(ctx context.Context, userID string) (*models.LoginActivity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT user_id, email, last_seen_at, last_login FROM login_activity WHERE user_id = ?`,
		userID)

	var a models.LoginActivity
	if err := row.Scan(&a.UserID, &a.Email, &a.LastSeenAt, &a.LastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get login activity: %w", err)
	}
	return &a, nil
}

// ListLoginActivity returns all activity rows, most recently seen first.
func (db *DB) ListLoginActivity(ctx context.Context, limit int) ([]models.LoginActivity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, email, last_seen_at, last_login
		FROM login_activity ORDER BY last_seen_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list login activity: %w", err)
	}
	defer closeWithLog(rows, "rows")

	activity := make([]models.LoginActivity, 0)
	for rows.Next() {
		var a models.LoginActivity
		if err := rows.Scan(&a.UserID, &a.Email, &a.LastSeenAt, &a.LastLogin); err != nil {
			return nil, fmt.Errorf("failed to scan login activity: %w", err)
		}
		activity = append(activity, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login activity: %w", err)
	}

	return activity, nil
}
