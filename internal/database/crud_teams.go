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

// Team errors
var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMemberExists       = errors.New("user is already a member of this team")
	ErrLastOwner          = errors.New("cannot remove or demote the last owner of a team")
)

// CreateTeam creates a team and its first owner membership in one
// transaction.
func (db *DB) CreateTeam(ctx context.Context, team *models.Team, owner *models.Membership) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO teams (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		team.ID, team.Name, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	owner.TeamID = team.ID
	owner.Role = models.RoleOwner
	owner.CreatedAt = now
	owner.UpdatedAt = now
	if owner.UserID == "" {
		owner.UserID = uuid.New().String()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memberships (team_id, user_id, email, name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		owner.TeamID, owner.UserID, owner.Email, owner.Name, owner.Role, owner.CreatedAt, owner.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit team creation: %w", err)
	}

	return nil
}

// GetTeam retrieves a team by ID.
func (db *DB) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM teams WHERE id = ?`, id)

	var team models.Team
	if err := row.Scan(&team.ID, &team.Name, &team.CreatedAt, &team.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &team, nil
}

// ListTeamsForUser returns the teams a user belongs to.
func (db *DB) ListTeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.name, t.created_at, t.updated_at
		FROM teams t JOIN memberships m ON m.team_id = t.id
		WHERE m.user_id = ? ORDER BY t.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer closeWithLog(rows, "rows")

	teams := make([]models.Team, 0)
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}

// AddMember adds a membership to a team.
func (db *DB) AddMember(ctx context.Context, m *models.Membership) error {
	if m.UserID == "" {
		m.UserID = uuid.New().String()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO memberships (team_id, user_id, email, name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.TeamID, m.UserID, m.Email, m.Name, m.Role, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrMemberExists
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// GetMembership retrieves one membership.
func (db *DB) GetMembership(ctx context.Context, teamID, userID string) (*models.Membership, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT team_id, user_id, email, name, role, created_at, updated_at
		FROM memberships WHERE team_id = ? AND user_id = ?`, teamID, userID)
	return scanMembership(row)
}

// GetMembershipByEmail retrieves a membership by team and member email.
func (db *DB) GetMembershipByEmail(ctx context.Context, teamID, email string) (*models.Membership, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT team_id, user_id, email, name, role, created_at, updated_at
		FROM memberships WHERE team_id = ? AND email = ?`, teamID, email)
	return scanMembership(row)
}

// ListMembers returns all memberships of a team ordered by role then email.
func (db *DB) ListMembers(ctx context.Context, teamID string) ([]models.Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT team_id, user_id, email, name, role, created_at, updated_at
		FROM memberships WHERE team_id = ? ORDER BY role, email`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer closeWithLog(rows, "rows")

	members := make([]models.Membership, 0)
	for rows.Next() {
		m, err := scanMembershipRows(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// ChangeMemberRole updates a member's role. Demoting the last owner is
// rejected.
func (db *DB) ChangeMemberRole(ctx context.Context, teamID, userID, role string) error {
	current, err := db.GetMembership(ctx, teamID, userID)
	if err != nil {
		return err
	}

	if current.Role == models.RoleOwner && role != models.RoleOwner {
		owners, err := db.countOwners(ctx, teamID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE memberships SET role = ?, updated_at = ? WHERE team_id = ? AND user_id = ?`,
		role, time.Now().UTC(), teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to change role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrMembershipNotFound
	}

	return nil
}

// RemoveMember deletes a membership. Removing the last owner is rejected.
func (db *DB) RemoveMember(ctx context.Context, teamID, userID string) error {
	current, err := db.GetMembership(ctx, teamID, userID)
	if err != nil {
		return err
	}

	if current.Role == models.RoleOwner {
		owners, err := db.countOwners(ctx, teamID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM memberships WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrMembershipNotFound
	}

	return nil
}

func (db *DB) countOwners(ctx context.Context, teamID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE team_id = ? AND role = ?`,
		teamID, models.RoleOwner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return n, nil
}

func scanMembership(row *sql.Row) (*models.Membership, error) {
	var m models.Membership
	var name sql.NullString
	err := row.Scan(&m.TeamID, &m.UserID, &m.Email, &name, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	m.Name = name.String
	return &m, nil
}

func scanMembershipRows(rows *sql.Rows) (*models.Membership, error) {
	var m models.Membership
	var name sql.NullString
	err := rows.Scan(&m.TeamID, &m.UserID, &m.Email, &name, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	m.Name = name.String
	return &m, nil
}
