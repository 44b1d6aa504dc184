// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import "time"

// Team roles, ordered by privilege. The hierarchy (owner > admin >
// member > viewer) is enforced by the casbin model in internal/authz.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// ValidRole reports whether the role name is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Team is an organizing group that owns events.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership links a user to a team with a role.
type Membership struct {
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateTeamRequest creates a new team; the creator becomes its owner.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

// AddMemberRequest adds or invites a member to a team.
type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=200"`
	Role  string `json:"role" validate:"required,oneof=owner admin member viewer"`
}

// ChangeRoleRequest updates a member's role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner admin member viewer"`
}
