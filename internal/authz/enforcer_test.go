// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package authz

import (
	"testing"

	"github.com/openconf/registrar/internal/models"
)

func TestRoleHierarchy(t *testing.T) {
	e, err := NewEnforcer()
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	tests := []struct {
		role     string
		resource string
		action   string
		want     bool
	}{
		// Viewers read everything but write nothing.
		{models.RoleViewer, ResourceEvents, ActionRead, true},
		{models.RoleViewer, ResourceOrders, ActionRead, true},
		{models.RoleViewer, ResourceEvents, ActionWrite, false},
		{models.RoleViewer, ResourceBadges, ActionWrite, false},

		// Members inherit viewer reads and add operational writes.
		{models.RoleMember, ResourceEvents, ActionRead, true},
		{models.RoleMember, ResourceEvents, ActionWrite, true},
		{models.RoleMember, ResourceBadges, ActionWrite, true},
		{models.RoleMember, ResourceOrders, ActionWrite, false},
		{models.RoleMember, ResourceTeam, ActionWrite, false},

		// Admins manage orders, discounts and membership.
		{models.RoleAdmin, ResourceOrders, ActionWrite, true},
		{models.RoleAdmin, ResourceDiscounts, ActionWrite, true},
		{models.RoleAdmin, ResourceEvents, ActionDelete, true},
		{models.RoleAdmin, ResourceTeam, ActionWrite, true},
		{models.RoleAdmin, ResourceTeam, ActionDelete, false},

		// Only owners delete the team; owners inherit everything else.
		{models.RoleOwner, ResourceTeam, ActionDelete, true},
		{models.RoleOwner, ResourceEvents, ActionWrite, true},
		{models.RoleOwner, ResourceOrders, ActionRead, true},

		// Unknown roles get nothing.
		{"stranger", ResourceEvents, ActionRead, false},
	}

	for _, tt := range tests {
		got, err := e.Allows(tt.role, tt.resource, tt.action)
		if err != nil {
			t.Fatalf("Allows(%s, %s, %s): %v", tt.role, tt.resource, tt.action, err)
		}
		if got != tt.want {
			t.Errorf("Allows(%s, %s, %s) = %v, want %v", tt.role, tt.resource, tt.action, got, tt.want)
		}
	}
}
