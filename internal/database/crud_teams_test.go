// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openconf/registrar/internal/models"
)

func TestTeamAndMembershipCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	team := &models.Team{Name: "Gopher Events"}
	owner := &models.Membership{Email: "owner@example.com", Name: "Olive Owner"}
	if err := db.CreateTeam(ctx, team, owner); err != nil {
		t.Fatalf("failed to create team: %v", err)
	}
	if owner.Role != models.RoleOwner {
		t.Errorf("expected creator role owner, got %s", owner.Role)
	}

	member := &models.Membership{TeamID: team.ID, Email: "member@example.com", Role: models.RoleMember}
	if err := db.AddMember(ctx, member); err != nil {
		t.Fatalf("failed to add member: %v", err)
	}

	dup := &models.Membership{TeamID: team.ID, UserID: member.UserID, Email: "member@example.com", Role: models.RoleViewer}
	if err := db.AddMember(ctx, dup); !errors.Is(err, ErrMemberExists) {
		t.Errorf("expected ErrMemberExists, got %v", err)
	}

	members, err := db.ListMembers(ctx, team.ID)
	if err != nil {
		t.Fatalf("failed to list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	teams, err := db.ListTeamsForUser(ctx, member.UserID)
	if err != nil {
		t.Fatalf("failed to list teams for user: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != team.ID {
		t.Errorf("expected the member's team, got %d teams", len(teams))
	}

	if err := db.ChangeMemberRole(ctx, team.ID, member.UserID, models.RoleAdmin); err != nil {
		t.Fatalf("failed to change role: %v", err)
	}
	got, err := db.GetMembership(ctx, team.ID, member.UserID)
	if err != nil {
		t.Fatalf("failed to get membership: %v", err)
	}
	if got.Role != models.RoleAdmin {
		t.Errorf("expected role admin, got %s", got.Role)
	}
}

func TestLastOwnerProtection(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	team := &models.Team{Name: "Solo Org"}
	owner := &models.Membership{Email: "solo@example.com"}
	if err := db.CreateTeam(ctx, team, owner); err != nil {
		t.Fatalf("failed to create team: %v", err)
	}

	if err := db.ChangeMemberRole(ctx, team.ID, owner.UserID, models.RoleMember); !errors.Is(err, ErrLastOwner) {
		t.Errorf("expected ErrLastOwner on demote, got %v", err)
	}
	if err := db.RemoveMember(ctx, team.ID, owner.UserID); !errors.Is(err, ErrLastOwner) {
		t.Errorf("expected ErrLastOwner on remove, got %v", err)
	}

	// A second owner unblocks both operations.
	second := &models.Membership{TeamID: team.ID, Email: "co@example.com", Role: models.RoleOwner}
	if err := db.AddMember(ctx, second); err != nil {
		t.Fatalf("failed to add second owner: %v", err)
	}
	if err := db.ChangeMemberRole(ctx, team.ID, owner.UserID, models.RoleMember); err != nil {
		t.Errorf("demote with two owners should succeed: %v", err)
	}
}

func TestTravelRequestCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)

	req := &models.TravelRequest{
		EventID:      event.ID,
		SpeakerName:  "Sam Speaker",
		SpeakerEmail: "sam@example.com",
		Segments: []models.TravelSegment{
			{OriginCity: "Amsterdam", OriginIATA: "AMS", DestinationCity: "Berlin", DestinationIATA: "BER", Date: "2026-09-14", EarliestTime: "08:00", LatestTime: "14:00"},
			{OriginCity: "Berlin", DestinationCity: "Amsterdam", Date: "2026-09-18"},
		},
	}
	if err := db.CreateTravelRequest(ctx, req); err != nil {
		t.Fatalf("failed to create travel request: %v", err)
	}

	got, err := db.GetTravelRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("failed to get travel request: %v", err)
	}
	if len(got.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got.Segments))
	}
	if got.Booking != nil {
		t.Error("expected no booking yet")
	}

	booking := &models.Booking{RequestID: req.ID, Carrier: "KLM", PNR: "ABC123"}
	if err := db.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}
	if err := db.CreateBooking(ctx, &models.Booking{RequestID: req.ID}); !errors.Is(err, ErrBookingExists) {
		t.Errorf("expected ErrBookingExists, got %v", err)
	}

	if err := db.TransitionBooking(ctx, booking.ID, models.BookingPending, models.BookingBooked); err != nil {
		t.Fatalf("failed to mark booked: %v", err)
	}
	if err := db.TransitionBooking(ctx, booking.ID, models.BookingPending, models.BookingConfirmed); !errors.Is(err, ErrInvalidBookingTransition) {
		t.Errorf("expected ErrInvalidBookingTransition, got %v", err)
	}
	if err := db.TransitionBooking(ctx, booking.ID, models.BookingBooked, models.BookingConfirmed); err != nil {
		t.Fatalf("failed to confirm booking: %v", err)
	}

	got, err = db.GetTravelRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("failed to reload travel request: %v", err)
	}
	if got.Booking == nil || got.Booking.Status != models.BookingConfirmed {
		t.Error("expected confirmed booking attached to request")
	}
}

func TestBadgeCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)

	badge := &models.Badge{
		AttendeeID: "33333333-3333-4333-8333-333333333333",
		EventID:    event.ID,
		Name:       "Dana Developer",
		Org:        "Example Corp",
		Code:       "v1.abc.def",
	}
	if err := db.CreateBadge(ctx, badge); err != nil {
		t.Fatalf("failed to create badge: %v", err)
	}

	// Re-issue revokes the previous badge.
	second := &models.Badge{
		AttendeeID: badge.AttendeeID,
		EventID:    event.ID,
		Name:       "Dana Developer",
		Code:       "v1.ghi.jkl",
	}
	if err := db.CreateBadge(ctx, second); err != nil {
		t.Fatalf("failed to re-issue badge: %v", err)
	}

	first, err := db.GetBadge(ctx, badge.ID)
	if err != nil {
		t.Fatalf("failed to get first badge: %v", err)
	}
	if !first.Revoked {
		t.Error("expected first badge to be revoked after re-issue")
	}

	active, err := db.GetActiveBadgeByAttendee(ctx, badge.AttendeeID)
	if err != nil {
		t.Fatalf("failed to get active badge: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("expected second badge active, got %s", active.ID)
	}

	if err := db.RevokeBadge(ctx, second.ID); err != nil {
		t.Fatalf("failed to revoke badge: %v", err)
	}
	if err := db.RevokeBadge(ctx, second.ID); !errors.Is(err, ErrBadgeRevoked) {
		t.Errorf("expected ErrBadgeRevoked, got %v", err)
	}
}

func TestLoginActivityUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID := "44444444-4444-4444-8444-444444444444"
	login := mustParseTime(t, "2026-08-23T08:00:00Z")
	later := mustParseTime(t, "2026-08-23T09:30:00Z")

	if err := db.TouchLoginActivity(ctx, userID, "user@example.com", login, true); err != nil {
		t.Fatalf("failed to record login: %v", err)
	}
	if err := db.TouchLoginActivity(ctx, userID, "user@example.com", later, false); err != nil {
		t.Fatalf("failed to record activity: %v", err)
	}

	got, err := db.GetLoginActivity(ctx, userID)
	if err != nil {
		t.Fatalf("failed to get login activity: %v", err)
	}
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("expected last_seen_at %v, got %v", later, got.LastSeenAt)
	}
	if !got.LastLogin.Equal(login) {
		t.Errorf("expected last_login %v, got %v", login, got.LastLogin)
	}

	all, err := db.ListLoginActivity(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list login activity: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 row, got %d", len(all))
	}
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	tv, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", s, err)
	}
	return tv
}
