// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package database

import (
	"context"
	"testing"
	"time"

	"github.com/openconf/registrar/internal/models"
)

// newTestDB opens an in-memory database with the schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewInMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// newTestEvent inserts a published event with one paid and one free
// ticket type and returns it.
func newTestEvent(t *testing.T, db *DB) *models.Event {
	t.Helper()
	ctx := context.Background()

	event := &models.Event{
		TeamID:     "11111111-1111-4111-8111-111111111111",
		Slug:       "gophercon-eu-2026",
		Name:       "GopherCon EU 2026",
		City:       "Berlin",
		Country:    "DE",
		StartsAt:   time.Now().Add(30 * 24 * time.Hour),
		EndsAt:     time.Now().Add(33 * 24 * time.Hour),
		Capacity:   500,
		TaxRateBP:  1900,
		Currency:   "EUR",
		Visibility: models.EventPublished,
	}
	if err := db.CreateEvent(ctx, event); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	paid := &models.TicketType{EventID: event.ID, Name: "Conference", PriceCents: 49900, Quota: 400, Live: true}
	if err := db.CreateTicketType(ctx, paid); err != nil {
		t.Fatalf("failed to create ticket type: %v", err)
	}
	free := &models.TicketType{EventID: event.ID, Name: "Community", PriceCents: 0, Quota: 100, Live: true}
	if err := db.CreateTicketType(ctx, free); err != nil {
		t.Fatalf("failed to create ticket type: %v", err)
	}

	loaded, err := db.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	return loaded
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestEventCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)

	if len(event.TicketTypes) != 2 {
		t.Fatalf("expected 2 ticket types, got %d", len(event.TicketTypes))
	}

	bySlug, err := db.GetEventBySlug(ctx, "gophercon-eu-2026")
	if err != nil {
		t.Fatalf("failed to get event by slug: %v", err)
	}
	if bySlug.ID != event.ID {
		t.Errorf("slug lookup returned wrong event")
	}

	event.Name = "GopherCon Europe 2026"
	if err := db.UpdateEvent(ctx, event); err != nil {
		t.Fatalf("failed to update event: %v", err)
	}

	dup := &models.Event{
		TeamID: event.TeamID, Slug: event.Slug, Name: "Duplicate",
		StartsAt: event.StartsAt, EndsAt: event.EndsAt, Currency: "EUR",
	}
	if err := db.CreateEvent(ctx, dup); err != ErrSlugConflict {
		t.Errorf("expected ErrSlugConflict, got %v", err)
	}

	if err := db.SetEventVisibility(ctx, event.ID, models.EventArchived); err != nil {
		t.Fatalf("failed to archive event: %v", err)
	}

	if _, err := db.GetEvent(ctx, "99999999-9999-4999-8999-999999999999"); err != ErrEventNotFound {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestTicketQuotaGuard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)

	tt := event.TicketTypes[1] // Conference, quota 400 (sorted by price)
	if tt.Quota != 400 {
		tt = event.TicketTypes[0]
	}

	if err := db.IncrementTicketSold(ctx, tt.ID, 399); err != nil {
		t.Fatalf("failed to reserve tickets: %v", err)
	}
	if err := db.IncrementTicketSold(ctx, tt.ID, 2); err != ErrQuotaExhausted {
		t.Errorf("expected ErrQuotaExhausted, got %v", err)
	}
	if err := db.IncrementTicketSold(ctx, tt.ID, 1); err != nil {
		t.Errorf("last unit should be reservable: %v", err)
	}

	if err := db.DecrementTicketSold(ctx, tt.ID, 10); err != nil {
		t.Fatalf("failed to release tickets: %v", err)
	}
	got, err := db.GetTicketType(ctx, tt.ID)
	if err != nil {
		t.Fatalf("failed to get ticket type: %v", err)
	}
	if got.Sold != 390 {
		t.Errorf("expected sold=390, got %d", got.Sold)
	}
}

func TestAttendeeLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)
	tt := event.TicketTypes[0]

	a := &models.Attendee{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		Email:        "dev@example.com",
		Name:         "Dana Developer",
		Status:       models.AttendeePending,
	}
	if err := db.CreateAttendee(ctx, a); err != nil {
		t.Fatalf("failed to create attendee: %v", err)
	}

	dup := &models.Attendee{EventID: event.ID, TicketTypeID: tt.ID, Email: "dev@example.com", Name: "Dup"}
	if err := db.CreateAttendee(ctx, dup); err != ErrAlreadyRegistered {
		t.Errorf("expected ErrAlreadyRegistered, got %v", err)
	}

	if err := db.UpdateAttendeeStatus(ctx, a.ID, models.AttendeeConfirmed); err != nil {
		t.Fatalf("failed to confirm attendee: %v", err)
	}

	n, err := db.CountActiveAttendees(ctx, event.ID)
	if err != nil {
		t.Fatalf("failed to count attendees: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 active attendee, got %d", n)
	}

	now := time.Now()
	if err := db.CheckInAttendee(ctx, a.ID, now); err != nil {
		t.Fatalf("failed to check in: %v", err)
	}
	if err := db.CheckInAttendee(ctx, a.ID, now); err != ErrAlreadyCheckedIn {
		t.Errorf("expected ErrAlreadyCheckedIn, got %v", err)
	}
}

func TestPromoteWaitlisted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)
	tt := event.TicketTypes[0]

	for i, email := range []string{"w1@example.com", "w2@example.com", "w3@example.com"} {
		a := &models.Attendee{
			EventID:      event.ID,
			TicketTypeID: tt.ID,
			Email:        email,
			Name:         "Waitlisted",
			Status:       models.AttendeeWaitlisted,
		}
		if err := db.CreateAttendee(ctx, a); err != nil {
			t.Fatalf("failed to create attendee %d: %v", i, err)
		}
		// Distinct created_at for FIFO ordering.
		time.Sleep(2 * time.Millisecond)
	}

	promoted, err := db.PromoteWaitlisted(ctx, event.ID, 2)
	if err != nil {
		t.Fatalf("failed to promote waitlist: %v", err)
	}
	if len(promoted) != 2 {
		t.Fatalf("expected 2 promoted, got %d", len(promoted))
	}
	if promoted[0].Email != "w1@example.com" || promoted[1].Email != "w2@example.com" {
		t.Errorf("waitlist not promoted in FIFO order: %s, %s", promoted[0].Email, promoted[1].Email)
	}

	remaining, err := db.ListAttendees(ctx, event.ID, models.AttendeeWaitlisted, 10, 0)
	if err != nil {
		t.Fatalf("failed to list waitlisted: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected 1 remaining waitlisted, got %d", len(remaining))
	}
}

func TestWaitlistedEmailBlocksReRegistration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)
	tt := event.TicketTypes[0]

	a := &models.Attendee{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		Email:        "queued@example.com",
		Name:         "Queued",
		Status:       models.AttendeeWaitlisted,
	}
	if err := db.CreateAttendee(ctx, a); err != nil {
		t.Fatalf("failed to waitlist attendee: %v", err)
	}

	for _, status := range []string{models.AttendeeWaitlisted, models.AttendeePending} {
		dup := &models.Attendee{EventID: event.ID, TicketTypeID: tt.ID, Email: "queued@example.com", Name: "Dup", Status: status}
		if err := db.CreateAttendee(ctx, dup); err != ErrAlreadyRegistered {
			t.Errorf("status %s: expected ErrAlreadyRegistered, got %v", status, err)
		}
	}

	// A cancelled spot frees the email again.
	if err := db.UpdateAttendeeStatus(ctx, a.ID, models.AttendeeCancelled); err != nil {
		t.Fatalf("failed to cancel attendee: %v", err)
	}
	again := &models.Attendee{EventID: event.ID, TicketTypeID: tt.ID, Email: "queued@example.com", Name: "Again", Status: models.AttendeePending}
	if err := db.CreateAttendee(ctx, again); err != nil {
		t.Errorf("cancelled email should be able to register again: %v", err)
	}
}
