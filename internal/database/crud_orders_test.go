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

func newTestOrder(t *testing.T, db *DB, event *models.Event) *models.Order {
	t.Helper()
	tt := event.TicketTypes[0]

	order := &models.Order{
		EventID:       event.ID,
		Email:         "buyer@example.com",
		Currency:      "EUR",
		SubtotalCents: 49900,
		TaxCents:      9481,
		TotalCents:    59381,
		Status:        models.OrderPending,
		ExpiresAt:     time.Now().Add(30 * time.Minute),
		Lines: []models.OrderLine{{
			TicketTypeID:   tt.ID,
			TicketTypeName: tt.Name,
			Quantity:       1,
			UnitPriceCents: tt.PriceCents,
			AttendeeIDs:    []string{"22222222-2222-4222-8222-222222222222"},
		}},
	}
	if err := db.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

func TestOrderCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)
	order := newTestOrder(t, db, event)

	got, err := db.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to get order: %v", err)
	}
	if got.TotalCents != 59381 {
		t.Errorf("expected total 59381, got %d", got.TotalCents)
	}
	if len(got.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(got.Lines))
	}
	if len(got.Lines[0].AttendeeIDs) != 1 {
		t.Errorf("expected 1 attendee id on line, got %d", len(got.Lines[0].AttendeeIDs))
	}

	if err := db.SetOrderIntent(ctx, order.ID, "pi_test_123"); err != nil {
		t.Fatalf("failed to set intent: %v", err)
	}
	byIntent, err := db.GetOrderByIntent(ctx, "pi_test_123")
	if err != nil {
		t.Fatalf("failed to get order by intent: %v", err)
	}
	if byIntent.ID != order.ID {
		t.Errorf("intent lookup returned wrong order")
	}
}

func TestOrderTransitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)
	order := newTestOrder(t, db, event)

	// Illegal edge is rejected before touching the database.
	err := db.TransitionOrder(ctx, order.ID, models.OrderPending, models.OrderPaid)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	steps := []struct{ from, to string }{
		{models.OrderPending, models.OrderAwaitingPayment},
		{models.OrderAwaitingPayment, models.OrderProcessing},
		{models.OrderProcessing, models.OrderPaid},
	}
	for _, s := range steps {
		if err := db.TransitionOrder(ctx, order.ID, s.from, s.to); err != nil {
			t.Fatalf("transition %s -> %s failed: %v", s.from, s.to, err)
		}
	}

	got, err := db.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to get order: %v", err)
	}
	if got.Status != models.OrderPaid {
		t.Errorf("expected status paid, got %s", got.Status)
	}
	if got.PaidAt == nil {
		t.Error("expected paid_at to be set")
	}

	// Stale compare-and-swap: state already moved on.
	err = db.TransitionOrder(ctx, order.ID, models.OrderProcessing, models.OrderFailed)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for stale transition, got %v", err)
	}
}

func TestListExpirableOrders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)

	expired := newTestOrder(t, db, event)
	_, err := db.conn.ExecContext(ctx,
		`UPDATE orders SET expires_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour), expired.ID)
	if err != nil {
		t.Fatalf("failed to backdate order: %v", err)
	}

	orders, err := db.ListExpirableOrders(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("failed to list expirable orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != expired.ID {
		t.Fatalf("expected the backdated order, got %d orders", len(orders))
	}
}

func TestDiscountCodeRedemption(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	event := newTestEvent(t, db)

	code := &models.DiscountCode{
		EventID:        event.ID,
		Code:           "SPEAKER25",
		Kind:           models.DiscountPercent,
		Value:          25,
		MaxRedemptions: 2,
	}
	if err := db.CreateDiscountCode(ctx, code); err != nil {
		t.Fatalf("failed to create discount code: %v", err)
	}

	dup := &models.DiscountCode{EventID: event.ID, Code: "SPEAKER25", Kind: models.DiscountPercent, Value: 10}
	if err := db.CreateDiscountCode(ctx, dup); err != ErrDiscountCodeConflict {
		t.Errorf("expected ErrDiscountCodeConflict, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := db.RedeemDiscountCode(ctx, code.ID); err != nil {
			t.Fatalf("redemption %d failed: %v", i+1, err)
		}
	}
	if err := db.RedeemDiscountCode(ctx, code.ID); err != ErrDiscountExhausted {
		t.Errorf("expected ErrDiscountExhausted, got %v", err)
	}

	if err := db.ReleaseDiscountCode(ctx, code.ID); err != nil {
		t.Fatalf("failed to release redemption: %v", err)
	}
	if err := db.RedeemDiscountCode(ctx, code.ID); err != nil {
		t.Errorf("expected redemption after release, got %v", err)
	}

	if _, err := db.GetDiscountCode(ctx, event.ID, "NOPE"); err != ErrDiscountNotFound {
		t.Errorf("expected ErrDiscountNotFound, got %v", err)
	}
}
