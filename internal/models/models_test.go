// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import (
	"testing"
	"time"
)

func TestOrderCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"pending to awaiting", OrderPending, OrderAwaitingPayment, true},
		{"awaiting to processing", OrderAwaitingPayment, OrderProcessing, true},
		{"processing to paid", OrderProcessing, OrderPaid, true},
		{"processing to failed", OrderProcessing, OrderFailed, true},
		{"pending to expired", OrderPending, OrderExpired, true},
		{"awaiting to expired", OrderAwaitingPayment, OrderExpired, true},
		{"pending straight to paid", OrderPending, OrderPaid, false},
		{"paid to anything", OrderPaid, OrderFailed, false},
		{"expired to awaiting", OrderExpired, OrderAwaitingPayment, false},
		{"failed to paid", OrderFailed, OrderPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrderCanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("OrderCanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestOrderIsTerminal(t *testing.T) {
	for _, state := range []string{OrderPaid, OrderFailed, OrderExpired} {
		if !OrderIsTerminal(state) {
			t.Errorf("expected %s to be terminal", state)
		}
	}
	for _, state := range []string{OrderPending, OrderAwaitingPayment, OrderProcessing} {
		if OrderIsTerminal(state) {
			t.Errorf("did not expect %s to be terminal", state)
		}
	}
}

func TestBookingCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"pending to booked", BookingPending, BookingBooked, true},
		{"booked to confirmed", BookingBooked, BookingConfirmed, true},
		{"pending to cancelled", BookingPending, BookingCancelled, true},
		{"booked to cancelled", BookingBooked, BookingCancelled, true},
		{"pending straight to confirmed", BookingPending, BookingConfirmed, false},
		{"confirmed to cancelled", BookingConfirmed, BookingCancelled, false},
		{"cancelled to booked", BookingCancelled, BookingBooked, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BookingCanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("BookingCanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestDiscountCodeUsable(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		code DiscountCode
		want bool
	}{
		{"no limits", DiscountCode{}, true},
		{"within window", DiscountCode{ValidFrom: &past, ValidUntil: &future}, true},
		{"not yet valid", DiscountCode{ValidFrom: &future}, false},
		{"expired", DiscountCode{ValidUntil: &past}, false},
		{"redemptions left", DiscountCode{MaxRedemptions: 10, Redeemed: 9}, true},
		{"exhausted", DiscountCode{MaxRedemptions: 10, Redeemed: 10}, false},
		{"unlimited redemptions", DiscountCode{MaxRedemptions: 0, Redeemed: 1000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.Usable(now); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventAcceptsRegistrations(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"published upcoming", Event{Visibility: EventPublished, EndsAt: future}, true},
		{"draft", Event{Visibility: EventDraft, EndsAt: future}, false},
		{"archived", Event{Visibility: EventArchived, EndsAt: future}, false},
		{"published but over", Event{Visibility: EventPublished, EndsAt: past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.AcceptsRegistrations(); got != tt.want {
				t.Errorf("AcceptsRegistrations() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleOwner, RoleAdmin, RoleMember, RoleViewer} {
		if !ValidRole(role) {
			t.Errorf("expected %s to be valid", role)
		}
	}
	if ValidRole("superuser") {
		t.Error("did not expect superuser to be valid")
	}
}
