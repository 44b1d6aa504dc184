// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package models

import "time"

// Order states. Transitions are enforced by OrderCanTransition:
//
//	pending -> awaiting_payment -> processing -> paid
//	                            \-> failed
//	pending|awaiting_payment -> expired (after checkout.order_ttl)
const (
	OrderPending         = "pending"
	OrderAwaitingPayment = "awaiting_payment"
	OrderProcessing      = "processing"
	OrderPaid            = "paid"
	OrderFailed          = "failed"
	OrderExpired         = "expired"
)

// orderTransitions lists the allowed edges of the order state machine.
var orderTransitions = map[string][]string{
	OrderPending:         {OrderAwaitingPayment, OrderExpired, OrderFailed},
	OrderAwaitingPayment: {OrderProcessing, OrderExpired, OrderFailed},
	OrderProcessing:      {OrderPaid, OrderFailed},
}

// OrderCanTransition reports whether an order may move from one state to
// another. Terminal states (paid, failed, expired) have no outgoing edges.
func OrderCanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderIsTerminal reports whether the state has no outgoing transitions.
func OrderIsTerminal(state string) bool {
	return len(orderTransitions[state]) == 0
}

// Order is a checkout for one or more attendees of a single event.
// All monetary amounts are integer minor units (cents).
type Order struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Email   string `json:"email"`

	Lines []OrderLine `json:"lines"`

	Currency      string `json:"currency"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`

	DiscountCode string `json:"discount_code,omitempty"`
	Status       string `json:"status"`

	// GatewayIntentID is the payment processor's intent identifier from
	// the create-intent handshake.
	GatewayIntentID string `json:"gateway_intent_id,omitempty"`

	FailureReason string     `json:"failure_reason,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OrderLine is one ticket-type purchase within an order.
type OrderLine struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	TicketTypeID   string `json:"ticket_type_id"`
	TicketTypeName string `json:"ticket_type_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`

	// AttendeeIDs are the registrations this line pays for, one per
	// quantity unit.
	AttendeeIDs []string `json:"attendee_ids,omitempty"`
}

// Discount code kinds.
const (
	DiscountPercent = "percent"
	DiscountAmount  = "amount"
)

// DiscountCode is a promotional code scoped to a single event.
type DiscountCode struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Code    string `json:"code"`

	// Kind is percent or amount. For percent, Value is whole percent
	// (1-100); for amount, Value is cents off the subtotal.
	Kind  string `json:"kind"`
	Value int64  `json:"value"`

	MaxRedemptions int        `json:"max_redemptions"`
	Redeemed       int        `json:"redeemed"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Usable reports whether the code can be redeemed at the given time.
func (d *DiscountCode) Usable(now time.Time) bool {
	if d.MaxRedemptions > 0 && d.Redeemed >= d.MaxRedemptions {
		return false
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// CheckoutRequest starts an order for one or more attendees (group
// checkout submits several attendees in a single request).
type CheckoutRequest struct {
	Email        string            `json:"email" validate:"required,email"`
	DiscountCode string            `json:"discount_code" validate:"omitempty,discount_code"`
	Attendees    []RegisterRequest `json:"attendees" validate:"required,min=1,max=50,dive"`
}

// CheckoutQuote is the priced breakdown returned before payment starts.
type CheckoutQuote struct {
	Currency      string `json:"currency"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
}

// GatewayWebhook is the payment processor's callback payload.
type GatewayWebhook struct {
	IntentID string `json:"intent_id"`
	Status   string `json:"status"` // succeeded | failed
	Reason   string `json:"reason,omitempty"`
}
