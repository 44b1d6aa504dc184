// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package notify delivers transactional messages (email and SMS) off the
// request path. Producers publish Notification payloads to a watermill
// topic; the Dispatcher consumes them and routes to the right channel.
package notify

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// TopicNotifications is the watermill topic all notifications go through.
const TopicNotifications = "notifications"

// Notification kinds.
const (
	KindOrderPaid         = "order.paid"
	KindOrderFailed       = "order.failed"
	KindMagicLink         = "auth.magic_link"
	KindBookingUpdate     = "travel.booking_update"
	KindWaitlistPromoted  = "registration.waitlist_promoted"
	KindTravelMatchReview = "travel.match_review"
)

// Notification is the payload published to TopicNotifications.
// Recipient is an email address; Phone, when set, additionally routes the
// message through SMS.
type Notification struct {
	Kind      string `json:"kind"`
	Recipient string `json:"recipient"`
	Phone     string `json:"phone,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// NewMessage wraps a notification in a watermill message.
func NewMessage(n Notification) (*message.Message, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", n.Kind)
	return msg, nil
}

// DecodeMessage unpacks a notification from a watermill message.
func DecodeMessage(msg *message.Message) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &n, nil
}
