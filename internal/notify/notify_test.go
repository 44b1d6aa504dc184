// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/openconf/registrar/internal/config"
)

func TestMessageRoundTrip(t *testing.T) {
	n := Notification{
		Kind:      KindOrderPaid,
		Recipient: "buyer@example.com",
		Phone:     "+31612345678",
		Subject:   "Your registration is confirmed",
		Body:      "Order abc is paid.",
	}

	msg, err := NewMessage(n)
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}
	if msg.Metadata.Get("kind") != KindOrderPaid {
		t.Errorf("expected kind metadata, got %q", msg.Metadata.Get("kind"))
	}

	got, err := DecodeMessage(msg)
	if err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if *got != n {
		t.Errorf("round trip mismatch: got %+v, want %+v", *got, n)
	}
}

func TestDecodeMessageBadPayload(t *testing.T) {
	msg := message.NewMessage("id", []byte("not json"))
	if _, err := DecodeMessage(msg); err == nil {
		t.Fatal("expected decode error")
	}
}

// fakeChannel records delivered notifications.
type fakeChannel struct {
	mu       sync.Mutex
	enabled  bool
	sent     []Notification
	sendErr  error
	delivery chan struct{}
}

func (f *fakeChannel) Enabled() bool { return f.enabled }

func (f *fakeChannel) Send(_ context.Context, n *Notification) error {
	f.mu.Lock()
	f.sent = append(f.sent, *n)
	f.mu.Unlock()
	if f.delivery != nil {
		f.delivery <- struct{}{}
	}
	return f.sendErr
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestDispatcherRoutesChannels(t *testing.T) {
	email := &fakeChannel{enabled: true, delivery: make(chan struct{}, 4)}
	sms := &fakeChannel{enabled: true, delivery: make(chan struct{}, 4)}

	d := &Dispatcher{
		pubSub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermillLogger{}),
		email:  email,
		sms:    sms,
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Email-only notification.
	msg, err := NewMessage(Notification{Kind: KindOrderPaid, Recipient: "a@example.com", Body: "paid"})
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}
	if err := d.Publisher().Publish(TopicNotifications, msg); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	waitDelivery(t, email.delivery)

	// Notification with phone goes to both channels.
	msg, err = NewMessage(Notification{Kind: KindBookingUpdate, Recipient: "b@example.com", Phone: "+31612345678", Body: "booked"})
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}
	if err := d.Publisher().Publish(TopicNotifications, msg); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	waitDelivery(t, email.delivery)
	waitDelivery(t, sms.delivery)

	if email.count() != 2 {
		t.Errorf("expected 2 email deliveries, got %d", email.count())
	}
	if sms.count() != 1 {
		t.Errorf("expected 1 sms delivery, got %d", sms.count())
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected run error: %v", err)
	}
}

func waitDelivery(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestChannelsDisabledWithoutConfig(t *testing.T) {
	email := NewEmailChannel(&config.EmailConfig{})
	if email.Enabled() {
		t.Error("expected email channel disabled without host")
	}
	sms := NewSMSChannel(&config.SMSConfig{Enabled: true})
	if sms.Enabled() {
		t.Error("expected sms channel disabled without api url")
	}
}
