// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package ws

import (
	"context"
	"errors"
	"testing"
	"time"
)

// setupHub starts a hub under a cancelable context for a test.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return hub
}

func newFakeClient(hub *Hub) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 64)}
}

func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := setupHub(t)

	client := newFakeClient(hub)
	registerClient(hub, client)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client, got %d", got)
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestHubBroadcastDelivers(t *testing.T) {
	hub := setupHub(t)

	a := newFakeClient(hub)
	b := newFakeClient(hub)
	registerClient(hub, a)
	registerClient(hub, b)

	hub.BroadcastCheckIn("event-1", "attendee-1", "badge-1")

	for _, client := range []*Client{a, b} {
		select {
		case msg := <-client.send:
			if msg.Type != MessageTypeCheckIn {
				t.Errorf("expected %s, got %s", MessageTypeCheckIn, msg.Type)
			}
			data, ok := msg.Data.(CheckInData)
			if !ok {
				t.Fatalf("unexpected payload type %T", msg.Data)
			}
			if data.AttendeeID != "attendee-1" {
				t.Errorf("unexpected attendee %q", data.AttendeeID)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestHubDropsStalledClient(t *testing.T) {
	hub := setupHub(t)

	stalled := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message)}
	registerClient(hub, stalled)

	// Nothing reads stalled.send, so the first fan-out evicts it.
	hub.BroadcastOrderUpdate("order-1", "paid")
	time.Sleep(50 * time.Millisecond)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected stalled client to be dropped, have %d", got)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	client := newFakeClient(hub)
	registerClient(hub, client)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if _, open := <-client.send; open {
		t.Error("expected client send channel to be closed")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after shutdown, got %d", got)
	}
}
