// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package ws pushes live updates to connected dashboards: presence
// changes, check-ins and order state transitions.
package ws

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypePresence = "presence_update"
	MessageTypeCheckIn  = "checkin"
	MessageTypeOrder    = "order_update"
	MessageTypeBooking  = "booking_update"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the envelope for everything sent over a connection.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks connected clients and fans broadcasts out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run it under the supervisor before
// accepting connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run processes client lifecycle events and broadcasts until the
// context is canceled, then closes every client. Lifecycle events are
// drained before broadcasts so client state is consistent when a
// message fans out.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// fanOut delivers a message to every client in ID order. Clients whose
// send buffer is full are dropped; a stalled dashboard must not block
// the hub.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	metrics.WebSocketConnections.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a typed message for all clients. Drops the message
// when the broadcast buffer is full rather than blocking the caller.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	msg := Message{Type: messageType, Data: data}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// CheckInData is the payload of a checkin broadcast.
type CheckInData struct {
	Timestamp  string `json:"timestamp"`
	EventID    string `json:"event_id"`
	AttendeeID string `json:"attendee_id"`
	BadgeID    string `json:"badge_id"`
}

// BroadcastCheckIn notifies clients that an attendee was checked in.
func (h *Hub) BroadcastCheckIn(eventID, attendeeID, badgeID string) {
	h.Broadcast(MessageTypeCheckIn, CheckInData{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		EventID:    eventID,
		AttendeeID: attendeeID,
		BadgeID:    badgeID,
	})
}

// OrderUpdateData is the payload of an order_update broadcast.
type OrderUpdateData struct {
	Timestamp string `json:"timestamp"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

// BroadcastOrderUpdate notifies clients of an order state transition.
func (h *Hub) BroadcastOrderUpdate(orderID, status string) {
	h.Broadcast(MessageTypeOrder, OrderUpdateData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		OrderID:   orderID,
		Status:    status,
	})
}
