// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"net/http"
	"time"

	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/ws"
)

// Presence returns the current presence snapshot for team dashboards.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.presence.Snapshot(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to compute presence", err)
		return
	}
	respondData(w, http.StatusOK, snapshot)
}

// WebSocket upgrades the connection and registers it with the hub for
// live presence, check-in and order updates.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "live updates are not enabled", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
