// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package presence derives online/away/offline indicators from login
// activity. Presence is a heuristic over last-seen timestamps, not a
// connection registry: a user is online when seen recently, away when
// seen within a longer window and offline beyond it.
package presence

import (
	"context"
	"time"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/database"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/metrics"
	"github.com/openconf/registrar/internal/models"
	"github.com/openconf/registrar/internal/ws"
)

// snapshotLimit bounds how many users a sweep considers. Team sizes are
// far below this; it guards against unbounded result sets.
const snapshotLimit = 10000

// Service computes presence snapshots and pushes changes to connected
// dashboards.
type Service struct {
	db  *database.DB
	cfg *config.PresenceConfig
	hub *ws.Hub

	// last maps user ID to the state broadcast for it most recently, so
	// sweeps only push deltas.
	last map[string]string
}

// NewService creates a presence service. The hub may be nil in tests;
// changes are then computed but not pushed.
func NewService(db *database.DB, cfg *config.PresenceConfig, hub *ws.Hub) *Service {
	return &Service{db: db, cfg: cfg, hub: hub, last: make(map[string]string)}
}

// StateAt derives the presence state for one activity row at the given
// instant.
func StateAt(activity *models.LoginActivity, now time.Time, cfg *config.PresenceConfig) string {
	since := now.Sub(activity.LastSeenAt)
	switch {
	case since < cfg.OnlineWithin:
		return models.PresenceOnline
	case since < cfg.AwayWithin:
		return models.PresenceAway
	default:
		return models.PresenceOffline
	}
}

// Snapshot derives presence for every known user at the given instant.
func (s *Service) Snapshot(ctx context.Context, now time.Time) ([]models.Presence, error) {
	activity, err := s.db.ListLoginActivity(ctx, snapshotLimit)
	if err != nil {
		return nil, err
	}

	snapshot := make([]models.Presence, 0, len(activity))
	for i := range activity {
		snapshot = append(snapshot, models.Presence{
			UserID:     activity[i].UserID,
			Email:      activity[i].Email,
			State:      StateAt(&activity[i], now, s.cfg),
			LastSeenAt: activity[i].LastSeenAt,
		})
	}
	return snapshot, nil
}

// Run sweeps on the configured interval until the context is canceled,
// updating gauges and broadcasting state changes.
func (s *Service) Run(ctx context.Context) error {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Sweep once on startup so gauges are populated before the first
	// tick.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "presence-sweeper").Msg("presence sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	snapshot, err := s.Snapshot(ctx, time.Now().UTC())
	if err != nil {
		logging.Error().Err(err).Msg("presence sweep failed")
		return
	}

	var online, away, offline int
	var changed []models.Presence
	for _, p := range snapshot {
		switch p.State {
		case models.PresenceOnline:
			online++
		case models.PresenceAway:
			away++
		default:
			offline++
		}
		if s.last[p.UserID] != p.State {
			s.last[p.UserID] = p.State
			changed = append(changed, p)
		}
	}
	metrics.UpdatePresenceGauges(online, away, offline)

	if len(changed) > 0 && s.hub != nil {
		s.hub.Broadcast(ws.MessageTypePresence, changed)
	}
}
