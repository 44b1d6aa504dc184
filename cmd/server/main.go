// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package main is the entry point for the Registrar server.
//
// Registrar is a self-hosted event management platform: teams publish
// events, attendees register and pay through an external payment
// gateway, speakers submit travel itineraries that are matched against
// uploaded tickets, and on-site staff check attendees in by scanning
// signed badge codes.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered loading via Koanf v2 (defaults, config.yaml, env)
//  2. Database: DuckDB with the full relational schema
//  3. Notifications: Watermill dispatcher for email and SMS delivery
//  4. Checkout: order pricing, gateway handshake, webhook settlement
//  5. Authentication: magic-link token store (BadgerDB) and JWT sessions
//  6. WebSocket hub and presence sweeper for live dashboards
//  7. HTTP server: REST API under /api/v1 plus /metrics
//
// All long-running services run under a Suture supervisor tree so a
// crashing background job restarts without taking the API down.
//
// # Configuration
//
// For JWT authentication (default):
//   - JWT_SECRET: 32+ character secret for session token signing
//
// For payments:
//   - PAYMENT_GATEWAY_URL, PAYMENT_GATEWAY_KEY
//   - PAYMENT_WEBHOOK_SECRET: HMAC key for gateway callbacks
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests, stops background
// sweepers and closes the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/openconf/registrar/internal/api"
	"github.com/openconf/registrar/internal/auth"
	"github.com/openconf/registrar/internal/authz"
	"github.com/openconf/registrar/internal/badge"
	"github.com/openconf/registrar/internal/checkout"
	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/database"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/notify"
	"github.com/openconf/registrar/internal/presence"
	"github.com/openconf/registrar/internal/supervisor"
	"github.com/openconf/registrar/internal/travel"
	"github.com/openconf/registrar/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("gateway_configured", cfg.Checkout.GatewayURL != "").
		Bool("extraction_configured", cfg.Travel.ExtractionURL != "").
		Msg("Configuration loaded")

	if cfg.Security.AuthMode == "none" {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  All endpoints are publicly accessible without authentication.")
		logging.Warn().Msg("  Use this mode for local development only.")
		logging.Warn().Msg("============================================================")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	// Notifications flow through a Watermill pub/sub channel. Checkout
	// and the API publish; the dispatcher consumes and delivers.
	dispatcher := notify.NewDispatcher(&cfg.Email, &cfg.SMS)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing notification dispatcher")
		}
	}()

	checkoutSvc := checkout.NewService(db, &cfg.Checkout, dispatcher.Publisher())

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == "jwt" {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled")
	}

	tokens, err := auth.NewTokenStore(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open magic-link token store")
	}
	defer func() {
		if err := tokens.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing token store")
		}
	}()

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize RBAC enforcer")
	}

	hub := ws.NewHub()
	presenceSvc := presence.NewService(db, &cfg.Presence, hub)

	handler := api.NewHandler(api.Deps{
		DB:        db,
		Config:    cfg,
		Checkout:  checkoutSvc,
		Extractor: travel.NewExtractionClient(&cfg.Travel),
		Signer:    badge.NewSigner(cfg.Badge.SigningSecret),
		Enforcer:  enforcer,
		JWT:       jwtManager,
		Tokens:    tokens,
		Presence:  presenceSvc,
		Hub:       hub,
		Publisher: dispatcher.Publisher(),
	})
	router := api.NewRouter(handler,
		api.NewChiMiddleware(&cfg.Security),
		auth.NewAuthenticator(jwtManager, db, &cfg.Security))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddJob(supervisor.NewOrderExpirySweeper(checkoutSvc, time.Minute))
	tree.AddJob(supervisor.NewRunner("presence-sweeper", presenceSvc.Run))
	tree.AddMessaging(supervisor.NewRunner("ws-hub", hub.Run))
	tree.AddMessaging(supervisor.NewRunner("notify-dispatcher", dispatcher.Run))
	tree.AddAPI(supervisor.NewHTTPService(server, treeCfg.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("addr", server.Addr).
		Str("base_url", cfg.Server.BaseURL).
		Msg("Starting Registrar")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree terminated with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	logging.Info().Msg("Registrar stopped")
}
