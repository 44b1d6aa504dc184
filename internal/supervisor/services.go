// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openconf/registrar/internal/checkout"
	"github.com/openconf/registrar/internal/logging"
)

// Runner adapts a run function to suture.Service. The hub, presence
// sweeper and notification dispatcher all expose Run(ctx) error and are
// wrapped this way.
type Runner struct {
	name string
	run  func(ctx context.Context) error
}

// NewRunner wraps run as a named supervised service.
func NewRunner(name string, run func(ctx context.Context) error) *Runner {
	return &Runner{name: name, run: run}
}

// Serve implements suture.Service.
func (r *Runner) Serve(ctx context.Context) error {
	logging.Info().Str("service", r.name).Msg("Service starting")
	err := r.run(ctx)
	if errors.Is(err, context.Canceled) {
		logging.Info().Str("service", r.name).Msg("Service stopped")
		return err
	}
	if err != nil {
		logging.Error().Str("service", r.name).Err(err).Msg("Service exited with error")
	}
	return err
}

// String names the service in suture logs.
func (r *Runner) String() string { return r.name }

// HTTPService supervises the HTTP server with graceful shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server as a supervised service.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. It blocks until the listener fails
// or the context is canceled, then drains in-flight requests.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
		<-errCh
		logging.Info().Msg("HTTP server stopped")
		return ctx.Err()
	}
}

// String names the service in suture logs.
func (s *HTTPService) String() string { return "http-server" }

// expiryBatch bounds how many unpaid orders one sweep releases.
const expiryBatch = 100

// OrderExpirySweeper periodically expires unpaid orders past their TTL,
// releasing their quota and discount redemptions.
type OrderExpirySweeper struct {
	checkout *checkout.Service
	interval time.Duration
}

// NewOrderExpirySweeper creates the sweeper. A zero interval defaults
// to one minute.
func NewOrderExpirySweeper(svc *checkout.Service, interval time.Duration) *OrderExpirySweeper {
	if interval == 0 {
		interval = time.Minute
	}
	return &OrderExpirySweeper{checkout: svc, interval: interval}
}

// Serve implements suture.Service.
func (s *OrderExpirySweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OrderExpirySweeper) sweep(ctx context.Context) {
	expired, err := s.checkout.ExpireOrders(ctx, expiryBatch)
	if err != nil {
		logging.Error().Err(err).Msg("Order expiry sweep failed")
		return
	}
	if expired > 0 {
		logging.Info().Int("expired", expired).Msg("Expired unpaid orders")
	}
}

// String names the service in suture logs.
func (s *OrderExpirySweeper) String() string { return "order-expiry" }
