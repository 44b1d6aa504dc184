// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package checkout

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/metrics"
	"github.com/openconf/registrar/internal/models"
)

// Gateway errors
var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
)

// PaymentIntent is the gateway's response to a create-intent call.
type PaymentIntent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

// GatewayClient talks to the external payment processor. Calls are
// wrapped in a circuit breaker so a degraded gateway fails checkout fast
// instead of tying up request handlers.
type GatewayClient struct {
	cfg        *config.CheckoutConfig
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*PaymentIntent]
}

// NewGatewayClient creates a payment gateway client.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewGatewayClient(cfg *config.CheckoutConfig) *GatewayClient {
	cbName := "payment-gateway"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*PaymentIntent](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Str("breaker", name).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	})

	return &GatewayClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// createIntentRequest is the gateway's create-intent payload.
type createIntentRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
}

// CreateIntent performs the create-intent handshake for an order and
// returns the gateway's intent.
func (g *GatewayClient) CreateIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	start := time.Now()
	intent, err := g.cb.Execute(func() (*PaymentIntent, error) {
		return g.doCreateIntent(ctx, order)
	})
	metrics.RecordGatewayRequest("create_intent", time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Gateway request rejected")
			return nil, ErrGatewayUnavailable
		}
		return nil, err
	}
	return intent, nil
}

func (g *GatewayClient) doCreateIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	payload, err := json.Marshal(createIntentRequest{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		Email:       order.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.GatewayURL+"/v1/intents", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.GatewayKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var intent PaymentIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if intent.IntentID == "" {
		return nil, errors.New("gateway response missing intent_id")
	}

	return &intent, nil
}

// VerifyWebhookSignature checks the gateway's HMAC-SHA256 signature over
// the raw callback body. The signature header carries lowercase hex.
func (g *GatewayClient) VerifyWebhookSignature(body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
