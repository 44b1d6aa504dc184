// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package travel

import (
	"bytes"
	"context"
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

// Extraction errors
var (
	ErrExtractionUnavailable = errors.New("extraction service unavailable")
	ErrNothingExtracted      = errors.New("no ticket could be extracted from the document")
)

// ExtractionClient calls the hosted document-extraction service that
// turns uploaded tickets and confirmation emails into structured data.
// Calls are circuit-broken with the same policy as the payment gateway.
type ExtractionClient struct {
	cfg        *config.TravelConfig
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*models.ExtractedTicket]
}

// NewExtractionClient creates an extraction client.
func NewExtractionClient(cfg *config.TravelConfig) *ExtractionClient {
	cbName := "ticket-extraction"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*models.ExtractedTicket](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Str("breaker", name).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	})

	return &ExtractionClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

type extractionRequest struct {
	ContentType string `json:"content_type"`
	Document    []byte `json:"document"` // base64 via JSON encoding
}

// Extract submits a document and returns the structured ticket.
func (c *ExtractionClient) Extract(ctx context.Context, contentType string, document []byte) (*models.ExtractedTicket, error) {
	start := time.Now()
	ticket, err := c.cb.Execute(func() (*models.ExtractedTicket, error) {
		return c.doExtract(ctx, contentType, document)
	})
	metrics.RecordExtraction(time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Extraction request rejected")
			return nil, ErrExtractionUnavailable
		}
		return nil, err
	}
	return ticket, nil
}

func (c *ExtractionClient) doExtract(ctx context.Context, contentType string, document []byte) (*models.ExtractedTicket, error) {
	payload, err := json.Marshal(extractionRequest{ContentType: contentType, Document: document})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ExtractionURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ExtractionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrNothingExtracted
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, string(body))
	}

	var ticket models.ExtractedTicket
	if err := json.Unmarshal(body, &ticket); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if ticket.Origin == "" && ticket.Destination == "" && ticket.Date == "" {
		return nil, ErrNothingExtracted
	}

	return &ticket, nil
}
