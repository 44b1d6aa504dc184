// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/openconf/registrar/internal/config"
)

// SMSChannel delivers short notifications through an HTTP SMS provider.
// Outbound calls are throttled with a token bucket so a burst of
// notifications cannot exceed the provider's rate agreement.
type SMSChannel struct {
	cfg        *config.SMSConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSMSChannel creates an SMS channel.
func NewSMSChannel(cfg *config.SMSConfig) *SMSChannel {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &SMSChannel{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Enabled reports whether the channel is configured for delivery.
func (c *SMSChannel) Enabled() bool {
	return c.cfg.Enabled && c.cfg.APIURL != ""
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// Send delivers one notification as an SMS to the notification's phone
// number. Blocks on the rate limiter.
func (c *SMSChannel) Send(ctx context.Context, n *Notification) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	payload, err := json.Marshal(smsRequest{
		To:   n.Phone,
		From: c.cfg.Sender,
		Body: n.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms provider returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
