// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package config provides layered configuration for Registrar using Koanf v2.
//
// Configuration is loaded from three sources, highest priority last:
//
//	1. Built-in defaults
//	2. Config file (config.yaml)
//	3. Environment variables
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Registrar server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Checkout CheckoutConfig `koanf:"checkout"`
	Travel   TravelConfig   `koanf:"travel"`
	Badge    BadgeConfig    `koanf:"badge"`
	Presence PresenceConfig `koanf:"presence"`
	Email    EmailConfig    `koanf:"email"`
	SMS      SMSConfig      `koanf:"sms"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	BaseURL     string        `koanf:"base_url"`
	Environment string        `koanf:"environment"`
}

// IsDevelopment returns true when the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// SecurityConfig holds authentication and API protection settings.
type SecurityConfig struct {
	// AuthMode is "jwt" (default) or "none" (development only).
	AuthMode string `koanf:"auth_mode"`

	// JWTSecret signs session tokens. Must be at least 32 characters
	// when AuthMode is jwt.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// Magic-link settings.
	MagicLinkTTL       time.Duration `koanf:"magic_link_ttl"`
	TokenStorePath     string        `koanf:"token_store_path"`
	TokenStoreInMemory bool          `koanf:"token_store_in_memory"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// CheckoutConfig holds payment gateway and order settings.
type CheckoutConfig struct {
	// GatewayURL is the base URL of the external payment processor API.
	GatewayURL string `koanf:"gateway_url"`

	// GatewayKey authenticates create-intent calls.
	GatewayKey string `koanf:"gateway_key"`

	// WebhookSecret verifies gateway callback signatures (HMAC-SHA256).
	WebhookSecret string `koanf:"webhook_secret"`

	// OrderTTL is how long an unpaid order stays claimable before it
	// expires.
	OrderTTL time.Duration `koanf:"order_ttl"`

	Timeout time.Duration `koanf:"timeout"`
}

// TravelConfig holds the document-extraction service settings.
type TravelConfig struct {
	// ExtractionURL is the base URL of the hosted ticket-extraction API.
	ExtractionURL string        `koanf:"extraction_url"`
	ExtractionKey string        `koanf:"extraction_key"`
	Timeout       time.Duration `koanf:"timeout"`
}

// BadgeConfig holds badge signing settings.
type BadgeConfig struct {
	// SigningSecret keys the HMAC over badge check-in codes.
	SigningSecret string `koanf:"signing_secret"`
}

// PresenceConfig holds the presence heuristic thresholds.
type PresenceConfig struct {
	// OnlineWithin marks a user online if active within this window.
	OnlineWithin time.Duration `koanf:"online_within"`

	// AwayWithin marks a user away if active within this window but not
	// OnlineWithin. Beyond it the user is offline.
	AwayWithin time.Duration `koanf:"away_within"`

	// SweepInterval is how often the sweeper recomputes states.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	StartTLS bool   `koanf:"starttls"`
}

// SMSConfig holds the SMS provider settings.
type SMSConfig struct {
	Enabled bool   `koanf:"enabled"`
	APIURL  string `koanf:"api_url"`
	APIKey  string `koanf:"api_key"`
	Sender  string `koanf:"sender"`

	// RatePerSecond throttles outbound provider calls.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// APIConfig holds pagination defaults.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks security-critical configuration values.
func (c *Config) Validate() error {
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when AUTH_MODE=jwt (got %d)", len(c.Security.JWTSecret))
		}
	case "none":
		// Allowed; main() logs a prominent warning.
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: must be jwt or none", c.Security.AuthMode)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	if c.Checkout.GatewayURL != "" && c.Checkout.WebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required when a payment gateway is configured")
	}

	if c.Presence.OnlineWithin >= c.Presence.AwayWithin {
		return fmt.Errorf("presence online_within (%s) must be shorter than away_within (%s)",
			c.Presence.OnlineWithin, c.Presence.AwayWithin)
	}

	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("invalid API page size configuration (default=%d, max=%d)",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}

	return nil
}
