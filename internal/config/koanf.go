// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/registrar/config.yaml",
	"/etc/registrar/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8480,
			Timeout:     30 * time.Second,
			BaseURL:     "http://localhost:8480",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/registrar.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Security: SecurityConfig{
			AuthMode:           "jwt",
			JWTSecret:          "",
			SessionTimeout:     24 * time.Hour,
			MagicLinkTTL:       15 * time.Minute,
			TokenStorePath:     "/data/tokens",
			TokenStoreInMemory: false,
			RateLimitReqs:      100,
			RateLimitWindow:    time.Minute,
			RateLimitDisabled:  false,
			CORSOrigins:        []string{"*"},
		},
		Checkout: CheckoutConfig{
			GatewayURL:    "",
			GatewayKey:    "",
			WebhookSecret: "",
			OrderTTL:      30 * time.Minute,
			Timeout:       15 * time.Second,
		},
		Travel: TravelConfig{
			ExtractionURL: "",
			ExtractionKey: "",
			Timeout:       30 * time.Second,
		},
		Badge: BadgeConfig{
			SigningSecret: "",
		},
		Presence: PresenceConfig{
			OnlineWithin:  5 * time.Minute,
			AwayWithin:    30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Email: EmailConfig{
			Enabled:  false,
			Port:     587,
			FromName: "Registrar",
			StartTLS: true,
		},
		SMS: SMSConfig{
			Enabled:       false,
			RatePerSecond: 1,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources
// (defaults → config file → environment variables) and validates the
// result.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when set from environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps flat environment variable names to nested koanf
// config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - JWT_SECRET -> security.jwt_secret
//   - PAYMENT_GATEWAY_URL -> checkout.gateway_url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":   "server.host",
		"http_port":   "server.port",
		"server_url":  "server.base_url",
		"environment": "server.environment",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Security
		"auth_mode":             "security.auth_mode",
		"jwt_secret":            "security.jwt_secret",
		"session_timeout":       "security.session_timeout",
		"magic_link_ttl":        "security.magic_link_ttl",
		"token_store_path":      "security.token_store_path",
		"token_store_in_memory": "security.token_store_in_memory",
		"rate_limit_reqs":       "security.rate_limit_reqs",
		"rate_limit_window":     "security.rate_limit_window",
		"disable_rate_limit":    "security.rate_limit_disabled",
		"cors_origins":          "security.cors_origins",

		// Checkout / payment gateway
		"payment_gateway_url":    "checkout.gateway_url",
		"payment_gateway_key":    "checkout.gateway_key",
		"payment_webhook_secret": "checkout.webhook_secret",
		"order_ttl":              "checkout.order_ttl",
		"payment_timeout":        "checkout.timeout",

		// Travel extraction service
		"extraction_url":     "travel.extraction_url",
		"extraction_api_key": "travel.extraction_key",
		"extraction_timeout": "travel.timeout",

		// Badges
		"badge_signing_secret": "badge.signing_secret",

		// Presence
		"presence_online_within":  "presence.online_within",
		"presence_away_within":    "presence.away_within",
		"presence_sweep_interval": "presence.sweep_interval",

		// Email
		"smtp_enabled":   "email.enabled",
		"smtp_host":      "email.host",
		"smtp_port":      "email.port",
		"smtp_username":  "email.username",
		"smtp_password":  "email.password",
		"smtp_from":      "email.from",
		"smtp_from_name": "email.from_name",
		"smtp_starttls":  "email.starttls",

		// SMS
		"sms_enabled":         "sms.enabled",
		"sms_api_url":         "sms.api_url",
		"sms_api_key":         "sms.api_key",
		"sms_sender":          "sms.sender",
		"sms_rate_per_second": "sms.rate_per_second",

		// API
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown env vars are ignored rather than polluting the config tree.
	return ""
}
