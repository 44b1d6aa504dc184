// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package config

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	return cfg
}

func TestDefaultsValidateWithSecret(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with secret should validate: %v", err)
	}
}

func TestValidateJWTSecretLength(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short JWT secret")
	}
}

func TestValidateAuthModeNone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.AuthMode = "none"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("auth mode none should validate without secret: %v", err)
	}
}

func TestValidateInvalidAuthMode(t *testing.T) {
	cfg := validTestConfig()
	cfg.Security.AuthMode = "basic"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported auth mode")
	}
}

func TestValidateGatewayRequiresWebhookSecret(t *testing.T) {
	cfg := validTestConfig()
	cfg.Checkout.GatewayURL = "https://pay.example.com"
	cfg.Checkout.WebhookSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when gateway configured without webhook secret")
	}

	cfg.Checkout.WebhookSecret = "whsec_test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePresenceThresholdOrdering(t *testing.T) {
	cfg := validTestConfig()
	cfg.Presence.OnlineWithin = time.Hour
	cfg.Presence.AwayWithin = 30 * time.Minute
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when online_within >= away_within")
	}
}

func TestValidatePortRange(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"valid", 8480, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too large", 70000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Server.Port = tt.port
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"PAYMENT_GATEWAY_URL", "checkout.gateway_url"},
		{"EXTRACTION_URL", "travel.extraction_url"},
		{"PRESENCE_ONLINE_WITHIN", "presence.online_within"},
		{"SMTP_HOST", "email.host"},
		{"UNKNOWN_VARIABLE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("k", 40))
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Errorf("cors origins = %v, want 2 entries", cfg.Security.CORSOrigins)
	}
}
