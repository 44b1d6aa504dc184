// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/metrics"
)

// Magic-link verification errors.
var (
	ErrTokenInvalid = errors.New("magic link token is invalid")
	ErrTokenExpired = errors.New("magic link token has expired")
	ErrTokenUsed    = errors.New("magic link token was already used")
)

const magicLinkKeyPrefix = "magiclink:"

// magicLinkRecord is the stored side of an issued link. Only the bcrypt
// hash of the token secret is persisted.
type magicLinkRecord struct {
	Email      string    `json:"email"`
	SecretHash []byte    `json:"secret_hash"`
	ExpiresAt  time.Time `json:"expires_at"`
	UsedAt     time.Time `json:"used_at,omitempty"`
}

// TokenStore issues and verifies single-use magic-link tokens backed by
// BadgerDB. A token is "<id>.<secret>"; the store keeps only a bcrypt
// hash of the secret, so a copy of the database cannot forge links.
type TokenStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewTokenStore opens the token database. With TokenStoreInMemory set
// the store lives in process memory, for development and tests.
func NewTokenStore(cfg *config.SecurityConfig) (*TokenStore, error) {
	var opts badger.Options
	if cfg.TokenStoreInMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.TokenStorePath)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for magic links: %w", err)
	}

	ttl := cfg.MagicLinkTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenStore{db: db, ttl: ttl}, nil
}

// Close closes the underlying database.
func (s *TokenStore) Close() error {
	return s.db.Close()
}

// Issue creates a single-use token for the email and returns it. The
// token is valid for the configured TTL.
func (s *TokenStore) Issue(email string) (string, error) {
	id := uuid.NewString()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token secret: %w", err)
	}

	record := magicLinkRecord{
		Email:      email,
		SecretHash: hash,
		ExpiresAt:  time.Now().UTC().Add(s.ttl),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		// Records outlive their logical expiry so a late verification
		// can be answered with "expired" instead of "invalid".
		entry := badger.NewEntry([]byte(magicLinkKeyPrefix+id), data).WithTTL(2 * s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store magic link: %w", err)
	}

	metrics.MagicLinksIssued.Inc()
	return id + "." + secret, nil
}

// Verify checks a token and consumes it, returning the email it was
// issued for. A second verification of the same token fails with
// ErrTokenUsed.
func (s *TokenStore) Verify(token string) (string, error) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		metrics.MagicLinkVerifications.WithLabelValues("invalid").Inc()
		return "", ErrTokenInvalid
	}

	var email string
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(magicLinkKeyPrefix + id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("get magic link: %w", err)
		}

		var record magicLinkRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return fmt.Errorf("decode magic link: %w", err)
		}

		if !record.UsedAt.IsZero() {
			return ErrTokenUsed
		}
		if time.Now().UTC().After(record.ExpiresAt) {
			return ErrTokenExpired
		}
		if bcrypt.CompareHashAndPassword(record.SecretHash, []byte(secret)) != nil {
			return ErrTokenInvalid
		}

		// Consume: keep a tombstone so replays are reported as "used".
		record.UsedAt = time.Now().UTC()
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal used magic link: %w", err)
		}
		email = record.Email
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(2 * s.ttl))
	})
	if err != nil {
		metrics.MagicLinkVerifications.WithLabelValues(verificationOutcome(err)).Inc()
		return "", err
	}

	metrics.MagicLinkVerifications.WithLabelValues("ok").Inc()
	return email, nil
}

func verificationOutcome(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenUsed):
		return "used"
	default:
		return "invalid"
	}
}
