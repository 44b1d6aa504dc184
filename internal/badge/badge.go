// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package badge issues and verifies signed badge codes. A code is a
// versioned, HMAC-SHA256 signed token embedded in the badge QR and
// verified server-side at check-in.
package badge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// CodeVersion is the current badge code format version.
const CodeVersion = 1

// Signer errors
var (
	ErrMalformedCode = errors.New("malformed badge code")
	ErrBadSignature  = errors.New("badge code signature mismatch")
	ErrWrongVersion  = errors.New("unsupported badge code version")
)

// Signer signs and verifies badge codes.
type Signer struct {
	secret []byte
}

// NewSigner creates a badge signer from the configured secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign produces a badge code binding a badge ID to an attendee ID.
// Format: v<version>.<payload>.<signature>, with payload and signature
// base64url-encoded.
func (s *Signer) Sign(badgeID, attendeeID string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(badgeID + ":" + attendeeID))
	sig := s.sign(payload)
	return fmt.Sprintf("v%d.%s.%s", CodeVersion, payload, sig)
}

// Verify checks a scanned code and returns the badge and attendee IDs it
// binds.
func (s *Signer) Verify(code string) (badgeID, attendeeID string, err error) {
	parts := strings.Split(code, ".")
	if len(parts) != 3 {
		return "", "", ErrMalformedCode
	}
	if parts[0] != fmt.Sprintf("v%d", CodeVersion) {
		return "", "", ErrWrongVersion
	}

	expected := s.sign(parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return "", "", ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", ErrMalformedCode
	}
	badgeID, attendeeID, ok := strings.Cut(string(raw), ":")
	if !ok || badgeID == "" || attendeeID == "" {
		return "", "", ErrMalformedCode
	}

	return badgeID, attendeeID, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
