// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package badge

import (
	"errors"
	"strings"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s := NewSigner("badge-signing-secret")

	code := s.Sign("badge-1", "attendee-1")
	if !strings.HasPrefix(code, "v1.") {
		t.Errorf("expected v1 prefix, got %q", code)
	}

	badgeID, attendeeID, err := s.Verify(code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if badgeID != "badge-1" || attendeeID != "attendee-1" {
		t.Errorf("got (%s, %s)", badgeID, attendeeID)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := NewSigner("badge-signing-secret")
	code := s.Sign("badge-1", "attendee-1")

	tests := []struct {
		name string
		code string
		want error
	}{
		{"empty", "", ErrMalformedCode},
		{"missing parts", "v1.onlypayload", ErrMalformedCode},
		{"wrong version", "v9" + code[2:], ErrWrongVersion},
		{"flipped signature", code[:len(code)-4] + "AAAA", ErrBadSignature},
		{"swapped payload", swapPayload(t, s, code), ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := s.Verify(tt.code); !errors.Is(err, tt.want) {
				t.Errorf("Verify(%q) = %v, want %v", tt.code, err, tt.want)
			}
		})
	}
}

// swapPayload grafts another code's payload onto this code's signature.
func swapPayload(t *testing.T, s *Signer, code string) string {
	t.Helper()
	other := s.Sign("badge-2", "attendee-2")
	parts := strings.Split(code, ".")
	otherParts := strings.Split(other, ".")
	return parts[0] + "." + otherParts[1] + "." + parts[2]
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	code := NewSigner("secret-a").Sign("badge-1", "attendee-1")
	if _, _, err := NewSigner("secret-b").Verify(code); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}
