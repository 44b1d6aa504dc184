// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package validation

import (
	"strings"
	"testing"
)

type slugStruct struct {
	Slug string `validate:"required,slug"`
}

type codeStruct struct {
	Code string `validate:"required,discount_code"`
}

type iataStruct struct {
	Airport string `validate:"required,iata"`
}

func TestSlugValidator(t *testing.T) {
	tests := []struct {
		name  string
		slug  string
		valid bool
	}{
		{"simple", "gophercon", true},
		{"hyphenated", "gophercon-eu-2026", true},
		{"digits", "2026", true},
		{"uppercase", "GopherCon", false},
		{"leading hyphen", "-gophercon", false},
		{"trailing hyphen", "gophercon-", false},
		{"double hyphen", "gopher--con", false},
		{"spaces", "gopher con", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(slugStruct{Slug: tt.slug})
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.slug, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be rejected", tt.slug)
			}
		})
	}
}

func TestDiscountCodeValidator(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{"plain", "EARLYBIRD", true},
		{"with digits", "SPEAKER25", true},
		{"with hyphen", "TEAM-50", true},
		{"lowercase", "earlybird", false},
		{"too short", "AB", false},
		{"leading hyphen", "-PROMO", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(codeStruct{Code: tt.code})
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.code, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be rejected", tt.code)
			}
		})
	}
}

func TestIATAValidator(t *testing.T) {
	tests := []struct {
		name    string
		airport string
		valid   bool
	}{
		{"AMS", "AMS", true},
		{"SFO", "SFO", true},
		{"lowercase", "ams", false},
		{"too long", "AMST", false},
		{"digits", "A1S", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(iataStruct{Airport: tt.airport})
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.airport, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be rejected", tt.airport)
			}
		})
	}
}

func TestValidateStructNil(t *testing.T) {
	if err := ValidateStruct(slugStruct{Slug: "hello-world"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestToAPIErrorSingleField(t *testing.T) {
	err := ValidateStruct(slugStruct{Slug: "Not A Slug"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("unexpected code %q", apiErr.Code)
	}
	if apiErr.Details["field"] != "Slug" {
		t.Errorf("unexpected field detail %v", apiErr.Details["field"])
	}
	if !strings.Contains(apiErr.Message, "lowercase URL slug") {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	type multi struct {
		Email string `validate:"required,email"`
		Code  string `validate:"required,discount_code"`
	}

	err := ValidateStruct(multi{Email: "not-an-email", Code: "bad code"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields detail, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 fields, got %d", len(fields))
	}
}

func TestTranslateRequired(t *testing.T) {
	err := ValidateStruct(slugStruct{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Slug is required") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
