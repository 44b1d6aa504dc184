// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package travel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/models"
)

func newExtractionServer(t *testing.T, handler http.HandlerFunc) *ExtractionClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewExtractionClient(&config.TravelConfig{
		ExtractionURL: srv.URL,
		ExtractionKey: "key",
		Timeout:       5 * time.Second,
	})
}

func TestExtractOK(t *testing.T) {
	client := newExtractionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/extract" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.ExtractedTicket{
			Passenger:   "Sam Speaker",
			Origin:      "Amsterdam",
			Destination: "Berlin",
			Date:        "2026-09-14",
			Time:        "10:30",
			Flight:      "KL1771",
			Confidence:  0.93,
		})
	})

	ticket, err := client.Extract(context.Background(), "application/pdf", []byte("document"))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if ticket.Origin != "Amsterdam" || ticket.Flight != "KL1771" {
		t.Errorf("unexpected ticket: %+v", ticket)
	}
}

func TestExtractNothingFound(t *testing.T) {
	client := newExtractionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := client.Extract(context.Background(), "application/pdf", []byte("document"))
	if !errors.Is(err, ErrNothingExtracted) {
		t.Fatalf("expected ErrNothingExtracted, got %v", err)
	}
}

func TestExtractEmptyTicketRejected(t *testing.T) {
	client := newExtractionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.ExtractedTicket{Passenger: "Someone"})
	})

	_, err := client.Extract(context.Background(), "application/pdf", []byte("document"))
	if !errors.Is(err, ErrNothingExtracted) {
		t.Fatalf("expected ErrNothingExtracted for empty ticket, got %v", err)
	}
}

func TestExtractServerError(t *testing.T) {
	client := newExtractionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.Extract(context.Background(), "application/pdf", []byte("document")); err == nil {
		t.Fatal("expected error from failing service")
	}
}
