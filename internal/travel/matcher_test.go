// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package travel

import (
	"testing"

	"github.com/openconf/registrar/internal/models"
)

func segment() models.TravelSegment {
	return models.TravelSegment{
		ID:              "seg-1",
		OriginCity:      "Amsterdam",
		OriginIATA:      "AMS",
		DestinationCity: "Berlin",
		DestinationIATA: "BER",
		Date:            "2026-09-14",
		EarliestTime:    "08:00",
		LatestTime:      "14:00",
	}
}

func TestMatchTicketVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		ticket  models.ExtractedTicket
		verdict string
	}{
		{
			name: "perfect match",
			ticket: models.ExtractedTicket{
				Origin: "Amsterdam", Destination: "Berlin",
				Date: "2026-09-14", Time: "10:30", Confidence: 0.95,
			},
			verdict: models.MatchOK,
		},
		{
			name: "airport names instead of cities",
			ticket: models.ExtractedTicket{
				Origin: "Amsterdam Schiphol", Destination: "Berlin Brandenburg Airport",
				Date: "2026-09-14", Time: "09:00", Confidence: 0.9,
			},
			verdict: models.MatchOK,
		},
		{
			name: "iata codes only",
			ticket: models.ExtractedTicket{
				Origin: "AMS", Destination: "BER",
				Date: "2026-09-14", Time: "10:00", Confidence: 0.9,
			},
			verdict: models.MatchOK,
		},
		{
			name: "date off by one stays reviewable",
			ticket: models.ExtractedTicket{
				Origin: "Amsterdam", Destination: "Berlin",
				Date: "2026-09-15", Time: "10:00", Confidence: 0.9,
			},
			verdict: models.MatchOK, // 0.4 + 0.2 + 0.2 = 0.8
		},
		{
			name: "wrong destination needs review",
			ticket: models.ExtractedTicket{
				Origin: "Amsterdam", Destination: "Munich",
				Date: "2026-09-14", Time: "10:00", Confidence: 0.9,
			},
			verdict: models.MatchReview, // high score but a wrong endpoint caps at review
		},
		{
			name: "wrong cities and date mismatch",
			ticket: models.ExtractedTicket{
				Origin: "Lisbon", Destination: "Porto",
				Date: "2026-10-01", Time: "10:00", Confidence: 0.9,
			},
			verdict: models.MatchMismatch,
		},
		{
			name: "time outside window drags score",
			ticket: models.ExtractedTicket{
				Origin: "Amsterdam", Destination: "Munich",
				Date: "2026-09-15", Time: "22:00", Confidence: 0.9,
			},
			verdict: models.MatchMismatch, // 0.2 + 0.2 + 0 = 0.4
		},
		{
			name: "low confidence demotes match to review",
			ticket: models.ExtractedTicket{
				Origin: "Amsterdam", Destination: "Berlin",
				Date: "2026-09-14", Time: "10:00", Confidence: 0.3,
			},
			verdict: models.MatchReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := segment()
			got := MatchTicket(&seg, &tt.ticket)
			if got.Verdict != tt.verdict {
				t.Errorf("verdict = %s (score %.2f), want %s", got.Verdict, got.Score, tt.verdict)
			}
		})
	}
}

func TestMatchTicketFlags(t *testing.T) {
	seg := segment()

	r := MatchTicket(&seg, &models.ExtractedTicket{
		Origin: "Amsterdam", Destination: "Berlin", Date: "2026-09-13", Time: "10:00",
	})
	if !r.DateOffByOne {
		t.Error("expected DateOffByOne for previous-day ticket")
	}
	if r.DateMatch {
		t.Error("did not expect DateMatch")
	}

	// Slack widens the window by 3 hours: 16:59 passes, 17:01 fails.
	r = MatchTicket(&seg, &models.ExtractedTicket{
		Origin: "Amsterdam", Destination: "Berlin", Date: "2026-09-14", Time: "16:59",
	})
	if !r.TimeInWindow {
		t.Error("expected 16:59 within slack of latest 14:00")
	}
	r = MatchTicket(&seg, &models.ExtractedTicket{
		Origin: "Amsterdam", Destination: "Berlin", Date: "2026-09-14", Time: "17:01",
	})
	if r.TimeInWindow {
		t.Error("expected 17:01 outside slack of latest 14:00")
	}
}

func TestMatchTicketNoWindow(t *testing.T) {
	seg := segment()
	seg.EarliestTime = ""
	seg.LatestTime = ""

	r := MatchTicket(&seg, &models.ExtractedTicket{
		Origin: "Amsterdam", Destination: "Berlin", Date: "2026-09-14", Time: "23:55",
	})
	if r.Verdict != models.MatchOK {
		t.Errorf("no requested window should not penalize: %s (%.2f)", r.Verdict, r.Score)
	}
}

func TestCityMatchDiacritics(t *testing.T) {
	tests := []struct {
		city, iata, ticket string
		want               bool
	}{
		{"Zürich", "", "Zurich", true},
		{"Malmö", "", "MALMO", true},
		{"São Paulo", "", "Sao Paulo GRU", true},
		{"New York", "JFK", "New York JFK", true},
		{"New York", "JFK", "JFK", true},
		{"Berlin", "", "Hamburg", false},
		{"Berlin", "", "", false},
	}

	for _, tt := range tests {
		if got := cityMatch(tt.city, tt.iata, tt.ticket); got != tt.want {
			t.Errorf("cityMatch(%q, %q, %q) = %v, want %v", tt.city, tt.iata, tt.ticket, got, tt.want)
		}
	}
}

func TestMatchBestPicksHighestScore(t *testing.T) {
	outbound := segment()
	ret := models.TravelSegment{
		ID:              "seg-2",
		OriginCity:      "Berlin",
		DestinationCity: "Amsterdam",
		Date:            "2026-09-18",
	}

	ticket := models.ExtractedTicket{
		Origin: "Berlin", Destination: "Amsterdam", Date: "2026-09-18", Confidence: 0.9,
	}
	best := MatchBest([]models.TravelSegment{outbound, ret}, &ticket)
	if best.SegmentID != "seg-2" {
		t.Errorf("expected return segment to win, got %s", best.SegmentID)
	}
	if best.Verdict != models.MatchOK {
		t.Errorf("expected match, got %s (%.2f)", best.Verdict, best.Score)
	}
}

func TestDateOffset(t *testing.T) {
	if got := dateOffset("2026-09-14", "2026-09-15"); got != 1 {
		t.Errorf("expected +1, got %d", got)
	}
	if got := dateOffset("2026-09-14", "2026-09-13"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
	if got := dateOffset("2026-09-14", "garbage"); got != 1<<20 {
		t.Errorf("expected sentinel for unparseable date, got %d", got)
	}
}
