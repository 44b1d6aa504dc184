// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package travel coordinates speaker travel: itinerary requests, the
// ticket-extraction service and cross-checking extracted tickets against
// requested segments.
package travel

import (
	"fmt"
	"strings"
	"time"

	"github.com/openconf/registrar/internal/metrics"
	"github.com/openconf/registrar/internal/models"
)

// Match weights and thresholds. A weighted score >= matchThreshold is a
// match, >= reviewThreshold needs a human look, anything below is a
// mismatch.
const (
	weightCity = 0.4
	weightDate = 0.4
	weightTime = 0.2

	matchThreshold  = 0.75
	reviewThreshold = 0.5

	// timeSlack widens the requested departure window when comparing the
	// ticket's time; airlines shift schedules and extractions are noisy.
	timeSlack = 3 * time.Hour
)

// MatchTicket cross-checks an extracted ticket against one requested
// segment and returns a scored verdict.
func MatchTicket(seg *models.TravelSegment, ticket *models.ExtractedTicket) models.MatchResult {
	result := models.MatchResult{SegmentID: seg.ID}

	originOK := cityMatch(seg.OriginCity, seg.OriginIATA, ticket.Origin)
	destOK := cityMatch(seg.DestinationCity, seg.DestinationIATA, ticket.Destination)
	result.OriginMatch = originOK
	result.DestinationMatch = destOK

	cityScore := 0.0
	if originOK && destOK {
		cityScore = 1.0
	} else if originOK || destOK {
		cityScore = 0.5
	}

	dateScore := 0.0
	switch dateOffset(seg.Date, ticket.Date) {
	case 0:
		result.DateMatch = true
		dateScore = 1.0
	case 1, -1:
		result.DateOffByOne = true
		dateScore = 0.5
		result.Notes = append(result.Notes, "ticket date is one day off the requested date")
	}

	timeScore := 0.0
	if inWindow, known := timeInWindow(seg.EarliestTime, seg.LatestTime, ticket.Time); known {
		result.TimeInWindow = inWindow
		if inWindow {
			timeScore = 1.0
		} else {
			result.Notes = append(result.Notes, "departure time outside the requested window")
		}
	} else {
		// No window requested or no time extracted; don't penalize.
		result.TimeInWindow = true
		timeScore = 1.0
	}

	result.Score = weightCity*cityScore + weightDate*dateScore + weightTime*timeScore

	switch {
	case result.Score >= matchThreshold:
		result.Verdict = models.MatchOK
	case result.Score >= reviewThreshold:
		result.Verdict = models.MatchReview
	default:
		result.Verdict = models.MatchMismatch
	}

	// A clean match requires both endpoints; a high score with a wrong
	// city still goes to a human.
	if result.Verdict == models.MatchOK && (!originOK || !destOK) {
		result.Verdict = models.MatchReview
	}

	if ticket.Confidence > 0 && ticket.Confidence < 0.5 && result.Verdict == models.MatchOK {
		result.Verdict = models.MatchReview
		result.Notes = append(result.Notes, fmt.Sprintf("low extraction confidence (%.2f)", ticket.Confidence))
	}

	metrics.MatchVerdicts.WithLabelValues(result.Verdict).Inc()
	return result
}

// MatchBest scores the ticket against every segment of a request and
// returns the best result.
func MatchBest(segments []models.TravelSegment, ticket *models.ExtractedTicket) models.MatchResult {
	var best models.MatchResult
	best.Verdict = models.MatchMismatch
	for i := range segments {
		r := MatchTicket(&segments[i], ticket)
		if r.Score > best.Score || best.SegmentID == "" {
			best = r
		}
	}
	return best
}

// cityMatch compares a ticket's location string against the requested
// city and optional IATA code. The comparison is case- and
// diacritic-insensitive and tolerates containment in either direction
// ("Berlin" vs "Berlin Brandenburg Airport").
func cityMatch(city, iata, ticketLoc string) bool {
	loc := normalize(ticketLoc)
	if loc == "" {
		return false
	}

	if iata != "" && strings.Contains(strings.ToUpper(ticketLoc), strings.ToUpper(iata)) {
		return true
	}

	want := normalize(city)
	if want == "" {
		return false
	}
	if loc == want || strings.Contains(loc, want) || strings.Contains(want, loc) {
		return true
	}

	return tokenOverlap(want, loc)
}

// tokenOverlap reports whether any significant token is shared between
// the two normalized location strings ("new york" vs "york jfk").
func tokenOverlap(a, b string) bool {
	bTokens := make(map[string]bool)
	for _, tok := range strings.Fields(b) {
		if len(tok) >= 3 {
			bTokens[tok] = true
		}
	}
	for _, tok := range strings.Fields(a) {
		if len(tok) >= 3 && bTokens[tok] {
			return true
		}
	}
	return false
}

// normalize lowercases and strips common diacritics and punctuation.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch r {
		case 'á', 'à', 'â', 'ä', 'ã', 'å':
			b.WriteRune('a')
		case 'é', 'è', 'ê', 'ë':
			b.WriteRune('e')
		case 'í', 'ì', 'î', 'ï':
			b.WriteRune('i')
		case 'ó', 'ò', 'ô', 'ö', 'õ', 'ø':
			b.WriteRune('o')
		case 'ú', 'ù', 'û', 'ü':
			b.WriteRune('u')
		case 'ñ':
			b.WriteRune('n')
		case 'ç':
			b.WriteRune('c')
		case ',', '.', '-', '/', '(', ')':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// dateOffset returns the signed day difference between the ticket date
// and the requested date, or a large sentinel when either fails to parse.
func dateOffset(requested, ticket string) int {
	reqDay, err1 := time.Parse("2006-01-02", requested)
	tickDay, err2 := time.Parse("2006-01-02", ticket)
	if err1 != nil || err2 != nil {
		return 1 << 20
	}
	return int(tickDay.Sub(reqDay).Hours() / 24)
}

// timeInWindow checks the ticket time against the requested window
// widened by timeSlack. The second return is false when there is nothing
// to compare (no window requested, or no time extracted).
func timeInWindow(earliest, latest, ticketTime string) (bool, bool) {
	if ticketTime == "" || (earliest == "" && latest == "") {
		return false, false
	}

	tt, err := time.Parse("15:04", ticketTime)
	if err != nil {
		return false, false
	}

	if earliest != "" {
		e, err := time.Parse("15:04", earliest)
		if err == nil && tt.Before(e.Add(-timeSlack)) {
			return false, true
		}
	}
	if latest != "" {
		l, err := time.Parse("15:04", latest)
		if err == nil && tt.After(l.Add(timeSlack)) {
			return false, true
		}
	}
	return true, true
}
