// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package metrics provides Prometheus instrumentation for API requests,
// checkout processing, travel extraction, notifications and presence.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Checkout Metrics
	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Total number of checkout orders created",
		},
	)

	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_order_transitions_total",
			Help: "Total number of order state transitions",
		},
		[]string{"to"},
	)

	OrdersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_orders_expired_total",
			Help: "Total number of orders expired by the sweeper",
		},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Payment gateway request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	GatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_errors_total",
			Help: "Total number of payment gateway errors",
		},
		[]string{"operation"},
	)

	// Travel Metrics
	ExtractionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_extraction_requests_total",
			Help: "Total number of ticket extraction requests",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "travel_extraction_duration_seconds",
			Help:    "Ticket extraction request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	MatchVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_match_verdicts_total",
			Help: "Total number of itinerary match verdicts",
		},
		[]string{"verdict"}, // "match", "review", "mismatch"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips to open",
		},
		[]string{"name"},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"channel"}, // "email", "sms"
	)

	NotificationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_errors_total",
			Help: "Total number of notification delivery failures",
		},
		[]string{"channel"},
	)

	// Presence Metrics
	PresenceUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_users",
			Help: "Current number of users per presence state",
		},
		[]string{"state"}, // "online", "away", "offline"
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	// Auth Metrics
	MagicLinksIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_magic_links_issued_total",
			Help: "Total number of magic links issued",
		},
	)

	MagicLinkVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_magic_link_verifications_total",
			Help: "Total number of magic link verification attempts",
		},
		[]string{"outcome"}, // "ok", "expired", "invalid", "used"
	)
)

// RecordAPIRequest records counter and duration for one API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordGatewayRequest records one payment gateway call.
func RecordGatewayRequest(operation string, duration time.Duration, err error) {
	GatewayRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		GatewayErrors.WithLabelValues(operation).Inc()
	}
}

// RecordExtraction records one ticket extraction call.
func RecordExtraction(duration time.Duration, err error) {
	ExtractionDuration.Observe(duration.Seconds())
	if err != nil {
		ExtractionRequests.WithLabelValues("error").Inc()
	} else {
		ExtractionRequests.WithLabelValues("ok").Inc()
	}
}

// UpdatePresenceGauges replaces the per-state presence counts.
func UpdatePresenceGauges(online, away, offline int) {
	PresenceUsers.WithLabelValues("online").Set(float64(online))
	PresenceUsers.WithLabelValues("away").Set(float64(away))
	PresenceUsers.WithLabelValues("offline").Set(float64(offline))
}
