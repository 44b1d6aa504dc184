// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openconf/registrar/internal/auth"
	"github.com/openconf/registrar/internal/middleware"
)

// Router wires handlers, middleware and routes.
type Router struct {
	handler *Handler
	chimw   *ChiMiddleware
	authn   *auth.Authenticator
}

// NewRouter creates the router.
func NewRouter(handler *Handler, chimw *ChiMiddleware, authn *auth.Authenticator) *Router {
	return &Router{handler: handler, chimw: chimw, authn: authn}
}

// Setup builds the full route tree.
//
// Route groups and their protection:
//   - /api/v1/health, /metrics: public, permissive rate limit
//   - /api/v1/auth: public, strict rate limit
//   - public catalog, checkout and webhook routes: public, standard limit
//   - everything else: authenticated; team-scoped RBAC inside handlers
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chimw.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(rt.chimw.RateLimitHealth())
		r.Get("/", rt.handler.Health)
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	r.With(rt.chimw.RateLimitHealth()).Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(rt.chimw.RateLimitAuth())
		r.Use(middleware.PrometheusMetrics)
		r.Post("/request-link", rt.handler.RequestMagicLink)
		r.Post("/verify", rt.handler.VerifyMagicLink)
	})

	// Public catalog and checkout. Registration and payment are open to
	// unauthenticated attendees.
	r.Route("/api/v1/public", func(r chi.Router) {
		r.Use(rt.chimw.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/events", rt.handler.ListPublishedEvents)
		r.Get("/events/{slug}", rt.handler.GetEventBySlug)
		r.Post("/events/{id}/checkout/quote", rt.handler.QuoteCheckout)
		r.Post("/events/{id}/checkout", rt.handler.BeginCheckout)
		r.Get("/orders/{id}", rt.handler.GetOrder)
	})

	// Gateway callbacks authenticate by HMAC signature, not session.
	r.With(rt.chimw.RateLimit()).
		Post("/api/v1/webhooks/payment", rt.handler.PaymentWebhook)

	// Team-scoped API. Authentication here, RBAC per handler.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.chimw.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(rt.authn.Authenticate)

		r.Route("/teams", func(r chi.Router) {
			r.Post("/", rt.handler.CreateTeam)
			r.Get("/", rt.handler.ListMyTeams)
			r.Get("/{id}/members", rt.handler.ListMembers)
			r.Post("/{id}/members", rt.handler.AddMember)
			r.Put("/{id}/members/{userID}/role", rt.handler.ChangeMemberRole)
			r.Delete("/{id}/members/{userID}", rt.handler.RemoveMember)
			r.Post("/{id}/events", rt.handler.CreateEvent)
		})

		r.Route("/events/{id}", func(r chi.Router) {
			r.Get("/", rt.handler.GetEvent)
			r.Put("/", rt.handler.UpdateEvent)
			r.Delete("/", rt.handler.DeleteEvent)
			r.Post("/publish", rt.handler.PublishEvent)
			r.Post("/archive", rt.handler.ArchiveEvent)

			r.Post("/ticket-types", rt.handler.CreateTicketType)
			r.Put("/ticket-types/{ticketTypeID}", rt.handler.UpdateTicketType)

			r.Get("/attendees", rt.handler.ListAttendees)
			r.Get("/orders", rt.handler.ListOrders)

			r.Post("/discounts", rt.handler.CreateDiscountCode)
			r.Get("/discounts", rt.handler.ListDiscountCodes)

			r.Post("/travel", rt.handler.CreateTravelRequest)
			r.Get("/travel", rt.handler.ListTravelRequests)

			r.Get("/badges", rt.handler.ListBadges)
			r.Post("/checkin", rt.handler.CheckIn)
		})

		r.Route("/attendees/{id}", func(r chi.Router) {
			r.Post("/cancel", rt.handler.CancelAttendee)
			r.Post("/badge", rt.handler.IssueBadge)
		})

		r.Route("/travel/{id}", func(r chi.Router) {
			r.Get("/", rt.handler.GetTravelRequest)
			r.Put("/", rt.handler.UpdateTravelRequest)
			r.Delete("/", rt.handler.DeleteTravelRequest)
			r.Post("/booking", rt.handler.CreateBooking)
			r.Post("/booking/transition", rt.handler.TransitionBooking)
			r.Post("/ticket", rt.handler.MatchTicket)
		})

		r.Route("/badges/{id}", func(r chi.Router) {
			r.Get("/payload", rt.handler.BadgePayload)
			r.Post("/revoke", rt.handler.RevokeBadge)
		})

		r.Get("/presence", rt.handler.Presence)
		r.Get("/ws", rt.handler.WebSocket)
	})

	return r
}
