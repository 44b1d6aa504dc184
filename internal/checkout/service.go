// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/database"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/metrics"
	"github.com/openconf/registrar/internal/models"
	"github.com/openconf/registrar/internal/notify"
)

// Checkout errors
var (
	ErrEventNotOpen      = errors.New("event does not accept registrations")
	ErrEventFull         = errors.New("event is at capacity")
	ErrTicketNotLive     = errors.New("ticket type is not on sale")
	ErrTicketWrongEvent  = errors.New("ticket type does not belong to this event")
	ErrDiscountNotUsable = errors.New("discount code is not usable")
	ErrUnknownIntent     = errors.New("webhook references an unknown payment intent")
	ErrBadWebhookStatus  = errors.New("webhook carries an unknown status")
)

// Service orchestrates checkout: quota reservation, pricing, the gateway
// handshake and the order state machine.
type Service struct {
	db        *database.DB
	gateway   *GatewayClient
	publisher message.Publisher
	orderTTL  time.Duration
}

// NewService creates a checkout service. publisher may be nil, in which
// case no notifications are emitted.
func NewService(db *database.DB, cfg *config.CheckoutConfig, publisher message.Publisher) *Service {
	ttl := cfg.OrderTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{
		db:        db,
		gateway:   NewGatewayClient(cfg),
		publisher: publisher,
		orderTTL:  ttl,
	}
}

// Quote prices a checkout request without side effects.
func (s *Service) Quote(ctx context.Context, eventID string, req *models.CheckoutRequest) (*models.CheckoutQuote, error) {
	event, lines, err := s.buildLines(ctx, eventID, req)
	if err != nil {
		return nil, err
	}

	discount, err := s.resolveDiscount(ctx, event.ID, req.DiscountCode)
	if err != nil {
		return nil, err
	}

	quote := ComputeQuote(event.Currency, lines, discount, event.TaxRateBP)
	return &quote, nil
}

// Begin starts a checkout: reserves quota, registers the attendees as
// pending, prices the order and stores it. Zero-total orders are settled
// immediately; paid orders move to awaiting_payment with a gateway
// intent attached.
func (s *Service) Begin(ctx context.Context, eventID string, req *models.CheckoutRequest) (*models.Order, *PaymentIntent, error) {
	event, lines, err := s.buildLines(ctx, eventID, req)
	if err != nil {
		return nil, nil, err
	}
	if !event.AcceptsRegistrations() {
		return nil, nil, ErrEventNotOpen
	}

	if event.Capacity > 0 {
		active, err := s.db.CountActiveAttendees(ctx, event.ID)
		if err != nil {
			return nil, nil, err
		}
		if active+len(req.Attendees) > event.Capacity {
			return nil, nil, ErrEventFull
		}
	}

	discount, err := s.resolveDiscount(ctx, event.ID, req.DiscountCode)
	if err != nil {
		return nil, nil, err
	}

	reserved, err := s.reserveQuota(ctx, lines)
	if err != nil {
		s.releaseQuota(ctx, reserved)
		return nil, nil, err
	}

	if discount != nil {
		if err := s.db.RedeemDiscountCode(ctx, discount.ID); err != nil {
			s.releaseQuota(ctx, reserved)
			if errors.Is(err, database.ErrDiscountExhausted) {
				return nil, nil, ErrDiscountNotUsable
			}
			return nil, nil, err
		}
	}

	quote := ComputeQuote(event.Currency, lines, discount, event.TaxRateBP)

	order := &models.Order{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		Email:         req.Email,
		Currency:      quote.Currency,
		SubtotalCents: quote.SubtotalCents,
		DiscountCents: quote.DiscountCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		DiscountCode:  req.DiscountCode,
		Status:        models.OrderPending,
		ExpiresAt:     time.Now().Add(s.orderTTL).UTC(),
		Lines:         lines,
	}

	attendees, err := s.registerAttendees(ctx, event.ID, req.Attendees, order)
	if err != nil {
		s.discardAttendees(ctx, attendees)
		s.releaseQuota(ctx, reserved)
		s.releaseDiscount(ctx, discount)
		return nil, nil, err
	}

	if err := s.db.CreateOrder(ctx, order); err != nil {
		s.discardAttendees(ctx, attendees)
		s.releaseQuota(ctx, reserved)
		s.releaseDiscount(ctx, discount)
		return nil, nil, err
	}
	metrics.OrdersCreated.Inc()

	if order.TotalCents == 0 {
		if err := s.settleFree(ctx, order); err != nil {
			return nil, nil, err
		}
		return order, nil, nil
	}

	intent, err := s.startPayment(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	return order, intent, nil
}

// startPayment moves the order to awaiting_payment and performs the
// create-intent handshake.
func (s *Service) startPayment(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	if err := s.transition(ctx, order, models.OrderAwaitingPayment); err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, order)
	if err != nil {
		if failErr := s.fail(ctx, order, "gateway create-intent failed"); failErr != nil {
			logging.Ctx(ctx).Error().Err(failErr).Str("order_id", order.ID).Msg("Failed to mark order failed")
		}
		return nil, err
	}

	if err := s.db.SetOrderIntent(ctx, order.ID, intent.IntentID); err != nil {
		return nil, err
	}
	order.GatewayIntentID = intent.IntentID

	return intent, nil
}

// settleFree marks a zero-total order paid and confirms its attendees.
func (s *Service) settleFree(ctx context.Context, order *models.Order) error {
	for _, to := range []string{models.OrderAwaitingPayment, models.OrderProcessing, models.OrderPaid} {
		if err := s.transition(ctx, order, to); err != nil {
			return err
		}
	}
	return s.confirmOrder(ctx, order)
}

// HandleWebhook verifies and applies a gateway callback.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string, hook *models.GatewayWebhook) error {
	if err := s.gateway.VerifyWebhookSignature(body, signature); err != nil {
		return err
	}

	order, err := s.db.GetOrderByIntent(ctx, hook.IntentID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return ErrUnknownIntent
		}
		return err
	}

	// Webhooks can arrive late; a terminal order absorbs them silently.
	if models.OrderIsTerminal(order.Status) {
		logging.Ctx(ctx).Info().Str("order_id", order.ID).Str("status", order.Status).Msg("Webhook for settled order ignored")
		return nil
	}

	if order.Status == models.OrderAwaitingPayment {
		if err := s.transition(ctx, order, models.OrderProcessing); err != nil {
			return err
		}
	}

	switch hook.Status {
	case "succeeded":
		if err := s.transition(ctx, order, models.OrderPaid); err != nil {
			return err
		}
		return s.confirmOrder(ctx, order)
	case "failed":
		reason := hook.Reason
		if reason == "" {
			reason = "payment declined"
		}
		return s.failWithRollback(ctx, order, reason)
	default:
		return fmt.Errorf("%w: %s", ErrBadWebhookStatus, hook.Status)
	}
}

// ExpireOrders expires overdue unpaid orders, releasing their quota and
// discount redemptions and cancelling their attendees. Returns how many
// orders were expired.
func (s *Service) ExpireOrders(ctx context.Context, batch int) (int, error) {
	orders, err := s.db.ListExpirableOrders(ctx, time.Now(), batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range orders {
		order := &orders[i]
		if err := s.db.TransitionOrder(ctx, order.ID, order.Status, models.OrderExpired); err != nil {
			// Lost the race with a webhook; skip.
			logging.Ctx(ctx).Debug().Err(err).Str("order_id", order.ID).Msg("Order no longer expirable")
			continue
		}
		metrics.OrderTransitions.WithLabelValues(models.OrderExpired).Inc()
		metrics.OrdersExpired.Inc()

		if err := s.rollbackOrder(ctx, order, models.AttendeeCancelled); err != nil {
			return expired, err
		}
		expired++
	}

	return expired, nil
}

func (s *Service) buildLines(ctx context.Context, eventID string, req *models.CheckoutRequest) (*models.Event, []models.OrderLine, error) {
	event, err := s.db.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}

	// Group attendees by ticket type preserving first-seen order.
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, a := range req.Attendees {
		if _, seen := counts[a.TicketTypeID]; !seen {
			order = append(order, a.TicketTypeID)
		}
		counts[a.TicketTypeID]++
	}

	lines := make([]models.OrderLine, 0, len(order))
	for _, ttID := range order {
		tt, err := s.db.GetTicketType(ctx, ttID)
		if err != nil {
			return nil, nil, err
		}
		if tt.EventID != event.ID {
			return nil, nil, ErrTicketWrongEvent
		}
		if !tt.Live {
			return nil, nil, ErrTicketNotLive
		}
		lines = append(lines, models.OrderLine{
			TicketTypeID:   tt.ID,
			TicketTypeName: tt.Name,
			Quantity:       counts[ttID],
			UnitPriceCents: tt.PriceCents,
		})
	}

	return event, lines, nil
}

func (s *Service) resolveDiscount(ctx context.Context, eventID, code string) (*models.DiscountCode, error) {
	if code == "" {
		return nil, nil
	}
	discount, err := s.db.GetDiscountCode(ctx, eventID, code)
	if err != nil {
		return nil, err
	}
	if !discount.Usable(time.Now()) {
		return nil, ErrDiscountNotUsable
	}
	return discount, nil
}

// reserveQuota reserves each line's quantity. On failure the caller
// releases the partial reservation it returns.
func (s *Service) reserveQuota(ctx context.Context, lines []models.OrderLine) ([]models.OrderLine, error) {
	reserved := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		if err := s.db.IncrementTicketSold(ctx, line.TicketTypeID, line.Quantity); err != nil {
			return reserved, err
		}
		reserved = append(reserved, line)
	}
	return reserved, nil
}

func (s *Service) releaseQuota(ctx context.Context, lines []models.OrderLine) {
	for _, line := range lines {
		if err := s.db.DecrementTicketSold(ctx, line.TicketTypeID, line.Quantity); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("ticket_type_id", line.TicketTypeID).Msg("Failed to release ticket quota")
		}
	}
}

func (s *Service) releaseDiscount(ctx context.Context, discount *models.DiscountCode) {
	if discount == nil {
		return
	}
	if err := s.db.ReleaseDiscountCode(ctx, discount.ID); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("discount_id", discount.ID).Msg("Failed to release discount redemption")
	}
}

// registerAttendees inserts the order's attendees as pending, already
// linked to the order. On failure it returns the rows created so far so
// the caller can discard them.
func (s *Service) registerAttendees(ctx context.Context, eventID string, reqs []models.RegisterRequest, order *models.Order) ([]*models.Attendee, error) {
	byType := make(map[string][]string)
	attendees := make([]*models.Attendee, 0, len(reqs))

	for i := range reqs {
		r := &reqs[i]
		a := &models.Attendee{
			EventID:      eventID,
			TicketTypeID: r.TicketTypeID,
			Email:        r.Email,
			Name:         r.Name,
			Organization: r.Organization,
			Dietary:      r.Dietary,
			Status:       models.AttendeePending,
			OrderID:      order.ID,
		}
		if err := s.db.CreateAttendee(ctx, a); err != nil {
			return attendees, err
		}
		attendees = append(attendees, a)
		byType[r.TicketTypeID] = append(byType[r.TicketTypeID], a.ID)
	}

	for i := range order.Lines {
		order.Lines[i].AttendeeIDs = byType[order.Lines[i].TicketTypeID]
	}

	return attendees, nil
}

// discardAttendees cancels registrations left behind by a checkout that
// did not complete, keeping the emails free to register again.
func (s *Service) discardAttendees(ctx context.Context, attendees []*models.Attendee) {
	for _, a := range attendees {
		if err := s.db.UpdateAttendeeStatus(ctx, a.ID, models.AttendeeCancelled); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("attendee_id", a.ID).Msg("Failed to discard attendee")
		}
	}
}

// confirmOrder confirms an order's attendees and emits the paid
// notification.
func (s *Service) confirmOrder(ctx context.Context, order *models.Order) error {
	if err := s.db.UpdateAttendeeStatusByOrder(ctx, order.ID, models.AttendeeConfirmed); err != nil {
		return err
	}

	s.publish(ctx, notify.Notification{
		Kind:      notify.KindOrderPaid,
		Recipient: order.Email,
		Subject:   "Your registration is confirmed",
		Body:      fmt.Sprintf("Order %s is paid. Total: %d %s (minor units).", order.ID, order.TotalCents, order.Currency),
	})

	logging.Ctx(ctx).Info().Str("order_id", order.ID).Int64("total_cents", order.TotalCents).Msg("Order paid")
	return nil
}

// failWithRollback marks an order failed, releases what it held and
// notifies the buyer.
func (s *Service) failWithRollback(ctx context.Context, order *models.Order, reason string) error {
	if err := s.fail(ctx, order, reason); err != nil {
		return err
	}

	s.publish(ctx, notify.Notification{
		Kind:      notify.KindOrderFailed,
		Recipient: order.Email,
		Subject:   "Payment failed",
		Body:      fmt.Sprintf("Payment for order %s failed: %s", order.ID, reason),
	})

	return nil
}

// fail marks an order failed with the stored reason and rolls back its
// holds without notifying the buyer, used when the gateway handshake
// itself errors.
func (s *Service) fail(ctx context.Context, order *models.Order, reason string) error {
	if err := s.transition(ctx, order, models.OrderFailed); err != nil {
		return err
	}
	if err := s.db.SetOrderFailureReason(ctx, order.ID, reason); err != nil {
		return err
	}
	return s.rollbackOrder(ctx, order, models.AttendeeCancelled)
}

// rollbackOrder releases quota and discount and moves the order's
// attendees to the given status.
func (s *Service) rollbackOrder(ctx context.Context, order *models.Order, attendeeStatus string) error {
	s.releaseQuota(ctx, order.Lines)

	if order.DiscountCode != "" {
		discount, err := s.db.GetDiscountCode(ctx, order.EventID, order.DiscountCode)
		if err == nil {
			s.releaseDiscount(ctx, discount)
		}
	}

	return s.db.UpdateAttendeeStatusByOrder(ctx, order.ID, attendeeStatus)
}

func (s *Service) transition(ctx context.Context, order *models.Order, to string) error {
	if err := s.db.TransitionOrder(ctx, order.ID, order.Status, to); err != nil {
		return err
	}
	order.Status = to
	metrics.OrderTransitions.WithLabelValues(to).Inc()
	return nil
}

func (s *Service) publish(ctx context.Context, n notify.Notification) {
	if s.publisher == nil {
		return
	}
	msg, err := notify.NewMessage(n)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to build notification message")
		return
	}
	if err := s.publisher.Publish(notify.TopicNotifications, msg); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to publish notification")
	}
}
