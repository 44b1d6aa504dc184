// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package notify

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/openconf/registrar/internal/config"
	"github.com/openconf/registrar/internal/logging"
	"github.com/openconf/registrar/internal/metrics"
)

// channel is a delivery backend.
type channel interface {
	Enabled() bool
	Send(ctx context.Context, n *Notification) error
}

// Dispatcher consumes the notification topic and fans messages out to
// the configured channels. Delivery errors are logged and counted, never
// retried into the producer's request path.
type Dispatcher struct {
	pubSub *gochannel.GoChannel
	email  channel
	sms    channel
}

// NewDispatcher creates a dispatcher with an in-process pub/sub. The
// returned Dispatcher also serves as the publisher handed to producers.
func NewDispatcher(emailCfg *config.EmailConfig, smsCfg *config.SMSConfig) *Dispatcher {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger{},
	)
	return &Dispatcher{
		pubSub: pubSub,
		email:  NewEmailChannel(emailCfg),
		sms:    NewSMSChannel(smsCfg),
	}
}

// Publisher returns the message publisher producers should use.
func (d *Dispatcher) Publisher() message.Publisher {
	return d.pubSub
}

// Run consumes notifications until the context is cancelled. Intended to
// run under the supervisor.
func (d *Dispatcher) Run(ctx context.Context) error {
	messages, err := d.pubSub.Subscribe(ctx, TopicNotifications)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			d.handle(ctx, msg)
			msg.Ack()
		}
	}
}

// Close shuts down the pub/sub, releasing subscribers.
func (d *Dispatcher) Close() error {
	return d.pubSub.Close()
}

func (d *Dispatcher) handle(ctx context.Context, msg *message.Message) {
	n, err := DecodeMessage(msg)
	if err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable notification")
		return
	}

	if d.email.Enabled() && n.Recipient != "" {
		if err := d.email.Send(ctx, n); err != nil {
			metrics.NotificationErrors.WithLabelValues("email").Inc()
			logging.Error().Err(err).Str("kind", n.Kind).Msg("Email delivery failed")
		} else {
			metrics.NotificationsSent.WithLabelValues("email").Inc()
		}
	}

	if d.sms.Enabled() && n.Phone != "" {
		if err := d.sms.Send(ctx, n); err != nil {
			metrics.NotificationErrors.WithLabelValues("sms").Inc()
			logging.Error().Err(err).Str("kind", n.Kind).Msg("SMS delivery failed")
		} else {
			metrics.NotificationsSent.WithLabelValues("sms").Inc()
		}
	}
}

// watermillLogger adapts watermill's logger interface onto zerolog.
type watermillLogger struct{}

func (watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	logging.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (watermillLogger) Info(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (watermillLogger) Debug(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (watermillLogger) Trace(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return l
}
