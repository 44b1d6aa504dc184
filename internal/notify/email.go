// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/openconf/registrar/internal/config"
)

// EmailChannel delivers notifications via SMTP.
type EmailChannel struct {
	cfg         *config.EmailConfig
	dialTimeout time.Duration
}

// NewEmailChannel creates an SMTP email channel.
func NewEmailChannel(cfg *config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		cfg:         cfg,
		dialTimeout: 30 * time.Second,
	}
}

// Enabled reports whether the channel is configured for delivery.
func (c *EmailChannel) Enabled() bool {
	return c.cfg.Enabled && c.cfg.Host != ""
}

// Send delivers one notification as a plain-text email.
func (c *EmailChannel) Send(ctx context.Context, n *Notification) error {
	msg := c.buildMessage(n)
	return c.sendSMTP(ctx, n.Recipient, msg)
}

func (c *EmailChannel) buildMessage(n *Notification) string {
	fromName := c.cfg.FromName
	if fromName == "" {
		fromName = "Registrar"
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, c.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", n.Recipient))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", n.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("X-Registrar-Kind: %s\r\n", n.Kind))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(n.Body)
	msg.WriteString("\r\n")
	return msg.String()
}

func (c *EmailChannel) sendSMTP(ctx context.Context, to, msg string) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	dialer := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if c.cfg.StartTLS {
		tlsConfig := &tls.Config{
			ServerName: c.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if c.cfg.Username != "" && c.cfg.Password != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(c.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// Message was accepted; a failed QUIT is not a delivery failure.
	_ = client.Quit()
	return nil
}
