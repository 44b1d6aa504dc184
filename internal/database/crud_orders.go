// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/models"
)

// Order errors
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid order state transition")
	ErrDiscountNotFound     = errors.New("discount code not found")
	ErrDiscountCodeConflict = errors.New("discount code already exists for this event")
	ErrDiscountExhausted    = errors.New("discount code has no redemptions left")
)

const orderColumns = `id, event_id, email, currency, subtotal_cents, discount_cents,
	tax_cents, total_cents, discount_code, status, gateway_intent_id, failure_reason,
	expires_at, paid_at, created_at, updated_at`

// CreateOrder inserts an order and its lines in one transaction.
func (db *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = models.OrderPending
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		order.ID, order.EventID, order.Email, order.Currency,
		order.SubtotalCents, order.DiscountCents, order.TaxCents, order.TotalCents,
		nullString(order.DiscountCode), order.Status,
		nullString(order.GatewayIntentID), nullString(order.FailureReason),
		order.ExpiresAt, order.PaidAt, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.OrderID = order.ID

		attendeeIDs, err := json.Marshal(line.AttendeeIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal attendee ids: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_lines (id, order_id, ticket_type_id, ticket_type_name, quantity, unit_price_cents, attendee_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.ID, line.OrderID, line.TicketTypeID, line.TicketTypeName,
			line.Quantity, line.UnitPriceCents, string(attendeeIDs))
		if err != nil {
			return fmt.Errorf("failed to create order line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

// GetOrder retrieves an order with its lines.
func (db *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return db.scanOrderWithLines(ctx, row)
}

// GetOrderByIntent retrieves an order by the payment gateway's intent ID,
// used when resolving webhooks.
func (db *DB) GetOrderByIntent(ctx context.Context, intentID string) (*models.Order, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE gateway_intent_id = ?`, intentID)
	return db.scanOrderWithLines(ctx, row)
}

// ListOrders returns orders for an event, optionally filtered by status,
// newest first.
func (db *DB) ListOrders(ctx context.Context, eventID, status string, limit, offset int) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE event_id = ?`
	args := []any{eventID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer closeWithLog(rows, "rows")

	orders := make([]models.Order, 0)
	for rows.Next() {
		order, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// CountOrders counts an event's orders, optionally filtered by status,
// matching the ListOrders filters.
func (db *DB) CountOrders(ctx context.Context, eventID, status string) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE event_id = ?`
	args := []any{eventID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// ListExpirableOrders returns non-terminal orders whose TTL has elapsed.
func (db *DB) ListExpirableOrders(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE status IN (?, ?) AND expires_at < ? ORDER BY expires_at LIMIT ?`,
		models.OrderPending, models.OrderAwaitingPayment, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable orders: %w", err)
	}
	defer closeWithLog(rows, "rows")

	orders := make([]models.Order, 0)
	for rows.Next() {
		order, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expirable orders: %w", err)
	}

	return orders, nil
}

// TransitionOrder moves an order to a new state. The current state is part
// of the WHERE clause so concurrent transitions cannot race past the state
// machine; an illegal edge returns ErrInvalidTransition.
func (db *DB) TransitionOrder(ctx context.Context, id, from, to string) error {
	if !models.OrderCanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC()
	var result sql.Result
	var err error
	if to == models.OrderPaid {
		result, err = db.conn.ExecContext(ctx,
			`UPDATE orders SET status = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, now, id, from)
	} else {
		result, err = db.conn.ExecContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, id, from)
	}
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := db.GetOrder(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: order no longer in state %s", ErrInvalidTransition, from)
	}

	return nil
}

// SetOrderIntent records the gateway intent ID from the create-intent
// handshake.
func (db *DB) SetOrderIntent(ctx context.Context, id, intentID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE orders SET gateway_intent_id = ?, updated_at = ? WHERE id = ?`,
		intentID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set order intent: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetOrderFailureReason records why an order failed.
func (db *DB) SetOrderFailureReason(ctx context.Context, id, reason string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE orders SET failure_reason = ?, updated_at = ? WHERE id = ?`,
		reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set failure reason: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// CreateDiscountCode adds a discount code to an event.
func (db *DB) CreateDiscountCode(ctx context.Context, code *models.DiscountCode) error {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	code.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO discount_codes (id, event_id, code, kind, value, max_redemptions, redeemed, valid_from, valid_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.EventID, code.Code, code.Kind, code.Value,
		code.MaxRedemptions, code.Redeemed, code.ValidFrom, code.ValidUntil, code.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDiscountCodeConflict
		}
		return fmt.Errorf("failed to create discount code: %w", err)
	}

	return nil
}

// GetDiscountCode retrieves a discount code by event and code string.
func (db *DB) GetDiscountCode(ctx context.Context, eventID, code string) (*models.DiscountCode, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, event_id, code, kind, value, max_redemptions, redeemed, valid_from, valid_until, created_at
		FROM discount_codes WHERE event_id = ? AND code = ?`, eventID, code)

	var d models.DiscountCode
	var validFrom, validUntil sql.NullTime
	err := row.Scan(&d.ID, &d.EventID, &d.Code, &d.Kind, &d.Value,
		&d.MaxRedemptions, &d.Redeemed, &validFrom, &validUntil, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDiscountNotFound
		}
		return nil, fmt.Errorf("failed to get discount code: %w", err)
	}
	if validFrom.Valid {
		t := validFrom.Time
		d.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time
		d.ValidUntil = &t
	}
	return &d, nil
}

// ListDiscountCodes returns all discount codes for an event.
func (db *DB) ListDiscountCodes(ctx context.Context, eventID string) ([]models.DiscountCode, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, event_id, code, kind, value, max_redemptions, redeemed, valid_from, valid_until, created_at
		FROM discount_codes WHERE event_id = ? ORDER BY code`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount codes: %w", err)
	}
	defer closeWithLog(rows, "rows")

	codes := make([]models.DiscountCode, 0)
	for rows.Next() {
		var d models.DiscountCode
		var validFrom, validUntil sql.NullTime
		err := rows.Scan(&d.ID, &d.EventID, &d.Code, &d.Kind, &d.Value,
			&d.MaxRedemptions, &d.Redeemed, &validFrom, &validUntil, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discount code: %w", err)
		}
		if validFrom.Valid {
			t := validFrom.Time
			d.ValidFrom = &t
		}
		if validUntil.Valid {
			t := validUntil.Time
			d.ValidUntil = &t
		}
		codes = append(codes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating discount codes: %w", err)
	}

	return codes, nil
}

// RedeemDiscountCode atomically consumes one redemption. The guard in the
// WHERE clause rejects exhausted codes under concurrency.
func (db *DB) RedeemDiscountCode(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE discount_codes SET redeemed = redeemed + 1
		WHERE id = ? AND (max_redemptions = 0 OR redeemed < max_redemptions)`, id)
	if err != nil {
		return fmt.Errorf("failed to redeem discount code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrDiscountExhausted
	}
	return nil
}

// ReleaseDiscountCode returns one redemption, e.g. when an order expires.
func (db *DB) ReleaseDiscountCode(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE discount_codes SET redeemed = CASE WHEN redeemed > 0 THEN redeemed - 1 ELSE 0 END
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to release discount code: %w", err)
	}
	return nil
}

func (db *DB) scanOrderWithLines(ctx context.Context, row *sql.Row) (*models.Order, error) {
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, order_id, ticket_type_id, ticket_type_name, quantity, unit_price_cents, attendee_ids
		FROM order_lines WHERE order_id = ?`, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer closeWithLog(rows, "rows")

	lines := make([]models.OrderLine, 0)
	for rows.Next() {
		var line models.OrderLine
		var attendeeIDs string
		err := rows.Scan(&line.ID, &line.OrderID, &line.TicketTypeID, &line.TicketTypeName,
			&line.Quantity, &line.UnitPriceCents, &attendeeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		if err := json.Unmarshal([]byte(attendeeIDs), &line.AttendeeIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attendee ids: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}

	order.Lines = lines
	return order, nil
}

func scanOrder(row *sql.Row) (*models.Order, error) {
	var o models.Order
	var discountCode, intentID, failureReason sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(&o.ID, &o.EventID, &o.Email, &o.Currency,
		&o.SubtotalCents, &o.DiscountCents, &o.TaxCents, &o.TotalCents,
		&discountCode, &o.Status, &intentID, &failureReason,
		&o.ExpiresAt, &paidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.DiscountCode = discountCode.String
	o.GatewayIntentID = intentID.String
	o.FailureReason = failureReason.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	return &o, nil
}

func scanOrderRows(rows *sql.Rows) (*models.Order, error) {
	var o models.Order
	var discountCode, intentID, failureReason sql.NullString
	var paidAt sql.NullTime
	err := rows.Scan(&o.ID, &o.EventID, &o.Email, &o.Currency,
		&o.SubtotalCents, &o.DiscountCents, &o.TaxCents, &o.TotalCents,
		&discountCode, &o.Status, &intentID, &failureReason,
		&o.ExpiresAt, &paidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.DiscountCode = discountCode.String
	o.GatewayIntentID = intentID.String
	o.FailureReason = failureReason.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	return &o, nil
}
