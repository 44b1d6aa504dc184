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

	"github.com/google/uuid"

	"github.com/openconf/registrar/internal/models"
)

// Travel errors
var (
	ErrTravelRequestNotFound    = errors.New("travel request not found")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrBookingExists            = errors.New("travel request already has a booking")
	ErrInvalidBookingTransition = errors.New("invalid booking state transition")
)

// CreateTravelRequest inserts a travel request with its segments in one
// transaction.
func (db *DB) CreateTravelRequest(ctx context.Context, req *models.TravelRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO travel_requests (id, event_id, speaker_name, speaker_email, phone, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.EventID, req.SpeakerName, req.SpeakerEmail,
		nullString(req.Phone), nullString(req.Notes), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create travel request: %w", err)
	}

	for i := range req.Segments {
		seg := &req.Segments[i]
		if seg.ID == "" {
			seg.ID = uuid.New().String()
		}
		seg.RequestID = req.ID

		_, err = tx.ExecContext(ctx,
			`INSERT INTO travel_segments (id, request_id, origin_city, origin_iata, destination_city, destination_iata, date, earliest_time, latest_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seg.ID, seg.RequestID, seg.OriginCity, nullString(seg.OriginIATA),
			seg.DestinationCity, nullString(seg.DestinationIATA),
			seg.Date, nullString(seg.EarliestTime), nullString(seg.LatestTime))
		if err != nil {
			return fmt.Errorf("failed to create travel segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit travel request: %w", err)
	}

	return nil
}

// GetTravelRequest retrieves a travel request with segments and booking.
func (db *DB) GetTravelRequest(ctx context.Context, id string) (*models.TravelRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, event_id, speaker_name, speaker_email, phone, notes, created_at, updated_at
		FROM travel_requests WHERE id = ?`, id)

	var req models.TravelRequest
	var phone, notes sql.NullString
	err := row.Scan(&req.ID, &req.EventID, &req.SpeakerName, &req.SpeakerEmail,
		&phone, &notes, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTravelRequestNotFound
		}
		return nil, fmt.Errorf("failed to get travel request: %w", err)
	}
	req.Phone = phone.String
	req.Notes = notes.String

	segments, err := db.listSegments(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.Segments = segments

	booking, err := db.GetBookingByRequest(ctx, req.ID)
	if err != nil && !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}
	req.Booking = booking

	return &req, nil
}

// CountTravelRequests counts an event's travel requests.
func (db *DB) CountTravelRequests(ctx context.Context, eventID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM travel_requests WHERE event_id = ?`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count travel requests: %w", err)
	}
	return n, nil
}

// ListTravelRequests returns travel requests for an event, newest first.
func (db *DB) ListTravelRequests(ctx context.Context, eventID string, limit, offset int) ([]models.TravelRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, event_id, speaker_name, speaker_email, phone, notes, created_at, updated_at
		FROM travel_requests WHERE event_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		eventID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list travel requests: %w", err)
	}
	defer closeWithLog(rows, "rows")

	requests := make([]models.TravelRequest, 0)
	for rows.Next() {
		var req models.TravelRequest
		var phone, notes sql.NullString
		err := rows.Scan(&req.ID, &req.EventID, &req.SpeakerName, &req.SpeakerEmail,
			&phone, &notes, &req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan travel request: %w", err)
		}
		req.Phone = phone.String
		req.Notes = notes.String
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating travel requests: %w", err)
	}

	for i := range requests {
		segments, err := db.listSegments(ctx, requests[i].ID)
		if err != nil {
			return nil, err
		}
		requests[i].Segments = segments
	}

	return requests, nil
}

// UpdateTravelRequest rewrites a request's speaker details and replaces
// its segments in one transaction. The booking, if any, is untouched.
func (db *DB) UpdateTravelRequest(ctx context.Context, req *models.TravelRequest) error {
	req.UpdatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE travel_requests SET speaker_name = ?, speaker_email = ?, phone = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		req.SpeakerName, req.SpeakerEmail, nullString(req.Phone), nullString(req.Notes),
		req.UpdatedAt, req.ID)
	if err != nil {
		return fmt.Errorf("failed to update travel request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrTravelRequestNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM travel_segments WHERE request_id = ?`, req.ID); err != nil {
		return fmt.Errorf("failed to clear travel segments: %w", err)
	}
	for i := range req.Segments {
		seg := &req.Segments[i]
		if seg.ID == "" {
			seg.ID = uuid.New().String()
		}
		seg.RequestID = req.ID

		_, err = tx.ExecContext(ctx,
			`INSERT INTO travel_segments (id, request_id, origin_city, origin_iata, destination_city, destination_iata, date, earliest_time, latest_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seg.ID, seg.RequestID, seg.OriginCity, nullString(seg.OriginIATA),
			seg.DestinationCity, nullString(seg.DestinationIATA),
			seg.Date, nullString(seg.EarliestTime), nullString(seg.LatestTime))
		if err != nil {
			return fmt.Errorf("failed to insert travel segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit travel request update: %w", err)
	}

	return nil
}

// DeleteTravelRequest removes a request, its segments and any booking.
func (db *DB) DeleteTravelRequest(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM travel_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete travel request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrTravelRequestNotFound
	}

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM travel_segments WHERE request_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete travel segments: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM bookings WHERE request_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	return nil
}

// CreateBooking attaches a pending booking to a travel request. A request
// carries at most one booking.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = models.BookingPending
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO bookings (id, request_id, carrier, pnr, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.RequestID, nullString(b.Carrier), nullString(b.PNR), b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrBookingExists
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetBookingByRequest retrieves the booking attached to a travel request.
func (db *DB) GetBookingByRequest(ctx context.Context, requestID string) (*models.Booking, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, request_id, carrier, pnr, status, created_at, updated_at
		FROM bookings WHERE request_id = ?`, requestID)
	return scanBooking(row)
}

// GetBooking retrieves a booking by ID.
func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, request_id, carrier, pnr, status, created_at, updated_at
		FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// UpdateBookingDetails sets the carrier and PNR on a booking.
func (db *DB) UpdateBookingDetails(ctx context.Context, id, carrier, pnr string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE bookings SET carrier = ?, pnr = ?, updated_at = ? WHERE id = ?`,
		nullString(carrier), nullString(pnr), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// TransitionBooking moves a booking to a new state with the same
// compare-and-swap guard as order transitions.
func (db *DB) TransitionBooking(ctx context.Context, id, from, to string) error {
	if !models.BookingCanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidBookingTransition, from, to)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("failed to transition booking: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := db.GetBooking(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: booking no longer in state %s", ErrInvalidBookingTransition, from)
	}

	return nil
}

func (db *DB) listSegments(ctx context.Context, requestID string) ([]models.TravelSegment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, request_id, origin_city, origin_iata, destination_city, destination_iata, date, earliest_time, latest_time
		FROM travel_segments WHERE request_id = ? ORDER BY date, earliest_time`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query travel segments: %w", err)
	}
	defer closeWithLog(rows, "rows")

	segments := make([]models.TravelSegment, 0)
	for rows.Next() {
		var seg models.TravelSegment
		var originIATA, destIATA, earliest, latest sql.NullString
		err := rows.Scan(&seg.ID, &seg.RequestID, &seg.OriginCity, &originIATA,
			&seg.DestinationCity, &destIATA, &seg.Date, &earliest, &latest)
		if err != nil {
			return nil, fmt.Errorf("failed to scan travel segment: %w", err)
		}
		seg.OriginIATA = originIATA.String
		seg.DestinationIATA = destIATA.String
		seg.EarliestTime = earliest.String
		seg.LatestTime = latest.String
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating travel segments: %w", err)
	}

	return segments, nil
}

func scanBooking(row *sql.Row) (*models.Booking, error) {
	var b models.Booking
	var carrier, pnr sql.NullString
	err := row.Scan(&b.ID, &b.RequestID, &carrier, &pnr, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	b.Carrier = carrier.String
	b.PNR = pnr.String
	return &b, nil
}
