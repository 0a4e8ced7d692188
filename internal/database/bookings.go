package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"didauday/internal/models"
)

const dateLayout = "2006-01-02"

// CreateBookingWithItems persists a booking and its items in one
// transaction, re-verifying room and flight exclusivity inside the
// transaction. The caller is expected to hold per-room locks; the
// re-check closes the window for writers that bypassed the lock.
func (db *DB) CreateBookingWithItems(ctx context.Context, booking *models.Booking) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range booking.Items {
		switch item.Type {
		case models.ItemTypeRoom:
			count, err := countRoomOverlapsTx(ctx, tx, item.RoomID, item.DateStart, item.DateEnd)
			if err != nil {
				return err
			}
			if count > 0 {
				return ErrNotAvailable
			}
		case models.ItemTypeFlight:
			count, err := countActiveFlightBookingsTx(ctx, tx, item.FlightID)
			if err != nil {
				return err
			}
			if count > 0 {
				return ErrNotAvailable
			}
		}
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (buyer_id, total_price, captured, hold_active, payment_session_id,
                               payer_token, redirect_url, created_at, updated_at)
         VALUES (?, ?, 0, 1, ?, ?, ?, ?, ?)`,
		booking.BuyerID, booking.TotalPrice, booking.PaymentSessionID,
		booking.PayerToken, booking.RedirectURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	bookingID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for _, item := range booking.Items {
		customers, err := json.Marshal(item.Customers)
		if err != nil {
			return fmt.Errorf("failed to encode customers: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO booking_items (booking_id, type, tour_id, room_id, flight_id, price,
                                        quantity, coupon_code, date_start, date_end, customers)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bookingID, item.Type,
			nullableID(item.TourID), nullableID(item.RoomID), nullableID(item.FlightID),
			item.Price, item.Quantity, nullableString(item.CouponCode),
			nullableDate(item.DateStart), nullableDate(item.DateEnd), string(customers))
		if err != nil {
			return fmt.Errorf("failed to create booking item: %w", err)
		}
		item.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.BookingID = bookingID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = bookingID
	booking.HoldActive = true
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// GetPendingBookingBySession returns the not-yet-captured booking for a
// payment session. Returns ErrAlreadyCaptured when the session settled
// earlier, so duplicate processor redirects resolve as idempotent
// success, and ErrNotFound for unknown sessions.
func (db *DB) GetPendingBookingBySession(ctx context.Context, sessionID string) (*models.Booking, error) {
	booking, err := db.getBooking(ctx,
		`SELECT id, buyer_id, total_price, captured, hold_active, payment_session_id,
                payer_token, redirect_url, created_at, updated_at
         FROM bookings WHERE payment_session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	if booking.Captured {
		return nil, ErrAlreadyCaptured
	}
	return booking, nil
}

func (db *DB) GetBookingByPayerToken(ctx context.Context, token string) (*models.Booking, error) {
	return db.getBooking(ctx,
		`SELECT id, buyer_id, total_price, captured, hold_active, payment_session_id,
                payer_token, redirect_url, created_at, updated_at
         FROM bookings WHERE payer_token = ?`, token)
}

func (db *DB) getBooking(ctx context.Context, query string, arg any) (*models.Booking, error) {
	var b models.Booking
	err := db.db.QueryRowContext(ctx, query, arg).Scan(
		&b.ID, &b.BuyerID, &b.TotalPrice, &b.Captured, &b.HoldActive,
		&b.PaymentSessionID, &b.PayerToken, &b.RedirectURL, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	items, err := db.getBookingItems(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Items = items
	return &b, nil
}

func (db *DB) getBookingItems(ctx context.Context, bookingID int64) ([]*models.BookingItem, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, booking_id, type, COALESCE(tour_id, 0), COALESCE(room_id, 0),
                COALESCE(flight_id, 0), price, quantity, COALESCE(coupon_code, ''),
                COALESCE(date_start, ''), COALESCE(date_end, ''), customers
         FROM booking_items WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking items: %w", err)
	}
	defer rows.Close()

	var items []*models.BookingItem
	for rows.Next() {
		var item models.BookingItem
		var rawCustomers, rawStart, rawEnd string
		err := rows.Scan(&item.ID, &item.BookingID, &item.Type,
			&item.TourID, &item.RoomID, &item.FlightID,
			&item.Price, &item.Quantity, &item.CouponCode,
			&rawStart, &rawEnd, &rawCustomers)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking item: %w", err)
		}
		if err := json.Unmarshal([]byte(rawCustomers), &item.Customers); err != nil {
			return nil, fmt.Errorf("failed to decode customers: %w", err)
		}
		item.DateStart = parseDate(rawStart)
		item.DateEnd = parseDate(rawEnd)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking items: %w", err)
	}
	return items, nil
}

// MarkCaptured flips the captured flag exactly once and drops the hold.
// Returns ErrAlreadyCaptured when another settlement got there first.
func (db *DB) MarkCaptured(ctx context.Context, sessionID string) error {
	result, err := db.db.ExecContext(ctx,
		`UPDATE bookings SET captured = 1, hold_active = 0, updated_at = ?
         WHERE payment_session_id = ? AND captured = 0`, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to mark booking captured: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyCaptured
	}
	return nil
}

// ReleaseHold drops an active hold by payer token. The boolean reports
// whether this call performed the release; a second cancellation of the
// same token returns false with no error.
func (db *DB) ReleaseHold(ctx context.Context, payerToken string) (bool, error) {
	result, err := db.db.ExecContext(ctx,
		`UPDATE bookings SET hold_active = 0, updated_at = ?
         WHERE payer_token = ? AND hold_active = 1`, time.Now(), payerToken)
	if err != nil {
		return false, fmt.Errorf("failed to release hold: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// CountActiveFlightBookings counts bookings that still consume the
// flight slot: captured ones and live holds.
func (db *DB) CountActiveFlightBookings(ctx context.Context, flightID int64) (int, error) {
	return db.countInt(ctx,
		`SELECT COUNT(*) FROM booking_items bi
         JOIN bookings b ON b.id = bi.booking_id
         WHERE bi.flight_id = ? AND (b.captured = 1 OR b.hold_active = 1)`, flightID)
}

// CountRoomOverlaps counts active bookings whose stay interval touches
// [start, end]. Boundary touch counts as overlap: checkout day cannot
// equal another booking's checkin day.
func (db *DB) CountRoomOverlaps(ctx context.Context, roomID int64, start, end *time.Time) (int, error) {
	return db.countInt(ctx,
		`SELECT COUNT(*) FROM booking_items bi
         JOIN bookings b ON b.id = bi.booking_id
         WHERE bi.room_id = ? AND (b.captured = 1 OR b.hold_active = 1)
           AND bi.date_start <= ? AND bi.date_end >= ?`,
		roomID, formatDate(end), formatDate(start))
}

func (db *DB) countInt(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := db.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

func countRoomOverlapsTx(ctx context.Context, tx *sql.Tx, roomID int64, start, end *time.Time) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking_items bi
         JOIN bookings b ON b.id = bi.booking_id
         WHERE bi.room_id = ? AND (b.captured = 1 OR b.hold_active = 1)
           AND bi.date_start <= ? AND bi.date_end >= ?`,
		roomID, formatDate(end), formatDate(start)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count room overlaps in tx: %w", err)
	}
	return count, nil
}

func countActiveFlightBookingsTx(ctx context.Context, tx *sql.Tx, flightID int64) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking_items bi
         JOIN bookings b ON b.id = bi.booking_id
         WHERE bi.flight_id = ? AND (b.captured = 1 OR b.hold_active = 1)`, flightID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count flight bookings in tx: %w", err)
	}
	return count, nil
}

// ListBookings returns a page of bookings, newest first. buyerID=0
// lists across all buyers.
func (db *DB) ListBookings(ctx context.Context, buyerID int64, page, pageSize int) ([]*models.Booking, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}

	where := ""
	args := []any{}
	if buyerID != 0 {
		where = "WHERE buyer_id = ?"
		args = append(args, buyerID)
	}

	total, err := db.countInt(ctx, "SELECT COUNT(*) FROM bookings "+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT id, buyer_id, total_price, captured, hold_active, payment_session_id,
                payer_token, redirect_url, created_at, updated_at
         FROM bookings %s ORDER BY updated_at DESC LIMIT ? OFFSET ?`, where)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(&b.ID, &b.BuyerID, &b.TotalPrice, &b.Captured, &b.HoldActive,
			&b.PaymentSessionID, &b.PayerToken, &b.RedirectURL, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate bookings: %w", err)
	}

	for _, b := range bookings {
		items, err := db.getBookingItems(ctx, b.ID)
		if err != nil {
			return nil, 0, err
		}
		b.Items = items
	}
	return bookings, total, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
