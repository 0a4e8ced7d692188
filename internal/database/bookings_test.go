package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"didauday/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func date(t *testing.T, raw string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", raw)
	require.NoError(t, err)
	return &parsed
}

func makeRoomBooking(t *testing.T, db *DB, session string, roomID int64, start, end string) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		BuyerID:          1,
		TotalPrice:       12000,
		PaymentSessionID: session,
		PayerToken:       "token-" + session,
		RedirectURL:      "https://pay.example.com/" + session,
		Items: []*models.BookingItem{{
			Type:      models.ItemTypeRoom,
			RoomID:    roomID,
			Price:     6000,
			Quantity:  2,
			DateStart: date(t, start),
			DateEnd:   date(t, end),
			Customers: []models.Customer{{Email: "guest@example.com", FirstName: "An"}},
		}},
	}
	require.NoError(t, db.CreateBookingWithItems(context.Background(), booking))
	return booking
}

func TestCreateBookingWithItemsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := makeRoomBooking(t, db, "PAY-1", 7, "2026-10-10", "2026-10-12")
	require.NotZero(t, booking.ID)
	assert.True(t, booking.HoldActive)

	got, err := db.GetPendingBookingBySession(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)
	assert.False(t, got.Captured)
	require.Len(t, got.Items, 1)

	item := got.Items[0]
	assert.Equal(t, int64(7), item.RoomID)
	assert.Equal(t, int64(6000), item.Price)
	assert.Equal(t, "2026-10-10", item.DateStart.Format("2006-01-02"))
	require.Len(t, item.Customers, 1)
	assert.Equal(t, "guest@example.com", item.Customers[0].Email)
}

func TestRoomOverlapRejectedInsideTransaction(t *testing.T) {
	db := setupTestDB(t)

	makeRoomBooking(t, db, "PAY-1", 7, "2026-10-10", "2026-10-14")

	second := &models.Booking{
		BuyerID:          2,
		TotalPrice:       6000,
		PaymentSessionID: "PAY-2",
		PayerToken:       "token-PAY-2",
		RedirectURL:      "https://pay.example.com/PAY-2",
		Items: []*models.BookingItem{{
			Type:      models.ItemTypeRoom,
			RoomID:    7,
			Price:     6000,
			Quantity:  1,
			DateStart: date(t, "2026-10-12"),
			DateEnd:   date(t, "2026-10-13"),
		}},
	}
	err := db.CreateBookingWithItems(context.Background(), second)
	assert.ErrorIs(t, err, ErrNotAvailable)

	// Nothing from the rejected cart may remain.
	_, err = db.GetPendingBookingBySession(context.Background(), "PAY-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoomBoundaryTouchIsOverlap(t *testing.T) {
	db := setupTestDB(t)

	makeRoomBooking(t, db, "PAY-1", 7, "2026-10-10", "2026-10-12")

	count, err := db.CountRoomOverlaps(context.Background(), 7,
		date(t, "2026-10-12"), date(t, "2026-10-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = db.CountRoomOverlaps(context.Background(), 7,
		date(t, "2026-10-13"), date(t, "2026-10-15"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMarkCapturedOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	makeRoomBooking(t, db, "PAY-1", 7, "2026-10-10", "2026-10-12")

	require.NoError(t, db.MarkCaptured(ctx, "PAY-1"))
	assert.ErrorIs(t, db.MarkCaptured(ctx, "PAY-1"), ErrAlreadyCaptured)

	// The pending lookup reports the capture instead of pretending the
	// session never existed.
	_, err := db.GetPendingBookingBySession(ctx, "PAY-1")
	assert.ErrorIs(t, err, ErrAlreadyCaptured)

	_, err = db.GetPendingBookingBySession(ctx, "PAY-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCapturedBookingStillBlocksRoom(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	makeRoomBooking(t, db, "PAY-1", 7, "2026-10-10", "2026-10-12")
	require.NoError(t, db.MarkCaptured(ctx, "PAY-1"))

	count, err := db.CountRoomOverlaps(ctx, 7, date(t, "2026-10-11"), date(t, "2026-10-11"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReleaseHoldIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := makeRoomBooking(t, db, "PAY-1", 7, "2026-10-10", "2026-10-12")

	released, err := db.ReleaseHold(ctx, booking.PayerToken)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = db.ReleaseHold(ctx, booking.PayerToken)
	require.NoError(t, err)
	assert.False(t, released)

	// Released hold frees the interval.
	count, err := db.CountRoomOverlaps(ctx, 7, date(t, "2026-10-11"), date(t, "2026-10-11"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFlightSlotCounting(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := &models.Booking{
		BuyerID:          1,
		TotalPrice:       9900,
		PaymentSessionID: "PAY-F1",
		PayerToken:       "token-PAY-F1",
		RedirectURL:      "https://pay.example.com/PAY-F1",
		Items: []*models.BookingItem{{
			Type:     models.ItemTypeFlight,
			FlightID: 3,
			Price:    9900,
			Quantity: 1,
		}},
	}
	require.NoError(t, db.CreateBookingWithItems(ctx, booking))

	count, err := db.CountActiveFlightBookings(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	second := &models.Booking{
		BuyerID:          2,
		TotalPrice:       9900,
		PaymentSessionID: "PAY-F2",
		PayerToken:       "token-PAY-F2",
		RedirectURL:      "https://pay.example.com/PAY-F2",
		Items: []*models.BookingItem{{
			Type:     models.ItemTypeFlight,
			FlightID: 3,
			Price:    9900,
			Quantity: 1,
		}},
	}
	assert.ErrorIs(t, db.CreateBookingWithItems(ctx, second), ErrNotAvailable)

	released, err := db.ReleaseHold(ctx, booking.PayerToken)
	require.NoError(t, err)
	require.True(t, released)

	count, err = db.CountActiveFlightBookings(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		booking := &models.Booking{
			BuyerID:          int64(1 + i%2),
			TotalPrice:       1000,
			PaymentSessionID: fmt.Sprintf("PAY-%d", i),
			PayerToken:       fmt.Sprintf("token-%d", i),
			RedirectURL:      "https://pay.example.com",
			Items: []*models.BookingItem{{
				Type: models.ItemTypeRoom, RoomID: int64(i), Price: 1000, Quantity: 1,
				DateStart: date(t, "2026-10-10"), DateEnd: date(t, "2026-10-11"),
			}},
		}
		require.NoError(t, db.CreateBookingWithItems(ctx, booking))
	}

	all, total, err := db.ListBookings(ctx, 0, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, all, 3)
	require.NotEmpty(t, all[0].Items)

	mine, total, err := db.ListBookings(ctx, 2, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, b := range mine {
		assert.Equal(t, int64(2), b.BuyerID)
	}
}
