package domain

import (
	"context"
	"time"

	"didauday/internal/models"
)

// Store is the persistence surface the services depend on.
type Store interface {
	GetTour(ctx context.Context, id int64) (*models.Tour, error)
	ReserveTourCapacity(ctx context.Context, tourID, quantity int64) error
	ReleaseTourCapacity(ctx context.Context, tourID, quantity int64) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetHotel(ctx context.Context, id int64) (*models.Hotel, error)
	GetFlight(ctx context.Context, id int64) (*models.Flight, error)
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)

	CreateBookingWithItems(ctx context.Context, booking *models.Booking) error
	GetPendingBookingBySession(ctx context.Context, sessionID string) (*models.Booking, error)
	GetBookingByPayerToken(ctx context.Context, token string) (*models.Booking, error)
	MarkCaptured(ctx context.Context, sessionID string) error
	ReleaseHold(ctx context.Context, payerToken string) (bool, error)
	CountActiveFlightBookings(ctx context.Context, flightID int64) (int, error)
	CountRoomOverlaps(ctx context.Context, roomID int64, start, end *time.Time) (int, error)
	ListBookings(ctx context.Context, buyerID int64, page, pageSize int) ([]*models.Booking, int, error)

	CreateCoupon(ctx context.Context, coupon *models.CouponCode) error
	RedeemCoupon(ctx context.Context, code, couponType string, refID int64) (*models.CouponCode, error)
	RestoreCouponUnit(ctx context.Context, code string) error
	GetCouponByCode(ctx context.Context, code string) (*models.CouponCode, error)
	CloseCoupon(ctx context.Context, code string) (*models.CouponCode, error)
	ListCoupons(ctx context.Context, creatorID int64, page, pageSize int) ([]*models.CouponCode, int, error)

	AppendPayment(ctx context.Context, rec *models.PaymentRecord) error
	ListPayments(ctx context.Context, from, to time.Time) ([]*models.PaymentRecord, error)

	CreatePayoutTask(ctx context.Context, task *models.PayoutTask) error
	GetPendingPayoutTasks(ctx context.Context, limit int) ([]*models.PayoutTask, error)
	UpdatePayoutTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetPayoutTasksBySession(ctx context.Context, sessionID string) ([]*models.PayoutTask, error)
}

// ReservationLocker serializes checkout per contended resource (rooms).
// Acquire returns false without error when the lock is held elsewhere.
type ReservationLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier is a one-way, fire-and-forget dispatch; failures are logged
// by implementations and never surface to the settlement path.
type Notifier interface {
	NotifyBuyer(ctx context.Context, buyer *models.Profile, booking *models.Booking) error
	NotifyPartner(ctx context.Context, partner *models.Profile, amount int64, sessionID string) error
}

// PolicyChecker answers whether a role may perform an action before the
// core accepts a request. Decoupled from inventory checks.
type PolicyChecker interface {
	Allowed(ctx context.Context, role, resource, action, possession string) (bool, error)
}

// LedgerMirror receives ledger entries for out-of-band reconciliation.
type LedgerMirror interface {
	AppendLedgerEntry(ctx context.Context, rec *models.PaymentRecord) error
}

// PayoutDispatcher drives queued partner payouts. ProcessSession makes
// an immediate attempt for one payment session; failures stay queued
// for the background loop.
type PayoutDispatcher interface {
	ProcessSession(ctx context.Context, sessionID string) error
}
