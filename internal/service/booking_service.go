package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"didauday/internal/database"
	"didauday/internal/domain"
	"didauday/internal/events"
	"didauday/internal/metrics"
	"didauday/internal/models"
	"didauday/internal/payment"

	"github.com/rs/zerolog"
)

// BookingService runs checkout: price the cart, hold inventory, open a
// payment session and persist the pending booking. Any failure after an
// inventory mutation rolls that mutation back before returning.
type BookingService struct {
	store    domain.Store
	locker   domain.ReservationLocker
	gateway  payment.Gateway
	checker  *AvailabilityChecker
	eventBus domain.EventPublisher
	currency string
	logger   *zerolog.Logger
}

func NewBookingService(store domain.Store, locker domain.ReservationLocker, gateway payment.Gateway,
	eventBus domain.EventPublisher, currency string, logger *zerolog.Logger) *BookingService {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &BookingService{
		store:    store,
		locker:   locker,
		gateway:  gateway,
		checker:  NewAvailabilityChecker(store),
		eventBus: eventBus,
		currency: currency,
		logger:   logger,
	}
}

// tourReserve remembers a capacity decrement for rollback.
type tourReserve struct {
	tourID   int64
	quantity int64
}

// SubmitCart turns a cart into a pending booking with an open payment
// session. The booking holds its inventory until it is captured or
// cancelled.
func (s *BookingService) SubmitCart(ctx context.Context, buyerID int64, items []*models.BookingItem) (*models.Booking, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	rooms, err := s.priceItems(ctx, items)
	if err != nil {
		return nil, err
	}

	release, err := s.lockRooms(ctx, items)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checker.CheckCart(ctx, items); err != nil {
		var notAvailable *AvailabilityError
		if errors.As(err, &notAvailable) {
			for typ := range notAvailable.Reasons {
				metrics.IncBookingRejected(typ)
			}
		}
		return nil, err
	}

	redeemed, err := s.applyCoupons(ctx, items, rooms)
	if err != nil {
		return nil, err
	}

	reserved, err := s.reserveTours(ctx, items)
	if err != nil {
		s.restoreCoupons(ctx, redeemed)
		metrics.IncBookingRejected(models.ItemTypeTour)
		return nil, err
	}

	rollback := func() {
		s.releaseTours(ctx, reserved)
		s.restoreCoupons(ctx, redeemed)
	}

	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	if total <= 0 {
		rollback()
		return nil, fmt.Errorf("%w: non-positive total", ErrInvalidItem)
	}

	session, err := s.gateway.CreatePayment(ctx, total, s.currency,
		fmt.Sprintf("booking of %d item(s)", len(items)))
	if err != nil {
		rollback()
		return nil, fmt.Errorf("failed to open payment session: %w", err)
	}

	booking := &models.Booking{
		BuyerID:          buyerID,
		TotalPrice:       total,
		PaymentSessionID: session.ID,
		PayerToken:       session.PayerToken,
		RedirectURL:      session.RedirectURL,
		Items:            items,
	}
	if err := s.store.CreateBookingWithItems(ctx, booking); err != nil {
		rollback()
		if errors.Is(err, database.ErrNotAvailable) {
			metrics.IncBookingRejected(models.ItemTypeRoom)
		}
		return nil, err
	}

	metrics.IncBookingCreated()
	s.publishBookingEvent(events.EventBookingCreated, booking)

	return booking, nil
}

// Cancel releases the hold behind a payer token. Safe to call twice:
// inventory is restored only by the call that actually dropped the
// hold.
func (s *BookingService) Cancel(ctx context.Context, payerToken string) (*models.Booking, error) {
	booking, err := s.store.GetBookingByPayerToken(ctx, payerToken)
	if err != nil {
		return nil, err
	}

	released, err := s.store.ReleaseHold(ctx, payerToken)
	if err != nil {
		return nil, err
	}
	if !released {
		return booking, nil
	}
	booking.HoldActive = false

	for _, item := range booking.Items {
		if item.Type != models.ItemTypeTour {
			continue
		}
		if err := s.store.ReleaseTourCapacity(ctx, item.TourID, item.Quantity); err != nil {
			s.logger.Error().Err(err).Int64("tour_id", item.TourID).
				Int64("booking_id", booking.ID).Msg("release tour capacity error")
		}
	}

	s.publishBookingEvent(events.EventBookingCancelled, booking)
	return booking, nil
}

func (s *BookingService) GetByPayerToken(ctx context.Context, token string) (*models.Booking, error) {
	return s.store.GetBookingByPayerToken(ctx, token)
}

func (s *BookingService) ListBookings(ctx context.Context, buyerID int64, page, pageSize int) ([]*models.Booking, int, error) {
	return s.store.ListBookings(ctx, buyerID, page, pageSize)
}

// priceItems validates shape and snapshots inventory pricing onto the
// items. Room items are repriced as nightly rate times nights. Returns
// the rooms fetched along the way, keyed by room id, for coupon hotel
// resolution.
func (s *BookingService) priceItems(ctx context.Context, items []*models.BookingItem) (map[int64]*models.Room, error) {
	rooms := make(map[int64]*models.Room)

	for _, item := range items {
		switch item.Type {
		case models.ItemTypeTour:
			if item.TourID == 0 || item.Quantity < 1 {
				return nil, fmt.Errorf("%w: tour item needs tour_id and quantity", ErrInvalidItem)
			}
			tour, err := s.store.GetTour(ctx, item.TourID)
			if err != nil {
				return nil, err
			}
			item.Price = tour.Price

		case models.ItemTypeRoom:
			if item.RoomID == 0 {
				return nil, fmt.Errorf("%w: room item needs room_id", ErrInvalidItem)
			}
			nights, err := stayNights(item.DateStart, item.DateEnd)
			if err != nil {
				return nil, err
			}
			room, err := s.store.GetRoom(ctx, item.RoomID)
			if err != nil {
				return nil, err
			}
			rooms[room.ID] = room
			item.Price = room.Price
			item.Quantity = nights

		case models.ItemTypeFlight:
			if item.FlightID == 0 {
				return nil, fmt.Errorf("%w: flight item needs flight_id", ErrInvalidItem)
			}
			flight, err := s.store.GetFlight(ctx, item.FlightID)
			if err != nil {
				return nil, err
			}
			item.Price = flight.Price
			item.Quantity = 1

		default:
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, item.Type)
		}
	}
	return rooms, nil
}

// lockRooms serializes checkout per room. Lock order is ascending room
// id so two overlapping carts cannot deadlock each other.
func (s *BookingService) lockRooms(ctx context.Context, items []*models.BookingItem) (func(), error) {
	seen := make(map[int64]bool)
	var roomIDs []int64
	for _, item := range items {
		if item.Type == models.ItemTypeRoom && !seen[item.RoomID] {
			seen[item.RoomID] = true
			roomIDs = append(roomIDs, item.RoomID)
		}
	}
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })

	var held []string
	release := func() {
		for _, key := range held {
			if err := s.locker.Release(ctx, key); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("release reservation lock error")
			}
		}
	}

	for _, id := range roomIDs {
		key := fmt.Sprintf("room:%d", id)
		ok, err := s.locker.Acquire(ctx, key, models.RoomLockTTL*time.Second)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to acquire room lock: %w", err)
		}
		if !ok {
			release()
			metrics.IncBookingRejected(models.ItemTypeRoom)
			return nil, ErrLockBusy
		}
		held = append(held, key)
	}
	return release, nil
}

// applyCoupons redeems every coupon in the cart and folds the percent
// discount into the item price. A code the guarded redeem does not
// accept is dropped from its item and the item keeps its full price;
// only a store failure aborts the cart.
func (s *BookingService) applyCoupons(ctx context.Context, items []*models.BookingItem, rooms map[int64]*models.Room) ([]string, error) {
	var redeemed []string

	for _, item := range items {
		if item.CouponCode == "" {
			continue
		}

		var couponType string
		var refID int64
		switch item.Type {
		case models.ItemTypeTour:
			couponType = models.CouponTypeTour
			refID = item.TourID
		case models.ItemTypeRoom:
			couponType = models.CouponTypeHotel
			refID = rooms[item.RoomID].HotelID
		default:
			s.logger.Warn().Str("code", item.CouponCode).Str("type", item.Type).
				Msg("coupon not applicable to item type")
			item.CouponCode = ""
			continue
		}

		coupon, err := s.store.RedeemCoupon(ctx, item.CouponCode, couponType, refID)
		if err != nil {
			s.restoreCoupons(ctx, redeemed)
			return nil, err
		}
		if coupon == nil {
			s.logger.Warn().Str("code", item.CouponCode).Str("type", item.Type).
				Msg("coupon not applied")
			item.CouponCode = ""
			continue
		}

		redeemed = append(redeemed, coupon.Code)
		item.CouponCode = coupon.Code
		item.Price -= item.Price * coupon.Percent / 100
	}
	return redeemed, nil
}

func (s *BookingService) restoreCoupons(ctx context.Context, codes []string) {
	for _, code := range codes {
		if err := s.store.RestoreCouponUnit(ctx, code); err != nil {
			s.logger.Error().Err(err).Str("code", code).Msg("restore coupon unit error")
		}
	}
}

// reserveTours decrements tour capacity item by item. On a failed
// decrement everything reserved so far is put back.
func (s *BookingService) reserveTours(ctx context.Context, items []*models.BookingItem) ([]tourReserve, error) {
	var reserved []tourReserve
	for _, item := range items {
		if item.Type != models.ItemTypeTour {
			continue
		}
		if err := s.store.ReserveTourCapacity(ctx, item.TourID, item.Quantity); err != nil {
			s.releaseTours(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, tourReserve{tourID: item.TourID, quantity: item.Quantity})
	}
	return reserved, nil
}

func (s *BookingService) releaseTours(ctx context.Context, reserved []tourReserve) {
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		if err := s.store.ReleaseTourCapacity(ctx, r.tourID, r.quantity); err != nil {
			s.logger.Error().Err(err).Int64("tour_id", r.tourID).Msg("release tour capacity error")
		}
	}
}

func stayNights(start, end *time.Time) (int64, error) {
	if start == nil || end == nil {
		return 0, ErrInvalidDates
	}
	nights := int64(end.Sub(*start).Hours() / 24)
	if nights < 1 {
		return 0, ErrInvalidDates
	}
	return nights, nil
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:        booking.ID,
		BuyerID:          booking.BuyerID,
		TotalPrice:       booking.TotalPrice,
		PaymentSessionID: booking.PaymentSessionID,
		ItemCount:        len(booking.Items),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
