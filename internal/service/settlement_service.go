package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"didauday/internal/domain"
	"didauday/internal/events"
	"didauday/internal/metrics"
	"didauday/internal/models"
	"didauday/internal/payment"

	"github.com/rs/zerolog"
)

// SettlementService finalizes payments: it captures the session,
// writes the SALE ledger entry and queues partner payouts net of the
// platform commission. The sale is final once captured; payout
// delivery is retried independently.
type SettlementService struct {
	store          domain.Store
	gateway        payment.Gateway
	dispatcher     domain.PayoutDispatcher
	notifier       domain.Notifier
	mirror         domain.LedgerMirror
	eventBus       domain.EventPublisher
	commissionRate float64
	payeeEmail     string
	logger         *zerolog.Logger
}

func NewSettlementService(store domain.Store, gateway payment.Gateway, dispatcher domain.PayoutDispatcher,
	notifier domain.Notifier, mirror domain.LedgerMirror, eventBus domain.EventPublisher,
	commissionRate float64, payeeEmail string, logger *zerolog.Logger) *SettlementService {
	if commissionRate <= 0 {
		commissionRate = models.DefaultCommissionRate
	}
	return &SettlementService{
		store:          store,
		gateway:        gateway,
		dispatcher:     dispatcher,
		notifier:       notifier,
		mirror:         mirror,
		eventBus:       eventBus,
		commissionRate: commissionRate,
		payeeEmail:     payeeEmail,
		logger:         logger,
	}
}

// Capture runs the execute phase for a payment session. Exactly one
// concurrent Capture for a session settles; the rest get
// ErrAlreadyCaptured from the guarded flag flip. A processor decline
// leaves the booking pending and its holds intact.
func (s *SettlementService) Capture(ctx context.Context, sessionID, payerID string) (*models.Booking, error) {
	booking, err := s.store.GetPendingBookingBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.ExecutePayment(ctx, sessionID, payerID, booking.TotalPrice)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkCaptured(ctx, sessionID); err != nil {
		return nil, err
	}
	booking.Captured = true
	booking.HoldActive = false

	s.appendLedger(ctx, &models.PaymentRecord{
		SenderEmail:      result.PayerEmail,
		ReceiverEmail:    s.receiverEmail(result),
		Kind:             models.PaymentKindSale,
		Amount:           booking.TotalPrice,
		PaymentSessionID: sessionID,
	})

	if err := s.enqueuePayouts(ctx, booking); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("enqueue payouts error")
	} else if s.dispatcher != nil {
		if err := s.dispatcher.ProcessSession(ctx, sessionID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("immediate payout attempt error")
		}
	}

	s.notifyBuyer(ctx, booking)
	metrics.IncPaymentCaptured()
	s.publishCaptured(booking)

	return booking, nil
}

// PartnerShare returns the partner's cut of a gross amount after the
// platform commission, rounded to the nearest cent.
func (s *SettlementService) PartnerShare(gross int64) int64 {
	commission := int64(math.Round(float64(gross) * s.commissionRate))
	return gross - commission
}

// enqueuePayouts groups item subtotals by owning partner and persists
// one payout task per partner. Flight revenue has no partner side and
// stays with the platform.
func (s *SettlementService) enqueuePayouts(ctx context.Context, booking *models.Booking) error {
	gross := make(map[int64]int64)
	var order []int64

	for _, item := range booking.Items {
		ownerID, err := s.itemOwner(ctx, item)
		if err != nil {
			return err
		}
		if ownerID == 0 {
			continue
		}
		if _, ok := gross[ownerID]; !ok {
			order = append(order, ownerID)
		}
		gross[ownerID] += item.Subtotal()
	}

	for _, ownerID := range order {
		partner, err := s.store.GetProfile(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to resolve partner %d: %w", ownerID, err)
		}
		email := partner.PayoutEmail
		if email == "" {
			email = partner.Email
		}

		task := &models.PayoutTask{
			BookingID:        booking.ID,
			PartnerID:        ownerID,
			PayoutEmail:      email,
			Amount:           s.PartnerShare(gross[ownerID]),
			PaymentSessionID: booking.PaymentSessionID,
			Status:           models.PayoutStatusPending,
		}
		if err := s.store.CreatePayoutTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettlementService) itemOwner(ctx context.Context, item *models.BookingItem) (int64, error) {
	switch item.Type {
	case models.ItemTypeTour:
		tour, err := s.store.GetTour(ctx, item.TourID)
		if err != nil {
			return 0, err
		}
		return tour.OwnerID, nil
	case models.ItemTypeRoom:
		room, err := s.store.GetRoom(ctx, item.RoomID)
		if err != nil {
			return 0, err
		}
		hotel, err := s.store.GetHotel(ctx, room.HotelID)
		if err != nil {
			return 0, err
		}
		return hotel.OwnerID, nil
	case models.ItemTypeFlight:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, item.Type)
}

func (s *SettlementService) receiverEmail(result *payment.CaptureResult) string {
	if s.payeeEmail != "" {
		return s.payeeEmail
	}
	return result.PayeeEmail
}

// appendLedger writes the entry and mirrors it best-effort.
func (s *SettlementService) appendLedger(ctx context.Context, rec *models.PaymentRecord) {
	if err := s.store.AppendPayment(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("session_id", rec.PaymentSessionID).
			Str("kind", rec.Kind).Msg("append ledger entry error")
		return
	}
	if s.mirror != nil {
		if err := s.mirror.AppendLedgerEntry(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Int64("entry_id", rec.ID).Msg("mirror ledger entry error")
		}
	}
}

func (s *SettlementService) notifyBuyer(ctx context.Context, booking *models.Booking) {
	if s.notifier == nil {
		return
	}
	buyer, err := s.store.GetProfile(ctx, booking.BuyerID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("buyer_id", booking.BuyerID).Msg("resolve buyer error")
		return
	}
	if err := s.notifier.NotifyBuyer(ctx, buyer, booking); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("notify buyer error")
	}
}

func (s *SettlementService) publishCaptured(booking *models.Booking) {
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
	if err := s.eventBus.PublishJSON(events.EventBookingCaptured, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

// LedgerReport returns ledger entries for a period; zero times default
// to the last 30 days.
func (s *SettlementService) LedgerReport(ctx context.Context, from, to time.Time) ([]*models.PaymentRecord, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return s.store.ListPayments(ctx, from, to)
}
