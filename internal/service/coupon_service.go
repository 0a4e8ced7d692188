package service

import (
	"context"
	"fmt"
	"strings"

	"didauday/internal/domain"
	"didauday/internal/models"

	"github.com/rs/zerolog"
)

// CouponService manages discount codes on behalf of partners.
type CouponService struct {
	store  domain.Store
	logger *zerolog.Logger
}

func NewCouponService(store domain.Store, logger *zerolog.Logger) *CouponService {
	return &CouponService{store: store, logger: logger}
}

// Create validates and issues a new code bound to one tour or hotel.
func (s *CouponService) Create(ctx context.Context, coupon *models.CouponCode) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidItem)
	}
	if coupon.Percent < 1 || coupon.Percent > 100 {
		return fmt.Errorf("%w: percent must be in 1..100", ErrInvalidItem)
	}
	if coupon.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	}
	if coupon.DateEnd.Before(coupon.DateStart) {
		return ErrInvalidDates
	}

	switch coupon.Type {
	case models.CouponTypeTour:
		if coupon.TourID == 0 {
			return fmt.Errorf("%w: tour coupon needs tour_id", ErrInvalidItem)
		}
		if _, err := s.store.GetTour(ctx, coupon.TourID); err != nil {
			return err
		}
	case models.CouponTypeHotel:
		if coupon.HotelID == 0 {
			return fmt.Errorf("%w: hotel coupon needs hotel_id", ErrInvalidItem)
		}
		if _, err := s.store.GetHotel(ctx, coupon.HotelID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown coupon type %q", ErrInvalidItem, coupon.Type)
	}

	if err := s.store.CreateCoupon(ctx, coupon); err != nil {
		return err
	}
	s.logger.Info().Str("code", coupon.Code).Str("type", coupon.Type).
		Int64("quantity", coupon.Quantity).Msg("coupon created")
	return nil
}

// RedeemTarget is one cart item a code is tried against.
type RedeemTarget struct {
	Type string
	ID   int64
}

// Redeem tries the code against every target and returns the records
// it consumed a unit for. Targets the code does not match are skipped,
// not errors, so the result may be empty.
func (s *CouponService) Redeem(ctx context.Context, code string, targets []RedeemTarget) ([]*models.CouponCode, error) {
	redeemed := make([]*models.CouponCode, 0, len(targets))

	for _, target := range targets {
		var couponType string
		switch target.Type {
		case models.ItemTypeTour:
			couponType = models.CouponTypeTour
		case models.CouponTypeHotel:
			couponType = models.CouponTypeHotel
		default:
			continue
		}

		coupon, err := s.store.RedeemCoupon(ctx, code, couponType, target.ID)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			continue
		}
		redeemed = append(redeemed, coupon)
	}

	if len(redeemed) > 0 {
		s.logger.Info().Str("code", redeemed[0].Code).
			Int("items", len(redeemed)).Msg("coupon redeemed")
	}
	return redeemed, nil
}

// Close deactivates a code. Closing twice is a no-op.
func (s *CouponService) Close(ctx context.Context, code string) (*models.CouponCode, error) {
	return s.store.CloseCoupon(ctx, code)
}

func (s *CouponService) Get(ctx context.Context, code string) (*models.CouponCode, error) {
	return s.store.GetCouponByCode(ctx, code)
}

func (s *CouponService) List(ctx context.Context, creatorID int64, page, pageSize int) ([]*models.CouponCode, int, error) {
	return s.store.ListCoupons(ctx, creatorID, page, pageSize)
}
