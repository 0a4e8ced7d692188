package service

import (
	"context"
	"testing"
	"time"

	"didauday/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCouponFixture(t *testing.T) (*fixture, *CouponService) {
	t.Helper()
	f := setupFixture(t)
	logger := zerolog.Nop()
	return f, NewCouponService(f.db, &logger)
}

func issueCoupon(t *testing.T, f *fixture, code string, couponType string, refID int64) {
	t.Helper()
	coupon := &models.CouponCode{
		Code: code, Type: couponType, Percent: 20,
		CreatorID: 2, DateStart: time.Now().Add(-time.Hour),
		DateEnd: time.Now().Add(24 * time.Hour), Quantity: 3,
	}
	if couponType == models.CouponTypeTour {
		coupon.TourID = refID
	} else {
		coupon.HotelID = refID
	}
	require.NoError(t, f.db.CreateCoupon(context.Background(), coupon))
}

func TestRedeemAgainstItems(t *testing.T) {
	f, coupons := newCouponFixture(t)
	ctx := context.Background()

	issueCoupon(t, f, "TOUR20", models.CouponTypeTour, f.tour.ID)

	redeemed, err := coupons.Redeem(ctx, "tour20", []RedeemTarget{
		{Type: models.ItemTypeTour, ID: f.tour.ID},
	})
	require.NoError(t, err)
	require.Len(t, redeemed, 1)
	assert.Equal(t, "TOUR20", redeemed[0].Code)
	assert.Equal(t, int64(2), redeemed[0].Available)
}

// Items the code does not match are skipped and consume nothing.
func TestRedeemSkipsNonMatchingItems(t *testing.T) {
	f, coupons := newCouponFixture(t)
	ctx := context.Background()

	issueCoupon(t, f, "TOUR20", models.CouponTypeTour, f.tour.ID)

	redeemed, err := coupons.Redeem(ctx, "TOUR20", []RedeemTarget{
		{Type: models.ItemTypeTour, ID: f.tour.ID + 100},
		{Type: models.CouponTypeHotel, ID: 1},
		{Type: "cruise", ID: 1},
	})
	require.NoError(t, err)
	assert.Empty(t, redeemed)

	stored, err := f.db.GetCouponByCode(ctx, "TOUR20")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Available)
}

func TestRedeemHotelCoupon(t *testing.T) {
	f, coupons := newCouponFixture(t)
	ctx := context.Background()

	room, err := f.db.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	issueCoupon(t, f, "STAY20", models.CouponTypeHotel, room.HotelID)

	redeemed, err := coupons.Redeem(ctx, "STAY20", []RedeemTarget{
		{Type: models.CouponTypeHotel, ID: room.HotelID},
	})
	require.NoError(t, err)
	require.Len(t, redeemed, 1)
	assert.Equal(t, int64(2), redeemed[0].Available)
}

func TestRedeemUnknownCodeReturnsEmpty(t *testing.T) {
	f, coupons := newCouponFixture(t)

	redeemed, err := coupons.Redeem(context.Background(), "NOSUCH", []RedeemTarget{
		{Type: models.ItemTypeTour, ID: f.tour.ID},
	})
	require.NoError(t, err)
	assert.Empty(t, redeemed)
}
