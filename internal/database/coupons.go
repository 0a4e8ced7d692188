package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"didauday/internal/models"
)

func (db *DB) CreateCoupon(ctx context.Context, coupon *models.CouponCode) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	query := `INSERT INTO coupon_codes (code, type, tour_id, hotel_id, percent, creator_id,
                                        date_start, date_end, quantity, available, active)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`
	result, err := db.db.ExecContext(ctx, query,
		coupon.Code, coupon.Type, nullableID(coupon.TourID), nullableID(coupon.HotelID),
		coupon.Percent, coupon.CreatorID, coupon.DateStart, coupon.DateEnd,
		coupon.Quantity, coupon.Quantity)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	coupon.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	coupon.Available = coupon.Quantity
	coupon.Active = true
	return nil
}

// RedeemCoupon performs the guarded decrement: the availability check
// and the decrement are one conditional update, so concurrent
// redemptions of the last unit cannot both succeed. Returns (nil, nil)
// when the coupon does not apply: unknown code, wrong item, expired,
// closed or exhausted.
func (db *DB) RedeemCoupon(ctx context.Context, code, couponType string, refID int64) (*models.CouponCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	now := time.Now()

	refColumn := "tour_id"
	if couponType == models.CouponTypeHotel {
		refColumn = "hotel_id"
	}

	query := fmt.Sprintf(
		`UPDATE coupon_codes SET available = available - 1
         WHERE code = ? AND type = ? AND %s = ? AND active = 1
           AND available > 0 AND date_start <= ? AND date_end >= ?`, refColumn)
	result, err := db.db.ExecContext(ctx, query, code, couponType, refID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem coupon: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return db.GetCouponByCode(ctx, code)
}

// RestoreCouponUnit returns one redeemed unit, compensating a checkout
// that redeemed the coupon and then failed. Guarded so available never
// exceeds the issued quantity.
func (db *DB) RestoreCouponUnit(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	_, err := db.db.ExecContext(ctx,
		`UPDATE coupon_codes SET available = available + 1
         WHERE code = ? AND available < quantity`, code)
	if err != nil {
		return fmt.Errorf("failed to restore coupon unit: %w", err)
	}
	return nil
}

func (db *DB) GetCouponByCode(ctx context.Context, code string) (*models.CouponCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	query := `SELECT id, code, type, COALESCE(tour_id, 0), COALESCE(hotel_id, 0), percent,
                     creator_id, date_start, date_end, quantity, available, active, created_at
              FROM coupon_codes WHERE code = ?`
	var c models.CouponCode
	err := db.db.QueryRowContext(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Type, &c.TourID, &c.HotelID, &c.Percent,
		&c.CreatorID, &c.DateStart, &c.DateEnd, &c.Quantity, &c.Available, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &c, nil
}

// CloseCoupon marks the code closed. Closing is terminal and
// idempotent; closing an already-closed code is a no-op.
func (db *DB) CloseCoupon(ctx context.Context, code string) (*models.CouponCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	_, err := db.db.ExecContext(ctx,
		`UPDATE coupon_codes SET active = 0 WHERE code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to close coupon: %w", err)
	}
	return db.GetCouponByCode(ctx, code)
}

func (db *DB) ListCoupons(ctx context.Context, creatorID int64, page, pageSize int) ([]*models.CouponCode, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}

	where := ""
	args := []any{}
	if creatorID != 0 {
		where = "WHERE creator_id = ?"
		args = append(args, creatorID)
	}

	total, err := db.countInt(ctx, "SELECT COUNT(*) FROM coupon_codes "+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT id, code, type, COALESCE(tour_id, 0), COALESCE(hotel_id, 0), percent,
                creator_id, date_start, date_end, quantity, available, active, created_at
         FROM coupon_codes %s ORDER BY created_at DESC LIMIT ? OFFSET ?`, where)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*models.CouponCode
	for rows.Next() {
		var c models.CouponCode
		err := rows.Scan(&c.ID, &c.Code, &c.Type, &c.TourID, &c.HotelID, &c.Percent,
			&c.CreatorID, &c.DateStart, &c.DateEnd, &c.Quantity, &c.Available, &c.Active, &c.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate coupons: %w", err)
	}
	return coupons, total, nil
}
