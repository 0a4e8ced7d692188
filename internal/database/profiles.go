package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"didauday/internal/models"
)

func (db *DB) CreateProfile(ctx context.Context, profile *models.Profile) error {
	query := `INSERT INTO profiles (email, firstname, lastname, payout_email, telegram_chat_id)
              VALUES (?, ?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query,
		profile.Email, profile.FirstName, profile.LastName, profile.PayoutEmail, profile.TelegramChatID)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	profile.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	query := `SELECT id, email, firstname, COALESCE(lastname, ''), COALESCE(payout_email, ''),
                     COALESCE(telegram_chat_id, 0), created_at
              FROM profiles WHERE id = ?`
	var p models.Profile
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.PayoutEmail, &p.TelegramChatID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (db *DB) GetProfileByPayoutEmail(ctx context.Context, payoutEmail string) (*models.Profile, error) {
	query := `SELECT id, email, firstname, COALESCE(lastname, ''), COALESCE(payout_email, ''),
                     COALESCE(telegram_chat_id, 0), created_at
              FROM profiles WHERE payout_email = ?`
	var p models.Profile
	err := db.db.QueryRowContext(ctx, query, payoutEmail).Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.PayoutEmail, &p.TelegramChatID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by payout email: %w", err)
	}
	return &p, nil
}
