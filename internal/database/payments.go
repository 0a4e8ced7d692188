package database

import (
	"context"
	"fmt"
	"time"

	"didauday/internal/models"
)

// AppendPayment writes a ledger entry. The ledger is append-only; there
// are no update or delete paths.
func (db *DB) AppendPayment(ctx context.Context, rec *models.PaymentRecord) error {
	query := `INSERT INTO payments (email_sender, email_receiver, kind, amount, payment_session_id, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query,
		rec.SenderEmail, rec.ReceiverEmail, rec.Kind, rec.Amount, rec.PaymentSessionID, now)
	if err != nil {
		return fmt.Errorf("failed to append payment: %w", err)
	}
	rec.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.CreatedAt = now
	return nil
}

func (db *DB) ListPayments(ctx context.Context, from, to time.Time) ([]*models.PaymentRecord, error) {
	query := `SELECT id, email_sender, email_receiver, kind, amount, payment_session_id, created_at
              FROM payments WHERE created_at >= ? AND created_at <= ? ORDER BY created_at`
	rows, err := db.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		var r models.PaymentRecord
		err := rows.Scan(&r.ID, &r.SenderEmail, &r.ReceiverEmail, &r.Kind,
			&r.Amount, &r.PaymentSessionID, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return records, nil
}

func (db *DB) ListPaymentsBySession(ctx context.Context, sessionID string) ([]*models.PaymentRecord, error) {
	query := `SELECT id, email_sender, email_receiver, kind, amount, payment_session_id, created_at
              FROM payments WHERE payment_session_id = ? ORDER BY created_at`
	rows, err := db.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments by session: %w", err)
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		var r models.PaymentRecord
		err := rows.Scan(&r.ID, &r.SenderEmail, &r.ReceiverEmail, &r.Kind,
			&r.Amount, &r.PaymentSessionID, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return records, nil
}
