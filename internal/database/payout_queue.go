package database

import (
	"context"
	"fmt"
	"time"

	"didauday/internal/models"
)

func (db *DB) CreatePayoutTask(ctx context.Context, task *models.PayoutTask) error {
	query := `INSERT INTO payout_queue (booking_id, partner_id, payout_email, amount,
                                        payment_session_id, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if task.Status == "" {
		task.Status = models.PayoutStatusPending
	}
	result, err := db.db.ExecContext(ctx, query,
		task.BookingID, task.PartnerID, task.PayoutEmail, task.Amount,
		task.PaymentSessionID, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt)
	if err != nil {
		return fmt.Errorf("failed to create payout task: %w", err)
	}
	task.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingPayoutTasks(ctx context.Context, limit int) ([]*models.PayoutTask, error) {
	query := `SELECT id, booking_id, partner_id, payout_email, amount, payment_session_id,
                     status, retry_count, COALESCE(last_error, ''), created_at, processed_at, next_retry_at
              FROM payout_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending payout tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.PayoutTask
	for rows.Next() {
		var t models.PayoutTask
		err := rows.Scan(&t.ID, &t.BookingID, &t.PartnerID, &t.PayoutEmail, &t.Amount,
			&t.PaymentSessionID, &t.Status, &t.RetryCount, &t.LastError,
			&t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payout tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) UpdatePayoutTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now()

	switch status {
	case models.PayoutStatusRetry:
		query = `UPDATE payout_queue SET status = ?, last_error = ?, next_retry_at = ?,
                        retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	case models.PayoutStatusCompleted, models.PayoutStatusFailed:
		query = `UPDATE payout_queue SET status = ?, last_error = ?, next_retry_at = NULL,
                        processed_at = ? WHERE id = ?`
		args = []any{status, errMsg, now, id}
	default:
		query = `UPDATE payout_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update payout task status: %w", err)
	}
	return nil
}

func (db *DB) GetPayoutTasksBySession(ctx context.Context, sessionID string) ([]*models.PayoutTask, error) {
	query := `SELECT id, booking_id, partner_id, payout_email, amount, payment_session_id,
                     status, retry_count, COALESCE(last_error, ''), created_at, processed_at, next_retry_at
              FROM payout_queue WHERE payment_session_id = ? ORDER BY id`
	rows, err := db.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payout tasks by session: %w", err)
	}
	defer rows.Close()

	var tasks []*models.PayoutTask
	for rows.Next() {
		var t models.PayoutTask
		err := rows.Scan(&t.ID, &t.BookingID, &t.PartnerID, &t.PayoutEmail, &t.Amount,
			&t.PaymentSessionID, &t.Status, &t.RetryCount, &t.LastError,
			&t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payout tasks: %w", err)
	}
	return tasks, nil
}
