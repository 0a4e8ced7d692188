package models

import "time"

// PaymentRecord is an append-only ledger entry. A captured booking has
// exactly one SALE entry; each partner paid gets one PAYOUT entry with
// the same payment session id.
type PaymentRecord struct {
	ID               int64     `json:"id"`
	SenderEmail      string    `json:"email_sender"`
	ReceiverEmail    string    `json:"email_receiver"`
	Kind             string    `json:"kind"` // SALE, PAYOUT, REFUND
	Amount           int64     `json:"amount"` // cents
	PaymentSessionID string    `json:"payment_session_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// PayoutTask tracks one partner payout as a retryable sub-transaction
// of an already-final sale.
type PayoutTask struct {
	ID               int64      `json:"id"`
	BookingID        int64      `json:"booking_id"`
	PartnerID        int64      `json:"partner_id"`
	PayoutEmail      string     `json:"payout_email"`
	Amount           int64      `json:"amount"` // cents
	PaymentSessionID string     `json:"payment_session_id"`
	Status           string     `json:"status"`
	RetryCount       int64      `json:"retry_count"`
	LastError        string     `json:"last_error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	NextRetryAt      *time.Time `json:"next_retry_at,omitempty"`
}
