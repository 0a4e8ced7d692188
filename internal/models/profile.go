package models

import "time"

// Profile is a buyer or partner identity. PayoutEmail is the partner's
// registered identity at the payment processor; empty for plain buyers.
type Profile struct {
	ID             int64     `json:"id" yaml:"id"`
	Email          string    `json:"email" yaml:"email"`
	FirstName      string    `json:"firstname" yaml:"firstname"`
	LastName       string    `json:"lastname" yaml:"lastname"`
	PayoutEmail    string    `json:"payout_email,omitempty" yaml:"payout_email"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}
