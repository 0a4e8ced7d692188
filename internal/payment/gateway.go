package payment

import (
	"context"
	"errors"
)

// Session is the result of the create phase: the buyer is sent to
// RedirectURL and comes back with a payer confirmation.
type Session struct {
	ID          string
	PayerToken  string
	RedirectURL string
}

// CaptureResult reports the executed (captured) payment.
type CaptureResult struct {
	PayerEmail string
	PayeeEmail string
	Amount     int64 // cents
}

// PayoutItem is one line of a payout batch, addressed by the partner's
// registered payout identity.
type PayoutItem struct {
	Receiver string
	Amount   int64 // cents
	Note     string
}

// PayoutResult lists the receivers the processor accepted.
type PayoutResult struct {
	BatchID  string
	Accepted []string
}

// ErrDeclined is returned when the processor rejects an execute call
// outright (as opposed to transport failures).
var ErrDeclined = errors.New("payment declined by processor")

// Gateway drives the external processor through the two-phase
// create -> execute flow plus batch payouts. A timeout is a failure,
// never a partial capture.
type Gateway interface {
	CreatePayment(ctx context.Context, total int64, currency, description string) (*Session, error)
	ExecutePayment(ctx context.Context, sessionID, payerID string, total int64) (*CaptureResult, error)
	CreatePayoutBatch(ctx context.Context, batchID string, items []PayoutItem) (*PayoutResult, error)
}
