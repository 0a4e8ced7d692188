package database

import (
	"context"
	"testing"
	"time"

	"didauday/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndListPayments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sale := &models.PaymentRecord{
		SenderEmail:      "buyer@example.com",
		ReceiverEmail:    "platform@example.com",
		Kind:             models.PaymentKindSale,
		Amount:           10000,
		PaymentSessionID: "PAY-1",
	}
	require.NoError(t, db.AppendPayment(ctx, sale))
	require.NotZero(t, sale.ID)

	payout := &models.PaymentRecord{
		SenderEmail:      "platform@example.com",
		ReceiverEmail:    "partner@example.com",
		Kind:             models.PaymentKindPayout,
		Amount:           5400,
		PaymentSessionID: "PAY-1",
	}
	require.NoError(t, db.AppendPayment(ctx, payout))

	entries, err := db.ListPayments(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.PaymentKindSale, entries[0].Kind)
	assert.Equal(t, models.PaymentKindPayout, entries[1].Kind)

	outside, err := db.ListPayments(ctx, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, outside)

	bySession, err := db.ListPaymentsBySession(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Len(t, bySession, 2)
}
