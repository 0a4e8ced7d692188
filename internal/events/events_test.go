package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []BookingEventPayload
	bus.Subscribe(EventBookingCaptured, func(event *Event) error {
		var p BookingEventPayload
		require.NoError(t, json.Unmarshal(event.Payload, &p))
		got = append(got, p)
		return nil
	})

	err := bus.PublishJSON(EventBookingCaptured, BookingEventPayload{
		BookingID:        42,
		TotalPrice:       10000,
		PaymentSessionID: "PAY-1",
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].BookingID)
	assert.Equal(t, int64(10000), got[0].TotalPrice)
}

func TestPublishToUnsubscribedType(t *testing.T) {
	bus := NewEventBus()

	called := false
	bus.Subscribe(EventPayoutFailed, func(event *Event) error {
		called = true
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: 1}))
	assert.False(t, called)
}

func TestNilBusPublish(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, nil))
}
