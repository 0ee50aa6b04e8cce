package events

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	calls := 0
	bus.Subscribe(EventPurchaseFinalized, func(event *Event) error {
		received = event
		calls++
		return nil
	})

	payload := PurchaseEventPayload{
		PurchaseID: "p1",
		Amount:     decimal.RequireFromString("69"),
		Status:     "finalized",
		Items:      1,
	}
	require.NoError(t, bus.PublishJSON(EventPurchaseFinalized, payload))

	require.NotNil(t, received)
	assert.Equal(t, 1, calls)

	var decoded PurchaseEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "p1", decoded.PurchaseID)
	assert.True(t, decoded.Amount.Equal(decimal.RequireFromString("69")))
}

func TestEventBusIgnoresOtherTypes(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	bus.Subscribe(EventPurchaseCanceled, func(event *Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventPurchaseCreated, PurchaseEventPayload{PurchaseID: "p1"}))
	assert.Zero(t, calls)
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventOrderPlaced, OrderEventPayload{Supplier: "snacks"}))
}
