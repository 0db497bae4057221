package inventory

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-order-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

type fakeCache struct {
	invalidations int
	seen          map[string]bool
	invalidateErr error
}

func (f *fakeCache) InvalidateProducts(context.Context) error {
	if f.invalidateErr != nil {
		return f.invalidateErr
	}
	f.invalidations++
	return nil
}

func (f *fakeCache) FirstSeen(_ context.Context, service, id string) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	k := service + ":" + id
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

func message(eventID, eventType string, payload any) kafkago.Message {
	return kafkago.Message{Value: kafkax.MustMarshal(orders.Envelope{
		EventID:      eventID,
		EventType:    eventType,
		EventVersion: 1,
		Payload:      kafkax.MustMarshal(payload),
	})}
}

func TestHandleStockEvent(t *testing.T) {
	ctx := context.Background()
	lines := []orders.OrderLine{{ProductID: "a", Quantity: 2}, {ProductID: "a", Quantity: 1}}

	t.Run("created invalidates product cache", func(t *testing.T) {
		cache := &fakeCache{}
		s := &Service{Cache: cache, Logger: zap.NewNop(), ServiceName: "inventory"}

		m := message("e-1", orders.EventOrderCreated, orders.OrderCreatedPayload{OrderID: "o-1", Lines: lines})
		require.NoError(t, s.HandleStockEvent(ctx, m))
		assert.Equal(t, 1, cache.invalidations)
		assert.True(t, cache.seen["inventory:e-1"])
	})

	t.Run("paid is ignored", func(t *testing.T) {
		cache := &fakeCache{}
		s := &Service{Cache: cache, Logger: zap.NewNop(), ServiceName: "inventory"}

		m := message("e-2", orders.EventOrderPaid, orders.OrderPaidPayload{OrderID: "o-1"})
		require.NoError(t, s.HandleStockEvent(ctx, m))
		assert.Zero(t, cache.invalidations)
	})

	t.Run("duplicate is acknowledged", func(t *testing.T) {
		cache := &fakeCache{}
		s := &Service{Cache: cache, Logger: zap.NewNop(), ServiceName: "inventory"}

		m := message("e-3", orders.EventOrderCancelled, orders.OrderCancelledPayload{OrderID: "o-1", Lines: lines})
		require.NoError(t, s.HandleStockEvent(ctx, m))
		require.NoError(t, s.HandleStockEvent(ctx, m))
		assert.Len(t, cache.seen, 1)
	})

	t.Run("malformed message is dropped", func(t *testing.T) {
		cache := &fakeCache{}
		s := &Service{Cache: cache, Logger: zap.NewNop(), ServiceName: "inventory"}

		require.NoError(t, s.HandleStockEvent(ctx, kafkago.Message{Value: []byte("{")}))
		assert.Zero(t, cache.invalidations)
	})

	t.Run("cache failure is reported and not marked seen", func(t *testing.T) {
		cache := &fakeCache{invalidateErr: errors.New("redis down")}
		s := &Service{Cache: cache, Logger: zap.NewNop(), ServiceName: "inventory"}

		m := message("e-4", orders.EventOrderCreated, orders.OrderCreatedPayload{OrderID: "o-1", Lines: lines})
		require.Error(t, s.HandleStockEvent(ctx, m))
		assert.Empty(t, cache.seen)
	})
}

func TestMovedUnits(t *testing.T) {
	lines := []orders.OrderLine{{ProductID: "a", Quantity: 2}, {ProductID: "b", Quantity: 1}, {ProductID: "a", Quantity: 1}}

	env := orders.Envelope{EventType: orders.EventOrderCancelled, Payload: kafkax.MustMarshal(orders.OrderCancelledPayload{Lines: lines})}
	units, err := movedUnits(env)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 1}, units)

	env = orders.Envelope{EventType: orders.EventOrderCreated, Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{Lines: lines})}
	units, err = movedUnits(env)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": -3, "b": -1}, units)
}
