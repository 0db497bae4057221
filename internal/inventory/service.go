package inventory

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-order-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

// Cache is the slice of redisx.Cache this consumer needs.
type Cache interface {
	InvalidateProducts(ctx context.Context) error
	FirstSeen(ctx context.Context, service, id string) (bool, error)
}

// Service keeps read-side product data fresh after stock-changing lifecycle events.
type Service struct {
	Cache       Cache
	Logger      *zap.Logger
	ServiceName string
}

// HandleStockEvent: dipasang sebagai handler consumer untuk order.created & order.cancelled.
func (s *Service) HandleStockEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// pesan rusak tidak akan pernah sukses, jangan diblok
		s.Logger.Error("drop malformed event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	units, err := movedUnits(env)
	if err != nil {
		s.Logger.Error("drop malformed payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if units == nil {
		return nil // ignore
	}

	// 2) invalidate dulu, idempotent jadi aman diulang
	if err := s.Cache.InvalidateProducts(ctx); err != nil {
		return fmt.Errorf("invalidate product cache: %w", err)
	}

	// 3) dedup via Redis (pakai event_id)
	first, err := s.Cache.FirstSeen(ctx, s.ServiceName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.Logger.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}

	s.Logger.Info("stock moved",
		zap.String("event_type", env.EventType),
		zap.String("order_id", env.CorrelationID),
		zap.String("trace_id", env.TraceID),
		zap.Any("units", units),
	)
	return nil
}

// movedUnits returns the per-product quantity change carried by env,
// or nil when the event does not touch stock.
func movedUnits(env orders.Envelope) (map[string]int, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		return sum(p.Lines, -1), nil
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		return sum(p.Lines, 1), nil
	default:
		return nil, nil
	}
}

func sum(lines []orders.OrderLine, sign int) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ProductID] += sign * l.Quantity
	}
	return out
}
