package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

type sender interface {
	Send(ctx context.Context, m kafka.Message) error
}

// Publisher wraps lifecycle events in the v1 envelope and hands them to the producer.
type Publisher struct {
	out      sender
	producer string
	now      func() time.Time
}

func NewPublisher(out sender, serviceName string) *Publisher {
	return &Publisher{out: out, producer: serviceName, now: time.Now}
}

// Publish implements orders.Publisher.
func (p *Publisher) Publish(ctx context.Context, ev orders.Event) error {
	topic := orders.TopicFor(ev.Type)
	if topic == "" {
		return fmt.Errorf("no topic for event type %q", ev.Type)
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  1,
		OccurredAt:    p.now().UTC(),
		Producer:      p.producer,
		CorrelationID: ev.Order.ID,
		Payload:       MustMarshal(ev.Payload()),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return p.out.Send(ctx, kafka.Message{
		Topic: topic,
		Key:   orders.PartitionKey(ev.Order.ID),
		Value: MustMarshal(env),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.Type)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	})
}
