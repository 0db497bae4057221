package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

const (
	ReasonUserRequest = "USER_REQUEST"
	ReasonAbandoned   = "ABANDONED"
)

// Event is a committed lifecycle change handed to the Publisher.
type Event struct {
	Type   string
	Order  *Order
	Reason string // hanya untuk OrderCancelled
}

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type OrderCreatedPayload struct {
	OrderID string      `json:"order_id"`
	Lines   []OrderLine `json:"lines"`
	Total   string      `json:"total"`
}

type OrderPaidPayload struct {
	OrderID string `json:"order_id"`
	Total   string `json:"total"`
}

type OrderCancelledPayload struct {
	OrderID string      `json:"order_id"`
	Reason  string      `json:"reason"`
	Lines   []OrderLine `json:"lines"` // stok yang dikembalikan
}

// Payload builds the event-specific payload for ev.
func (ev Event) Payload() any {
	o := ev.Order
	switch ev.Type {
	case EventOrderCreated:
		return OrderCreatedPayload{OrderID: o.ID, Lines: o.Lines, Total: o.Total.StringFixed(2)}
	case EventOrderPaid:
		return OrderPaidPayload{OrderID: o.ID, Total: o.Total.StringFixed(2)}
	default:
		return OrderCancelledPayload{OrderID: o.ID, Reason: ev.Reason, Lines: o.Lines}
	}
}
