package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

type recordPublisher struct{ n int }

func (r *recordPublisher) Publish(context.Context, orders.Event) error {
	r.n++
	return nil
}

func TestCountEvents(t *testing.T) {
	m := New()
	next := &recordPublisher{}
	p := m.CountEvents(next)

	o := &orders.Order{ID: "o-1"}
	require.NoError(t, p.Publish(context.Background(), orders.Event{Type: orders.EventOrderCancelled, Order: o, Reason: orders.ReasonAbandoned}))
	require.NoError(t, p.Publish(context.Background(), orders.Event{Type: orders.EventOrderCancelled, Order: o, Reason: orders.ReasonAbandoned}))

	assert.Equal(t, 2, next.n)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(orders.EventOrderCancelled, orders.ReasonAbandoned)))

	require.NoError(t, m.CountEvents(nil).Publish(context.Background(), orders.Event{Type: orders.EventOrderPaid, Order: o}))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	m.PendingReclamations(func() int { return 3 })

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requests))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `route="/api/orders/{id}"`)
	assert.Contains(t, body, "order_reclamations_pending 3")
}
