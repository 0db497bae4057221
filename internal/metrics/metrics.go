package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

type Metrics struct {
	reg      *prometheus.Registry
	requests *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		reg: reg,
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_lifecycle_events_total",
			Help: "Committed order lifecycle transitions.",
		}, []string{"event", "reason"}),
	}
	reg.MustRegister(m.requests, m.events)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records request latency labelled with the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
	})
}

// PendingReclamations exposes the scheduler queue length as a gauge.
func (m *Metrics) PendingReclamations(length func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "order_reclamations_pending",
		Help: "Orders waiting for the abandonment timer.",
	}, func() float64 { return float64(length()) }))
}

// CountEvents wraps next so every published lifecycle event is counted. next may be nil.
func (m *Metrics) CountEvents(next orders.Publisher) orders.Publisher {
	return &countingPublisher{events: m.events, next: next}
}

type countingPublisher struct {
	events *prometheus.CounterVec
	next   orders.Publisher
}

func (p *countingPublisher) Publish(ctx context.Context, ev orders.Event) error {
	p.events.WithLabelValues(ev.Type, ev.Reason).Inc()
	if p.next == nil {
		return nil
	}
	return p.next.Publish(ctx, ev)
}
