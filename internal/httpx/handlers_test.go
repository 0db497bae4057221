package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-lifecycle/internal/memstore"
	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
	"github.com/ariefcatur/go-order-lifecycle/internal/reclaim"
	"github.com/ariefcatur/go-order-lifecycle/internal/redisx"
)

type memStatusCache struct {
	mu sync.Mutex
	m  map[string]redisx.OrderStatus
}

func (c *memStatusCache) Status(_ context.Context, id string) (redisx.OrderStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[id]
	return st, ok, nil
}

func (c *memStatusCache) SetStatus(_ context.Context, id string, status orders.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = redisx.OrderStatus{OrderID: id, Status: status}
	return nil
}

type memProductCache struct {
	list        []orders.Product
	cached      bool
	invalidated int
}

func (c *memProductCache) Products(context.Context) ([]orders.Product, bool, error) {
	return c.list, c.cached, nil
}

func (c *memProductCache) SetProducts(_ context.Context, ps []orders.Product) error {
	c.list, c.cached = ps, true
	return nil
}

func (c *memProductCache) InvalidateProducts(context.Context) error {
	c.list, c.cached = nil, false
	c.invalidated++
	return nil
}

type testServer struct {
	t        *testing.T
	h        http.Handler
	svc      *orders.Service
	sched    *reclaim.Scheduler
	status   *memStatusCache
	products *memProductCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	status := &memStatusCache{m: map[string]redisx.OrderStatus{}}
	products := &memProductCache{}
	sched := reclaim.NewScheduler(logger)
	svc := orders.NewService(memstore.New(), sched, logger, orders.WithStatusCache(status))

	r := NewRouter(logger)
	r.Route("/api", func(r chi.Router) {
		(&OrdersHandler{Service: svc, Cache: status, Logger: logger}).Register(r)
		(&ProductsHandler{Service: svc, Cache: products, Logger: logger}).Register(r)
		(&ReclamationsHandler{Scheduler: sched}).Register(r)
	})
	return &testServer{t: t, h: r, svc: svc, sched: sched, status: status, products: products}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) product(name string, qty int, price string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/products", map[string]any{"name": name, "quantity": qty, "price": price})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p productResp
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.ID
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	a := s.product("A", 10, "2.00")
	b := s.product("B", 8, "3.00")

	rec := s.do(http.MethodPost, "/api/orders", map[string]any{"lines": []map[string]any{
		{"product_id": a, "quantity": 3},
		{"product_id": b, "quantity": 1},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decodeBody[orderResp](t, rec)
	assert.Equal(t, orders.StatusCreated, o.Status)
	assert.Equal(t, "9.00", o.Total)
	assert.Len(t, o.Lines, 2)

	pending := decodeBody[[]reclaim.Entry](t, s.do(http.MethodGet, "/api/reclamations", nil))
	require.Len(t, pending, 1)
	assert.Equal(t, o.ID, pending[0].OrderID)

	rec = s.do(http.MethodPost, "/api/orders/"+o.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orders.StatusPaid, decodeBody[orderResp](t, rec).Status)

	rec = s.do(http.MethodPost, "/api/orders/"+o.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	er := decodeBody[errorResp](t, rec)
	assert.Equal(t, "AlreadyPaid", er.Error)
	assert.Contains(t, er.Message, o.ID)

	rec = s.do(http.MethodGet, "/api/orders/"+o.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusPaid, decodeBody[orderResp](t, rec).Status)
}

func TestCancelTwice(t *testing.T) {
	s := newTestServer(t)
	a := s.product("A", 2, "1.50")

	o := decodeBody[orderResp](t, s.do(http.MethodPost, "/api/orders", map[string]any{"lines": []map[string]any{
		{"product_id": a, "quantity": 2},
	}}))

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/orders/"+o.ID+"/cancel", nil).Code)

	rec := s.do(http.MethodPost, "/api/orders/"+o.ID+"/pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "AlreadyCancelled", decodeBody[errorResp](t, rec).Error)

	ps := decodeBody[[]productResp](t, s.do(http.MethodGet, "/api/products", nil))
	require.Len(t, ps, 1)
	assert.Equal(t, 2, ps[0].Quantity)
}

func TestCreateOrder_Errors(t *testing.T) {
	s := newTestServer(t)
	a := s.product("Apple", 1, "2.00")

	tests := []struct {
		name string
		body any
		code int
		kind string
	}{
		{"bad json", "{", http.StatusBadRequest, "InvalidRequest"},
		{"no lines", map[string]any{"lines": []any{}}, http.StatusBadRequest, "InvalidRequest"},
		{"zero quantity", map[string]any{"lines": []map[string]any{{"product_id": a, "quantity": 0}}}, http.StatusBadRequest, "InvalidRequest"},
		{"quantity too large", map[string]any{"lines": []map[string]any{{"product_id": a, "quantity": int64(1) << 40}}}, http.StatusBadRequest, "InvalidRequest"},
		{"unknown product", map[string]any{"lines": []map[string]any{{"product_id": "nope", "quantity": 1}}}, http.StatusNotFound, "ProductNotFound"},
		{"stock exceeded", map[string]any{"lines": []map[string]any{{"product_id": a, "quantity": 5}}}, http.StatusConflict, "StockExceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeBody[errorResp](t, rec).Error)
		})
	}

	rec := s.do(http.MethodPost, "/api/orders", map[string]any{"lines": []map[string]any{{"product_id": a, "quantity": 5}}})
	er := decodeBody[errorResp](t, rec)
	require.Len(t, er.Details, 1)
	assert.Equal(t, 4, er.Details[0].Missing())
	assert.Contains(t, er.Message, "Apple")

	rec = s.do(http.MethodPost, "/api/orders", map[string]any{"lines": []map[string]any{{"product_id": "", "quantity": 1}}})
	assert.Contains(t, decodeBody[errorResp](t, rec).Fields, "lines[0].product_id")
}

func TestOrderNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/orders/missing/cancel", "/api/orders/missing/pay"} {
		rec := s.do(http.MethodPost, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "OrderNotFound", decodeBody[errorResp](t, rec).Error)
	}
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/orders/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/orders/missing/status", nil).Code)
}

func TestOrderStatus_ReadsThroughCache(t *testing.T) {
	s := newTestServer(t)
	a := s.product("A", 5, "1.00")
	o := decodeBody[orderResp](t, s.do(http.MethodPost, "/api/orders", map[string]any{"lines": []map[string]any{
		{"product_id": a, "quantity": 1},
	}}))

	// service populated the cache after commit
	st := decodeBody[redisx.OrderStatus](t, s.do(http.MethodGet, "/api/orders/"+o.ID+"/status", nil))
	assert.Equal(t, orders.StatusCreated, st.Status)

	s.status.mu.Lock()
	delete(s.status.m, o.ID)
	s.status.mu.Unlock()

	st = decodeBody[redisx.OrderStatus](t, s.do(http.MethodGet, "/api/orders/"+o.ID+"/status", nil))
	assert.Equal(t, o.ID, st.OrderID)
	assert.Equal(t, orders.StatusCreated, st.Status)

	_, ok, _ := s.status.Status(context.Background(), o.ID)
	assert.True(t, ok)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)
	id := s.product("Milk", 3, "1.25")
	assert.Equal(t, 1, s.products.invalidated)

	ps := decodeBody[[]productResp](t, s.do(http.MethodGet, "/api/products", nil))
	require.Len(t, ps, 1)
	assert.Equal(t, "1.25", ps[0].Price)
	assert.True(t, s.products.cached)

	rec := s.do(http.MethodPut, "/api/products/"+id, map[string]any{"name": "Milk 1L", "quantity": 9, "price": "1.4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decodeBody[productResp](t, rec)
	assert.Equal(t, "1.40", p.Price)
	assert.False(t, s.products.cached)

	rec = s.do(http.MethodPost, "/api/products", map[string]any{"name": "", "quantity": 1, "price": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/products", map[string]any{"name": "Bad", "quantity": 1, "price": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidProduct", decodeBody[errorResp](t, rec).Error)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/products/"+id, nil).Code)
	rec = s.do(http.MethodDelete, "/api/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ProductNotFound", decodeBody[errorResp](t, rec).Error)
}
