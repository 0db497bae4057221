package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
	"github.com/ariefcatur/go-order-lifecycle/internal/redisx"
)

// StatusCache is the read side of the order status cache. A nil cache means every
// status read goes to the store.
type StatusCache interface {
	Status(ctx context.Context, orderID string) (redisx.OrderStatus, bool, error)
	SetStatus(ctx context.Context, orderID string, status orders.Status) error
}

type OrdersHandler struct {
	Service *orders.Service
	Cache   StatusCache
	Logger  *zap.Logger
}

type lineReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0,lte=2147483647"`
}

type createOrderReq struct {
	Lines []lineReq `json:"lines" validate:"required,min=1,dive"`
}

type orderResp struct {
	ID        string             `json:"id"`
	Status    orders.Status      `json:"status"`
	Lines     []orders.OrderLine `json:"lines"`
	Total     string             `json:"total"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toOrderResp(o *orders.Order) orderResp {
	return orderResp{
		ID:        o.ID,
		Status:    o.Status,
		Lines:     o.Lines,
		Total:     o.Total.StringFixed(2),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/{id}/pay", h.payOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !decode(w, r, &req) {
		return
	}
	lines := make([]orders.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, orders.LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CreateOrder(ctx, lines)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CancelOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.PayOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		st, ok, err := h.Cache.Status(ctx, orderID)
		if err != nil {
			h.Logger.Warn("status cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}

	// 2) fallback store
	o, err := h.Service.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.SetStatus(ctx, o.ID, o.Status); err != nil {
			h.Logger.Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, redisx.OrderStatus{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt})
}
