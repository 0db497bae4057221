package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

// ProductCache caches the product list. Nil disables caching.
type ProductCache interface {
	Products(ctx context.Context) ([]orders.Product, bool, error)
	SetProducts(ctx context.Context, ps []orders.Product) error
	InvalidateProducts(ctx context.Context) error
}

type ProductsHandler struct {
	Service *orders.Service
	Cache   ProductCache
	Logger  *zap.Logger
}

type productReq struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gte=0,lte=2147483647"`
}

type productResp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResp(p orders.Product) productResp {
	return productResp{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, ok := h.cached(ctx)
	if !ok {
		var err error
		ps, err = h.Service.ListProducts(ctx)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		if h.Cache != nil {
			if err := h.Cache.SetProducts(ctx, ps); err != nil {
				h.Logger.Warn("product cache write failed", zap.Error(err))
			}
		}
	}

	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductResp(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) cached(ctx context.Context) ([]orders.Product, bool) {
	if h.Cache == nil {
		return nil, false
	}
	ps, ok, err := h.Cache.Products(ctx)
	if err != nil {
		h.Logger.Warn("product cache read failed", zap.Error(err))
		return nil, false
	}
	return ps, ok
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Service.CreateProduct(ctx, orders.ProductInput{Name: req.Name, Price: req.Price, Quantity: req.Quantity})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.invalidate(ctx)
	writeJSON(w, http.StatusCreated, toProductResp(*p))
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Service.UpdateProduct(ctx, chi.URLParam(r, "id"), orders.ProductInput{Name: req.Name, Price: req.Price, Quantity: req.Quantity})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.invalidate(ctx)
	writeJSON(w, http.StatusOK, toProductResp(*p))
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.invalidate(ctx)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) invalidate(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.InvalidateProducts(ctx); err != nil {
		h.Logger.Warn("product cache invalidate failed", zap.Error(err))
	}
}
