// Package memstore is an in-memory orders.Store. Transactions are fully serialized
// and staged, so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]orders.Product
	orders   map[string]*orders.Order
}

func New() *Store {
	return &Store{
		products: map[string]orders.Product{},
		orders:   map[string]*orders.Order{},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:        s,
		products: map[string]orders.Product{},
		orders:   map[string]*orders.Order{},
	}
	if err := fn(tx); err != nil {
		return err // staged writes dibuang
	}
	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *Store) ListProducts(context.Context) ([]orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, orders.ErrProductNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, p *orders.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *orders.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return orders.ErrProductNotFound
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return orders.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

type memTx struct {
	s        *Store
	products map[string]orders.Product
	orders   map[string]*orders.Order
}

func (tx *memTx) product(id string) (orders.Product, bool) {
	if p, ok := tx.products[id]; ok {
		return p, true
	}
	p, ok := tx.s.products[id]
	return p, ok
}

func (tx *memTx) order(id string) (*orders.Order, bool) {
	if o, ok := tx.orders[id]; ok {
		return o, true
	}
	o, ok := tx.s.orders[id]
	return o, ok
}

func (tx *memTx) ProductsByIDs(_ context.Context, ids []string) (map[string]orders.Product, error) {
	out := make(map[string]orders.Product, len(ids))
	for _, id := range ids {
		if p, ok := tx.product(id); ok {
			out[id] = p
		}
	}
	return out, nil
}

func (tx *memTx) AdjustStock(_ context.Context, productID string, delta int) error {
	p, ok := tx.product(productID)
	if !ok {
		return orders.ErrProductNotFound
	}
	if p.Quantity+delta < 0 {
		return orders.ErrInsufficientStock
	}
	p.Quantity += delta
	tx.products[productID] = p
	return nil
}

func (tx *memTx) InsertOrder(_ context.Context, o *orders.Order) error {
	tx.orders[o.ID] = o.Clone()
	return nil
}

func (tx *memTx) OrderByID(_ context.Context, id string) (*orders.Order, error) {
	o, ok := tx.order(id)
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (tx *memTx) UpdateOrderStatus(_ context.Context, id string, from, to orders.Status) error {
	o, ok := tx.order(id)
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.Status != from {
		return orders.ErrStatusConflict
	}
	c := o.Clone()
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	tx.orders[id] = c
	return nil
}
