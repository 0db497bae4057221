package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

// OrderStatus is the cached read model behind GET /orders/{id}/status.
type OrderStatus struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Cache struct {
	rdb redis.Cmdable
}

func NewCache(rdb redis.Cmdable) *Cache { return &Cache{rdb: rdb} }

// SetStatus implements orders.StatusCache.
func (c *Cache) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	b, err := json.Marshal(OrderStatus{OrderID: orderID, Status: status, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// Status returns the cached status; ok is false on a cache miss.
func (c *Cache) Status(ctx context.Context, orderID string) (st OrderStatus, ok bool, err error) {
	s, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if err := json.Unmarshal([]byte(s), &st); err != nil {
		return st, false, err
	}
	return st, true, nil
}

func (c *Cache) Products(ctx context.Context) ([]orders.Product, bool, error) {
	s, err := c.rdb.Get(ctx, KeyProductList).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ps []orders.Product
	if err := json.Unmarshal([]byte(s), &ps); err != nil {
		return nil, false, err
	}
	return ps, true, nil
}

func (c *Cache) SetProducts(ctx context.Context, ps []orders.Product) error {
	b, err := json.Marshal(ps)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, KeyProductList, b, TTLProductCache).Err()
}

func (c *Cache) InvalidateProducts(ctx context.Context) error {
	return c.rdb.Del(ctx, KeyProductList).Err()
}

// FirstSeen marks id as processed by service and reports whether this is the first time.
func (c *Cache) FirstSeen(ctx context.Context, service, id string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), "1", TTLDedup).Result()
}
