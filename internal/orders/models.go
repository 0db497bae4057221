package orders

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity bounds stock and line quantities; it matches the INTEGER columns in Postgres.
const MaxQuantity = math.MaxInt32

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Order struct {
	ID        string          `json:"id"`
	Lines     []OrderLine     `json:"lines"`
	Status    Status          `json:"status"` // lihat status.go
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderLine references a product by id only; the price is folded into Order.Total at creation.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// LineInput is one requested (product, quantity) pair of a new order.
type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ProductInput carries the admin-editable fields of a product.
type ProductInput struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Clone returns a deep copy so callers never share the Lines slice.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return &c
}
