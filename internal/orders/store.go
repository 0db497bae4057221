package orders

import "context"

// Store is the transactional persistence behind the order lifecycle.
// InTx runs fn inside one transaction: fn's writes become visible together
// when it returns nil and are discarded when it returns an error.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id string) (*Order, error)

	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// Tx is the set of operations available inside Store.InTx.
type Tx interface {
	// ProductsByIDs reads and locks the given products. Missing ids are absent from the map.
	ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	// AdjustStock adds delta to the product quantity. A negative delta fails with
	// ErrInsufficientStock instead of going below zero; an unknown id fails with ErrProductNotFound.
	AdjustStock(ctx context.Context, productID string, delta int) error
	InsertOrder(ctx context.Context, o *Order) error
	// OrderByID reads and locks the order; ErrOrderNotFound if absent.
	OrderByID(ctx context.Context, id string) (*Order, error)
	// UpdateOrderStatus is a compare-and-swap: it fails with ErrStatusConflict unless the
	// stored status equals from.
	UpdateOrderStatus(ctx context.Context, id string, from, to Status) error
}

// Scheduler arms the deferred reclamation of an order.
type Scheduler interface {
	Schedule(orderID string) error
}

// Publisher emits lifecycle events once a transition has been committed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// StatusCache keeps the last known status of an order for fast reads.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID string, status Status) error
}

// ProductCache is invalidated whenever a committed change moves stock.
type ProductCache interface {
	InvalidateProducts(ctx context.Context) error
}
