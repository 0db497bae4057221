package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOrder            = errors.New("invalid order")
	ErrProductNotFound         = errors.New("product not found")
	ErrStockExceeded           = errors.New("stock exceeded")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAlreadyCancelled        = errors.New("order already cancelled")
	ErrAlreadyPaid             = errors.New("order already paid")
	ErrOrderProcessing         = errors.New("order processing failure")

	// ErrStatusConflict is returned by Tx.UpdateOrderStatus when the stored status
	// no longer equals the expected one.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrInsufficientStock is returned by Tx.AdjustStock when a decrement would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Shortfall struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (s Shortfall) Missing() int { return s.Requested - s.Available }

// StockExceededError lists every product whose stock cannot cover the order.
type StockExceededError struct {
	Shortfalls []Shortfall
}

func (e *StockExceededError) Error() string {
	var b strings.Builder
	b.WriteString("order quantity exceeded stock for the following products:")
	for _, s := range e.Shortfalls {
		fmt.Fprintf(&b, "\n* %s (%s) - missing items: %d", s.Name, s.ProductID, s.Missing())
	}
	return b.String()
}

func (e *StockExceededError) Is(target error) bool { return target == ErrStockExceeded }

// TransitionError reports a cancel/pay attempted on an order in a terminal status.
type TransitionError struct {
	OrderID string
	Status  Status
}

func (e *TransitionError) Error() string {
	state := "paid"
	if e.Status == StatusCancelled {
		state = "cancelled"
	}
	return fmt.Sprintf("operation cannot be performed: order [%s] is already %s", e.OrderID, state)
}

func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrInvalidStatusTransition:
		return true
	case ErrAlreadyCancelled:
		return e.Status == StatusCancelled
	case ErrAlreadyPaid:
		return e.Status == StatusPaid
	}
	return false
}

// ProductNotFoundError names the referenced ids missing from the catalog.
type ProductNotFoundError struct {
	IDs []string
}

func (e *ProductNotFoundError) Error() string {
	return "one or more products were not found: " + strings.Join(e.IDs, ", ")
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

func processing(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOrderProcessing, op, err)
}
