package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidProduct = errors.New("invalid product")

func validateProduct(in ProductInput) error {
	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case !in.Price.Equal(in.Price.Round(2)):
		return fmt.Errorf("%w: price must have at most 2 decimal places", ErrInvalidProduct)
	case in.Quantity < 0 || in.Quantity > MaxQuantity:
		return fmt.Errorf("%w: quantity must be between 0 and %d", ErrInvalidProduct, MaxQuantity)
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	ps, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, processing("list products", err)
	}
	return ps, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Product{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Price:     in.Price,
		Quantity:  in.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, processing("create product", err)
	}
	s.logger.Info("product created", zap.String("product_id", p.ID), zap.Int("quantity", p.Quantity))
	return p, nil
}

// UpdateProduct is a direct admin edit; it overwrites name, price and quantity.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, productErr("get product", id, err)
	}
	p.Name, p.Price, p.Quantity = in.Name, in.Price, in.Quantity
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, productErr("update product", id, err)
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return productErr("delete product", id, err)
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

func productErr(op, id string, err error) error {
	if errors.Is(err, ErrProductNotFound) {
		return &ProductNotFoundError{IDs: []string{id}}
	}
	return processing(op, err)
}
