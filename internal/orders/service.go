package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Service struct {
	store     Store
	scheduler Scheduler
	publisher Publisher
	cache     StatusCache
	products  ProductCache
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithStatusCache(c StatusCache) Option { return func(s *Service) { s.cache = c } }

func WithProductCache(c ProductCache) Option { return func(s *Service) { s.products = c } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, scheduler Scheduler, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		tracer:    otel.Tracer("order_service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder reserves stock for every line and persists a CREATED order in one
// transaction, then arms the abandonment reclamation for it.
func (s *Service) CreateOrder(ctx context.Context, lines []LineInput) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("lines_count", len(lines)))

	required, ids, err := requiredQuantities(lines)
	if err != nil {
		return nil, err
	}

	var created *Order
	err = s.store.InTx(ctx, func(tx Tx) error {
		products, err := tx.ProductsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		var missing []string
		for _, id := range ids {
			if _, ok := products[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return &ProductNotFoundError{IDs: missing}
		}

		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(products[l.ProductID].Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}

		var shortfalls []Shortfall
		for _, id := range ids {
			p := products[id]
			if required[id] > p.Quantity {
				shortfalls = append(shortfalls, Shortfall{
					ProductID: id, Name: p.Name, Requested: required[id], Available: p.Quantity,
				})
			}
		}
		if len(shortfalls) > 0 {
			return &StockExceededError{Shortfalls: shortfalls}
		}

		for _, id := range ids {
			if err := tx.AdjustStock(ctx, id, -required[id]); err != nil {
				return fmt.Errorf("reserve %s: %w", id, err)
			}
		}

		now := s.now().UTC()
		o := &Order{
			ID:        uuid.NewString(),
			Lines:     make([]OrderLine, 0, len(lines)),
			Status:    StatusCreated,
			Total:     total,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, l := range lines {
			o.Lines = append(o.Lines, OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		created = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, classify("create order", err)
	}
	span.SetAttributes(attribute.String("order_id", created.ID))

	if err := s.scheduler.Schedule(created.ID); err != nil {
		// order sudah tersimpan; reclaim bisa di-restore dari journal
		s.logger.Error("failed to schedule reclamation",
			zap.String("order_id", created.ID), zap.Error(err))
	}
	s.afterCommit(ctx, Event{Type: EventOrderCreated, Order: created})

	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("total", created.Total.StringFixed(2)),
		zap.Int("lines", len(created.Lines)))
	return created, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.cancel(ctx, orderID, ReasonUserRequest)
}

func (s *Service) PayOrder(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PayOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	o, err := s.transition(ctx, orderID, StatusPaid)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.afterCommit(ctx, Event{Type: EventOrderPaid, Order: o})
	return o, nil
}

// ReclaimAbandoned is the firing action of the abandonment timer. An order that was
// already paid or cancelled is an expected outcome and yields nil.
func (s *Service) ReclaimAbandoned(ctx context.Context, orderID string) error {
	_, err := s.cancel(ctx, orderID, ReasonAbandoned)
	switch {
	case err == nil:
		s.logger.Info("abandoned order reclaimed", zap.String("order_id", orderID))
		return nil
	case errors.Is(err, ErrInvalidStatusTransition):
		s.logger.Debug("reclamation skipped, order already settled",
			zap.String("order_id", orderID), zap.String("reason", err.Error()))
		return nil
	case errors.Is(err, ErrOrderNotFound):
		s.logger.Warn("reclamation skipped, order no longer exists", zap.String("order_id", orderID))
		return nil
	default:
		return err
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, classify("get order", err)
	}
	return o, nil
}

func (s *Service) cancel(ctx context.Context, orderID, reason string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID), attribute.String("reason", reason))

	o, err := s.transition(ctx, orderID, StatusCancelled)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.afterCommit(ctx, Event{Type: EventOrderCancelled, Order: o, Reason: reason})
	return o, nil
}

// transition moves a CREATED order to `to` under the store's row lock; cancelling also
// releases the reserved stock in the same transaction.
func (s *Service) transition(ctx context.Context, orderID string, to Status) (*Order, error) {
	var updated *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.OrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := AssertMutable(o); err != nil {
			return err
		}
		if to == StatusCancelled {
			if err := s.release(ctx, tx, o); err != nil {
				return err
			}
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, o.Status, to); err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = s.now().UTC()
		updated = o
		return nil
	})
	if errors.Is(err, ErrStatusConflict) {
		// kalah race: laporkan status terminal yang menang
		if cur, gerr := s.store.GetOrder(ctx, orderID); gerr == nil && cur.Status.Terminal() {
			return nil, &TransitionError{OrderID: orderID, Status: cur.Status}
		}
	}
	if err != nil {
		return nil, classify(fmt.Sprintf("%s order %s", verb(to), orderID), err)
	}
	return updated, nil
}

// release returns the reserved quantities. Products are locked through ProductsByIDs in
// the same id order CreateOrder uses, so a cancel never waits on a create in the opposite order.
func (s *Service) release(ctx context.Context, tx Tx, o *Order) error {
	qty := make(map[string]int, len(o.Lines))
	for _, l := range o.Lines {
		qty[l.ProductID] += l.Quantity
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	products, err := tx.ProductsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			s.logger.Warn("stock release skipped, product no longer exists",
				zap.String("order_id", o.ID),
				zap.String("product_id", id),
				zap.Int("quantity", qty[id]))
			continue
		}
		if err := tx.AdjustStock(ctx, id, qty[id]); err != nil {
			return fmt.Errorf("release %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, ev Event) {
	if s.cache != nil {
		if err := s.cache.SetStatus(ctx, ev.Order.ID, ev.Order.Status); err != nil {
			s.logger.Warn("failed to cache order status", zap.String("order_id", ev.Order.ID), zap.Error(err))
		}
	}
	if s.products != nil && ev.Type != EventOrderPaid {
		// stok berubah, daftar produk yang di-cache sudah basi
		if err := s.products.InvalidateProducts(ctx); err != nil {
			s.logger.Warn("failed to invalidate product cache", zap.String("order_id", ev.Order.ID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("failed to publish order event",
				zap.String("order_id", ev.Order.ID), zap.String("event_type", ev.Type), zap.Error(err))
		}
	}
}

// requiredQuantities validates lines and sums the requested quantity per product,
// keeping product ids in order of first appearance.
func requiredQuantities(lines []LineInput) (map[string]int, []string, error) {
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: order has no lines", ErrInvalidOrder)
	}
	required := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for i, l := range lines {
		if l.ProductID == "" {
			return nil, nil, fmt.Errorf("%w: line %d has no product id", ErrInvalidOrder, i)
		}
		if l.Quantity <= 0 || l.Quantity > MaxQuantity {
			return nil, nil, fmt.Errorf("%w: invalid quantity %d for product %s", ErrInvalidOrder, l.Quantity, l.ProductID)
		}
		// kedua operand <= MaxQuantity, jadi pengecekan ini tidak bisa overflow
		if required[l.ProductID] > MaxQuantity-l.Quantity {
			return nil, nil, fmt.Errorf("%w: total quantity for product %s exceeds %d", ErrInvalidOrder, l.ProductID, MaxQuantity)
		}
		if _, seen := required[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		required[l.ProductID] += l.Quantity
	}
	return required, ids, nil
}

// classify keeps domain errors as they are and wraps everything else as ErrOrderProcessing.
func classify(op string, err error) error {
	for _, kind := range []error{
		ErrInvalidOrder, ErrProductNotFound, ErrStockExceeded, ErrOrderNotFound,
		ErrInvalidStatusTransition, ErrOrderProcessing,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return processing(op, err)
}

func verb(to Status) string {
	if to == StatusPaid {
		return "pay"
	}
	return "cancel"
}
