package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements orders.Store on Postgres. Row locks (FOR UPDATE) serialize
// competing transactions on the same order/products.
type Store struct {
	DB     *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(db *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{DB: db, logger: logger}
}

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		rbCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(&pgTx{q: tx}); err != nil {
		return err // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	return loadOrder(ctx, s.DB, id, false)
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name, price::text, quantity, created_at, updated_at
	                               FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*orders.Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT id, name, price::text, quantity, created_at, updated_at
	                            FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *orders.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products(id, name, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Price.String(), p.Quantity, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) UpdateProduct(ctx context.Context, p *orders.Product) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET name=$2, price=$3, quantity=$4, updated_at=$5
		WHERE id=$1`, p.ID, p.Name, p.Price.String(), p.Quantity, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrProductNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrProductNotFound
	}
	return nil
}

type pgTx struct{ q querier }

// ProductsByIDs lock produk dengan urutan id yang sama di setiap tx supaya tidak deadlock.
func (t *pgTx) ProductsByIDs(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, name, price::text, quantity, created_at, updated_at
		FROM products WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]orders.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *pgTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE products SET quantity = quantity + $2, updated_at = now()
		WHERE id=$1 AND quantity + $2 >= 0`, productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return orders.ErrProductNotFound
	}
	return orders.ErrInsufficientStock
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, string(o.Status), o.Total.String(), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for i, l := range o.Lines {
		_, err = t.q.Exec(ctx, `
			INSERT INTO order_lines(order_id, line_no, product_id, quantity)
			VALUES ($1, $2, $3, $4)`,
			o.ID, i, l.ProductID, l.Quantity,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) OrderByID(ctx context.Context, id string) (*orders.Order, error) {
	return loadOrder(ctx, t.q, id, true)
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id string, from, to orders.Status) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return orders.ErrOrderNotFound
	}
	return orders.ErrStatusConflict
}

func loadOrder(ctx context.Context, q querier, id string, lock bool) (*orders.Order, error) {
	query := `SELECT id, status, total::text, created_at, updated_at FROM orders WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		o     orders.Order
		st    string
		total string
	)
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &st, &total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(st)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", id, err)
	}

	rows, err := q.Query(ctx, `SELECT product_id, quantity FROM order_lines
	                            WHERE order_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l orders.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var (
		p     orders.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return p, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	p.Price = d
	return p, nil
}
