package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderSelectCols = `id, user_id, order_type, status, order_number,
	currency, subtotal, taxes, total_amount, created_at, updated_at`

func scanOrderRow(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var orderType, status string

	err := row.Scan(
		&o.ID, &o.UserID, &orderType, &status, &o.OrderNumber,
		&o.Currency, &o.Subtotal, &o.Taxes, &o.TotalAmount,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// isSerializationFailure reports whether err is a transaction-level conflict
// that is safe to retry (serialization failure or deadlock).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// Create inserts the order and all of its items in one transaction.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create order: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertOrder = `
		INSERT INTO orders (
			id, user_id, order_type, status, order_number,
			currency, subtotal, taxes, total_amount, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $10
		)`

	_, err = tx.Exec(ctx, insertOrder,
		o.ID, o.UserID, string(o.Type), string(o.Status), o.OrderNumber,
		o.Currency, o.Subtotal, o.Taxes, o.TotalAmount, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}

	const insertItem = `
		INSERT INTO order_items (
			id, order_id, product_id, product_name, quantity, unit_price, total_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, insertItem,
			it.ID, o.ID, it.ProductID, it.ProductName,
			it.Quantity, it.UnitPrice, it.TotalPrice,
		); err != nil {
			return fmt.Errorf("postgres: create order item %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create order %s: %w", o.ID, err)
	}
	return nil
}

const itemSelectCols = `id, order_id, product_id, product_name, quantity, unit_price, total_price`

// listItems loads the order's items using the given querier (pool or tx).
func listItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT `+itemSelectCols+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByID retrieves a single order with its items loaded.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}

	items, err := listItems(ctx, s.pool, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: get order items %s: %w", id, err)
	}
	o.Items = items
	return o, nil
}

// ListByUser returns the user's orders, newest first, without items.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by user: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders by user: %w", err)
	}
	return orders, nil
}

// Advance moves the order one step along the lifecycle. The status read, the
// status write, and any position inserts happen inside one transaction, with
// the order row locked for its duration, so concurrent advances on the same
// order serialize: the loser either blocks until the winner commits (and then
// sees the new status) or fails the check-and-set guard below.
func (s *OrderStore) Advance(ctx context.Context, id string) (domain.AdvanceResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return domain.AdvanceResult{}, fmt.Errorf("postgres: begin advance %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1 FOR UPDATE`, id)

	o, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AdvanceResult{}, domain.ErrNotFound
		}
		if isSerializationFailure(err) {
			return domain.AdvanceResult{}, domain.ErrConflict
		}
		return domain.AdvanceResult{}, fmt.Errorf("postgres: advance read %s: %w", id, err)
	}

	next, err := domain.NextOrderStatus(o.Status)
	if err != nil {
		return domain.AdvanceResult{}, err
	}

	// Check-and-set on the prior status. With the row lock this cannot
	// normally miss, but it keeps the transition safe even if the lock is
	// ever weakened.
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		string(next), id, string(o.Status),
	)
	if err != nil {
		if isSerializationFailure(err) {
			return domain.AdvanceResult{}, domain.ErrConflict
		}
		return domain.AdvanceResult{}, fmt.Errorf("postgres: advance write %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.AdvanceResult{}, domain.ErrConflict
	}

	var positions []domain.Position
	if next == domain.OrderStatusDelivered {
		items, err := listItems(ctx, tx, id)
		if err != nil {
			return domain.AdvanceResult{}, fmt.Errorf("postgres: advance load items %s: %w", id, err)
		}
		o.Items = items

		positions, err = domain.MaterializePositions(o, items, time.Now().UTC())
		if err != nil {
			return domain.AdvanceResult{}, err
		}

		for _, p := range positions {
			if err := insertPosition(ctx, tx, p); err != nil {
				if isSerializationFailure(err) {
					return domain.AdvanceResult{}, domain.ErrConflict
				}
				return domain.AdvanceResult{}, fmt.Errorf("postgres: advance insert position %s: %w", p.ID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return domain.AdvanceResult{}, domain.ErrConflict
		}
		return domain.AdvanceResult{}, fmt.Errorf("postgres: commit advance %s: %w", id, err)
	}

	o.Status = next
	return domain.AdvanceResult{Order: o, Positions: positions}, nil
}

// ListDeliveredBefore returns delivered orders last updated strictly before
// the cutoff, for archival.
func (s *OrderStore) ListDeliveredBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE status = 'delivered' AND updated_at < $1
		 ORDER BY updated_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list delivered orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan delivered orders: %w", err)
	}
	return orders, nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
