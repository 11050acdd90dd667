package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, user_id, product_id, portfolio_id, purchase_date,
	purchase_price, market_price, quantity, status, custody_service,
	created_at, updated_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status string

	err := row.Scan(
		&p.ID, &p.UserID, &p.ProductID, &p.PortfolioID, &p.PurchaseDate,
		&p.PurchasePrice, &p.MarketPrice, &p.Quantity, &status, &p.CustodyService,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}

	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// insertPosition writes a position using the given executor, so order
// delivery can insert inside its own transaction.
func insertPosition(ctx context.Context, ex interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}, p domain.Position) error {
	const insert = `
		INSERT INTO positions (
			id, user_id, product_id, portfolio_id, purchase_date,
			purchase_price, market_price, quantity, status, custody_service,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $11
		)`

	_, err := ex.Exec(ctx, insert,
		p.ID, p.UserID, p.ProductID, p.PortfolioID, p.PurchaseDate,
		p.PurchasePrice, p.MarketPrice, p.Quantity, string(p.Status), p.CustodyService,
		p.CreatedAt,
	)
	return err
}

// GetByID retrieves a single position.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListByUser returns all of the user's positions, newest first.
func (s *PositionStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by user: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions by user: %w", err)
	}
	return positions, nil
}

// ListActive returns the user's active positions, newest first.
func (s *PositionStore) ListActive(ctx context.Context, userID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE user_id = $1 AND status = 'active'
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active positions: %w", err)
	}
	return positions, nil
}

// UpdateMarketPrice revalues every active position holding the product and
// returns the number of rows touched.
func (s *PositionStore) UpdateMarketPrice(ctx context.Context, productID string, price float64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET market_price = $1, updated_at = NOW()
		 WHERE product_id = $2 AND status = 'active'`, price, productID)
	if err != nil {
		return 0, fmt.Errorf("postgres: update market price for %s: %w", productID, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
