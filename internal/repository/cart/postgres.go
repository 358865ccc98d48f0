package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"webshop/internal/domain"
	"webshop/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log).With("repo", "cart")}
}

func (r *postgresRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	const q = `
SELECT id::text, user_id::text, total_cents, created_at, updated_at
FROM carts
WHERE user_id = $1
`
	return fetchCart(ctx, r.pool, q, userID)
}

func (r *postgresRepo) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := ensureCart(ctx, r.pool, userID); err != nil {
		r.logger.Error("ensure cart failed", "user_id", userID, "error", err)
		return nil, err
	}
	return r.GetByUser(ctx, userID)
}

func (r *postgresRepo) Mutate(ctx context.Context, userID string, fn MutateFunc) (*domain.Cart, error) {
	if err := ensureCart(ctx, r.pool, userID); err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const lockQuery = `
SELECT id::text, user_id::text, total_cents, created_at, updated_at
FROM carts
WHERE user_id = $1
FOR UPDATE
`
	cart, err := fetchCart(ctx, tx, lockQuery, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	cart.Recalculate()

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cart.ID); err != nil {
		return nil, fmt.Errorf("delete cart lines: %w", err)
	}
	for i, line := range cart.Lines {
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_lines (cart_id, product_id, position, quantity, unit_price_cents, total_cents, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, cart.ID, line.ProductID, i, line.Quantity, line.UnitPriceCents, line.TotalCents, line.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert cart line: %w", err)
		}
	}
	if err := tx.QueryRow(ctx, `
UPDATE carts
SET total_cents = $1, updated_at = now()
WHERE id = $2
RETURNING updated_at
`, cart.TotalCents, cart.ID).Scan(&cart.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update cart total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("cart saved", "cart_id", cart.ID, "lines", len(cart.Lines), "total_cents", cart.TotalCents)
	return cart, nil
}

func ensureCart(ctx context.Context, pool *pgxpool.Pool, userID string) error {
	_, err := pool.Exec(ctx, `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO NOTHING
`, userID)
	return err
}

func fetchCart(ctx context.Context, db querier, cartQuery string, args ...interface{}) (*domain.Cart, error) {
	var cart domain.Cart
	err := db.QueryRow(ctx, cartQuery, args...).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.TotalCents,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT l.product_id::text, l.quantity, l.unit_price_cents, l.total_cents, l.created_at,
       p.name, p.description, p.price_cents, p.category, p.brand, p.stock, p.status, p.images, p.featured
FROM cart_lines l
JOIN products p ON p.id = l.product_id
WHERE l.cart_id = $1
ORDER BY l.position ASC
`
	rows, err := db.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line   domain.CartLine
			p      domain.Product
			status string
			images []byte
		)
		if err := rows.Scan(
			&line.ProductID,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.TotalCents,
			&line.CreatedAt,
			&p.Name,
			&p.Description,
			&p.PriceCents,
			&p.Category,
			&p.Brand,
			&p.Stock,
			&status,
			&images,
			&p.Featured,
		); err != nil {
			return nil, err
		}
		p.ID = line.ProductID
		p.Status = domain.ProductStatus(status)
		if len(images) > 0 {
			if err := json.Unmarshal(images, &p.Images); err != nil {
				return nil, fmt.Errorf("decode images for product %s: %w", p.ID, err)
			}
		}
		line.Product = &p
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}
