package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"webshop/internal/domain"
	"webshop/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id::text, order_number, user_id::text, shipping_address, payment_method, total_cents,
       status, payment_status, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log).With("repo", "order")}
}

func (r *postgresRepo) Place(ctx context.Context, in PlaceInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", domain.ErrInvalidState)
	}
	address, err := json.Marshal(in.ShippingAddress)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var cartVersion time.Time
	if err := tx.QueryRow(ctx, `SELECT updated_at FROM carts WHERE id = $1 AND user_id = $2 FOR UPDATE`, in.CartID, in.UserID).Scan(&cartVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cart is empty: %w", domain.ErrInvalidState)
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}
	if !cartVersion.Equal(in.CartVersion) {
		return nil, fmt.Errorf("cart changed during checkout: %w", domain.ErrInvalidState)
	}

	if err := reserveStock(ctx, tx, in.Items); err != nil {
		return nil, err
	}

	const insertOrder = `
INSERT INTO orders (order_number, user_id, shipping_address, payment_method, total_cents, status, payment_status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + orderColumns
	o, err := scanOrder(tx.QueryRow(ctx, insertOrder,
		in.OrderNumber, in.UserID, address, string(in.PaymentMethod), in.TotalCents,
		string(domain.OrderPending), string(domain.PaymentPending),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}
	order := *o

	for i, item := range in.Items {
		if _, err := tx.Exec(ctx, `
INSERT INTO order_items (order_id, position, product_id, name, price_cents, quantity)
VALUES ($1, $2, $3, $4, $5, $6)
`, order.ID, i, item.ProductID, item.Name, item.PriceCents, item.Quantity); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}
	order.Items = append([]domain.OrderItem(nil), in.Items...)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, in.CartID); err != nil {
		return nil, fmt.Errorf("clear cart lines: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET total_cents = 0, updated_at = now() WHERE id = $1`, in.CartID); err != nil {
		return nil, fmt.Errorf("reset cart total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", order.UserID,
		"items", len(order.Items),
		"total_cents", order.TotalCents,
	)
	return &order, nil
}

// reserveStock locks the referenced products in id order and decrements them with a guarded update.
func reserveStock(ctx context.Context, tx pgx.Tx, items []domain.OrderItem) error {
	wanted := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := wanted[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}
	sort.Strings(ids)

	type lockedProduct struct {
		name   string
		stock  int
		active bool
	}
	locked := make(map[string]lockedProduct, len(ids))
	rows, err := tx.Query(ctx, `
SELECT id::text, name, stock, status
FROM products
WHERE id = ANY($1::text[]::uuid[])
ORDER BY id
FOR UPDATE
`, ids)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	for rows.Next() {
		var id, name, status string
		var stock int
		if err := rows.Scan(&id, &name, &stock, &status); err != nil {
			rows.Close()
			return err
		}
		locked[id] = lockedProduct{name: name, stock: stock, active: status == string(domain.ProductActive)}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, item := range items {
		p, ok := locked[item.ProductID]
		if !ok || !p.active || p.stock < wanted[item.ProductID] {
			return &domain.InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Requested:   wanted[item.ProductID],
				Available:   p.stock,
			}
		}
	}

	for _, id := range ids {
		cmd, err := tx.Exec(ctx, `
UPDATE products
SET stock = stock - $1, updated_at = now()
WHERE id = $2 AND stock >= $1
`, wanted[id], id)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return &domain.InsufficientStockError{ProductID: id, ProductName: locked[id].name, Requested: wanted[id], Available: locked[id].stock}
		}
	}
	return nil
}

func restoreStock(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
UPDATE products p
SET stock = p.stock + i.quantity, updated_at = now()
FROM (
    SELECT product_id, SUM(quantity) AS quantity
    FROM order_items
    WHERE order_id = $1
    GROUP BY product_id
) i
WHERE p.id = i.product_id
`, orderID)
	return err
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *postgresRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	var (
		where string
		args  []interface{}
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		if where == "" {
			where = fmt.Sprintf(" WHERE status = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND status = $%d", len(args))
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		r.logger.Error("count failed", "error", err)
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Page.Limit, f.Page.Offset())
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("list failed", "error", err)
		return nil, 0, err
	}
	defer rows.Close()

	var (
		orders = make([]domain.Order, 0, f.Page.Limit)
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	if len(ids) > 0 {
		items, err := r.loadItems(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range orders {
			orders[i].Items = items[orders[i].ID]
		}
	}
	return orders, total, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", err
	}
	previous := domain.OrderStatus(current)
	if !previous.CanTransitionTo(next) {
		return nil, "", fmt.Errorf("cannot move order from %s to %s: %w", previous, next, domain.ErrInvalidState)
	}

	if previous != next {
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, string(next), id); err != nil {
			return nil, "", fmt.Errorf("update status: %w", err)
		}
		if next == domain.OrderCancelled {
			if err := restoreStock(ctx, tx, id); err != nil {
				return nil, "", fmt.Errorf("restore stock: %w", err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	if previous != next {
		r.logger.Info("order status changed", "order_id", id, "from", previous, "to", next)
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return order, previous, nil
}

func (r *postgresRepo) UpdatePaymentStatus(ctx context.Context, id string, next domain.PaymentStatus) (*domain.Order, domain.PaymentStatus, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	var current string
	if err := tx.QueryRow(ctx, `SELECT payment_status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", err
	}
	previous := domain.PaymentStatus(current)
	if !previous.CanTransitionTo(next) {
		return nil, "", fmt.Errorf("cannot move payment from %s to %s: %w", previous, next, domain.ErrInvalidState)
	}
	if previous != next {
		if _, err := tx.Exec(ctx, `UPDATE orders SET payment_status = $1, updated_at = now() WHERE id = $2`, string(next), id); err != nil {
			return nil, "", fmt.Errorf("update payment status: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return order, previous, nil
}

func (r *postgresRepo) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
SELECT order_id::text, product_id::text, name, price_cents, quantity
FROM order_items
WHERE order_id = ANY($1::text[]::uuid[])
ORDER BY order_id, position
`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.PriceCents, &item.Quantity); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], item)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o             domain.Order
		address       []byte
		method        string
		status        string
		paymentStatus string
	)
	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&address,
		&method,
		&o.TotalCents,
		&status,
		&paymentStatus,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address for order %s: %w", o.ID, err)
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return &o, nil
}
