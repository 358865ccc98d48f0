package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"webshop/internal/domain"
	"webshop/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id::text, name, description, price_cents, category, brand, stock, status, images,
       featured, rating_average, rating_count, created_at, updated_at`

// sortColumns whitelists the sortable fields accepted from clients.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"price":     "price_cents",
	"name":      "name",
	"stock":     "stock",
	"category":  "category",
	"brand":     "brand",
	"rating":    "rating_average",
}

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log).With("repo", "product")}
}

func (r *postgresRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		r.logger.Error("count failed", "error", err)
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, where, orderBy(f.SortField, f.SortDesc), len(args)+1, len(args)+2)
	args = append(args, f.Page.Limit, f.Page.Offset())

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("list failed", "error", err)
		return nil, 0, err
	}
	defer rows.Close()

	result := make([]domain.Product, 0, f.Page.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list rows failed", "error", err)
		return nil, 0, err
	}
	r.logger.Debug("listed products", "count", len(result), "total", total)
	return result, total, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("get failed", "id", id, "error", err)
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	images, err := json.Marshal(nonNilImages(p.Images))
	if err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = domain.ProductActive
	}
	const q = `
INSERT INTO products (name, description, price_cents, category, brand, stock, status, images, featured, rating_average, rating_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + productColumns
	created, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.Name, p.Description, p.PriceCents, p.Category, p.Brand, p.Stock, string(p.Status), images,
		p.Featured, p.Rating.Average, p.Rating.Count,
	))
	if err != nil {
		r.logger.Error("create failed", "name", p.Name, "error", err)
		return nil, err
	}
	r.logger.Info("product created", "id", created.ID, "name", created.Name)
	return created, nil
}

func (r *postgresRepo) Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	sets := []string{"updated_at = now()"}
	var args []interface{}
	add := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.PriceCents != nil {
		add("price_cents", *patch.PriceCents)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Brand != nil {
		add("brand", *patch.Brand)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	if patch.Images != nil {
		images, err := json.Marshal(patch.Images)
		if err != nil {
			return nil, err
		}
		add("images", images)
	}
	if patch.Featured != nil {
		add("featured", *patch.Featured)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), productColumns)

	updated, err := scanProduct(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("update failed", "id", id, "error", err)
		}
		return nil, err
	}
	r.logger.Info("product updated", "id", id, "fields", len(sets)-1)
	return updated, nil
}

// Upsert inserts or refreshes a product keyed by its unique name; used by seeding and imports.
func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	images, err := json.Marshal(nonNilImages(p.Images))
	if err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = domain.ProductActive
	}
	const q = `
INSERT INTO products (name, description, price_cents, category, brand, stock, status, images, featured, rating_average, rating_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (name) DO UPDATE SET
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    category = EXCLUDED.category,
    brand = EXCLUDED.brand,
    stock = EXCLUDED.stock,
    status = EXCLUDED.status,
    images = EXCLUDED.images,
    featured = EXCLUDED.featured,
    rating_average = EXCLUDED.rating_average,
    rating_count = EXCLUDED.rating_count,
    updated_at = now()
RETURNING ` + productColumns
	res, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.Name, p.Description, p.PriceCents, p.Category, p.Brand, p.Stock, string(p.Status), images,
		p.Featured, p.Rating.Average, p.Rating.Count,
	))
	if err != nil {
		r.logger.Error("upsert failed", "name", p.Name, "error", err)
		return nil, err
	}
	r.logger.Debug("product upserted", "id", res.ID, "name", res.Name)
	return res, nil
}

func (r *postgresRepo) DistinctCategories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "category")
}

func (r *postgresRepo) DistinctBrands(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "brand")
}

func (r *postgresRepo) distinct(ctx context.Context, column string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM products WHERE status = 'active' AND %[1]s <> '' ORDER BY %[1]s`, column)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return values, nil
}

func buildWhere(f domain.ProductFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludeRetired {
		conds = append(conds, "status = 'active'")
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Brand != "" {
		add("brand = $%d", f.Brand)
	}
	if f.MinPriceCents != nil {
		add("price_cents >= $%d", *f.MinPriceCents)
	}
	if f.MaxPriceCents != nil {
		add("price_cents <= $%d", *f.MaxPriceCents)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("to_tsvector('simple', name || ' ' || description || ' ' || brand) @@ plainto_tsquery('simple', $%d)", s)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(field string, desc bool) string {
	column, ok := sortColumns[field]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return column + " " + dir + ", id " + dir
}

func nonNilImages(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p      domain.Product
		status string
		images []byte
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Category,
		&p.Brand,
		&p.Stock,
		&status,
		&images,
		&p.Featured,
		&p.Rating.Average,
		&p.Rating.Count,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	p.Status = domain.ProductStatus(status)
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("decode images for product %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
