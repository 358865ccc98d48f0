package user

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"webshop/internal/domain"
	"webshop/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id::text, name, email, password_hash, role, address, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log).With("repo", "user")}
}

func (r *postgresRepo) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	addrJSON, err := json.Marshal(u.Address)
	if err != nil {
		return nil, err
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	const q = `
INSERT INTO users (name, email, password_hash, role, address)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns
	return r.scanUser(r.pool.QueryRow(ctx, q,
		u.Name,
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.PasswordHash,
		string(u.Role),
		addrJSON,
	))
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) LIMIT 1`
	return r.scanUser(r.pool.QueryRow(ctx, q, strings.TrimSpace(email)))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	return r.scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u        domain.User
		role     string
		addrJSON []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &addrJSON, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("scan failed", "error", err)
		return nil, err
	}
	u.Role = domain.Role(role)
	if len(addrJSON) > 0 {
		if err := json.Unmarshal(addrJSON, &u.Address); err != nil {
			r.logger.Error("decode address failed", "id", u.ID, "error", err)
			return nil, err
		}
	}
	return &u, nil
}
