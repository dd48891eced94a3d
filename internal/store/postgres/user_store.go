package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swivlabs/swivd/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// EnsureExists creates a user row for the wallet if one is not present.
// Existing rows are left untouched.
func (s *UserStore) EnsureExists(ctx context.Context, wallet string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (wallet) VALUES ($1) ON CONFLICT (wallet) DO NOTHING`, wallet)
	if err != nil {
		return fmt.Errorf("postgres: ensure user %s: %w", wallet, err)
	}
	return nil
}

// Get retrieves a user by wallet address.
func (s *UserStore) Get(ctx context.Context, wallet string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT wallet, created_at FROM users WHERE wallet = $1`, wallet).
		Scan(&u.Wallet, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", wallet, err)
	}
	return u, nil
}

// Count returns the total number of known users.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count users: %w", err)
	}
	return count, nil
}

var _ domain.UserStore = (*UserStore)(nil)
