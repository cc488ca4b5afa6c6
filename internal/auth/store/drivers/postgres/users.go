package postgres

import (
	"context"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	const op = "postgres.GetUserByID"

	query := `
		SELECT id, email, password_hash, role, created_at, last_login_at
		FROM users
		WHERE id = $1
	`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.User{}, mapError(op, err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	const op = "postgres.GetUserByEmail"

	query := `
		SELECT id, email, password_hash, role, created_at, last_login_at
		FROM users
		WHERE lower(email) = lower($1)
	`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return domain.User{}, mapError(op, err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	const op = "postgres.CreateUser"

	query := `
		INSERT INTO users (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt.UTC()); err != nil {
		return mapError(op, err)
	}
	return nil
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	const op = "postgres.UpdateLastLogin"

	query := `
		UPDATE users
		SET last_login_at = $1
		WHERE id = $2
	`

	res, err := r.db.ExecContext(ctx, query, at.UTC(), userID)
	if err != nil {
		return mapError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
