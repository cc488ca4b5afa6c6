package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
)

const (
	getUserByIDQuery = `
SELECT id, email, password_hash, role, created_at, last_login_at
FROM users WHERE id = ?`

	getUserByEmailQuery = `
SELECT id, email, password_hash, role, created_at, last_login_at
FROM users WHERE email = ? COLLATE NOCASE`

	createUserQuery = `
INSERT INTO users (id, email, password_hash, role, created_at)
VALUES (?, ?, ?, ?, ?)`

	updateLastLoginQuery = `UPDATE users SET last_login_at = ? WHERE id = ?`
)

type usersRepo struct {
	db dbtx
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByIDQuery, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByEmailQuery, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, createUserQuery,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: create user: %w", mapUniqueViolation(err))
	}
	return nil
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, updateLastLoginQuery, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: update last login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
