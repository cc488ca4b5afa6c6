package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	const op = "postgres.CreateRefreshToken"

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
	`

	if _, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt.UTC(), t.CreatedAt.UTC()); err != nil {
		return mapError(op, err)
	}
	return nil
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	const op = "postgres.GetRefreshTokenByHash"

	query := `
		SELECT id, user_id, token_hash, expires_at, revoked, created_at, updated_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var t domain.RefreshToken
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.Revoked,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapError(op, err)
	}

	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// RevokeRefreshTokenIfActive relies on the row lock taken by UPDATE: a
// concurrent second UPDATE waits, re-checks revoked = FALSE and matches
// nothing.
func (r *refreshTokensRepo) RevokeRefreshTokenIfActive(ctx context.Context, hash string) (bool, error) {
	const op = "postgres.RevokeRefreshTokenIfActive"

	upd := `
		UPDATE refresh_tokens
		SET revoked = TRUE, updated_at = $2
		WHERE token_hash = $1 AND revoked = FALSE
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, upd, hash, time.Now().UTC()).Scan(&id)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, mapError(op, err)
	}

	sel := `
		SELECT revoked
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var revoked bool
	if err := r.db.QueryRowContext(ctx, sel, hash).Scan(&revoked); err != nil {
		return false, mapError(op, err)
	}
	return false, nil
}

func (r *refreshTokensRepo) DeleteRevokedRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	const op = "postgres.DeleteRevokedRefreshTokens"

	query := `
		DELETE FROM refresh_tokens
		WHERE revoked = TRUE AND expires_at < $1
	`

	res, err := r.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, mapError(op, err)
	}
	return res.RowsAffected()
}
