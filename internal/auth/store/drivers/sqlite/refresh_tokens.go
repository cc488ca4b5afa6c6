package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
)

const (
	createRefreshTokenQuery = `
INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at, updated_at)
VALUES (?, ?, ?, ?, 0, ?, ?)`

	getRefreshTokenByHashQuery = `
SELECT id, user_id, token_hash, expires_at, revoked, created_at, updated_at
FROM refresh_tokens WHERE token_hash = ?`

	revokeRefreshTokenIfActiveQuery = `
UPDATE refresh_tokens SET revoked = 1, updated_at = ?
WHERE token_hash = ? AND revoked = 0`

	refreshTokenExistsQuery = `SELECT 1 FROM refresh_tokens WHERE token_hash = ?`

	deleteRevokedRefreshTokensQuery = `DELETE FROM refresh_tokens WHERE revoked = 1 AND expires_at < ?`
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := t.CreatedAt.UTC()
	_, err := r.db.ExecContext(ctx, createRefreshTokenQuery,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("sqlite: create refresh token: %w", mapUniqueViolation(err))
	}
	return nil
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	t, err := scanRefreshToken(r.db.QueryRowContext(ctx, getRefreshTokenByHashQuery, hash))
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshTokenIfActive(ctx context.Context, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, revokeRefreshTokenIfActiveQuery, time.Now().UTC(), hash)
	if err != nil {
		return false, fmt.Errorf("sqlite: revoke refresh token: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: revoke refresh token: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	// Nothing flipped: either already revoked or never existed.
	var one int
	err = r.db.QueryRowContext(ctx, refreshTokenExistsQuery, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: revoke refresh token: %w", err)
	}
	return false, nil
}

func (r *refreshTokensRepo) DeleteRevokedRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteRevokedRefreshTokensQuery, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete revoked refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
