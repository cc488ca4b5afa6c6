package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/metrics"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/cryptox"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/idx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
)

// DefaultStoreTimeout bounds every store round trip made while rotating or
// revoking a refresh token.
const DefaultStoreTimeout = 3 * time.Second

// TokenService mints token pairs and owns the refresh ledger. The ledger is
// the only authority on whether a refresh token may still be used; the
// token's signature merely gets it through the door.
type TokenService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Store    store.Store

	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	StoreTimeout time.Duration
	Metrics      *metrics.Metrics

	// OnReuse is called when an already revoked refresh token is presented.
	// The rotation still fails with ErrRefreshRevoked.
	OnReuse func(ctx context.Context, rec domain.RefreshToken)

	// Now overrides the clock for tests.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// storeContext bounds one unit of store work by StoreTimeout.
func (s *TokenService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// IssuePair signs a fresh access and refresh token for u and records the
// refresh token in the ledger through tx.
func (s *TokenService) IssuePair(ctx context.Context, tx store.Tx, u domain.User) (domain.TokenPair, error) {
	return s.issuePair(ctx, tx.RefreshTokens(), u, s.now())
}

func (s *TokenService) issuePair(
	ctx context.Context,
	repo store.RefreshTokens,
	u domain.User,
	now time.Time,
) (domain.TokenPair, error) {
	accessClaims := jwtx.NewClaims(
		jwtx.TokenTypeAccess, u.ID, u.Role.String(), u.Email,
		s.accessTTL(), s.Issuer, s.Audience, now,
	)
	access, err := s.Signer.Sign(accessClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := jwtx.NewClaims(
		jwtx.TokenTypeRefresh, u.ID, "", "",
		s.refreshTTL(), s.Issuer, s.Audience, now,
	)
	refresh, err := s.Signer.Sign(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	rec := domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: refreshClaims.ExpiresAt.Time.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateRefreshToken(ctx, rec); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.accessTTL(),
	}, nil
}

// Rotate exchanges a refresh token for a new pair and retires the old one.
// Of any number of concurrent calls with the same token at most one
// succeeds; the rest fail with ErrRefreshRevoked.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (pair domain.TokenPair, err error) {
	defer func() { s.Metrics.Refresh(resultLabel(err)) }()

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	claims, err := s.Verifier.Verify(refreshToken)
	if err != nil && !errors.Is(err, jwtx.ErrExpired) {
		return domain.TokenPair{}, ErrInvalidRefresh
	}
	if claims.ValidateType(jwtx.TokenTypeRefresh) != nil {
		return domain.TokenPair{}, ErrInvalidRefresh
	}
	tokenExpired := errors.Is(err, jwtx.ErrExpired)

	hash := cryptox.FingerprintToken(refreshToken)
	rec, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	switch {
	case errors.Is(err, store.ErrNotFound) && tokenExpired:
		// Housekeeping may have pruned the record after expiry.
		return domain.TokenPair{}, ErrRefreshExpired
	case errors.Is(err, store.ErrNotFound):
		return domain.TokenPair{}, ErrRefreshRevoked
	case err != nil:
		return domain.TokenPair{}, s.storeError("lookup refresh token", err)
	}

	if rec.UserID != claims.Subject {
		return domain.TokenPair{}, ErrInvalidRefresh
	}
	if rec.Revoked {
		s.reuse(ctx, rec)
		return domain.TokenPair{}, ErrRefreshRevoked
	}

	now := s.now()
	if rec.Expired(now) {
		return domain.TokenPair{}, ErrRefreshExpired
	}

	u, err := s.Store.Users().GetUserByID(ctx, rec.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.TokenPair{}, ErrInvalidRefresh
	case err != nil:
		return domain.TokenPair{}, s.storeError("lookup user", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		won, err := tx.RefreshTokens().RevokeRefreshTokenIfActive(ctx, hash)
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}
		pair, err = s.issuePair(ctx, tx.RefreshTokens(), u, now)
		return err
	})
	switch {
	case errors.Is(err, errLostRace):
		s.reuse(ctx, rec)
		return domain.TokenPair{}, ErrRefreshRevoked
	case errors.Is(err, store.ErrNotFound):
		return domain.TokenPair{}, ErrRefreshRevoked
	case err != nil:
		return domain.TokenPair{}, s.storeError("rotate refresh token", err)
	}

	slogx.FromContext(ctx).Debug("refresh token rotated",
		slog.String("user_id", u.ID),
		slog.String("refresh_id", rec.ID),
	)
	return pair, nil
}

// Revoke retires a refresh token. Unknown and already revoked tokens are not
// an error, so callers cannot probe whether a token ever existed.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	hash := cryptox.FingerprintToken(refreshToken)
	_, err := s.Store.RefreshTokens().RevokeRefreshTokenIfActive(ctx, hash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// storeError fails closed on timeouts; anything else is an infrastructure
// error for the caller to surface.
func (s *TokenService) storeError(op string, err error) error {
	if timedOut(err) {
		return ErrInvalidRefresh
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *TokenService) reuse(ctx context.Context, rec domain.RefreshToken) {
	slogx.FromContext(ctx).Warn("revoked refresh token presented",
		slog.String("user_id", rec.UserID),
		slog.String("refresh_id", rec.ID),
	)
	s.Metrics.RefreshReuse()
	if s.OnReuse != nil {
		s.OnReuse(ctx, rec)
	}
}
