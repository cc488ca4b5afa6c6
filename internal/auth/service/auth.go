package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/metrics"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/cryptox"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/idx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
)

// AuthService handles sign-up and password login. Token minting is
// delegated to TokenService.
type AuthService struct {
	Store   store.Store
	Hasher  *cryptox.Hasher
	Tokens  *TokenService
	Metrics *metrics.Metrics
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns its first token pair. The user
// row and the refresh record are written in one transaction.
func (s *AuthService) Register(
	ctx context.Context,
	email, password string,
	role domain.Role,
) (u domain.User, pair domain.TokenPair, err error) {
	defer func() { s.Metrics.Registration(resultLabel(err)) }()

	if !role.SelfRegistrable() {
		return domain.User{}, domain.TokenPair{}, ErrRoleNotAllowed
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Tokens.now()
	u = domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
	}

	tctx, cancel := s.Tokens.storeContext(ctx)
	defer cancel()

	err = s.Store.WithTx(tctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(tctx, u); err != nil {
			return err
		}
		pair, err = s.Tokens.IssuePair(tctx, tx, u)
		return err
	})
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.User{}, domain.TokenPair{}, ErrEmailInUse
	case err != nil:
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("register: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", u.ID),
		slog.String("role", u.Role.String()),
	)
	return u, pair, nil
}

// Login checks the password and returns a new token pair. It never says
// whether the email or the password was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (u domain.User, pair domain.TokenPair, err error) {
	defer func() { s.Metrics.Login(resultLabel(err)) }()
	l := slogx.FromContext(ctx)

	lookupCtx, cancelLookup := s.Tokens.storeContext(ctx)
	u, err = s.Store.Users().GetUserByEmail(lookupCtx, NormalizeEmail(email))
	cancelLookup()
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.Hasher.Equalize(password)
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	case err != nil:
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			l.Warn("password verification failed", slog.String("user_id", u.ID), slog.Any("error", err))
		}
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	now := s.Tokens.now()
	tctx, cancel := s.Tokens.storeContext(ctx)
	defer cancel()

	err = s.Store.WithTx(tctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateLastLogin(tctx, u.ID, now); err != nil {
			return err
		}
		pair, err = s.Tokens.IssuePair(tctx, tx, u)
		return err
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("login: %w", err)
	}

	u.LastLoginAt = &now
	l.Info("user logged in", slog.String("user_id", u.ID))
	return u, pair, nil
}

// GetUser fetches a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (domain.User, error) {
	ctx, cancel := s.Tokens.storeContext(ctx)
	defer cancel()
	return s.Store.Users().GetUserByID(ctx, id)
}
