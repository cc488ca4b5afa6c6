package store

import (
	"context"
	"errors"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres, memory) implement this. Sub-repositories hang off it so a
// transaction can hand out the same repos bound to itself, and so nobody
// opens a transaction inside a transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations(ctx context.Context) error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx exposes the repos bound to one transaction.
type Tx interface {
	Users() Users
	RefreshTokens() RefreshTokens
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A duplicate email returns ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateLastLogin stamps last_login_at.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record for a token fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshTokenIfActive flips revoked only if it is still false, as
	// a single conditional write. It reports true when this call did the
	// revoking, false when the token was already revoked, and ErrNotFound
	// when there is no such token. Of any number of concurrent callers for
	// the same hash, at most one sees true.
	RevokeRefreshTokenIfActive(ctx context.Context, hash string) (bool, error)

	// DeleteRevokedRefreshTokens removes revoked records whose expiry is
	// before the cutoff and returns how many went. Records that were never
	// revoked are kept.
	DeleteRevokedRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}
