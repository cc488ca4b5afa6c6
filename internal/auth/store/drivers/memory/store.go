// Package memory is a map-backed store for tests and single-process
// development. It honours the same contract as the SQL drivers, including
// transactional rollback.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]domain.User         // by id
	emails   map[string]string              // lowercased email -> id
	tokens   map[string]domain.RefreshToken // by hash
	txMu     sync.Mutex                     // one transaction at a time
	closed   bool
	failPing error
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]domain.User),
		emails: make(map[string]string),
		tokens: make(map[string]domain.RefreshToken),
	}
}

func (s *Store) ApplyMigrations(context.Context) error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory: store closed")
	}
	return s.failPing
}

// SetPingError makes Ping fail, for readiness tests.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPing = err
}

func (s *Store) Users() store.Users                 { return &usersRepo{s: s} }
func (s *Store) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{s: s} }

// WithTx runs fn with repos that record an undo entry for every write. If fn
// fails the writes are undone in reverse order.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &txStore{s: s}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

// writeLock makes a write outside WithTx wait for the running transaction,
// the way a row lock would. Writes inside a transaction already hold it.
func (s *Store) writeLock(tx *txStore) func() {
	if tx != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

type txStore struct {
	s    *Store
	undo []func()
}

func (t *txStore) Users() store.Users                 { return &usersRepo{s: t.s, tx: t} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{s: t.s, tx: t} }

func (t *txStore) record(fn func()) { t.undo = append(t.undo, fn) }

func (t *txStore) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

type usersRepo struct {
	s  *Store
	tx *txStore
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return copyUser(r.s.users[id]), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.writeLock(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := r.s.emails[key]; ok {
		return fmt.Errorf("memory: create user: %w", store.ErrAlreadyExists)
	}
	if _, ok := r.s.users[u.ID]; ok {
		return fmt.Errorf("memory: create user: %w", store.ErrAlreadyExists)
	}

	r.s.users[u.ID] = copyUser(u)
	r.s.emails[key] = u.ID
	if r.tx != nil {
		r.tx.record(func() {
			delete(r.s.users, u.ID)
			delete(r.s.emails, key)
		})
	}
	return nil
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.writeLock(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	prev := u
	at = at.UTC()
	u.LastLoginAt = &at
	r.s.users[userID] = u
	if r.tx != nil {
		r.tx.record(func() { r.s.users[userID] = prev })
	}
	return nil
}

type refreshTokensRepo struct {
	s  *Store
	tx *txStore
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.writeLock(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tokens[t.TokenHash]; ok {
		return fmt.Errorf("memory: create refresh token: %w", store.ErrAlreadyExists)
	}
	if _, ok := r.s.users[t.UserID]; !ok {
		return fmt.Errorf("memory: create refresh token: unknown user %q", t.UserID)
	}

	r.s.tokens[t.TokenHash] = t
	if r.tx != nil {
		r.tx.record(func() { delete(r.s.tokens, t.TokenHash) })
	}
	return nil
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return domain.RefreshToken{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[hash]
	if !ok {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshTokenIfActive(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer r.s.writeLock(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[hash]
	if !ok {
		return false, store.ErrNotFound
	}
	if t.Revoked {
		return false, nil
	}

	prev := t
	t.Revoked = true
	t.UpdatedAt = time.Now().UTC()
	r.s.tokens[hash] = t
	if r.tx != nil {
		r.tx.record(func() { r.s.tokens[hash] = prev })
	}
	return true, nil
}

func (r *refreshTokensRepo) DeleteRevokedRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer r.s.writeLock(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for hash, t := range r.s.tokens {
		if t.Revoked && t.ExpiresAt.Before(before) {
			delete(r.s.tokens, hash)
			if r.tx != nil {
				r.tx.record(func() { r.s.tokens[hash] = t })
			}
			n++
		}
	}
	return n, nil
}

func copyUser(u domain.User) domain.User {
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		u.LastLoginAt = &at
	}
	return u
}
