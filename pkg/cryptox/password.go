package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a password hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultBcryptCost matches the work factor the marketplace has always used.
const DefaultBcryptCost = 10

// MaxPasswordBytes is the longest input bcrypt will accept.
const MaxPasswordBytes = 72

// Argon2id parameters for newly created hashes.
const (
	argonMemory      = 19 * 1024 // KiB
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

var (
	ErrMismatch        = errors.New("cryptox: password does not match")
	ErrUnknownHash     = errors.New("cryptox: unrecognised hash format")
	ErrPasswordTooLong = errors.New("cryptox: password exceeds 72 bytes")
)

// Hasher creates and checks salted one-way password hashes. New hashes use
// Algorithm; Verify accepts any supported format so stored hashes survive an
// algorithm change.
type Hasher struct {
	Algorithm Algorithm
	Cost      int // bcrypt work factor

	dummyOnce sync.Once
	dummy     string
}

// NewHasher validates the configuration and returns a Hasher.
func NewHasher(alg Algorithm, cost int) (*Hasher, error) {
	switch alg {
	case AlgorithmBcrypt:
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("cryptox: bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("cryptox: unsupported password algorithm %q", alg)
	}
	return &Hasher{Algorithm: alg, Cost: cost}, nil
}

// Hash returns an encoded hash of password carrying its own salt and parameters.
func (h *Hasher) Hash(password string) (string, error) {
	if h.Algorithm == AlgorithmArgon2id {
		return hashArgon2id(password)
	}

	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: bcrypt: %w", err)
	}
	return string(out), nil
}

// Verify reports nil when password matches encoded. Comparison timing is left
// to the underlying primitives.
func (h *Hasher) Verify(password, encoded string) error {
	switch {
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return err
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(password, encoded)
	default:
		return ErrUnknownHash
	}
}

// Equalize burns the same CPU as a real Verify. Callers use it when there is
// no stored hash to compare against, so a missing account costs as much as a
// wrong password.
func (h *Hasher) Equalize(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.Hash("equalize-" + MustGenerateToken(TokenSize128))
	})
	_ = h.Verify(password, h.dummy)
}

func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifyArgon2id checks a PHC string: $argon2id$v=19$m=X,t=Y,p=Z$salt$hash
func verifyArgon2id(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrUnknownHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return fmt.Errorf("%w: wrong argon2 version", ErrUnknownHash)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrUnknownHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrUnknownHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: hash: %v", ErrUnknownHash, err)
	}

	got := argon2.IDKey([]byte(password), salt, iters, mem, par, uint32(len(want))) // #nosec G115
	if subtle.ConstantTimeCompare(got, want) == 1 {
		return nil
	}
	return ErrMismatch
}
