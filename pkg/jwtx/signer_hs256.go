package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretBytes is the shortest secret accepted for HS256.
const MinHMACSecretBytes = 32

// ErrWeakSecret is returned when an HMAC secret is too short.
var ErrWeakSecret = fmt.Errorf("jwtx: HMAC secret must be at least %d bytes", MinHMACSecretBytes)

// HS256Signer signs tokens with a shared secret.
type HS256Signer struct {
	kid    string
	secret []byte
}

func newHS256Signer(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHMACSecretBytes {
		return nil, ErrWeakSecret
	}
	return &HS256Signer{kid: kid, secret: append([]byte(nil), secret...)}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}

func (s *HS256Signer) Validate() error {
	if len(s.secret) < MinHMACSecretBytes {
		return errors.New("jwtx: HS256 secret missing or too short")
	}
	return nil
}

// NewVerifierHS256 returns a verifier for tokens signed with secret.
func NewVerifierHS256(secret []byte, opts VerifyOptions) (Verifier, error) {
	if len(secret) < MinHMACSecretBytes {
		return nil, ErrWeakSecret
	}
	key := append([]byte(nil), secret...)
	return &verifier{
		method: jwt.SigningMethodHS256.Alg(),
		key:    key,
		opts:   opts,
	}, nil
}
