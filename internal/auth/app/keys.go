package app

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/cryptox"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
)

// InitAuthKeys builds the token signer and the matching verifier.
//
// HS256 signs and verifies with AUTH_JWT_SECRET. EdDSA loads the PKCS8 key
// from AUTH_SIGNING_KEY_FILE; without one a key is generated for the life of
// the process and every token dies with it.
func InitAuthKeys(cfg Config, logger *slog.Logger) (jwtx.Signer, jwtx.Verifier, error) {
	opts := jwtx.VerifyOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
	}

	switch cfg.Algorithm {
	case AlgorithmHS256:
		secret := []byte(cfg.JWTSecret)
		signer, err := jwtx.NewSignerHS256("", secret)
		if err != nil {
			return nil, nil, err
		}
		verifier, err := jwtx.NewVerifierHS256(secret, opts)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("signing keys loaded", "algorithm", signer.Alg())
		return signer, verifier, nil

	case AlgorithmEdDSA:
		pemKey, err := loadOrGenerateEdDSAKey(cfg.SigningKeyFile, logger)
		if err != nil {
			return nil, nil, err
		}

		key, err := cryptox.ParseEd25519Key(pemKey)
		if err != nil {
			return nil, nil, err
		}
		pub, _ := key.Public().(ed25519.PublicKey)
		kid := cryptox.FingerprintToken(string(pub))[:16]

		signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
		if err != nil {
			return nil, nil, err
		}
		if err := signer.Validate(); err != nil {
			return nil, nil, err
		}

		ed, ok := signer.(*jwtx.EdDSASigner)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected signer type %T", signer)
		}
		verifier, err := jwtx.NewVerifierEdDSA(ed.PublicKey(), opts)
		if err != nil {
			return nil, nil, err
		}

		logger.Info("signing keys loaded", "algorithm", signer.Alg(), "kid", kid)
		return signer, verifier, nil

	default:
		return nil, nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}
}

func loadOrGenerateEdDSAKey(path string, logger *slog.Logger) ([]byte, error) {
	if path != "" {
		pemKey, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		return pemKey, nil
	}

	logger.Warn("no AUTH_SIGNING_KEY_FILE set, generating an ephemeral key; tokens will not survive a restart")
	return cryptox.GenerateEd25519Key()
}
