package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/cryptox"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmHS256 = "HS256"
	AlgorithmEdDSA = "EdDSA"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ThrottleMemory = "memory"
	ThrottleRedis  = "redis"
)

// Config is read once at start. Environment variables override the YAML
// file when both set a key.
type Config struct {
	Issuer         string   `yaml:"issuer"           env:"AUTH_ISSUER"           env-default:"ascort-auth"`
	Audience       []string `yaml:"audience"         env:"AUTH_AUDIENCE"         env-separator:","`
	Algorithm      string   `yaml:"algorithm"        env:"AUTH_ALGORITHM"        env-default:"EdDSA"`
	JWTSecret      string   `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET"`       // HS256 only
	SigningKeyFile string   `yaml:"signing_key_file" env:"AUTH_SIGNING_KEY_FILE"` // EdDSA PKCS8 PEM; empty generates one per process

	AccessTTL  time.Duration `yaml:"access_ttl"  env:"AUTH_ACCESS_TTL"  env-default:"15m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"AUTH_REFRESH_TTL" env-default:"168h"`

	PasswordAlgorithm string `yaml:"password_algorithm" env:"AUTH_PASSWORD_ALGORITHM" env-default:"bcrypt"`
	BcryptCost        int    `yaml:"bcrypt_cost"        env:"AUTH_BCRYPT_COST"        env-default:"10"`

	StoreDriver  string        `yaml:"store_driver"  env:"STORE_DRIVER"       env-default:"sqlite"`
	StoreTimeout time.Duration `yaml:"store_timeout" env:"AUTH_STORE_TIMEOUT" env-default:"3s"`
	DatabaseFile string        `yaml:"database_file" env:"AUTH_DATABASE_FILE" env-default:"auth.db"`
	DatabaseURL  string        `yaml:"database_url"  env:"DATABASE_URL"`

	ThrottleBackend  string        `yaml:"throttle_backend"  env:"THROTTLE_BACKEND"  env-default:"memory"`
	RedisURL         string        `yaml:"redis_url"         env:"REDIS_URL"`
	ThrottleRequests int           `yaml:"throttle_requests" env:"THROTTLE_REQUESTS" env-default:"5"`
	ThrottleWindow   time.Duration `yaml:"throttle_window"   env:"THROTTLE_WINDOW"   env-default:"1m"`
	ThrottleBurst    int           `yaml:"throttle_burst"    env:"THROTTLE_BURST"    env-default:"5"`
	// Peers allowed to set X-Forwarded-For / X-Real-IP; CIDRs or addresses.
	ThrottleTrustedProxies []string `yaml:"throttle_trusted_proxies" env:"THROTTLE_TRUSTED_PROXIES" env-separator:","`

	Env                   string        `yaml:"env"                    env:"ENV"                    env-default:"dev"`
	LogLevel              string        `yaml:"log_level"              env:"LOG_LEVEL"              env-default:"info"`
	LogFormat             string        `yaml:"log_format"             env:"LOG_FORMAT"             env-default:"json"`
	Port                  int           `yaml:"port"                   env:"PORT"                   env-default:"8080"`
	ShutdownGracePeriod   time.Duration `yaml:"shutdown_grace_period"  env:"SHUTDOWN_GRACE_PERIOD"  env-default:"10s"`
	HousekeepingInterval  time.Duration `yaml:"housekeeping_interval"  env:"HOUSEKEEPING_INTERVAL"  env-default:"1h"`
	HousekeepingRetention time.Duration `yaml:"housekeeping_retention" env:"HOUSEKEEPING_RETENTION" env-default:"720h"`
	CORSOrigins           []string      `yaml:"cors_origins"           env:"CORS_ORIGINS"           env-separator:","`
}

// LoadConfig reads path, or CONFIG_PATH when path is empty, then overlays
// the environment. With neither set only the environment is read.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Algorithm {
	case AlgorithmHS256:
		if len(c.JWTSecret) < jwtx.MinHMACSecretBytes {
			errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes for HS256", jwtx.MinHMACSecretBytes))
		}
	case AlgorithmEdDSA:
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM %q: want HS256 or EdDSA", c.Algorithm))
	}

	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL must be positive"))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("AUTH_REFRESH_TTL must be positive"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("AUTH_STORE_TIMEOUT must be positive"))
	}

	switch cryptox.Algorithm(c.PasswordAlgorithm) {
	case cryptox.AlgorithmBcrypt:
		if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
			errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
		}
	case cryptox.AlgorithmArgon2id:
	default:
		errs = append(errs, fmt.Errorf("AUTH_PASSWORD_ALGORITHM %q: want bcrypt or argon2id", c.PasswordAlgorithm))
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want sqlite, postgres or memory", c.StoreDriver))
	}

	switch c.ThrottleBackend {
	case ThrottleMemory:
	case ThrottleRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis throttle"))
		}
	default:
		errs = append(errs, fmt.Errorf("THROTTLE_BACKEND %q: want memory or redis", c.ThrottleBackend))
	}
	if c.ThrottleRequests <= 0 || c.ThrottleWindow <= 0 {
		errs = append(errs, errors.New("THROTTLE_REQUESTS and THROTTLE_WINDOW must be positive"))
	}
	if _, err := httpx.ParseTrustedProxies(c.ThrottleTrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("THROTTLE_TRUSTED_PROXIES: %w", err))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	return errors.Join(errs...)
}

func (c Config) throttleLimit() httpx.RateLimitConfig {
	burst := c.ThrottleBurst
	if burst <= 0 {
		burst = c.ThrottleRequests
	}
	return httpx.RateLimitConfig{
		RequestsPerWindow: c.ThrottleRequests,
		Window:            c.ThrottleWindow,
		Burst:             burst,
	}
}
