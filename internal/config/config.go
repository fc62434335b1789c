package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Store backends understood by Config.Store.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config defines fields parsed from environment variables
type Config struct {
	Addr          string        `env:"SENAT_ADDR" envDefault:":5000"`
	Store         string        `env:"SENAT_STORE" envDefault:"file"`
	DataDir       string        `env:"SENAT_DATA_DIR" envDefault:"data"`
	SQLitePath    string        `env:"SENAT_SQLITE_PATH" envDefault:"senat.db"`
	DatabaseDSN   string        `env:"DB_DSN"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	TokenSecret   string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"SENAT_TOKEN_TTL" envDefault:"720h"`
	Admins        []string      `env:"SENAT_ADMINS" envSeparator:","`
	BlobDir       string        `env:"SENAT_BLOB_DIR" envDefault:"uploads"`
	BcryptCost    int           `env:"SENAT_BCRYPT_COST" envDefault:"10"`
	MaxFrameBytes int64         `env:"SENAT_MAX_FRAME_BYTES" envDefault:"75497472"`
	Debug         bool          `env:"SENAT_DEBUG" envDefault:"false"`

	// GeneratedSecret is set when TokenSecret was missing and Load made one up.
	GeneratedSecret bool `env:"-"`
}

// Load reads an optional .env file from the working directory and then parses
// the environment into a validated Config.
func Load() (*Config, error) {
	// a missing .env is the normal case in containers
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.TokenSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.TokenSecret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreSQLite, StoreRedis:
	case StorePostgres:
		if c.DatabaseDSN == "" {
			return errors.New("DB_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}

	if c.TokenTTL <= 0 {
		return errors.New("SENAT_TOKEN_TTL must be positive")
	}
	if c.MaxFrameBytes <= 0 {
		return errors.New("SENAT_MAX_FRAME_BYTES must be positive")
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
