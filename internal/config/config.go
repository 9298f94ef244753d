// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime settings. Command-line flags override it in main.
type Config struct {
	Addr      string `envconfig:"EVIDENCA_ADDR" default:":8080"`
	DBPath    string `envconfig:"EVIDENCA_DB" default:"evidenca.sqlite3"`
	AdminUser string `envconfig:"EVIDENCA_ADMIN_USER" default:"Admin"`

	LogLevel string `envconfig:"EVIDENCA_LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"EVIDENCA_LOG_FILE"`

	// CategoriesFile replaces the built-in category table when set.
	CategoriesFile string `envconfig:"EVIDENCA_CATEGORIES_FILE"`

	TokenTTL time.Duration `envconfig:"EVIDENCA_TOKEN_TTL" default:"168h"`

	LoginInterval time.Duration `envconfig:"EVIDENCA_LOGIN_INTERVAL" default:"2s"`
	LoginBurst    int           `envconfig:"EVIDENCA_LOGIN_BURST" default:"5"`

	PhotoMaxDimension int   `envconfig:"EVIDENCA_PHOTO_MAX_DIMENSION" default:"1024"`
	PhotoMaxBytes     int64 `envconfig:"EVIDENCA_PHOTO_MAX_BYTES" default:"10485760"`

	QRSize int `envconfig:"EVIDENCA_QR_SIZE" default:"256"`

	Metrics bool `envconfig:"EVIDENCA_METRICS" default:"true"`
}

// Load reads the given dotenv files, if present, and then the environment.
// Variables already set in the environment win over dotenv values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("database path is required")
	case c.TokenTTL <= 0:
		return fmt.Errorf("token TTL must be positive, got %s", c.TokenTTL)
	case c.LoginInterval <= 0 || c.LoginBurst <= 0:
		return errors.New("login rate limit interval and burst must be positive")
	case c.PhotoMaxDimension <= 0 || c.PhotoMaxBytes <= 0:
		return errors.New("photo limits must be positive")
	case c.QRSize < 64:
		return fmt.Errorf("QR size must be at least 64 pixels, got %d", c.QRSize)
	}
	return nil
}
