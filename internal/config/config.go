package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfig is returned by Validate when required keys are absent.
var ErrMissingConfig = errors.New("missing required configuration")

// Config is resolved once at startup and passed to constructors.
type Config struct {
	MongoURI          string
	MongoDB           string
	MongoTransactions bool
	Port              string
	LogLevel          string

	JWTSecret  string
	JWTTTL     time.Duration
	SaltRounds int

	Gateway Gateway

	LoginRateRPS   float64
	LoginRateBurst int
}

// Gateway holds everything the collect-request client needs.
type Gateway struct {
	BaseURL         string
	SigningKey      string // PG_KEY
	APIKey          string
	CallbackURL     string
	DefaultSchoolID string
	Timeout         time.Duration
}

// Load reads .env (if present) and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("could not load env file", "file", envFile, "err", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, which keeps tests away from
// the real environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		MongoURI:  get("MONGOURI", ""),
		MongoDB:   get("MONGO_DB", "schoolpaymentsdb"),
		Port:      get("PORT", "8080"),
		LogLevel:  get("LOG_LEVEL", "info"),
		JWTSecret: get("JWT_SECRET", ""),
		Gateway: Gateway{
			BaseURL:         strings.TrimRight(get("GATEWAY_BASE_URL", "https://dev-vanilla.edviron.com/erp"), "/"),
			SigningKey:      get("PG_KEY", ""),
			APIKey:          get("API_KEY", ""),
			CallbackURL:     get("GATEWAY_CALLBACK_URL", ""),
			DefaultSchoolID: get("SCHOOL_ID", ""),
		},
	}

	var err error
	if cfg.MongoTransactions, err = strconv.ParseBool(get("MONGO_TRANSACTIONS", "false")); err != nil {
		return nil, fmt.Errorf("invalid MONGO_TRANSACTIONS: %w", err)
	}
	if cfg.JWTTTL, err = time.ParseDuration(get("JWT_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.Gateway.Timeout, err = time.ParseDuration(get("GATEWAY_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	if cfg.SaltRounds, err = strconv.Atoi(get("SALT_ROUNDS", "10")); err != nil {
		return nil, fmt.Errorf("invalid SALT_ROUNDS: %w", err)
	}
	if cfg.LoginRateRPS, err = strconv.ParseFloat(get("LOGIN_RATE_RPS", "1"), 64); err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_RPS: %w", err)
	}
	if cfg.LoginRateBurst, err = strconv.Atoi(get("LOGIN_RATE_BURST", "5")); err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_BURST: %w", err)
	}

	return cfg, nil
}

// Validate reports every required key that is missing for the HTTP server.
func (c *Config) Validate() error {
	var missing []string
	if c.MongoURI == "" {
		missing = append(missing, "MONGOURI")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if err := c.Gateway.Validate(); err != nil {
		var me *MissingKeysError
		if errors.As(err, &me) {
			missing = append(missing, me.Keys...)
		}
	}
	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

// Validate checks the keys the collect-request path cannot work without.
func (g Gateway) Validate() error {
	var missing []string
	if g.SigningKey == "" {
		missing = append(missing, "PG_KEY")
	}
	if g.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	if g.CallbackURL == "" {
		missing = append(missing, "GATEWAY_CALLBACK_URL")
	}
	if g.BaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

// MissingKeysError lists absent environment keys. It matches ErrMissingConfig.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return ErrMissingConfig.Error() + ": " + strings.Join(e.Keys, ", ")
}

func (e *MissingKeysError) Is(target error) bool {
	return target == ErrMissingConfig
}
