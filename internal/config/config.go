package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded at startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Platform PlatformConfig
	Store    StoreConfig
	Pending  PendingConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// PlatformConfig selects the upstream call-platform endpoint once at startup.
// There is deliberately no list of fallback URL variants to probe at runtime.
type PlatformConfig struct {
	BaseURL string
	APIKey  string
}

type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver string

	// RecordCap bounds the memory store; 0 keeps every record for the
	// process lifetime.
	RecordCap int

	DB DBConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type PendingConfig struct {
	TTL      time.Duration
	Capacity int

	// RedisAddr, when set, backs the pending-contact pool with Redis so
	// several instances can share it. Empty keeps it in process memory.
	RedisAddr string
}

type AuthConfig struct {
	// JWTSecret enables bearer auth on the dashboard read API when set.
	// Production requires it.
	JWTSecret string
	TokenTTL  time.Duration
}

const (
	defaultPendingTTL = 120 * time.Second
	defaultPendingCap = 20
	defaultTokenTTL   = 12 * time.Hour
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.App.Port = n
	}

	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PLATFORM_API_BASE_URL")), "/")
	c.Platform.APIKey = os.Getenv("PLATFORM_API_KEY")

	c.Store.Driver = strings.TrimSpace(os.Getenv("STORE_DRIVER"))
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	c.Store.RecordCap = optInt("RECORD_CAP", 0, &parseErrs)

	if c.Store.Driver == "postgres" {
		c.Store.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
		{
			n, err := mustInt("DB_PORT")
			if err != nil {
				parseErrs = append(parseErrs, err)
			}
			c.Store.DB.Port = n
		}
		c.Store.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
		c.Store.DB.Password = os.Getenv("DB_PASSWORD")
		c.Store.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
		c.Store.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	}

	c.Pending.TTL = optDuration("PENDING_TTL", defaultPendingTTL)
	c.Pending.Capacity = optInt("PENDING_CAP", defaultPendingCap, &parseErrs)
	c.Pending.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.TokenTTL = optDuration("JWT_TOKEN_TTL", defaultTokenTTL)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	switch c.Store.Driver {
	case "memory":
		// nothing extra
	case "postgres":
		if c.Store.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required with STORE_DRIVER=postgres"))
		}
		if c.Store.DB.Port <= 0 || c.Store.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.Store.DB.Port))
		}
		if c.Store.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required with STORE_DRIVER=postgres"))
		}
		if c.Store.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required with STORE_DRIVER=postgres"))
		}
		if c.Store.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			}
		} else if !isValidSSLMode(c.Store.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.Store.DB.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be memory or postgres, got %q", c.Store.Driver))
	}

	if c.Store.RecordCap < 0 {
		errs = append(errs, fmt.Errorf("RECORD_CAP must be >= 0, got %d", c.Store.RecordCap))
	}
	if c.Pending.TTL <= 0 {
		errs = append(errs, errors.New("PENDING_TTL must be positive"))
	}
	if c.Pending.Capacity <= 0 {
		errs = append(errs, errors.New("PENDING_CAP must be positive"))
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if c.Platform.BaseURL != "" && c.Platform.APIKey == "" {
			errs = append(errs, errors.New("PLATFORM_API_KEY is required in production when PLATFORM_API_BASE_URL is set"))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool { return c.App.Env == "production" }

func (c Config) AuthEnabled() bool { return c.Auth.JWTSecret != "" }

func (c Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.App.Port) }

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	sslMode := c.Store.DB.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Store.DB.Host,
		c.Store.DB.Port,
		c.Store.DB.User,
		c.Store.DB.Password,
		c.Store.DB.Name,
		sslMode,
	)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return def
	}
	return n
}

func optDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
