// Package config loads the service configuration from the environment.
// Values in .env and .env.local are applied first, without overriding
// variables that are already set.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/logging"
	"github.com/joho/godotenv"
)

const minSecretLength = 32

// Config holds every runtime option
type Config struct {
	HTTPAddr        string        `json:"http_addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Debug           bool          `json:"debug"`
	LogLevel        string        `json:"log_level"`
	LogFormat       string        `json:"log_format"`
	CORSOrigins     []string      `json:"cors_origins"`

	DatabaseURL    string `json:"database_url"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`
	DBAutoMigrate  bool   `json:"db_auto_migrate"`

	RedisURL        string `json:"redis_url"`
	RedisPoolSize   int    `json:"redis_pool_size"`
	SessionFailOpen bool   `json:"session_fail_open"`

	SecretKey           string            `json:"secret_key"`
	Algorithm           string            `json:"algorithm"`
	SigningKeyID        string            `json:"signing_key_id"`
	PreviousSecretKeys  map[string]string `json:"previous_secret_keys"`
	TokenIssuer         string            `json:"token_issuer"`
	AccessTokenLifetime time.Duration     `json:"access_token_lifetime"`

	Argon2MemoryKiB   uint32 `json:"argon2_memory_kib"`
	Argon2Iterations  uint32 `json:"argon2_iterations"`
	Argon2Parallelism uint8  `json:"argon2_parallelism"`

	LoginRatePerMinute int `json:"login_rate_per_minute"`
	LoginRateBurst     int `json:"login_rate_burst"`
}

var _ auth.Config = (*Config)(nil)

// Load reads the environment and validates the result
func Load() (*Config, error) {
	loadEnvFiles()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment without loading
// any files or validating
func FromEnv() (*Config, error) {
	previous, err := parseKeyPairs(getEnv("PREVIOUS_SECRET_KEYS", ""))
	if err != nil {
		return nil, fmt.Errorf("config: PREVIOUS_SECRET_KEYS: %w", err)
	}

	memory, memErr := getEnvAsUint("ARGON2_MEMORY_KIB", uint64(auth.DefaultArgon2Params.Memory), 32)
	iterations, iterErr := getEnvAsUint("ARGON2_ITERATIONS", uint64(auth.DefaultArgon2Params.Iterations), 32)
	parallelism, parErr := getEnvAsUint("ARGON2_PARALLELISM", uint64(auth.DefaultArgon2Params.Parallelism), 8)
	if err := errors.Join(memErr, iterErr, parErr); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Debug:           getEnvAsBool("DEBUG", false),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
		CORSOrigins:     getEnvAsList("CORS_ORIGINS", nil),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		DBAutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),

		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolSize:   getEnvAsInt("REDIS_POOL_SIZE", 10),
		SessionFailOpen: getEnvAsBool("SESSION_FAIL_OPEN", false),

		SecretKey:           getEnv("SECRET_KEY", ""),
		Algorithm:           strings.ToUpper(getEnv("ALGORITHM", "HS256")),
		SigningKeyID:        getEnv("SIGNING_KEY_ID", auth.DefaultSigningKeyID),
		PreviousSecretKeys:  previous,
		TokenIssuer:         getEnv("TOKEN_ISSUER", ""),
		AccessTokenLifetime: time.Duration(getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 15)) * time.Minute,

		Argon2MemoryKiB:   uint32(memory),
		Argon2Iterations:  uint32(iterations),
		Argon2Parallelism: uint8(parallelism),

		LoginRatePerMinute: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 10),
		LoginRateBurst:     getEnvAsInt("LOGIN_RATE_BURST", 5),
	}, nil
}

// Validate reports every invalid option at once
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	if c.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	} else if len(c.SecretKey) < minSecretLength {
		errs = append(errs, fmt.Errorf("SECRET_KEY must be at least %d bytes", minSecretLength))
	}

	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("ALGORITHM %q is not supported", c.Algorithm))
	}

	if c.SigningKeyID == "" {
		errs = append(errs, errors.New("SIGNING_KEY_ID must not be empty"))
	}

	if _, ok := c.PreviousSecretKeys[c.SigningKeyID]; ok {
		errs = append(errs, fmt.Errorf("PREVIOUS_SECRET_KEYS reuses the current key id %q", c.SigningKeyID))
	}

	if c.AccessTokenLifetime <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}

	if c.DBMaxOpenConns < 1 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}

	if c.RedisPoolSize < 1 {
		errs = append(errs, errors.New("REDIS_POOL_SIZE must be positive"))
	}

	if c.Argon2MemoryKiB < 8*uint32(max(c.Argon2Parallelism, 1)) {
		errs = append(errs, errors.New("ARGON2_MEMORY_KIB is too small for the parallelism"))
	}

	if c.Argon2Iterations < 1 {
		errs = append(errs, errors.New("ARGON2_ITERATIONS must be positive"))
	}

	if c.Argon2Parallelism < 1 {
		errs = append(errs, errors.New("ARGON2_PARALLELISM must be positive"))
	}

	if c.LoginRatePerMinute < 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE must not be negative"))
	}

	if c.LoginRatePerMinute > 0 && c.LoginRateBurst < 1 {
		errs = append(errs, errors.New("LOGIN_RATE_BURST must be positive"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not supported", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not supported", c.LogFormat))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) GetSigningKey() string {
	return c.SecretKey
}

func (c *Config) GetSigningKeyID() string {
	return c.SigningKeyID
}

func (c *Config) GetPreviousSigningKeys() map[string]string {
	return c.PreviousSecretKeys
}

func (c *Config) GetSigningMethod() string {
	return c.Algorithm
}

func (c *Config) GetIssuer() string {
	return c.TokenIssuer
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.AccessTokenLifetime
}

// GetArgon2Params returns the hashing cost for new digests
func (c *Config) GetArgon2Params() auth.Argon2Params {
	p := auth.DefaultArgon2Params
	p.Memory = c.Argon2MemoryKiB
	p.Iterations = c.Argon2Iterations
	p.Parallelism = c.Argon2Parallelism
	return p
}

// Redacted returns a copy that is safe to print
func (c *Config) Redacted() *Config {
	out := *c
	out.DatabaseURL = logging.RedactURL(c.DatabaseURL)
	out.RedisURL = logging.RedactURL(c.RedisURL)
	out.SecretKey = logging.Redact(c.SecretKey)

	out.PreviousSecretKeys = make(map[string]string, len(c.PreviousSecretKeys))
	for kid, secret := range c.PreviousSecretKeys {
		out.PreviousSecretKeys[kid] = logging.Redact(secret)
	}
	return &out
}

func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil {
			continue
		}

		cwd, err := os.Getwd()
		if err != nil {
			continue
		}

		parent := filepath.Dir(cwd)
		if parent == "" || parent == cwd {
			continue
		}

		_ = godotenv.Load(filepath.Join(parent, name))
	}
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsUint rejects anything outside 0..2^bitSize-1 instead of
// falling back
func getEnvAsUint(key string, defaultValue uint64, bitSize int) (uint64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer between 0 and %d, got %q", key, uint64(1)<<bitSize-1, valueStr)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList accepts a JSON array or a comma separated list
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	if strings.HasPrefix(valueStr, "[") {
		if err := json.Unmarshal([]byte(valueStr), &out); err != nil {
			return defaultValue
		}
	} else {
		out = strings.Split(valueStr, ",")
	}

	items := make([]string, 0, len(out))
	for _, item := range out {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseKeyPairs reads "kid:secret,kid:secret"
func parseKeyPairs(raw string) (map[string]string, error) {
	out := map[string]string{}
	if raw == "" {
		return out, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, secret, ok := strings.Cut(pair, ":")
		kid, secret = strings.TrimSpace(kid), strings.TrimSpace(secret)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("malformed entry %q, want kid:secret", pair)
		}
		out[kid] = secret
	}
	return out, nil
}
