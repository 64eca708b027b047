// Package config loads runtime settings for the file hub backend.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables (a local .env file is honoured), then command-line
// flags. Validate reports every problem at once so the process can refuse to
// start with a single, complete message.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all backend configuration.
type Config struct {
	Addr        string `yaml:"addr"`
	StorageDir  string `yaml:"storage_dir"`
	UnifiedName string `yaml:"unified_name"`
	Env         string `yaml:"env"`

	Auth     AuthConfig     `yaml:"auth"`
	Relay    RelayConfig    `yaml:"relay"`
	Upload   UploadConfig   `yaml:"upload"`
	Database DatabaseConfig `yaml:"database"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`

	CORSOrigins []string `yaml:"cors_origins"`

	// TrustProxy takes client addresses from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy"`

	// envErrors are environment values that failed to parse. Validate
	// reports them.
	envErrors []ValidationError
}

// AuthConfig covers credential issuance and the seeded account.
type AuthConfig struct {
	SecretKey     string        `yaml:"secret_key"`
	Algorithm     string        `yaml:"algorithm"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminUser     string        `yaml:"admin_user"`
	AdminPass     string        `yaml:"admin_pass"`
	AdminPassHash string        `yaml:"admin_pass_hash"`
	CookieName    string        `yaml:"cookie_name"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	MaxAttempts   int           `yaml:"max_attempts"`
	Lockout       time.Duration `yaml:"lockout"`
	// RateLimit is the number of login requests allowed per client IP per
	// minute. Zero disables the limit.
	RateLimit int `yaml:"rate_limit"`
}

// RelayConfig is the downstream consumer of unified artifacts.
type RelayConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// DatabaseConfig enables the Postgres user store when URL is set.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// ArchiveConfig enables copying unified artifacts to an S3-compatible bucket.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

// Enabled reports whether every archive setting is present.
func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != "" && a.Bucket != ""
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the development defaults.
func Default() *Config {
	return &Config{
		Addr:        ":8000",
		StorageDir:  "storage",
		UnifiedName: "archivos_locales.txt",
		Env:         "development",
		Auth: AuthConfig{
			Algorithm:   "HS256",
			TokenTTL:    30 * time.Minute,
			AdminUser:   "admin",
			CookieName:  "access_token",
			MaxAttempts: 5,
			Lockout:     15 * time.Minute,
			RateLimit:   20,
		},
		Relay: RelayConfig{
			URL:     "http://localhost:5678/webhook/archivos_locales",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		CORSOrigins: []string{"http://localhost:3000", "http://localhost:8000"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// process environment. Flags are applied separately by the caller.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("SFH_ADDR", c.Addr)
	c.StorageDir = getEnv("SFH_STORAGE_DIR", c.StorageDir)
	c.UnifiedName = getEnv("SFH_UNIFIED_NAME", c.UnifiedName)
	c.Env = getEnv("SFH_ENV", c.Env)

	c.Auth.SecretKey = getEnv("SFH_SECRET_KEY", c.Auth.SecretKey)
	c.Auth.Algorithm = getEnv("SFH_JWT_ALGORITHM", c.Auth.Algorithm)
	c.Auth.TokenTTL = c.envDuration("SFH_TOKEN_TTL", c.Auth.TokenTTL)
	c.Auth.AdminUser = getEnv("SFH_ADMIN_USER", c.Auth.AdminUser)
	c.Auth.AdminPass = getEnv("SFH_ADMIN_PASS", c.Auth.AdminPass)
	c.Auth.AdminPassHash = getEnv("SFH_ADMIN_PASS_HASH", c.Auth.AdminPassHash)
	c.Auth.CookieSecure = c.envBool("SFH_COOKIE_SECURE", c.Auth.CookieSecure)
	c.Auth.MaxAttempts = c.envInt("SFH_LOGIN_MAX_ATTEMPTS", c.Auth.MaxAttempts)
	c.Auth.Lockout = c.envDuration("SFH_LOGIN_LOCKOUT", c.Auth.Lockout)
	c.Auth.RateLimit = c.envInt("SFH_LOGIN_RATE_LIMIT", c.Auth.RateLimit)

	c.Relay.URL = getEnv("SFH_WEBHOOK_URL", c.Relay.URL)
	c.Relay.Timeout = c.envDuration("SFH_WEBHOOK_TIMEOUT", c.Relay.Timeout)

	c.Upload.MaxBytes = int64(c.envInt("SFH_MAX_UPLOAD_BYTES", int(c.Upload.MaxBytes)))

	c.Database.URL = getEnv("SFH_DATABASE_URL", c.Database.URL)

	c.Archive.Endpoint = getEnv("SFH_S3_ENDPOINT", c.Archive.Endpoint)
	c.Archive.AccessKey = getEnv("SFH_S3_ACCESS_KEY", c.Archive.AccessKey)
	c.Archive.SecretKey = getEnv("SFH_S3_SECRET_KEY", c.Archive.SecretKey)
	c.Archive.Bucket = getEnv("SFH_BUCKET", c.Archive.Bucket)

	c.Log.Format = getEnv("SFH_LOG_FORMAT", c.Log.Format)
	c.Log.Level = getEnv("SFH_LOG_LEVEL", c.Log.Level)

	c.TrustProxy = c.envBool("SFH_TRUST_PROXY", c.TrustProxy)

	if v, ok := os.LookupEnv("SFH_CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// lookupEnv treats a blank variable as unset.
func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func (c *Config) envBool(key string, fallback bool) bool {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		c.envError(key, value, "must be a boolean")
		return fallback
	}
}

func (c *Config) envInt(key string, fallback int) int {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		c.envError(key, value, "must be an integer")
		return fallback
	}
	return n
}

func (c *Config) envDuration(key string, fallback time.Duration) time.Duration {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		c.envError(key, value, "must be a duration with a unit, e.g. 30s or 15m")
		return fallback
	}
	return d
}

func (c *Config) envError(key, value, message string) {
	c.envErrors = append(c.envErrors, ValidationError{
		Field:   key,
		Message: fmt.Sprintf("invalid value %q: %s", value, message),
	})
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
