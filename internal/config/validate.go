package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects validation errors instead of stopping at the first one.
type Validator struct {
	errors []ValidationError
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorString returns a numbered list of every collected error.
func (v *Validator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

func (v *Validator) Required(key, value string) {
	if value == "" {
		v.AddError(key, "required setting not set")
	}
}

// URL checks for an absolute http(s) URL. Empty values are skipped.
func (v *Validator) URL(key, value string) {
	if value == "" {
		return
	}
	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
		return
	}
	if parsed.Host == "" {
		v.AddError(key, "URL must include a host")
	}
}

// Addr accepts "host:port" or ":port".
func (v *Validator) Addr(key, value string) {
	if value == "" {
		return
	}
	i := strings.LastIndex(value, ":")
	if i < 0 {
		v.AddError(key, "must be in host:port form")
		return
	}
	port, err := strconv.Atoi(value[i+1:])
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

func (v *Validator) MinLength(key, value string, minLen int) {
	if value == "" {
		return
	}
	if len(value) < minLen {
		v.AddError(key, fmt.Sprintf("must be at least %d characters long (got %d)", minLen, len(value)))
	}
}

func (v *Validator) Enum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// BcryptHash checks that value looks like a bcrypt hash.
func (v *Validator) BcryptHash(key, value string) {
	if value == "" {
		return
	}
	if !strings.HasPrefix(value, "$2a$") &&
		!strings.HasPrefix(value, "$2b$") &&
		!strings.HasPrefix(value, "$2y$") {
		v.AddError(key, "must be a valid bcrypt hash (starts with $2a$, $2b$, or $2y$)")
	}
	if len(value) != 60 {
		v.AddError(key, "bcrypt hash must be exactly 60 characters")
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	v := &Validator{}
	for _, e := range c.envErrors {
		v.AddError(e.Field, e.Message)
	}

	v.Addr("SFH_ADDR", c.Addr)
	v.Required("SFH_STORAGE_DIR", c.StorageDir)
	v.Required("SFH_UNIFIED_NAME", c.UnifiedName)
	if strings.ContainsAny(c.UnifiedName, `/\`) {
		v.AddError("SFH_UNIFIED_NAME", "must be a bare file name")
	}

	v.Required("SFH_SECRET_KEY", c.Auth.SecretKey)
	v.MinLength("SFH_SECRET_KEY", c.Auth.SecretKey, 16)
	v.Enum("SFH_JWT_ALGORITHM", c.Auth.Algorithm, []string{"HS256", "HS384", "HS512"})
	if c.Auth.TokenTTL <= 0 {
		v.AddError("SFH_TOKEN_TTL", "must be a positive duration")
	}
	v.Required("SFH_ADMIN_USER", c.Auth.AdminUser)
	if c.Auth.AdminPass == "" && c.Auth.AdminPassHash == "" {
		v.AddError("SFH_ADMIN_PASS", "either SFH_ADMIN_PASS or SFH_ADMIN_PASS_HASH must be set")
	}
	v.BcryptHash("SFH_ADMIN_PASS_HASH", c.Auth.AdminPassHash)
	if c.Auth.MaxAttempts <= 0 {
		v.AddError("SFH_LOGIN_MAX_ATTEMPTS", "must be a positive integer")
	}
	if c.Auth.RateLimit < 0 {
		v.AddError("SFH_LOGIN_RATE_LIMIT", "must not be negative")
	}

	v.Required("SFH_WEBHOOK_URL", c.Relay.URL)
	v.URL("SFH_WEBHOOK_URL", c.Relay.URL)
	if c.Relay.Timeout <= 0 {
		v.AddError("SFH_WEBHOOK_TIMEOUT", "must be a positive duration")
	}

	if c.Upload.MaxBytes < 0 {
		v.AddError("SFH_MAX_UPLOAD_BYTES", "must not be negative")
	}

	if u := c.Database.URL; u != "" &&
		!strings.HasPrefix(u, "postgres://") && !strings.HasPrefix(u, "postgresql://") {
		v.AddError("SFH_DATABASE_URL", "must be a valid PostgreSQL connection string")
	}

	if strings.Contains(c.Archive.Endpoint, "://") {
		v.URL("SFH_S3_ENDPOINT", c.Archive.Endpoint)
	}

	v.Enum("SFH_LOG_FORMAT", c.Log.Format, []string{"json", "text"})
	v.Enum("SFH_LOG_LEVEL", c.Log.Level, []string{"debug", "info", "warn", "error"})
	v.Enum("SFH_ENV", c.Env, []string{"development", "staging", "production"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}
