package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.SecretKey = "0123456789abcdef0123"
	cfg.Auth.AdminPass = "secret123"
	return cfg
}

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "archivos_locales.txt", cfg.UnifiedName)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, "access_token", cfg.Auth.CookieName)
	assert.False(t, cfg.Archive.Enabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.yaml")
	yml := `
addr: ":9000"
storage_dir: /srv/files
auth:
  secret_key: from-file-secret-value
  token_ttl: 10m
relay:
  timeout: 5s
cors_origins:
  - https://app.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("SFH_ADDR", ":9100")
	t.Setenv("SFH_WEBHOOK_URL", "https://hooks.example.com/in")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "/srv/files", cfg.StorageDir)
	assert.Equal(t, "from-file-secret-value", cfg.Auth.SecretKey)
	assert.Equal(t, 10*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, "https://hooks.example.com/in", cfg.Relay.URL)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestApplyEnv_TypedValues(t *testing.T) {
	t.Setenv("SFH_COOKIE_SECURE", "yes")
	t.Setenv("SFH_LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("SFH_WEBHOOK_TIMEOUT", "2s")
	t.Setenv("SFH_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("SFH_CORS_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, 3, cfg.Auth.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestApplyEnv_BadValuesKeepDefaults(t *testing.T) {
	t.Setenv("SFH_LOGIN_MAX_ATTEMPTS", "many")
	t.Setenv("SFH_TOKEN_TTL", "forever")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Auth.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
}

func TestValidate_ReportsUnparsableEnv(t *testing.T) {
	t.Setenv("SFH_SECRET_KEY", "0123456789abcdef0123")
	t.Setenv("SFH_ADMIN_PASS", "secret123")
	t.Setenv("SFH_TOKEN_TTL", "30")
	t.Setenv("SFH_LOGIN_MAX_ATTEMPTS", "many")
	t.Setenv("SFH_COOKIE_SECURE", "sometimes")

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `SFH_TOKEN_TTL: invalid value "30"`)
	assert.Contains(t, err.Error(), `SFH_LOGIN_MAX_ATTEMPTS: invalid value "many"`)
	assert.Contains(t, err.Error(), `SFH_COOKIE_SECURE: invalid value "sometimes"`)
}

func TestValidate_BlankEnvIsUnset(t *testing.T) {
	t.Setenv("SFH_SECRET_KEY", "0123456789abcdef0123")
	t.Setenv("SFH_ADMIN_PASS", "secret123")
	t.Setenv("SFH_TOKEN_TTL", "")
	t.Setenv("SFH_TRUST_PROXY", " ")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.False(t, cfg.TrustProxy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Auth.SecretKey = "" },
			wantErr: "SFH_SECRET_KEY",
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Auth.SecretKey = "short" },
			wantErr: "at least 16 characters",
		},
		{
			name:    "unknown algorithm",
			mutate:  func(c *Config) { c.Auth.Algorithm = "RS256" },
			wantErr: "SFH_JWT_ALGORITHM",
		},
		{
			name: "no admin password",
			mutate: func(c *Config) {
				c.Auth.AdminPass = ""
				c.Auth.AdminPassHash = ""
			},
			wantErr: "SFH_ADMIN_PASS",
		},
		{
			name:    "bad admin hash",
			mutate:  func(c *Config) { c.Auth.AdminPassHash = "plaintext" },
			wantErr: "bcrypt",
		},
		{
			name:    "relay url scheme",
			mutate:  func(c *Config) { c.Relay.URL = "ftp://example.com/hook" },
			wantErr: "http or https",
		},
		{
			name:    "bad addr",
			mutate:  func(c *Config) { c.Addr = ":http" },
			wantErr: "port must be a number",
		},
		{
			name:    "unified name with separator",
			mutate:  func(c *Config) { c.UnifiedName = "../out.txt" },
			wantErr: "bare file name",
		},
		{
			name:    "database url",
			mutate:  func(c *Config) { c.Database.URL = "mysql://x" },
			wantErr: "PostgreSQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SFH_SECRET_KEY")
	assert.Contains(t, err.Error(), "SFH_ADMIN_PASS")
	assert.Contains(t, err.Error(), "SFH_LOG_LEVEL")
}

func TestFlags_Apply(t *testing.T) {
	f, err := ParseFlags([]string{"--addr", ":7000", "-s", "/data", "--webhook-url=http://relay.test/hook"})
	require.NoError(t, err)

	cfg := Default()
	f.Apply(cfg)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "/data", cfg.StorageDir)
	assert.Equal(t, "http://relay.test/hook", cfg.Relay.URL)
	assert.Empty(t, cfg.Database.URL)
}

func TestFlags_Unknown(t *testing.T) {
	_, err := ParseFlags([]string{"--nope"})
	require.Error(t, err)
}
