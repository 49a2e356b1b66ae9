package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, constants.DefaultCookieName, cfg.Cookie.Name)
	assert.Equal(t, constants.DefaultPurposes, cfg.Protection.Purposes)
	assert.Equal(t, 20*time.Minute, cfg.Cookie.TTL)
	assert.True(t, cfg.Cookie.Persistent)
	assert.True(t, cfg.Cookie.AllowRefresh)
	assert.Equal(t, constants.IdentityClaimEmail, cfg.IdentityClaim())
	assert.Equal(t, "urn:net-core", cfg.Identity.Issuer)
	assert.Equal(t, string(constants.KeySourceFile), cfg.KeyRing.Source)
	assert.Equal(t, 90*24*time.Hour, cfg.KeyRing.KeyLifetime)
	assert.Equal(t, http.SameSiteLaxMode, cfg.Cookie.SameSiteMode())
	assert.False(t, cfg.Server.IsProduction())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corev1.yaml")
	content := `
cookie:
  name: .AspNet.SharedCookie
  domain: .localhost
  ttl: 30m
  persistent: false
  allow_refresh: false
identity:
  claim_type: name
keyring:
  directory: /var/lib/sharedcookie/keyring
  refresh_interval: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ".localhost", cfg.Cookie.Domain)
	assert.Equal(t, 30*time.Minute, cfg.Cookie.TTL)
	assert.False(t, cfg.Cookie.Persistent)
	assert.Equal(t, constants.IdentityClaimName, cfg.IdentityClaim())
	assert.Equal(t, "/var/lib/sharedcookie/keyring", cfg.KeyRing.Directory)
	assert.Equal(t, time.Minute, cfg.KeyRing.RefreshInterval)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidConfig))
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SHAREDCOOKIE_COOKIE_NAME", ".Custom.Cookie")
	t.Setenv("SHAREDCOOKIE_KEYRING_DIRECTORY", "/srv/keys")

	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ".Custom.Cookie", cfg.Cookie.Name)
	assert.Equal(t, "/srv/keys", cfg.KeyRing.Directory)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"unknown source", func(c *Config) { c.KeyRing.Source = "s3" }, "source"},
		{"empty purposes", func(c *Config) { c.Protection.Purposes = nil }, "purposes"},
		{"bad claim type", func(c *Config) { c.Identity.ClaimType = "upn" }, "claim_type"},
		{"zero ttl", func(c *Config) { c.Cookie.TTL = 0 }, "ttl"},
		{"file without directory", func(c *Config) { c.KeyRing.Directory = "" }, "keyring.directory"},
		{"same site none without secure", func(c *Config) { c.Cookie.SameSite = "none" }, "cookie.same_site"},
		{"sliding without refresh", func(c *Config) {
			c.Cookie.SlidingExpiration = true
			c.Cookie.AllowRefresh = false
		}, "cookie.sliding_expiration"},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }, "tracing.jaeger_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			authErr, ok := errors.AsAuthError(err)
			require.True(t, ok)
			assert.Equal(t, errors.KindInvalidConfig, authErr.Kind())
			assert.Equal(t, tt.field, authErr.Metadata()["field"])
		})
	}
}
