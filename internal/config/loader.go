package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g. SHAREDCOOKIE_COOKIE_NAME.
const EnvPrefix = "SHAREDCOOKIE"

// LoadConfig loads the configuration from file and environment variables.
// An empty path searches /etc/sharedcookie/ and the working directory for config.yaml.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/sharedcookie/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.ErrInvalidConfig("file", "cannot read config").WithCause(err)
		}
	}

	return Load(v)
}

// Load unmarshals and validates an already populated viper instance.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrInvalidConfig("unmarshal", "failed to unmarshal config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the validated default configuration.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", constants.DefaultHTTPPort)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout)
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5000", "http://localhost:5001"})
	v.SetDefault("server.login_rate_per_minute", constants.DefaultLoginRatePerMinute)
	v.SetDefault("server.login_burst", constants.DefaultLoginBurst)

	v.SetDefault("keyring.source", string(constants.KeySourceFile))
	v.SetDefault("keyring.directory", constants.DefaultKeyDirectory)
	v.SetDefault("keyring.watch", true)
	v.SetDefault("keyring.refresh_interval", constants.DefaultKeyRefreshInterval)
	v.SetDefault("keyring.refresh_timeout", constants.DefaultKeyRefreshTimeout)
	v.SetDefault("keyring.key_lifetime", constants.DefaultKeyLifetime)
	v.SetDefault("keyring.rotation_window", constants.DefaultRotationWindow)
	v.SetDefault("keyring.auto_generate", false)

	v.SetDefault("protection.purposes", constants.DefaultPurposes)
	v.SetDefault("protection.cipher_cache_ttl", constants.DefaultCipherCacheTTL)

	v.SetDefault("cookie.name", constants.DefaultCookieName)
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.path", constants.DefaultCookiePath)
	v.SetDefault("cookie.secure", false)
	v.SetDefault("cookie.http_only", true)
	v.SetDefault("cookie.same_site", "lax")
	v.SetDefault("cookie.ttl", constants.DefaultCookieTTL)
	v.SetDefault("cookie.persistent", true)
	v.SetDefault("cookie.allow_refresh", true)
	v.SetDefault("cookie.sliding_expiration", false)

	v.SetDefault("identity.claim_type", string(constants.IdentityClaimEmail))
	v.SetDefault("identity.issuer", constants.DefaultClaimIssuer)
	v.SetDefault("identity.authentication_type", constants.AuthenticationTypeCookie)
	v.SetDefault("identity.scheme", constants.DefaultAuthenticationScheme)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_prefix", "sharedcookie:")

	v.SetDefault("vault.address", "http://127.0.0.1:8200")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.key_path", "sharedcookie/keys")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "sharedcookie")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "sharedcookie")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.table", "sharedcookie_keys")

	v.SetDefault("log.level", string(constants.LogLevelInfo))
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.service_name", "sharedcookie")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", constants.DefaultMetricsPath)
}
