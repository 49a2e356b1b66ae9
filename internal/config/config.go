package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/utils"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	KeyRing    KeyRingConfig    `mapstructure:"keyring"`
	Protection ProtectionConfig `mapstructure:"protection"`
	Cookie     CookieConfig     `mapstructure:"cookie"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	Environment        string        `mapstructure:"environment"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	LoginRatePerMinute int           `mapstructure:"login_rate_per_minute" validate:"gte=0"`
	LoginBurst         int           `mapstructure:"login_burst" validate:"gte=0"`
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// KeyRingConfig locates the shared key ring and controls how often it is re-read.
type KeyRingConfig struct {
	Source          string        `mapstructure:"source" validate:"oneof=file vault redis postgres"`
	Directory       string        `mapstructure:"directory"`
	Watch           bool          `mapstructure:"watch"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gt=0"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout" validate:"gt=0"`
	KeyLifetime     time.Duration `mapstructure:"key_lifetime" validate:"gt=0"`
	RotationWindow  time.Duration `mapstructure:"rotation_window" validate:"gte=0"`
	AutoGenerate    bool          `mapstructure:"auto_generate"`
}

// ProtectionConfig holds the purpose chain every cooperating service must share.
type ProtectionConfig struct {
	Purposes       []string      `mapstructure:"purposes" validate:"min=1,dive,required"`
	CipherCacheTTL time.Duration `mapstructure:"cipher_cache_ttl" validate:"gt=0"`
}

type CookieConfig struct {
	Name              string        `mapstructure:"name" validate:"required"`
	Domain            string        `mapstructure:"domain"`
	Path              string        `mapstructure:"path"`
	Secure            bool          `mapstructure:"secure"`
	HTTPOnly          bool          `mapstructure:"http_only"`
	SameSite          string        `mapstructure:"same_site" validate:"oneof=lax strict none default"`
	TTL               time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Persistent        bool          `mapstructure:"persistent"`
	AllowRefresh      bool          `mapstructure:"allow_refresh"`
	SlidingExpiration bool          `mapstructure:"sliding_expiration"`
}

// SameSiteMode maps the configured value onto net/http.
func (c *CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

// IdentityConfig selects the claim layout written into tickets.
type IdentityConfig struct {
	ClaimType          string `mapstructure:"claim_type" validate:"oneof=email name"`
	Issuer             string `mapstructure:"issuer" validate:"required"`
	AuthenticationType string `mapstructure:"authentication_type" validate:"required"`
	Scheme             string `mapstructure:"scheme" validate:"required"`
}

type RedisConfig struct {
	Mode           string        `mapstructure:"mode"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	ClusterAddrs   []string      `mapstructure:"cluster_addrs"`
	SentinelAddrs  []string      `mapstructure:"sentinel_addrs"`
	SentinelMaster string        `mapstructure:"sentinel_master"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	KeyPrefix      string        `mapstructure:"key_prefix"`
}

// Addr returns the standalone address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
	KeyPath   string `mapstructure:"key_path"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	Table           string        `mapstructure:"table"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRate     float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	switch constants.KeySource(c.KeyRing.Source) {
	case constants.KeySourceFile:
		if c.KeyRing.Directory == "" {
			return errors.ErrInvalidConfig("keyring.directory", "is required for the file key source")
		}
	case constants.KeySourceVault:
		if c.Vault.Address == "" || c.Vault.MountPath == "" {
			return errors.ErrInvalidConfig("vault.address", "address and mount_path are required for the vault key source")
		}
	case constants.KeySourceRedis:
		if c.Redis.Host == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
			return errors.ErrInvalidConfig("redis.host", "an address is required for the redis key source")
		}
	case constants.KeySourcePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.ErrInvalidConfig("database.host", "host and database are required for the postgres key source")
		}
	}

	if strings.EqualFold(c.Cookie.SameSite, "none") && !c.Cookie.Secure {
		return errors.ErrInvalidConfig("cookie.same_site", "none requires cookie.secure")
	}
	if c.Cookie.SlidingExpiration && !c.Cookie.AllowRefresh {
		return errors.ErrInvalidConfig("cookie.sliding_expiration", "requires cookie.allow_refresh")
	}
	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return errors.ErrInvalidConfig("tracing.jaeger_endpoint", "is required when tracing is enabled")
	}
	return nil
}

// IdentityClaim returns the configured identity claim selector.
func (c *Config) IdentityClaim() constants.IdentityClaim {
	return constants.IdentityClaim(strings.ToLower(c.Identity.ClaimType))
}
