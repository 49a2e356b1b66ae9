// Package constants defines system-wide constants for the shared cookie service.
// Values marked as part of the cross-service contract must be identical on every
// cooperating application, otherwise cookies minted by one are rejected by the others.
package constants

import "time"

// ================================================================================
// Cookie Contract Constants
// ================================================================================

const (
	// DefaultCookieName is the name every cooperating application looks the ticket up by
	DefaultCookieName = ".AspNet.SharedCookie"

	// DefaultCookiePath is the cookie path attribute
	DefaultCookiePath = "/"

	// DefaultCookieTTL is the lifetime of a newly issued ticket
	DefaultCookieTTL = 20 * time.Minute

	// MaxCookieValueLength is the largest value browsers reliably keep
	MaxCookieValueLength = 4000
)

// DefaultPurposes is the purpose chain mixed into key derivation.
// It is part of the shared protocol contract.
var DefaultPurposes = []string{
	"Microsoft.AspNetCore.Authentication.Cookies.CookieAuthenticationMiddleware",
	"Cookie",
	"v2",
}

// ================================================================================
// Identity Constants
// ================================================================================

const (
	// AuthenticationTypeCookie labels identities rebuilt from a cookie ticket
	AuthenticationTypeCookie = "Cookie"

	// DefaultAuthenticationScheme is the scheme recorded in serialized tickets
	DefaultAuthenticationScheme = "Cookie"

	// DefaultClaimIssuer is the issuer recorded on claims minted at login
	DefaultClaimIssuer = "urn:net-core"

	// ClaimTypeName is the name claim type URI
	ClaimTypeName = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"

	// ClaimTypeEmail is the email claim type URI
	ClaimTypeEmail = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"

	// ClaimTypeRole is the role claim type URI
	ClaimTypeRole = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

	// ClaimValueTypeString is the value type of plain string claims
	ClaimValueTypeString = "http://www.w3.org/2001/XMLSchema#string"

	// MaxEmailLength is the longest address accepted for an identity
	MaxEmailLength = 254
)

// IdentityClaim selects which claim type carries the login identity
type IdentityClaim string

const (
	// IdentityClaimEmail records the login as an email claim
	IdentityClaimEmail IdentityClaim = "email"

	// IdentityClaimName records the login as a name claim
	IdentityClaimName IdentityClaim = "name"
)

// ================================================================================
// Key Ring Constants
// ================================================================================

// KeyStatus represents the lifecycle status of a key ring entry
type KeyStatus string

const (
	// KeyStatusPending indicates the key is not yet activated
	KeyStatusPending KeyStatus = "pending"

	// KeyStatusActive indicates the key can protect new tickets
	KeyStatusActive KeyStatus = "active"

	// KeyStatusExpired indicates the key only decrypts outstanding tickets
	KeyStatusExpired KeyStatus = "expired"

	// KeyStatusRevoked indicates the key must not be used at all
	KeyStatusRevoked KeyStatus = "revoked"
)

// KeySource names a key store backend
type KeySource string

const (
	// KeySourceFile stores one key file per entry in a shared directory
	KeySourceFile KeySource = "file"

	// KeySourceVault stores entries in a HashiCorp Vault KV v2 mount
	KeySourceVault KeySource = "vault"

	// KeySourceRedis stores entries in a Redis hash
	KeySourceRedis KeySource = "redis"

	// KeySourcePostgres stores entries in a PostgreSQL table
	KeySourcePostgres KeySource = "postgres"
)

const (
	// KeyAlgorithm identifies the protection scheme of every key entry
	KeyAlgorithm = "XChaCha20-Poly1305/HKDF-SHA256"

	// KeySize is the size of raw key material in bytes
	KeySize = 32

	// DefaultKeyLifetime is how long a new key protects tickets (90 days)
	DefaultKeyLifetime = 90 * 24 * time.Hour

	// DefaultRotationWindow is how early a successor key is generated (2 days)
	DefaultRotationWindow = 48 * time.Hour

	// DefaultKeyRefreshInterval is the key ring polling period
	DefaultKeyRefreshInterval = 5 * time.Minute

	// DefaultKeyRefreshTimeout bounds a single key store read
	DefaultKeyRefreshTimeout = 5 * time.Second

	// DefaultCipherCacheTTL is how long derived ciphers stay cached
	DefaultCipherCacheTTL = 10 * time.Minute

	// DefaultKeyDirectory is the shared key ring directory
	DefaultKeyDirectory = "./keyring"
)

// ================================================================================
// Server Constants
// ================================================================================

const (
	// DefaultHTTPPort is the default HTTP listener port
	DefaultHTTPPort = 8080

	// DefaultShutdownTimeout is the graceful shutdown timeout (30 seconds)
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMetricsPath is the Prometheus scrape path
	DefaultMetricsPath = "/metrics"

	// DefaultLoginRatePerMinute is the sustained login rate allowed per client address
	DefaultLoginRatePerMinute = 30

	// DefaultLoginBurst is the number of logins a client may send back to back
	DefaultLoginBurst = 10

	// HeaderRequestID carries the request correlation id
	HeaderRequestID = "X-Request-ID"
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID is the key for distributed trace ID in context
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyPrincipal is the key for the authenticated principal
	ContextKeyPrincipal ContextKey = "principal"

	// ContextKeyTicket is the key for the validated ticket
	ContextKeyTicket ContextKey = "ticket"
)
