package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/domain/models"
	domainService "github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
	"github.com/turtacn/sharedcookie/pkg/utils"
)

const tracerName = "github.com/turtacn/sharedcookie/internal/application/service"

// SessionIssuer defines the interface for minting login cookies
type SessionIssuer interface {
	// Issue builds a ticket for the login identifier and encodes it into a cookie.
	// A non-positive ttl selects the configured default.
	Issue(ctx context.Context, email string, persistent, allowRefresh bool, ttl time.Duration) (*IssuedCookie, error)

	// Reissue re-encodes a still valid ticket with a fresh lifetime of the same length.
	Reissue(ctx context.Context, ticket *models.Ticket) (*IssuedCookie, error)

	// SignOut returns the cookie that deletes the shared cookie in the browser.
	SignOut() *http.Cookie
}

// IssuedCookie is a minted cookie with the attributes it must be sent with.
// Login is the trimmed identifier stored in the ticket's identity claim.
type IssuedCookie struct {
	Name         string
	Value        string
	Login        string
	Domain       string
	Path         string
	Secure       bool
	HTTPOnly     bool
	SameSite     http.SameSite
	IssuedAt     time.Time
	ExpiresAt    time.Time
	IsPersistent bool
	AllowRefresh bool
}

// HTTPCookie renders the Set-Cookie value. Only persistent cookies carry an expiry.
func (c *IssuedCookie) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
	if c.IsPersistent {
		hc.Expires = c.ExpiresAt.UTC()
		hc.MaxAge = int(c.ExpiresAt.Sub(c.IssuedAt).Seconds())
	}
	return hc
}

// ExpiredHTTPCookie renders the cookie that removes this one.
func (c *IssuedCookie) ExpiredHTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
}

// sessionIssuerImpl is the concrete implementation of SessionIssuer
type sessionIssuerImpl struct {
	codec   domainService.TicketCodec
	cookie  config.CookieConfig
	profile IdentityProfile
	clock   domainService.Clock
	metrics domainService.Metrics
	logger  logger.Logger
	audit   *logger.AuditLogger
}

// Option customizes the issuer and validator.
type Option func(*options)

type options struct {
	clock   domainService.Clock
	metrics domainService.Metrics
}

// WithClock replaces the wall clock.
func WithClock(c domainService.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics records issue and validate outcomes.
func WithMetrics(m domainService.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{clock: domainService.SystemClock{}, metrics: domainService.NoopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSessionIssuer creates a new SessionIssuer instance
func NewSessionIssuer(
	codec domainService.TicketCodec,
	cookie config.CookieConfig,
	profile IdentityProfile,
	log logger.Logger,
	opts ...Option,
) SessionIssuer {
	o := buildOptions(opts)
	if cookie.Name == "" {
		cookie.Name = constants.DefaultCookieName
	}
	if cookie.Path == "" {
		cookie.Path = constants.DefaultCookiePath
	}
	if cookie.TTL <= 0 {
		cookie.TTL = constants.DefaultCookieTTL
	}
	return &sessionIssuerImpl{
		codec:   codec,
		cookie:  cookie,
		profile: profile,
		clock:   o.clock,
		metrics: o.metrics,
		logger:  log.WithComponent("SessionIssuer"),
		audit:   logger.NewAuditLogger(log),
	}
}

// Issue implements SessionIssuer.
func (s *sessionIssuerImpl) Issue(ctx context.Context, email string, persistent, allowRefresh bool, ttl time.Duration) (*IssuedCookie, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SessionIssuer.Issue")
	defer span.End()

	issued, err := s.issue(ctx, email, persistent, allowRefresh, ttl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.KindOf(err)))
		s.metrics.RecordSessionIssue(false, string(errors.KindOf(err)), time.Since(start))
		return nil, err
	}
	s.metrics.RecordSessionIssue(true, "", time.Since(start))
	return issued, nil
}

func (s *sessionIssuerImpl) issue(ctx context.Context, email string, persistent, allowRefresh bool, ttl time.Duration) (*IssuedCookie, error) {
	login := strings.TrimSpace(email)
	switch {
	case login == "":
		return nil, errors.ErrInvalidIdentity("email is required")
	case len(login) > constants.MaxEmailLength:
		return nil, errors.ErrInvalidIdentity("email is too long")
	case !utils.ValidateEmail(login):
		return nil, errors.ErrInvalidIdentity("email is not a valid address")
	}
	if ttl <= 0 {
		ttl = s.cookie.TTL
	}

	now := s.clock.Now().UTC()
	ticket := &models.Ticket{
		Scheme:       s.profile.Scheme,
		Principal:    s.profile.Principal(login),
		IssuedAt:     now,
		ExpiresAt:    now.Add(ttl),
		IsPersistent: persistent,
		AllowRefresh: allowRefresh,
	}

	issued, err := s.encode(ctx, ticket)
	if err != nil {
		s.logger.Error(ctx, "Failed to encode login ticket", err, logger.String("kind", string(errors.KindOf(err))))
		return nil, err
	}

	issued.Login = login

	keyID, _ := crypto.InspectKeyID(issued.Value)
	s.audit.LogSessionIssued(ctx, utils.MaskEmail(login), keyID, ticket.ExpiresAt)
	return issued, nil
}

// Reissue implements SessionIssuer.
func (s *sessionIssuerImpl) Reissue(ctx context.Context, ticket *models.Ticket) (*IssuedCookie, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SessionIssuer.Reissue")
	defer span.End()

	if ticket == nil || !ticket.Principal.IsAuthenticated() {
		return nil, errors.ErrInvalidIdentity("ticket has no authenticated principal")
	}
	lifetime := ticket.Lifetime()
	if lifetime <= 0 {
		lifetime = s.cookie.TTL
	}

	now := s.clock.Now().UTC()
	renewed := *ticket
	renewed.IssuedAt = now
	renewed.ExpiresAt = now.Add(lifetime)

	issued, err := s.encode(ctx, &renewed)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	issued.Login = s.profile.Login(renewed.Principal)
	span.SetAttributes(attribute.Bool("session.refreshed", true))
	return issued, nil
}

// SignOut implements SessionIssuer.
func (s *sessionIssuerImpl) SignOut() *http.Cookie {
	return s.cookieFor(nil).ExpiredHTTPCookie()
}

func (s *sessionIssuerImpl) encode(ctx context.Context, ticket *models.Ticket) (*IssuedCookie, error) {
	value, err := s.codec.Encode(ctx, ticket)
	if err != nil {
		return nil, err
	}
	issued := s.cookieFor(ticket)
	issued.Value = value
	return issued, nil
}

func (s *sessionIssuerImpl) cookieFor(ticket *models.Ticket) *IssuedCookie {
	c := &IssuedCookie{
		Name:     s.cookie.Name,
		Domain:   s.cookie.Domain,
		Path:     s.cookie.Path,
		Secure:   s.cookie.Secure,
		HTTPOnly: s.cookie.HTTPOnly,
		SameSite: s.cookie.SameSiteMode(),
	}
	if ticket != nil {
		c.IssuedAt = ticket.IssuedAt
		c.ExpiresAt = ticket.ExpiresAt
		c.IsPersistent = ticket.IsPersistent
		c.AllowRefresh = ticket.AllowRefresh
	}
	return c
}
