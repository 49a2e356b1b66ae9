package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	domainService "github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

const resultOK = "ok"

// SessionValidator defines the interface for accepting shared cookies.
// SessionValidator 定义校验共享 Cookie 的接口。
type SessionValidator interface {
	// Validate decodes a cookie value and returns its principal when the ticket is unexpired at now.
	// Validate 解码 Cookie 值，并在票据于 now 时刻未过期时返回其主体。
	Validate(ctx context.Context, cookie string, now time.Time) (*models.Principal, error)

	// ValidateTicket is Validate returning the whole ticket, used for sliding refresh.
	// ValidateTicket 与 Validate 相同，但返回完整票据，用于滑动续期。
	ValidateTicket(ctx context.Context, cookie string, now time.Time) (*models.Ticket, error)

	// ShouldRefresh reports whether a refreshable ticket has used more than half its lifetime.
	// ShouldRefresh 判断允许续期的票据是否已超过其生命周期的一半。
	ShouldRefresh(ticket *models.Ticket, now time.Time) bool
}

type sessionValidatorImpl struct {
	codec   domainService.TicketCodec
	metrics domainService.Metrics
	logger  logger.Logger
	audit   *logger.AuditLogger
}

// NewSessionValidator creates a new SessionValidator instance
func NewSessionValidator(codec domainService.TicketCodec, log logger.Logger, opts ...Option) SessionValidator {
	o := buildOptions(opts)
	return &sessionValidatorImpl{
		codec:   codec,
		metrics: o.metrics,
		logger:  log.WithComponent("SessionValidator"),
		audit:   logger.NewAuditLogger(log),
	}
}

// Validate implements SessionValidator.
func (v *sessionValidatorImpl) Validate(ctx context.Context, cookie string, now time.Time) (*models.Principal, error) {
	ticket, err := v.ValidateTicket(ctx, cookie, now)
	if err != nil {
		return nil, err
	}
	return ticket.Principal, nil
}

// ValidateTicket implements SessionValidator.
func (v *sessionValidatorImpl) ValidateTicket(ctx context.Context, cookie string, now time.Time) (*models.Ticket, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SessionValidator.Validate")
	defer span.End()

	ticket, err := v.validate(ctx, cookie, now)
	if err != nil {
		kind := string(errors.KindOf(err))
		span.SetStatus(codes.Error, kind)
		span.SetAttributes(attribute.String("session.rejected", kind))
		v.metrics.RecordSessionValidate(kind, time.Since(start))
		v.audit.LogSessionRejected(ctx, kind, err)
		return nil, err
	}

	v.metrics.RecordSessionValidate(resultOK, time.Since(start))
	return ticket, nil
}

func (v *sessionValidatorImpl) validate(ctx context.Context, cookie string, now time.Time) (*models.Ticket, error) {
	ticket, err := v.codec.Decode(ctx, cookie)
	if err != nil {
		if errors.IsKind(err, errors.KindInternal) {
			v.logger.Error(ctx, "Cookie decode failed unexpectedly", err)
		}
		return nil, err
	}
	if ticket.ExpiredAt(now) {
		return nil, errors.ErrExpired(ticket.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if !ticket.Principal.IsAuthenticated() {
		return nil, errors.ErrMalformedCookie("ticket carries no authenticated identity")
	}
	return ticket, nil
}

// ShouldRefresh implements SessionValidator.
func (v *sessionValidatorImpl) ShouldRefresh(ticket *models.Ticket, now time.Time) bool {
	if ticket == nil || !ticket.AllowRefresh || ticket.ExpiredAt(now) {
		return false
	}
	lifetime := ticket.Lifetime()
	if lifetime <= 0 {
		return false
	}
	return now.Sub(ticket.IssuedAt) > lifetime/2
}
