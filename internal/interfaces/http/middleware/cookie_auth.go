package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sharedcookie/internal/application/dto"
	"github.com/turtacn/sharedcookie/internal/application/service"
	"github.com/turtacn/sharedcookie/internal/domain/models"
	domainService "github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// CookieAuthConfig controls how the shared cookie is read.
type CookieAuthConfig struct {
	// CookieName is the shared cookie's name
	CookieName string
	// SlidingExpiration re-issues refreshable tickets past half their lifetime
	SlidingExpiration bool
	// Clock defaults to the wall clock
	Clock domainService.Clock
}

// CookieAuth authenticates requests carrying the shared cookie.
// A missing or rejected cookie leaves the request anonymous; RequireAuthenticated
// decides whether that is acceptable. The rejection kind is logged, never returned.
// CookieAuth 使用共享 Cookie 认证请求，缺失或无效的 Cookie 使请求保持匿名。
func CookieAuth(
	validator service.SessionValidator,
	issuer service.SessionIssuer,
	cfg CookieAuthConfig,
	log logger.Logger,
) gin.HandlerFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = constants.DefaultCookieName
	}
	if cfg.Clock == nil {
		cfg.Clock = domainService.SystemClock{}
	}
	log = log.WithComponent("CookieAuth")

	return func(c *gin.Context) {
		cookie, err := c.Request.Cookie(cfg.CookieName)
		if err != nil || cookie.Value == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		now := cfg.Clock.Now()
		ticket, err := validator.ValidateTicket(ctx, cookie.Value, now)
		if err != nil {
			log.Info(ctx, "Shared cookie rejected",
				logger.String("kind", string(errors.KindOf(err))),
				logger.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		if cfg.SlidingExpiration && issuer != nil && validator.ShouldRefresh(ticket, now) {
			renewed, err := issuer.Reissue(ctx, ticket)
			if err != nil {
				log.Warn(ctx, "Sliding refresh failed, keeping the current cookie", logger.Error(err))
			} else {
				http.SetCookie(c.Writer, renewed.HTTPCookie())
			}
		}

		setAuthenticated(c, ticket)
		c.Next()
	}
}

// RequireAuthenticated rejects anonymous requests with the generic 401 body.
// RequireAuthenticated 以统一的 401 响应拒绝匿名请求。
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFromContext(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.UnauthorizedResponse(TraceID(c)))
			return
		}
		c.Next()
	}
}

// PrincipalFromContext returns the principal CookieAuth attached to the request.
func PrincipalFromContext(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(string(constants.ContextKeyPrincipal))
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok && p.IsAuthenticated()
}

// TicketFromContext returns the validated ticket CookieAuth attached to the request.
func TicketFromContext(c *gin.Context) (*models.Ticket, bool) {
	v, ok := c.Get(string(constants.ContextKeyTicket))
	if !ok {
		return nil, false
	}
	t, ok := v.(*models.Ticket)
	return t, ok
}

func setAuthenticated(c *gin.Context, ticket *models.Ticket) {
	c.Set(string(constants.ContextKeyTicket), ticket)
	c.Set(string(constants.ContextKeyPrincipal), ticket.Principal)

	ctx := context.WithValue(c.Request.Context(), constants.ContextKeyPrincipal, ticket.Principal)
	c.Request = c.Request.WithContext(ctx)
}
