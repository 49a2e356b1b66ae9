package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sharedcookie/internal/application/dto"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// Limiter decides whether a client key may proceed.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// RateLimit throttles requests per client address and answers 429 with Retry-After.
// RateLimit 按客户端地址限流，超限时返回 429 并附带 Retry-After。
func RateLimit(limiter Limiter, log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		ok, retryAfter := limiter.Allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		log.Warn(c.Request.Context(), "Rate limit exceeded",
			logger.String("client_ip", c.ClientIP()),
			logger.String("path", c.FullPath()),
			logger.Duration("retry_after", retryAfter),
		)
		err := errors.ErrRateLimited(retryAfter)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		c.AbortWithStatusJSON(errors.StatusOf(err), dto.ErrorResponse(err, TraceID(c)))
	}
}
