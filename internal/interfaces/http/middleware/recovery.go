package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sharedcookie/internal/application/dto"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// Recovery turns a panicking handler into a 500 with the standard error body.
func Recovery(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				log.Error(c.Request.Context(), "Panic recovered", err,
					logger.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse(err, TraceID(c)))
			}
		}()
		c.Next()
	}
}
