package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/turtacn/sharedcookie/internal/application/dto"
	"github.com/turtacn/sharedcookie/internal/interfaces/http/middleware"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

// sendSuccess writes the standard success envelope.
func sendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, dto.SuccessResponse(data, middleware.TraceID(c)))
}

// sendError writes the standard error envelope with the error's HTTP status.
// Cookie validation failures are collapsed into the generic 401 body.
func sendError(c *gin.Context, err error) {
	if errors.IsValidationFailure(err) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.UnauthorizedResponse(middleware.TraceID(c)))
		return
	}
	c.AbortWithStatusJSON(errors.StatusOf(err), dto.ErrorResponse(err, middleware.TraceID(c)))
}

// sendBindingError reports request binding failures field by field.
func sendBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ValidationErrorResponse([]dto.ValidationErrorDTO{{
			Field:   "body",
			Tag:     "json",
			Message: "request body is not valid JSON",
		}}, middleware.TraceID(c)))
		return
	}

	out := make([]dto.ValidationErrorDTO, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, dto.ValidationErrorDTO{
			Field:   strings.ToLower(fe.Field()),
			Tag:     fe.Tag(),
			Message: "failed on the '" + fe.Tag() + "' rule",
		})
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ValidationErrorResponse(out, middleware.TraceID(c)))
}
