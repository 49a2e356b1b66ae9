package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sharedcookie/internal/application/dto"
	"github.com/turtacn/sharedcookie/internal/application/service"
	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/interfaces/http/middleware"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// SessionHandler handles login, logout and the current user endpoint.
type SessionHandler struct {
	issuer service.SessionIssuer
	cookie config.CookieConfig
	log    logger.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(issuer service.SessionIssuer, cookie config.CookieConfig, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		issuer: issuer,
		cookie: cookie,
		log:    log.WithComponent("SessionHandler"),
	}
}

// Login godoc
// @Summary      Sign in
// @Description  Issues the shared authentication cookie for an email address.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request  body      dto.LoginRequest  true  "login"
// @Success      200      {object}  dto.APIResponse
// @Failure      400      {object}  dto.APIResponse
// @Failure      503      {object}  dto.APIResponse
// @Router       /account/login [post]
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindingError(c, err)
		return
	}

	persistent := h.cookie.Persistent
	if req.RememberMe != nil {
		persistent = *req.RememberMe
	}

	issued, err := h.issuer.Issue(c.Request.Context(), req.Email, persistent, h.cookie.AllowRefresh, 0)
	if err != nil {
		if !errors.IsKind(err, errors.KindInvalidIdentity) {
			h.log.Error(c.Request.Context(), "Login failed", err)
		}
		sendError(c, err)
		return
	}

	http.SetCookie(c.Writer, issued.HTTPCookie())
	sendSuccess(c, http.StatusOK, dto.LoginResponse{
		Name:         issued.Login,
		CookieName:   issued.Name,
		ExpiresAt:    issued.ExpiresAt,
		IsPersistent: issued.IsPersistent,
	})
}

// Logout godoc
// @Summary      Sign out
// @Description  Deletes the shared authentication cookie.
// @Tags         account
// @Success      204
// @Router       /account/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, h.issuer.SignOut())
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary      Current user
// @Description  Returns the principal carried by the shared cookie.
// @Tags         account
// @Produce      json
// @Success      200  {object}  dto.APIResponse
// @Failure      401  {object}  dto.APIResponse
// @Router       /api/v1/me [get]
func (h *SessionHandler) Me(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.UnauthorizedResponse(middleware.TraceID(c)))
		return
	}
	ticket, _ := middleware.TicketFromContext(c)
	sendSuccess(c, http.StatusOK, dto.NewPrincipalResponse(principal, ticket))
}
