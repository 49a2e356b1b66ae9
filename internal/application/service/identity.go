// Package service provides application-level services that issue and validate shared cookies
package service

import (
	"strings"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/constants"
)

// IdentityProfile describes how a login identifier becomes a principal.
// Every application sharing the cookie must use the same profile.
// IdentityProfile 描述登录标识如何转换为主体，共享 Cookie 的所有应用必须使用相同配置。
type IdentityProfile struct {
	// Claim selects the claim type recording the login
	Claim constants.IdentityClaim
	// Issuer is recorded on every minted claim
	Issuer string
	// AuthenticationType labels the identity
	AuthenticationType string
	// Scheme is the authentication scheme recorded in the ticket
	Scheme string
}

// DefaultIdentityProfile records the login as an email claim issued by urn:net-core.
func DefaultIdentityProfile() IdentityProfile {
	return IdentityProfile{
		Claim:              constants.IdentityClaimEmail,
		Issuer:             constants.DefaultClaimIssuer,
		AuthenticationType: constants.AuthenticationTypeCookie,
		Scheme:             constants.DefaultAuthenticationScheme,
	}
}

// NewIdentityProfile builds the profile from configuration, filling empty fields with defaults.
func NewIdentityProfile(cfg *config.IdentityConfig) IdentityProfile {
	p := DefaultIdentityProfile()
	if cfg == nil {
		return p
	}
	if cfg.ClaimType != "" {
		p.Claim = constants.IdentityClaim(strings.ToLower(cfg.ClaimType))
	}
	if cfg.Issuer != "" {
		p.Issuer = cfg.Issuer
	}
	if cfg.AuthenticationType != "" {
		p.AuthenticationType = cfg.AuthenticationType
	}
	if cfg.Scheme != "" {
		p.Scheme = cfg.Scheme
	}
	return p
}

// claimType maps the profile's selector onto a claim type URI.
func (p IdentityProfile) claimType() string {
	if p.Claim == constants.IdentityClaimName {
		return constants.ClaimTypeName
	}
	return constants.ClaimTypeEmail
}

// Principal builds the principal for a validated login identifier.
func (p IdentityProfile) Principal(login string) *models.Principal {
	return models.NewPrincipal(models.Identity{
		AuthenticationType: p.AuthenticationType,
		NameClaimType:      constants.ClaimTypeEmail,
		RoleClaimType:      constants.ClaimTypeRole,
		Claims: models.NewClaimSet(
			models.NewClaim(p.claimType(), login, p.Issuer),
		),
	})
}

// Login returns the identifier held in the profile's identity claim.
func (p IdentityProfile) Login(principal *models.Principal) string {
	if principal == nil {
		return ""
	}
	c, ok := principal.FindFirst(p.claimType())
	if !ok {
		return ""
	}
	return c.Value
}
