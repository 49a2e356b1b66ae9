package models

import "github.com/turtacn/sharedcookie/pkg/constants"

// Identity is one authenticated identity and the claims asserted about it.
// Identity 表示一个已认证的身份及其相关声明。
type Identity struct {
	// AuthenticationType names how the identity was authenticated, "Cookie" for tickets.
	// AuthenticationType 表示身份的认证方式，票据为 "Cookie"。
	AuthenticationType string `json:"authentication_type"`
	// NameClaimType is the claim type that yields the identity's name.
	// NameClaimType 是用于获取身份名称的声明类型。
	NameClaimType string `json:"name_claim_type"`
	// RoleClaimType is the claim type that yields the identity's roles.
	// RoleClaimType 是用于获取身份角色的声明类型。
	RoleClaimType string `json:"role_claim_type"`
	// Claims holds the asserted claims in order.
	// Claims 按顺序保存所有声明。
	Claims ClaimSet `json:"-"`
}

// Principal is the authenticated user as seen by an application.
// It is never mutated after construction.
// Principal 是应用程序看到的已认证用户，构造后不可修改。
type Principal struct {
	identity Identity
}

// NewPrincipal builds a principal around a single identity.
// NewPrincipal 基于单个身份构建主体。
func NewPrincipal(identity Identity) *Principal {
	identity.Claims = NewClaimSet(identity.Claims.All()...)
	return &Principal{identity: identity}
}

// Identity returns the principal's identity.
func (p *Principal) Identity() Identity {
	return p.identity
}

// Claims returns the identity's claims.
func (p *Principal) Claims() ClaimSet {
	return p.identity.Claims
}

// IsAuthenticated reports whether the identity carries an authentication type.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.identity.AuthenticationType != ""
}

// Name returns the value of the first name claim, or empty.
func (p *Principal) Name() string {
	c, ok := p.identity.Claims.FindFirst(p.identity.NameClaimType)
	if !ok {
		return ""
	}
	return c.Value
}

// Email returns the value of the first email claim, or empty.
func (p *Principal) Email() string {
	c, ok := p.identity.Claims.FindFirst(constants.ClaimTypeEmail)
	if !ok {
		return ""
	}
	return c.Value
}

// FindFirst returns the first claim of the given type.
func (p *Principal) FindFirst(claimType string) (Claim, bool) {
	return p.identity.Claims.FindFirst(claimType)
}

// IsInRole reports whether the identity holds the role.
func (p *Principal) IsInRole(role string) bool {
	return p.identity.Claims.HasClaim(p.identity.RoleClaimType, role)
}

// Equal reports whether both principals carry identical identity data.
func (p *Principal) Equal(other *Principal) bool {
	if p == nil || other == nil {
		return p == other
	}
	a, b := p.identity, other.identity
	return a.AuthenticationType == b.AuthenticationType &&
		a.NameClaimType == b.NameClaimType &&
		a.RoleClaimType == b.RoleClaimType &&
		a.Claims.Equal(b.Claims)
}
