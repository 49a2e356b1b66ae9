package models

import "github.com/turtacn/sharedcookie/pkg/constants"

// Claim is a single typed statement about an authenticated subject.
// Claim 是关于已认证主体的一条带类型的声明。
type Claim struct {
	// Type is the claim type URI, e.g. the email address claim type.
	// Type 是声明类型 URI，例如电子邮件地址声明类型。
	Type string `json:"type"`
	// Value is the claim value.
	// Value 是声明的值。
	Value string `json:"value"`
	// ValueType is the value type URI, usually the XML schema string type.
	// ValueType 是值类型 URI，通常为 XML Schema 字符串类型。
	ValueType string `json:"value_type"`
	// Issuer names the authority that asserted the claim.
	// Issuer 表示签发该声明的机构。
	Issuer string `json:"issuer"`
	// OriginalIssuer names the authority that first asserted the claim.
	// OriginalIssuer 表示最初签发该声明的机构。
	OriginalIssuer string `json:"original_issuer"`
}

// NewClaim creates a string-valued claim whose original issuer equals its issuer.
// NewClaim 创建一个字符串类型的声明，其原始签发者与签发者相同。
func NewClaim(claimType, value, issuer string) Claim {
	return Claim{
		Type:           claimType,
		Value:          value,
		ValueType:      constants.ClaimValueTypeString,
		Issuer:         issuer,
		OriginalIssuer: issuer,
	}
}

// ClaimSet is an ordered, read-only list of claims.
// ClaimSet 是有序且只读的声明列表。
type ClaimSet struct {
	claims []Claim
}

// NewClaimSet copies claims into a new set, filling empty original issuers.
// NewClaimSet 将声明复制到新的集合中，并补全空的原始签发者。
func NewClaimSet(claims ...Claim) ClaimSet {
	cp := make([]Claim, len(claims))
	for i, c := range claims {
		if c.OriginalIssuer == "" {
			c.OriginalIssuer = c.Issuer
		}
		cp[i] = c
	}
	return ClaimSet{claims: cp}
}

// Len returns the number of claims.
func (s ClaimSet) Len() int {
	return len(s.claims)
}

// All returns a copy of the claims in order.
func (s ClaimSet) All() []Claim {
	cp := make([]Claim, len(s.claims))
	copy(cp, s.claims)
	return cp
}

// FindFirst returns the first claim of the given type.
func (s ClaimSet) FindFirst(claimType string) (Claim, bool) {
	for _, c := range s.claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// FindAll returns every claim of the given type.
func (s ClaimSet) FindAll(claimType string) []Claim {
	var out []Claim
	for _, c := range s.claims {
		if c.Type == claimType {
			out = append(out, c)
		}
	}
	return out
}

// HasClaim reports whether a claim with the given type and value exists.
func (s ClaimSet) HasClaim(claimType, value string) bool {
	for _, c := range s.claims {
		if c.Type == claimType && c.Value == value {
			return true
		}
	}
	return false
}

// Equal compares two sets claim by claim, order included.
func (s ClaimSet) Equal(other ClaimSet) bool {
	if len(s.claims) != len(other.claims) {
		return false
	}
	for i := range s.claims {
		if s.claims[i] != other.claims[i] {
			return false
		}
	}
	return true
}
