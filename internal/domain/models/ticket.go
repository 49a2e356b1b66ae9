package models

import "time"

// Ticket is the authenticated session carried inside the shared cookie.
// Ticket 是共享 Cookie 中携带的已认证会话。
type Ticket struct {
	// Scheme is the authentication scheme that produced the ticket.
	// Scheme 是生成该票据的认证方案。
	Scheme string
	// Principal is the authenticated user.
	// Principal 是已认证的用户。
	Principal *Principal
	// IssuedAt is the UTC instant the ticket was minted.
	// IssuedAt 是票据签发的 UTC 时间。
	IssuedAt time.Time
	// ExpiresAt is the UTC instant after which the ticket is rejected.
	// ExpiresAt 是票据失效的 UTC 时间。
	ExpiresAt time.Time
	// IsPersistent asks the browser to keep the cookie across restarts.
	// IsPersistent 要求浏览器在重启后保留 Cookie。
	IsPersistent bool
	// AllowRefresh permits a caller to re-issue the ticket before expiry.
	// AllowRefresh 允许调用方在过期前重新签发票据。
	AllowRefresh bool
}

// ExpiredAt reports whether the ticket is expired at now. The expiry instant itself is expired.
func (t *Ticket) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Lifetime returns the ticket's total validity window.
func (t *Ticket) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// Remaining returns the time left before expiry at now, never negative.
func (t *Ticket) Remaining(now time.Time) time.Duration {
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
