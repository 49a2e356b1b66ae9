package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/pkg/constants"
)

// KeyEntry is one versioned symmetric key in the shared key ring.
// Its ID travels in cleartext inside every cookie it protected.
// KeyEntry 是共享密钥环中的一个带版本的对称密钥。
// 它的 ID 以明文形式包含在其保护的每个 Cookie 中。
type KeyEntry struct {
	// ID is the key version identifier.
	// ID 是密钥版本标识符。
	ID uuid.UUID
	// CreatedAt is when the key was generated.
	// CreatedAt 是密钥生成的时间。
	CreatedAt time.Time
	// ActivatesAt is the first instant the key may protect new tickets.
	// ActivatesAt 是密钥可用于保护新票据的起始时间。
	ActivatesAt time.Time
	// ExpiresAt is the instant after which the key no longer protects new tickets.
	// ExpiresAt 之后密钥不再用于保护新票据。
	ExpiresAt time.Time
	// Algorithm identifies the protection scheme.
	// Algorithm 标识保护方案。
	Algorithm string
	// Material is the raw key material, never logged.
	// Material 是原始密钥材料，绝不记录到日志。
	Material []byte
	// Revoked keys neither protect nor unprotect anything.
	// 已撤销的密钥既不能加密也不能解密。
	Revoked bool
	// RevocationReason records why the key was revoked.
	// RevocationReason 记录撤销原因。
	RevocationReason string
}

// Usable reports whether the key may protect new tickets at now.
func (k *KeyEntry) Usable(now time.Time) bool {
	return !k.Revoked && !now.Before(k.ActivatesAt) && now.Before(k.ExpiresAt)
}

// Status returns the key's lifecycle status at now.
func (k *KeyEntry) Status(now time.Time) constants.KeyStatus {
	switch {
	case k.Revoked:
		return constants.KeyStatusRevoked
	case now.Before(k.ActivatesAt):
		return constants.KeyStatusPending
	case !now.Before(k.ExpiresAt):
		return constants.KeyStatusExpired
	default:
		return constants.KeyStatusActive
	}
}

// Metadata returns a copy of the entry without key material.
func (k *KeyEntry) Metadata() KeyMetadata {
	return KeyMetadata{
		ID:               k.ID,
		CreatedAt:        k.CreatedAt,
		ActivatesAt:      k.ActivatesAt,
		ExpiresAt:        k.ExpiresAt,
		Algorithm:        k.Algorithm,
		Revoked:          k.Revoked,
		RevocationReason: k.RevocationReason,
	}
}

// KeyMetadata describes a key ring entry for listings and diagnostics.
// KeyMetadata 描述密钥环条目，用于列表和诊断，不含密钥材料。
type KeyMetadata struct {
	ID               uuid.UUID           `json:"id"`
	CreatedAt        time.Time           `json:"created_at"`
	ActivatesAt      time.Time           `json:"activates_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
	Algorithm        string              `json:"algorithm"`
	Revoked          bool                `json:"revoked"`
	RevocationReason string              `json:"revocation_reason,omitempty"`
	Status           constants.KeyStatus `json:"status,omitempty"`
}
