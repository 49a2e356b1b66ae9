package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/domain/models"
)

//go:generate mockery --name KeyRing --output mocks --outpkg mocks
// KeyRing exposes the versioned shared keys to the ticket codec.
// Reads are lock-free against an immutable snapshot.
// KeyRing 向票据编解码器提供带版本的共享密钥，读取操作基于不可变快照且无锁。
type KeyRing interface {
	// CurrentKey returns the key used for new encryptions.
	// CurrentKey 返回用于新加密的密钥。
	CurrentKey() (*models.KeyEntry, error)

	// KeyByVersion returns a retained, non-revoked key by id, even if it no longer encrypts.
	// KeyByVersion 按 ID 返回保留且未撤销的密钥，即使它已不再用于加密。
	KeyByVersion(id uuid.UUID) (*models.KeyEntry, error)

	// Refresh reloads the ring from its store.
	// Refresh 从存储重新加载密钥环。
	Refresh(ctx context.Context) error

	// Keys returns the entries of the current snapshot.
	// Keys 返回当前快照中的条目。
	Keys() []*models.KeyEntry
}

//go:generate mockery --name TicketCodec --output mocks --outpkg mocks
// TicketCodec turns tickets into opaque cookie values and back.
// TicketCodec 将票据转换为不透明的 Cookie 值，并可逆向解析。
type TicketCodec interface {
	// Encode serializes and protects a ticket with the current key.
	// Encode 使用当前密钥序列化并保护票据。
	Encode(ctx context.Context, ticket *models.Ticket) (string, error)

	// Decode authenticates and parses a cookie value. It does not check expiry.
	// Decode 验证并解析 Cookie 值，不检查过期时间。
	Decode(ctx context.Context, cookie string) (*models.Ticket, error)
}

// Clock supplies the current instant. Tests substitute a simulated clock.
// Clock 提供当前时间，测试中可替换为模拟时钟。
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
