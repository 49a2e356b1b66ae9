package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/domain/models"
)

//go:generate mockery --name KeyStore --output ../service/mocks --outpkg mocks
// KeyStore persists the shared key ring. Every cooperating service reads the same store.
// KeyStore 持久化共享密钥环，所有协作服务读取同一个存储。
type KeyStore interface {
	// LoadAll returns every retained key entry, revoked ones included.
	// Entries that cannot be parsed are skipped.
	// LoadAll 返回所有保留的密钥条目（包括已撤销的），无法解析的条目将被跳过。
	LoadAll(ctx context.Context) ([]*models.KeyEntry, error)

	// Save creates or replaces a key entry.
	// Save 创建或替换密钥条目。
	Save(ctx context.Context, key *models.KeyEntry) error

	// Delete removes a key entry. Deleting an absent key is not an error.
	// Delete 删除密钥条目，删除不存在的密钥不视为错误。
	Delete(ctx context.Context, id uuid.UUID) error

	// Name identifies the backend in logs and metrics.
	// Name 在日志和指标中标识存储后端。
	Name() string
}

// KeyChangeNotifier is implemented by stores that can signal external modifications.
// A receive on Changes means the key ring should be re-read; signals may be coalesced.
// KeyChangeNotifier 由能够通知外部修改的存储实现。
type KeyChangeNotifier interface {
	Changes() <-chan struct{}
}
