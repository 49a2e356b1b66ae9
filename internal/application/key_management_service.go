// Package application provides the application layer services.
package application

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// KeyManagementConfig holds the rotation policy of the shared key ring.
type KeyManagementConfig struct {
	// KeyLifetime is how long a generated key protects new tickets
	KeyLifetime time.Duration
	// RotationWindow is how long before the current key expires its successor is generated
	RotationWindow time.Duration
}

// KeyManagementService is the application-layer service responsible for the key ring lifecycle.
// It writes to the shared key store and refreshes the local ring after every change.
// KeyManagementService 是负责密钥环生命周期的应用层服务。
// 它写入共享密钥存储，并在每次变更后刷新本地密钥环。
type KeyManagementService struct {
	store  repository.KeyStore
	ring   service.KeyRing
	config KeyManagementConfig
	clock  service.Clock
	logger logger.Logger
	audit  *logger.AuditLogger
}

// NewKeyManagementService creates a new instance of the KeyManagementService.
// ring may be nil for tools that only edit the store.
// NewKeyManagementService 创建 KeyManagementService 的一个新实例。
func NewKeyManagementService(
	store repository.KeyStore,
	ring service.KeyRing,
	cfg KeyManagementConfig,
	clock service.Clock,
	log logger.Logger,
) *KeyManagementService {
	if cfg.KeyLifetime <= 0 {
		cfg.KeyLifetime = constants.DefaultKeyLifetime
	}
	if cfg.RotationWindow < 0 {
		cfg.RotationWindow = 0
	}
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &KeyManagementService{
		store:  store,
		ring:   ring,
		config: cfg,
		clock:  clock,
		logger: log.WithComponent("KeyManagementService"),
		audit:  logger.NewAuditLogger(log),
	}
}

// GenerateKey creates a key that starts protecting tickets at activatesAt (now when zero).
// GenerateKey 生成一个在 activatesAt（为零时即当前时间）开始生效的新密钥。
func (s *KeyManagementService) GenerateKey(ctx context.Context, activatesAt time.Time) (models.KeyMetadata, error) {
	now := s.clock.Now()
	key, err := crypto.GenerateKeyEntry(now, crypto.KeySpec{ActivatesAt: activatesAt, Lifetime: s.config.KeyLifetime})
	if err != nil {
		return models.KeyMetadata{}, errors.NewError(errors.KindInternal, http.StatusInternalServerError, "Key generation failed", "key generation failed").WithCause(err)
	}
	if err := s.store.Save(ctx, key); err != nil {
		return models.KeyMetadata{}, err
	}

	s.audit.LogKeyGenerated(ctx, key.ID.String(), key.ActivatesAt, key.ExpiresAt)
	s.refresh(ctx)

	return metadataAt(key, now), nil
}

// EnsureKey generates a key when no usable key exists, or when the current key
// expires within the rotation window and no successor is scheduled.
// It reports whether a key was generated.
// EnsureKey 在没有可用密钥，或当前密钥即将在轮换窗口内过期且无后继密钥时生成新密钥。
func (s *KeyManagementService) EnsureKey(ctx context.Context) (models.KeyMetadata, bool, error) {
	keys, err := s.store.LoadAll(ctx)
	if err != nil {
		return models.KeyMetadata{}, false, err
	}
	now := s.clock.Now()

	current := latestUsable(keys, now)
	if current == nil {
		s.logger.Info(ctx, "No usable key in the key ring, generating one")
		md, err := s.GenerateKey(ctx, now)
		return md, err == nil, err
	}

	if current.ExpiresAt.Sub(now) > s.config.RotationWindow {
		return metadataAt(current, now), false, nil
	}
	for _, k := range keys {
		if k.Revoked || k.ID == current.ID {
			continue
		}
		// a successor already covers the current key's expiry
		if !k.ActivatesAt.After(current.ExpiresAt) && k.ExpiresAt.After(current.ExpiresAt) {
			return metadataAt(current, now), false, nil
		}
	}

	s.logger.Info(ctx, "Current key expires soon, scheduling its successor",
		logger.String("key_id", current.ID.String()),
		logger.Time("expires_at", current.ExpiresAt),
	)
	md, err := s.GenerateKey(ctx, current.ExpiresAt)
	return md, err == nil, err
}

// RevokeKey marks a key revoked. Tickets protected by it stop validating.
// RevokeKey 将密钥标记为已撤销，受其保护的票据将无法通过校验。
func (s *KeyManagementService) RevokeKey(ctx context.Context, id uuid.UUID, reason string) error {
	key, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if key.Revoked {
		return nil
	}

	key.Revoked = true
	key.RevocationReason = reason
	if err := s.store.Save(ctx, key); err != nil {
		return err
	}

	s.audit.LogKeyRevoked(ctx, id.String(), reason)
	s.refresh(ctx)
	return nil
}

// PurgeKey deletes a key. Tickets protected by it fail with unknown_key_version.
// PurgeKey 删除密钥，受其保护的票据将以 unknown_key_version 失败。
func (s *KeyManagementService) PurgeKey(ctx context.Context, id uuid.UUID) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.LogKeyPurged(ctx, id.String())
	s.refresh(ctx)
	return nil
}

// ListKeys returns the metadata of every stored key, ordered by activation.
// ListKeys 返回所有已存储密钥的元数据（不含密钥材料），按激活时间排序。
func (s *KeyManagementService) ListKeys(ctx context.Context) ([]models.KeyMetadata, error) {
	keys, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].ActivatesAt.Equal(keys[j].ActivatesAt) {
			return keys[i].ActivatesAt.Before(keys[j].ActivatesAt)
		}
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})

	out := make([]models.KeyMetadata, 0, len(keys))
	for _, k := range keys {
		out = append(out, metadataAt(k, now))
	}
	return out, nil
}

func (s *KeyManagementService) find(ctx context.Context, id uuid.UUID) (*models.KeyEntry, error) {
	keys, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.ID == id {
			return k, nil
		}
	}
	return nil, errors.ErrUnknownKeyVersion(id.String())
}

// refresh reloads the local ring. Failures are logged; the store write already succeeded.
func (s *KeyManagementService) refresh(ctx context.Context) {
	if s.ring == nil {
		return
	}
	if err := s.ring.Refresh(ctx); err != nil {
		s.logger.Warn(ctx, "Key ring refresh after key change failed", logger.Error(err))
	}
}

func latestUsable(keys []*models.KeyEntry, now time.Time) *models.KeyEntry {
	var best *models.KeyEntry
	for _, k := range keys {
		if !k.Usable(now) {
			continue
		}
		if best == nil || k.ActivatesAt.After(best.ActivatesAt) ||
			(k.ActivatesAt.Equal(best.ActivatesAt) && k.CreatedAt.After(best.CreatedAt)) {
			best = k
		}
	}
	return best
}

func metadataAt(k *models.KeyEntry, now time.Time) models.KeyMetadata {
	md := k.Metadata()
	md.Status = k.Status(now)
	return md
}
