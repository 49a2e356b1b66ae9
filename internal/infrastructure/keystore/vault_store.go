package keystore

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

const vaultDocumentField = "document"

// VaultStore keeps each key as a KV v2 secret under <mount>/<key_path>/<id>.
type VaultStore struct {
	client  *vault.Client
	mount   string
	keyPath string
	logger  logger.Logger
}

var _ repository.KeyStore = (*VaultStore)(nil)

// NewVaultClient creates a token-authenticated Vault client.
func NewVaultClient(cfg *config.VaultConfig) (*vault.Client, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.ErrKeyStore("connect", err)
	}
	client.SetToken(cfg.Token)
	return client, nil
}

// NewVaultStore wraps an existing client.
func NewVaultStore(client *vault.Client, cfg *config.VaultConfig, log logger.Logger) *VaultStore {
	return &VaultStore{
		client:  client,
		mount:   cfg.MountPath,
		keyPath: cfg.KeyPath,
		logger:  log.WithComponent("VaultStore"),
	}
}

// Name implements repository.KeyStore.
func (s *VaultStore) Name() string { return string(constants.KeySourceVault) }

// LoadAll implements repository.KeyStore.
func (s *VaultStore) LoadAll(ctx context.Context) ([]*models.KeyEntry, error) {
	listing, err := s.client.Logical().ListWithContext(ctx, path.Join(s.mount, "metadata", s.keyPath))
	if err != nil {
		return nil, errors.ErrKeyStore("load", err)
	}
	if listing == nil || listing.Data == nil {
		return []*models.KeyEntry{}, nil
	}
	names, _ := listing.Data["keys"].([]interface{})

	kv := s.client.KVv2(s.mount)
	keys := make([]*models.KeyEntry, 0, len(names))
	for _, n := range names {
		name, ok := n.(string)
		if !ok {
			continue
		}
		secret, err := kv.Get(ctx, path.Join(s.keyPath, name))
		if stderrors.Is(err, vault.ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.ErrKeyStore("load", err)
		}

		key, err := decodeVaultSecret(secret)
		if err != nil {
			s.logger.Warn(ctx, "Skipping invalid key secret", logger.String("secret", name), logger.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Save implements repository.KeyStore.
func (s *VaultStore) Save(ctx context.Context, key *models.KeyEntry) error {
	data, err := EncodeKey(key)
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}
	_, err = s.client.KVv2(s.mount).Put(ctx, path.Join(s.keyPath, key.ID.String()), map[string]interface{}{
		vaultDocumentField: string(data),
	})
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}
	return nil
}

// Delete removes every version of the key secret.
func (s *VaultStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.KVv2(s.mount).DeleteMetadata(ctx, path.Join(s.keyPath, id.String())); err != nil {
		return errors.ErrKeyStore("delete", err)
	}
	return nil
}

func decodeVaultSecret(secret *vault.KVSecret) (*models.KeyEntry, error) {
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret has no data")
	}
	doc, ok := secret.Data[vaultDocumentField].(string)
	if !ok {
		return nil, fmt.Errorf("secret has no %q field", vaultDocumentField)
	}
	return DecodeKey([]byte(doc))
}
