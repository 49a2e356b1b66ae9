// Package keystore implements the persistent backends of the shared key ring.
// Every backend stores the same JSON key document so that rings can be migrated
// between file, Vault, Redis and PostgreSQL storage without re-encoding keys.
package keystore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/constants"
)

// keyDocument is the stored representation of a key entry.
type keyDocument struct {
	ID               string    `json:"id"`
	Created          time.Time `json:"created"`
	Activation       time.Time `json:"activation"`
	Expiration       time.Time `json:"expiration"`
	Algorithm        string    `json:"algorithm"`
	Material         string    `json:"material"`
	Revoked          bool      `json:"revoked,omitempty"`
	RevocationReason string    `json:"revocation_reason,omitempty"`
}

// EncodeKey renders a key entry as its stored JSON document.
func EncodeKey(key *models.KeyEntry) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("nil key entry")
	}
	if err := validateEntry(key); err != nil {
		return nil, err
	}
	return json.Marshal(keyDocument{
		ID:               key.ID.String(),
		Created:          key.CreatedAt.UTC(),
		Activation:       key.ActivatesAt.UTC(),
		Expiration:       key.ExpiresAt.UTC(),
		Algorithm:        key.Algorithm,
		Material:         base64.StdEncoding.EncodeToString(key.Material),
		Revoked:          key.Revoked,
		RevocationReason: key.RevocationReason,
	})
}

// DecodeKey parses and validates a stored key document.
func DecodeKey(data []byte) (*models.KeyEntry, error) {
	var doc keyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode key document: %w", err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("key id %q: %w", doc.ID, err)
	}
	material, err := base64.StdEncoding.DecodeString(doc.Material)
	if err != nil {
		return nil, fmt.Errorf("key %s material: %w", id, err)
	}

	key := &models.KeyEntry{
		ID:               id,
		CreatedAt:        doc.Created.UTC(),
		ActivatesAt:      doc.Activation.UTC(),
		ExpiresAt:        doc.Expiration.UTC(),
		Algorithm:        doc.Algorithm,
		Material:         material,
		Revoked:          doc.Revoked,
		RevocationReason: doc.RevocationReason,
	}
	if err := validateEntry(key); err != nil {
		return nil, err
	}
	return key, nil
}

func validateEntry(key *models.KeyEntry) error {
	switch {
	case key.ID == uuid.Nil:
		return fmt.Errorf("key id is nil")
	case len(key.Material) != constants.KeySize:
		return fmt.Errorf("key %s: material must be %d bytes, got %d", key.ID, constants.KeySize, len(key.Material))
	case key.Algorithm != constants.KeyAlgorithm:
		return fmt.Errorf("key %s: unsupported algorithm %q", key.ID, key.Algorithm)
	case !key.ExpiresAt.After(key.ActivatesAt):
		return fmt.Errorf("key %s: expiration must be after activation", key.ID)
	}
	return nil
}
