package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/constants"
)

// KeySpec describes a key ring entry to generate.
type KeySpec struct {
	// ActivatesAt is when the key starts protecting new tickets
	ActivatesAt time.Time
	// Lifetime is how long after activation the key protects new tickets
	Lifetime time.Duration
}

// GenerateKeyEntry creates a new key ring entry with fresh random material.
//
// Parameters:
//   - now: creation time
//   - spec: activation and lifetime of the key
//
// Returns:
//   - *models.KeyEntry: the new entry
//   - error: when the random source fails
func GenerateKeyEntry(now time.Time, spec KeySpec) (*models.KeyEntry, error) {
	if spec.Lifetime <= 0 {
		spec.Lifetime = constants.DefaultKeyLifetime
	}
	if spec.ActivatesAt.IsZero() {
		spec.ActivatesAt = now
	}

	material := make([]byte, constants.KeySize)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return nil, fmt.Errorf("generate key material: %w", err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate key id: %w", err)
	}

	return &models.KeyEntry{
		ID:          id,
		CreatedAt:   now.UTC(),
		ActivatesAt: spec.ActivatesAt.UTC(),
		ExpiresAt:   spec.ActivatesAt.Add(spec.Lifetime).UTC(),
		Algorithm:   constants.KeyAlgorithm,
		Material:    material,
	}, nil
}
