package keystore

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestKey(t *testing.T) *models.KeyEntry {
	t.Helper()
	key, err := crypto.GenerateKeyEntry(testEpoch, crypto.KeySpec{Lifetime: 24 * time.Hour})
	require.NoError(t, err)
	return key
}

// assertSameKeys compares two key sets regardless of order.
func assertSameKeys(t *testing.T, want, got []*models.KeyEntry) {
	t.Helper()
	require.Len(t, got, len(want))

	byID := func(keys []*models.KeyEntry) []*models.KeyEntry {
		out := append([]*models.KeyEntry(nil), keys...)
		sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
		return out
	}
	w, g := byID(want), byID(got)
	for i := range w {
		assert.Equal(t, w[i].ID, g[i].ID)
		assert.Equal(t, w[i].Material, g[i].Material)
		assert.True(t, w[i].ActivatesAt.Equal(g[i].ActivatesAt))
		assert.True(t, w[i].ExpiresAt.Equal(g[i].ExpiresAt))
		assert.Equal(t, w[i].Revoked, g[i].Revoked)
		assert.Equal(t, w[i].RevocationReason, g[i].RevocationReason)
	}
}
