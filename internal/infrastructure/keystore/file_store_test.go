package keystore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

func TestFileStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ring")
	store, err := NewFileStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	a, b := newTestKey(t), newTestKey(t)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	fi, err := os.Stat(filepath.Join(dir, keyFileName(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	keys, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{a, b}, keys)

	a.Revoked = true
	a.RevocationReason = "compromised"
	require.NoError(t, store.Save(ctx, a))
	keys, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{a, b}, keys)

	require.NoError(t, store.Delete(ctx, a.ID))
	require.NoError(t, store.Delete(ctx, a.ID), "deleting an absent key is not an error")
	keys, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{b}, keys)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileStore_SkipsInvalidFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)

	good := newTestKey(t)
	require.NoError(t, store.Save(ctx, good))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "key-garbage.json"), []byte("not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "key-dir.json"), 0o700))

	keys, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{good}, keys)
}

func TestFileStore_UnreadableKeyFailsTheLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, newTestKey(t)))

	// a dangling link looks like a key purged mid-listing
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "key-dangling.json")))
	keys, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	// reading a directory through a link fails even for root
	require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(dir, "key-unreadable.json")))
	_, err = store.LoadAll(ctx)
	assert.True(t, errors.IsKind(err, errors.KindKeyStore))
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestFileStore_RingKeepsKeysWhenAFileCannotBeRead(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)
	key := newTestKey(t)
	require.NoError(t, store.Save(ctx, key))

	ring := crypto.NewKeyRing(store, crypto.KeyRingConfig{}, logger.NewNoopLogger(), crypto.WithClock(fixedClock{now: testEpoch}))
	require.NoError(t, ring.Refresh(ctx))

	require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(dir, "key-unreadable.json")))
	assert.Error(t, ring.Refresh(ctx))

	current, err := ring.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, key.ID, current.ID)
}

func TestFileStore_Errors(t *testing.T) {
	_, err := NewFileStore("", logger.NewNoopLogger())
	assert.True(t, errors.IsKind(err, errors.KindInvalidConfig))

	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = store.LoadAll(context.Background())
	assert.True(t, errors.IsKind(err, errors.KindKeyStore))
}

func TestFileStore_WatchSignalsExternalChanges(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Watch())
	defer store.Close()

	// another process writes a key into the shared directory
	other, err := NewFileStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, other.Save(context.Background(), newTestKey(t)))

	select {
	case <-store.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal after an external write")
	}
}
