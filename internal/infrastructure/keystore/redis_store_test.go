package keystore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "sharedcookie:", logger.NewNoopLogger()), mr, client
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newRedisTestStore(t)

	a, b := newTestKey(t), newTestKey(t)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))
	assert.True(t, mr.Exists("sharedcookie:keys"))
	hkeys, err := mr.HKeys("sharedcookie:keys")
	require.NoError(t, err)
	assert.Len(t, hkeys, 2)

	keys, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{a, b}, keys)

	require.NoError(t, store.Delete(ctx, a.ID))
	require.NoError(t, store.Delete(ctx, a.ID))
	keys, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{b}, keys)
}

func TestRedisStore_SkipsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newRedisTestStore(t)

	good := newTestKey(t)
	require.NoError(t, store.Save(ctx, good))
	mr.HSet("sharedcookie:keys", "bogus", "not json")

	keys, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{good}, keys)
}

func TestRedisStore_ChangesFromOtherInstance(t *testing.T) {
	ctx := context.Background()
	store, _, client := newRedisTestStore(t)
	require.NoError(t, store.Subscribe(ctx))
	defer store.Close()

	other := NewRedisStore(client, "sharedcookie:", logger.NewNoopLogger())
	require.NoError(t, other.Save(ctx, newTestKey(t)))

	select {
	case <-store.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal after a save on another instance")
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr, _ := newRedisTestStore(t)
	mr.Close()

	_, err := store.LoadAll(context.Background())
	assert.True(t, errors.IsKind(err, errors.KindKeyStore))
}
