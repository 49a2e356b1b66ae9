package crypto

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

func TestTicketCodec_RoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock(testEpoch)
	ring, _ := newLoadedRing(t, clock, newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour))
	codec := NewTicketCodec(ring, newTestProtector(t))

	ticket := aliceTicket(testEpoch)
	cookie, err := codec.Encode(ctx, ticket)
	require.NoError(t, err)
	assert.NotContains(t, cookie, "=")
	assert.NotContains(t, cookie, "alice")

	decoded, err := codec.Decode(ctx, cookie)
	require.NoError(t, err)
	assert.True(t, ticket.Principal.Equal(decoded.Principal))
	assert.True(t, ticket.ExpiresAt.Equal(decoded.ExpiresAt))

	keyID, err := InspectKeyID(cookie)
	require.NoError(t, err)
	current, err := ring.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, current.ID.String(), keyID)
}

func TestTicketCodec_NoKeyAvailable(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	ring := NewKeyRing(store, KeyRingConfig{}, logger.NewNoopLogger(), WithClock(newManualClock(testEpoch)))
	codec := NewTicketCodec(ring, newTestProtector(t))

	_, err := codec.Encode(ctx, aliceTicket(testEpoch))
	assert.True(t, errors.IsKind(err, errors.KindNoKeyAvailable), "ring never loaded")

	require.NoError(t, ring.Refresh(ctx))
	_, err = codec.Encode(ctx, aliceTicket(testEpoch))
	assert.True(t, errors.IsKind(err, errors.KindNoKeyAvailable), "ring loaded but empty")
}

func TestTicketCodec_TamperDetection(t *testing.T) {
	ctx := context.Background()
	ring, _ := newLoadedRing(t, newManualClock(testEpoch), newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour))
	codec := NewTicketCodec(ring, newTestProtector(t))

	cookie, err := codec.Encode(ctx, aliceTicket(testEpoch))
	require.NoError(t, err)
	raw, err := cookieEncoding.DecodeString(cookie)
	require.NoError(t, err)

	accepted := map[errors.Kind]bool{
		errors.KindTamperedOrWrongKey: true,
		errors.KindMalformedCookie:    true,
	}

	for i := range raw {
		for _, bit := range []byte{0x01, 0x80} {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= bit
			_, err := codec.Decode(ctx, cookieEncoding.EncodeToString(tampered))
			require.Error(t, err, "byte %d bit %x", i, bit)
			assert.True(t, accepted[errors.KindOf(err)], "byte %d: unexpected kind %s", i, errors.KindOf(err))
		}
	}

	for i := 0; i < len(cookie); i++ {
		replacement := byte('A')
		if cookie[i] == 'A' {
			replacement = 'B'
		}
		mutated := cookie[:i] + string(replacement) + cookie[i+1:]
		_, err := codec.Decode(ctx, mutated)
		require.Error(t, err, "character %d", i)
	}
}

func TestTicketCodec_CorruptedKeyID(t *testing.T) {
	ctx := context.Background()
	ring, _ := newLoadedRing(t, newManualClock(testEpoch), newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour))
	codec := NewTicketCodec(ring, newTestProtector(t))

	cookie, err := codec.Encode(ctx, aliceTicket(testEpoch))
	require.NoError(t, err)
	raw, err := cookieEncoding.DecodeString(cookie)
	require.NoError(t, err)

	for i := magicSize; i < magicSize+keyIDSize; i++ {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01
		_, err := codec.Decode(ctx, cookieEncoding.EncodeToString(tampered))
		assert.Equal(t, errors.KindMalformedCookie, errors.KindOf(err), "key id byte %d", i)
	}
}

func TestTicketCodec_UnloadedRing(t *testing.T) {
	ctx := context.Background()
	issuing, _ := newLoadedRing(t, newManualClock(testEpoch), newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour))
	cookie, err := NewTicketCodec(issuing, newTestProtector(t)).Encode(ctx, aliceTicket(testEpoch))
	require.NoError(t, err)

	// 从未成功刷新的密钥环不认识任何密钥
	unloaded := NewKeyRing(newMemoryStore(), KeyRingConfig{}, logger.NewNoopLogger(), WithClock(newManualClock(testEpoch)))
	_, err = NewTicketCodec(unloaded, newTestProtector(t)).Decode(ctx, cookie)
	require.Error(t, err)
	assert.Equal(t, errors.KindUnknownKeyVersion, errors.KindOf(err))

	authErr, ok := errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, true, authErr.Metadata()["not_loaded"])
}

func TestTicketCodec_MalformedInput(t *testing.T) {
	ctx := context.Background()
	ring, _ := newLoadedRing(t, newManualClock(testEpoch), newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour))
	codec := NewTicketCodec(ring, newTestProtector(t))

	cookie, err := codec.Encode(ctx, aliceTicket(testEpoch))
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie string
	}{
		{"empty", ""},
		{"not base64", "!!!not-base64!!!"},
		{"padded", cookie + "=="},
		{"standard alphabet", strings.NewReplacer("-", "+", "_", "/").Replace(cookie) + "+/"},
		{"truncated", cookie[:20]},
		{"oversized", strings.Repeat("A", 9000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(ctx, tt.cookie)
			require.Error(t, err)
			assert.Equal(t, errors.KindMalformedCookie, errors.KindOf(err))
		})
	}
}

func TestTicketCodec_KeyRotation(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock(testEpoch)
	oldKey := newTestKey(t, testEpoch.Add(-time.Hour), 2*time.Hour)
	ring, store := newLoadedRing(t, clock, oldKey)
	codec := NewTicketCodec(ring, newTestProtector(t))

	oldCookie, err := codec.Encode(ctx, aliceTicket(testEpoch))
	require.NoError(t, err)

	// 新密钥在旧密钥过期前激活
	newKey := newTestKey(t, testEpoch.Add(30*time.Minute), 24*time.Hour)
	require.NoError(t, store.Save(ctx, newKey))
	require.NoError(t, ring.Refresh(ctx))
	clock.Add(2 * time.Hour)

	current, err := ring.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, newKey.ID, current.ID)

	newCookie, err := codec.Encode(ctx, aliceTicket(clock.Now()))
	require.NoError(t, err)
	newID, _ := InspectKeyID(newCookie)
	assert.Equal(t, newKey.ID.String(), newID)

	_, err = codec.Decode(ctx, oldCookie)
	require.NoError(t, err, "cookies under a retired key keep decoding")

	require.NoError(t, store.Delete(ctx, oldKey.ID))
	require.NoError(t, ring.Refresh(ctx))
	_, err = codec.Decode(ctx, oldCookie)
	assert.True(t, errors.IsKind(err, errors.KindUnknownKeyVersion))

	_, err = codec.Decode(ctx, newCookie)
	assert.NoError(t, err)
}

func TestTicketCodec_RevokedKey(t *testing.T) {
	ctx := context.Background()
	key := newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour)
	ring, store := newLoadedRing(t, newManualClock(testEpoch), key)
	codec := NewTicketCodec(ring, newTestProtector(t))

	cookie, err := codec.Encode(ctx, aliceTicket(testEpoch))
	require.NoError(t, err)

	revoked := *key
	revoked.Revoked = true
	revoked.RevocationReason = "compromised"
	require.NoError(t, store.Save(ctx, &revoked))
	require.NoError(t, ring.Refresh(ctx))

	_, err = codec.Decode(ctx, cookie)
	assert.True(t, errors.IsKind(err, errors.KindUnknownKeyVersion))
	_, err = codec.Encode(ctx, aliceTicket(testEpoch))
	assert.True(t, errors.IsKind(err, errors.KindNoKeyAvailable))
}

func TestTicketCodec_CrossInstance(t *testing.T) {
	ctx := context.Background()
	key := newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour)

	// 两个独立进程共享同一密钥环与用途链
	ringA, _ := newLoadedRing(t, newManualClock(testEpoch), key)
	ringB, _ := newLoadedRing(t, newManualClock(testEpoch), key)
	codecA := NewTicketCodec(ringA, newTestProtector(t))
	codecB := NewTicketCodec(ringB, newTestProtector(t))
	isolated := NewTicketCodec(ringB, newTestProtector(t, "Another.App", "Cookie", "v2"))

	cookie, err := codecA.Encode(ctx, aliceTicket(testEpoch))
	require.NoError(t, err)

	ticket, err := codecB.Decode(ctx, cookie)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", ticket.Principal.Email())

	_, err = isolated.Decode(ctx, cookie)
	assert.True(t, errors.IsKind(err, errors.KindTamperedOrWrongKey))
}

func TestTicketCodec_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	ring, store := newLoadedRing(t, newManualClock(testEpoch), newTestKey(t, testEpoch.Add(-time.Hour), 24*time.Hour))
	codec := NewTicketCodec(ring, newTestProtector(t))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cookie, err := codec.Encode(ctx, aliceTicket(testEpoch))
			if err != nil {
				errs <- err
				return
			}
			if _, err := codec.Decode(ctx, cookie); err != nil {
				errs <- err
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Save(ctx, newTestKey(t, testEpoch.Add(-time.Minute), 24*time.Hour))
			_ = ring.Refresh(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent encode/decode failed: %v", err)
	}
}
