package crypto

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// manualClock is a settable clock shared by the ring and the test.
type manualClock struct {
	nanos atomic.Int64
}

func newManualClock(t time.Time) *manualClock {
	c := &manualClock{}
	c.Set(t)
	return c
}

func (c *manualClock) Now() time.Time      { return time.Unix(0, c.nanos.Load()).UTC() }
func (c *manualClock) Set(t time.Time)     { c.nanos.Store(t.UnixNano()) }
func (c *manualClock) Add(d time.Duration) { c.nanos.Add(int64(d)) }

var _ service.Clock = (*manualClock)(nil)

// memoryStore is an in-memory KeyStore counting its loads.
type memoryStore struct {
	mu      sync.Mutex
	keys    map[uuid.UUID]*models.KeyEntry
	loads   atomic.Int32
	changes chan struct{}
}

func newMemoryStore(keys ...*models.KeyEntry) *memoryStore {
	s := &memoryStore{keys: make(map[uuid.UUID]*models.KeyEntry), changes: make(chan struct{}, 1)}
	for _, k := range keys {
		s.keys[k.ID] = k
	}
	return s
}

func (s *memoryStore) LoadAll(ctx context.Context) ([]*models.KeyEntry, error) {
	s.loads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.KeyEntry, 0, len(s.keys))
	for _, k := range s.keys {
		cp := *k
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) Save(ctx context.Context, key *models.KeyEntry) error {
	s.mu.Lock()
	s.keys[key.ID] = key
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.keys, id)
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *memoryStore) Name() string { return "memory" }

func (s *memoryStore) Changes() <-chan struct{} { return s.changes }

func (s *memoryStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func newTestKey(t *testing.T, activatesAt time.Time, lifetime time.Duration) *models.KeyEntry {
	t.Helper()
	key, err := GenerateKeyEntry(activatesAt, KeySpec{ActivatesAt: activatesAt, Lifetime: lifetime})
	require.NoError(t, err)
	return key
}

func newLoadedRing(t *testing.T, clock service.Clock, keys ...*models.KeyEntry) (*KeyRing, *memoryStore) {
	t.Helper()
	store := newMemoryStore(keys...)
	ring := NewKeyRing(store, KeyRingConfig{}, logger.NewNoopLogger(), WithClock(clock))
	require.NoError(t, ring.Refresh(context.Background()))
	return ring, store
}

func newTestProtector(t *testing.T, purposes ...string) *Protector {
	t.Helper()
	if len(purposes) == 0 {
		purposes = constants.DefaultPurposes
	}
	p, err := NewProtector(purposes, time.Minute)
	require.NoError(t, err)
	return p
}

func aliceTicket(issuedAt time.Time) *models.Ticket {
	principal := models.NewPrincipal(models.Identity{
		AuthenticationType: constants.AuthenticationTypeCookie,
		NameClaimType:      constants.ClaimTypeEmail,
		RoleClaimType:      constants.ClaimTypeRole,
		Claims: models.NewClaimSet(
			models.NewClaim(constants.ClaimTypeEmail, "alice@example.com", constants.DefaultClaimIssuer),
		),
	})
	return &models.Ticket{
		Scheme:       constants.DefaultAuthenticationScheme,
		Principal:    principal,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(20 * time.Minute),
		IsPersistent: true,
		AllowRefresh: true,
	}
}
