package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/internal/infrastructure/keystore"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMetrics struct {
	service.NoopMetrics
	mu        sync.Mutex
	issued    []string
	validated []string
}

func (m *recordingMetrics) RecordSessionIssue(success bool, kind string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		kind = "ok"
	}
	m.issued = append(m.issued, kind)
}

func (m *recordingMetrics) RecordSessionValidate(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validated = append(m.validated, result)
}

// sharedApp is one application wired to a key directory.
type sharedApp struct {
	issuer    SessionIssuer
	validator SessionValidator
	ring      *crypto.KeyRing
	store     *keystore.FileStore
	metrics   *recordingMetrics
}

func testCookieConfig() config.CookieConfig {
	return config.CookieConfig{
		Name:     constants.DefaultCookieName,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "lax",
		TTL:      20 * time.Minute,
	}
}

// newSharedApp wires an issuer and validator over dir, generating a key when the directory is empty.
func newSharedApp(t *testing.T, dir string, clock service.Clock) *sharedApp {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNoopLogger()

	store, err := keystore.NewFileStore(dir, log)
	require.NoError(t, err)

	existing, err := store.LoadAll(ctx)
	require.NoError(t, err)
	if len(existing) == 0 {
		key, err := crypto.GenerateKeyEntry(clock.Now(), crypto.KeySpec{Lifetime: constants.DefaultKeyLifetime})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, key))
	}

	ring := crypto.NewKeyRing(store, crypto.KeyRingConfig{}, log, crypto.WithClock(clock))
	require.NoError(t, ring.Refresh(ctx))

	protector, err := crypto.NewProtector(constants.DefaultPurposes, time.Minute)
	require.NoError(t, err)
	codec := crypto.NewTicketCodec(ring, protector)

	metrics := &recordingMetrics{}
	return &sharedApp{
		issuer:    NewSessionIssuer(codec, testCookieConfig(), DefaultIdentityProfile(), log, WithClock(clock), WithMetrics(metrics)),
		validator: NewSessionValidator(codec, log, WithMetrics(metrics)),
		ring:      ring,
		store:     store,
		metrics:   metrics,
	}
}
