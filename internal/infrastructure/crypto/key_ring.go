package crypto

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

const tracerName = "github.com/turtacn/sharedcookie/internal/infrastructure/crypto"

var _ service.KeyRing = (*KeyRing)(nil)

// KeyRingConfig controls how the ring is re-read from its store.
type KeyRingConfig struct {
	// RefreshInterval is the polling period of Run
	RefreshInterval time.Duration
	// RefreshTimeout bounds a single store read
	RefreshTimeout time.Duration
}

// DefaultKeyRingConfig returns default configuration.
func DefaultKeyRingConfig() KeyRingConfig {
	return KeyRingConfig{
		RefreshInterval: constants.DefaultKeyRefreshInterval,
		RefreshTimeout:  constants.DefaultKeyRefreshTimeout,
	}
}

// keySnapshot is an immutable view of the ring. Entries are sorted by ActivatesAt.
type keySnapshot struct {
	entries  []*models.KeyEntry
	byID     map[uuid.UUID]*models.KeyEntry
	loadedAt time.Time
}

// KeyRing holds the shared keys in memory and reloads them from a KeyStore.
// Readers never block: each refresh publishes a new snapshot atomically and
// a failed refresh keeps the last good one.
type KeyRing struct {
	store   repository.KeyStore
	config  KeyRingConfig
	clock   service.Clock
	metrics service.Metrics
	logger  logger.Logger

	snapshot atomic.Pointer[keySnapshot]
	group    singleflight.Group
}

// KeyRingOption customizes a KeyRing.
type KeyRingOption func(*KeyRing)

// WithClock replaces the wall clock used to pick the current key.
func WithClock(clock service.Clock) KeyRingOption {
	return func(r *KeyRing) { r.clock = clock }
}

// WithMetrics records refresh outcomes.
func WithMetrics(m service.Metrics) KeyRingOption {
	return func(r *KeyRing) { r.metrics = m }
}

// NewKeyRing creates an empty key ring over store. Call Refresh to load it.
//
// Parameters:
//   - store: backing key store
//   - cfg: refresh configuration, zero values fall back to defaults
//   - log: Logger instance
//
// Returns:
//   - *KeyRing: ring with no snapshot loaded
func NewKeyRing(store repository.KeyStore, cfg KeyRingConfig, log logger.Logger, opts ...KeyRingOption) *KeyRing {
	defaults := DefaultKeyRingConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaults.RefreshTimeout
	}

	r := &KeyRing{
		store:   store,
		config:  cfg,
		clock:   service.SystemClock{},
		metrics: service.NoopMetrics{},
		logger:  log.WithComponent("KeyRing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CurrentKey returns the usable key with the latest activation time.
func (r *KeyRing) CurrentKey() (*models.KeyEntry, error) {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil, errors.ErrNoKeyAvailable("key ring not loaded")
	}
	if len(snap.entries) == 0 {
		return nil, errors.ErrNoKeyAvailable("key ring is empty")
	}

	now := r.clock.Now()
	for i := len(snap.entries) - 1; i >= 0; i-- {
		if snap.entries[i].Usable(now) {
			return snap.entries[i], nil
		}
	}
	return nil, errors.ErrNoKeyAvailable("no key is active")
}

// KeyByVersion returns a retained, non-revoked key regardless of its activation window.
// Before the first successful refresh every id is unknown.
// The returned entry is shared and must not be modified.
func (r *KeyRing) KeyByVersion(id uuid.UUID) (*models.KeyEntry, error) {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil, errors.ErrUnknownKeyVersion(id.String()).WithMetadata("not_loaded", true)
	}
	key, ok := snap.byID[id]
	if !ok {
		return nil, errors.ErrUnknownKeyVersion(id.String())
	}
	if key.Revoked {
		return nil, errors.ErrUnknownKeyVersion(id.String()).WithMetadata("revoked", true)
	}
	return key, nil
}

// Keys returns copies of the snapshot's entries ordered by activation time.
func (r *KeyRing) Keys() []*models.KeyEntry {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := make([]*models.KeyEntry, len(snap.entries))
	for i, k := range snap.entries {
		cp := *k
		cp.Material = append([]byte(nil), k.Material...)
		out[i] = &cp
	}
	return out
}

// Loaded reports whether at least one refresh succeeded, and when the last one did.
func (r *KeyRing) Loaded() (bool, time.Time) {
	snap := r.snapshot.Load()
	if snap == nil {
		return false, time.Time{}
	}
	return true, snap.loadedAt
}

// Refresh reloads the ring from the store. Concurrent calls share one store read.
// On failure the previous snapshot stays in place.
func (r *KeyRing) Refresh(ctx context.Context) error {
	ch := r.group.DoChan("refresh", func() (interface{}, error) {
		return nil, r.load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *KeyRing) load(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "KeyRing.Refresh")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.config.RefreshTimeout)
	defer cancel()

	start := time.Now()
	entries, err := r.store.LoadAll(ctx)
	r.metrics.RecordKeyStoreOperation(r.store.Name(), "load_all", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "key store load failed")
		r.metrics.RecordKeyRingRefresh(false, r.keyCount())
		r.logger.Error(ctx, "Key ring refresh failed, keeping last known keys", err,
			logger.String("store", r.store.Name()),
			logger.Int("retained_keys", r.keyCount()),
		)
		if _, ok := errors.AsAuthError(err); ok {
			return err
		}
		return errors.ErrKeyStore("load", err)
	}

	snap := buildSnapshot(entries, r.clock.Now())
	r.snapshot.Store(snap)

	span.SetAttributes(attribute.Int("keyring.keys", len(snap.entries)))
	r.metrics.RecordKeyRingRefresh(true, len(snap.entries))
	r.logger.Debug(ctx, "Key ring refreshed",
		logger.String("store", r.store.Name()),
		logger.Int("keys", len(snap.entries)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (r *KeyRing) keyCount() int {
	if snap := r.snapshot.Load(); snap != nil {
		return len(snap.entries)
	}
	return 0
}

// buildSnapshot copies entries, drops duplicates by id (latest CreatedAt wins) and sorts them.
func buildSnapshot(entries []*models.KeyEntry, now time.Time) *keySnapshot {
	byID := make(map[uuid.UUID]*models.KeyEntry, len(entries))
	for _, e := range entries {
		if e == nil || e.ID == uuid.Nil {
			continue
		}
		if prev, ok := byID[e.ID]; ok && prev.CreatedAt.After(e.CreatedAt) {
			continue
		}
		cp := *e
		cp.Material = append([]byte(nil), e.Material...)
		byID[e.ID] = &cp
	}

	sorted := make([]*models.KeyEntry, 0, len(byID))
	for _, e := range byID {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.ActivatesAt.Equal(b.ActivatesAt) {
			return a.ActivatesAt.Before(b.ActivatesAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return &keySnapshot{entries: sorted, byID: byID, loadedAt: now}
}

// Run refreshes the ring periodically and whenever the store reports a change.
// It returns when ctx is done.
func (r *KeyRing) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.RefreshInterval)
	defer ticker.Stop()

	var changes <-chan struct{}
	if notifier, ok := r.store.(repository.KeyChangeNotifier); ok {
		changes = notifier.Changes()
	}

	r.logger.Info(ctx, "Key ring refresh loop started",
		logger.Duration("interval", r.config.RefreshInterval),
		logger.Bool("watching_changes", changes != nil),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(context.Background(), "Key ring refresh loop stopped")
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			r.logger.Debug(ctx, "Key store change detected")
			_ = r.Refresh(ctx)
		}
	}
}
