// Package cookieverifier lets a Go service that does not issue logins accept
// the shared authentication cookie. It only reads the shared key directory.
package cookieverifier

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/sharedcookie/internal/application/service"
	"github.com/turtacn/sharedcookie/internal/domain/models"
	domainService "github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/internal/infrastructure/keystore"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// minForcedRefresh limits how often an unknown key id may trigger a key reload.
const minForcedRefresh = 5 * time.Second

type principalKey struct{}

// Config configures a Verifier.
type Config struct {
	// KeyDirectory is the shared key ring directory (required)
	KeyDirectory string
	// Purposes must equal the issuing application's purpose chain
	Purposes []string
	// CookieName defaults to the shared cookie name
	CookieName string
	// Watch reloads keys when the directory changes
	Watch bool
	// RefreshInterval is the key polling period
	RefreshInterval time.Duration
	Logger          logger.Logger
	Clock           domainService.Clock
}

// Verifier validates shared cookies against the keys in a directory.
type Verifier struct {
	cookieName string
	store      *keystore.FileStore
	ring       *crypto.KeyRing
	validator  service.SessionValidator
	clock      domainService.Clock
	logger     logger.Logger

	lastForced atomic.Int64
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New opens the key directory, loads the keys and starts refreshing them in the background.
// Close stops the refresh loop.
func New(ctx context.Context, cfg Config) (*Verifier, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = domainService.SystemClock{}
	}
	purposes := cfg.Purposes
	if len(purposes) == 0 {
		purposes = constants.DefaultPurposes
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = constants.DefaultCookieName
	}

	store, err := keystore.NewFileStore(cfg.KeyDirectory, log)
	if err != nil {
		return nil, err
	}
	if cfg.Watch {
		if err := store.Watch(); err != nil {
			return nil, err
		}
	}

	ring := crypto.NewKeyRing(store, crypto.KeyRingConfig{RefreshInterval: cfg.RefreshInterval}, log, crypto.WithClock(clock))
	if err := ring.Refresh(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	protector, err := crypto.NewProtector(purposes, constants.DefaultCipherCacheTTL)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	v := &Verifier{
		cookieName: cookieName,
		store:      store,
		ring:       ring,
		validator:  service.NewSessionValidator(crypto.NewTicketCodec(ring, protector), log),
		clock:      clock,
		logger:     log.WithComponent("CookieVerifier"),
		cancel:     cancel,
	}
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ring.Run(runCtx)
	}()
	return v, nil
}

// Verify validates the shared cookie of r and returns its principal.
// A request without the cookie fails with http.ErrNoCookie.
func (v *Verifier) Verify(r *http.Request) (*models.Principal, error) {
	c, err := r.Cookie(v.cookieName)
	if err != nil {
		return nil, err
	}
	return v.VerifyValue(r.Context(), c.Value)
}

// VerifyValue validates a raw cookie value. A cookie protected by a key the
// ring has not seen yet triggers one reload before it is rejected.
func (v *Verifier) VerifyValue(ctx context.Context, value string) (*models.Principal, error) {
	p, err := v.validator.Validate(ctx, value, v.clock.Now())
	if err == nil || !errors.IsKind(err, errors.KindUnknownKeyVersion) || !v.mayForceRefresh() {
		return p, err
	}

	if rerr := v.ring.Refresh(ctx); rerr != nil {
		v.logger.Warn(ctx, "Key reload for unknown key id failed", logger.Error(rerr))
		return nil, err
	}
	return v.validator.Validate(ctx, value, v.clock.Now())
}

func (v *Verifier) mayForceRefresh() bool {
	now := time.Now().UnixNano()
	last := v.lastForced.Load()
	if now-last < int64(minForcedRefresh) {
		return false
	}
	return v.lastForced.CompareAndSwap(last, now)
}

// Middleware rejects requests without a valid shared cookie with 401 and
// stores the principal in the request context for the next handler.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := v.Verify(r)
		if err != nil {
			v.logger.Debug(r.Context(), "Shared cookie rejected", logger.String("kind", string(errors.KindOf(err))))
			writeUnauthenticated(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Optional is Middleware without the rejection: invalid or missing cookies leave the request anonymous.
func (v *Verifier) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := v.Verify(r); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// Close stops the key refresh loop and the directory watcher.
func (v *Verifier) Close() error {
	v.cancel()
	v.wg.Wait()
	return v.store.Close()
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by Middleware or Optional.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*models.Principal)
	return p, ok && p != nil
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errors.UnauthenticatedResponse())
}
