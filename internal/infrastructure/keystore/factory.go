package keystore

import (
	"context"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/persistence/postgres"
	redisconn "github.com/turtacn/sharedcookie/internal/infrastructure/persistence/redis"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// New opens the key store selected by keyring.source, starts its change
// notifications when supported, and wraps it with instrumentation.
// The returned close function releases every resource the store holds.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, metrics service.Metrics) (repository.KeyStore, func(), error) {
	var (
		store   repository.KeyStore
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch constants.KeySource(cfg.KeyRing.Source) {
	case constants.KeySourceFile:
		fs, err := NewFileStore(cfg.KeyRing.Directory, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.KeyRing.Watch {
			if err := fs.Watch(); err != nil {
				return nil, nil, err
			}
		}
		closers = append(closers, func() { _ = fs.Close() })
		store = fs

	case constants.KeySourceVault:
		client, err := NewVaultClient(&cfg.Vault)
		if err != nil {
			return nil, nil, err
		}
		store = NewVaultStore(client, &cfg.Vault, log)

	case constants.KeySourceRedis:
		conn := redisconn.NewRedisConnection(&cfg.Redis, log)
		if err := conn.Connect(ctx); err != nil {
			return nil, nil, errors.ErrKeyStore("connect", err)
		}
		closers = append(closers, func() { _ = conn.Close() })

		rs := NewRedisStore(conn.GetClient(), cfg.Redis.KeyPrefix, log)
		if err := rs.Subscribe(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rs.Close() })
		store = rs

	case constants.KeySourcePostgres:
		db, err := postgres.NewDBConnection(ctx, &cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)

		ps, err := NewPostgresStore(db.Pool(), cfg.Database.Table, log)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		if err := ps.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		if err := ps.Listen(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = ps.Close() })
		store = ps

	default:
		return nil, nil, errors.ErrInvalidConfig("keyring.source", "unsupported key source "+cfg.KeyRing.Source)
	}

	log.Info(ctx, "Key store opened",
		logger.String("source", store.Name()),
	)
	return Instrument(store, metrics), closeAll, nil
}
