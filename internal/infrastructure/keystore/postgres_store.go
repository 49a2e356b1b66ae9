package keystore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// PostgresStore keeps one JSONB document per key and announces modifications
// with NOTIFY on <table>_changed.
type PostgresStore struct {
	pool    *pgxpool.Pool
	table   string
	channel string
	logger  logger.Logger

	changes chan struct{}
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var (
	_ repository.KeyStore          = (*PostgresStore)(nil)
	_ repository.KeyChangeNotifier = (*PostgresStore)(nil)
)

// NewPostgresStore creates a store on an existing pool. table may be schema-qualified.
func NewPostgresStore(pool *pgxpool.Pool, table string, log logger.Logger) (*PostgresStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, errors.ErrInvalidConfig("database.table", fmt.Sprintf("invalid table name %q", table))
	}
	return &PostgresStore{
		pool:    pool,
		table:   pgx.Identifier(strings.Split(table, ".")).Sanitize(),
		channel: strings.ReplaceAll(table, ".", "_") + "_changed",
		logger:  log.WithComponent("PostgresStore"),
		changes: make(chan struct{}, 1),
	}, nil
}

// Name implements repository.KeyStore.
func (s *PostgresStore) Name() string { return string(constants.KeySourcePostgres) }

// EnsureSchema creates the key table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		id         UUID PRIMARY KEY,
		document   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return errors.ErrKeyStore("migrate", err)
	}
	return nil
}

// LoadAll implements repository.KeyStore.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]*models.KeyEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, document FROM `+s.table+` ORDER BY updated_at`)
	if err != nil {
		return nil, errors.ErrKeyStore("load", err)
	}
	defer rows.Close()

	var keys []*models.KeyEntry
	for rows.Next() {
		var (
			id  uuid.UUID
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, errors.ErrKeyStore("load", err)
		}
		key, err := DecodeKey(doc)
		if err != nil {
			s.logger.Warn(ctx, "Skipping invalid key row", logger.String("key_id", id.String()), logger.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrKeyStore("load", err)
	}
	return keys, nil
}

// Save upserts the key and notifies listeners in the same transaction.
func (s *PostgresStore) Save(ctx context.Context, key *models.KeyEntry) error {
	data, err := EncodeKey(key)
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO `+s.table+` (id, document, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
			key.ID, data); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, key.ID.String())
		return err
	})
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}
	return nil
}

// Delete implements repository.KeyStore.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM `+s.table+` WHERE id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, id.String())
		return err
	})
	if err != nil {
		return errors.ErrKeyStore("delete", err)
	}
	return nil
}

// Listen holds one pooled connection in LISTEN mode until Close.
// A lost connection is re-established after a short pause.
func (s *PostgresStore) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	conn, err := s.listenConn(ctx)
	if err != nil {
		return err
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	go s.listenLoop(listenCtx, conn)
	return nil
}

func (s *PostgresStore) listenConn(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.ErrKeyStore("listen", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, errors.ErrKeyStore("listen", err)
	}
	return conn, nil
}

func (s *PostgresStore) listenLoop(ctx context.Context, conn *pgxpool.Conn) {
	defer s.wg.Done()
	defer func() {
		if conn != nil {
			// LISTEN state must not leak back into the pool
			_ = conn.Conn().Close(context.Background())
			conn.Release()
		}
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err == nil {
			s.logger.Debug(ctx, "Key ring change announced", logger.String("key_id", n.Payload))
			select {
			case s.changes <- struct{}{}:
			default:
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn(ctx, "Key change listener lost its connection", logger.Error(err))
		_ = conn.Conn().Close(context.Background())
		conn.Release()
		conn = nil

		for conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			if conn, err = s.listenConn(ctx); err != nil {
				conn = nil
				s.logger.Warn(ctx, "Re-establishing key change listener failed", logger.Error(err))
				continue
			}
			// changes may have been missed while disconnected
			select {
			case s.changes <- struct{}{}:
			default:
			}
		}
	}
}

// Changes implements repository.KeyChangeNotifier.
func (s *PostgresStore) Changes() <-chan struct{} { return s.changes }

// Close stops listening. The pool is owned by the caller.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	return nil
}
