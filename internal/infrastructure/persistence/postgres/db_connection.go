// Package postgres provides PostgreSQL connection pool management using the pgx driver.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// DBConnection manages PostgreSQL database connection pool lifecycle.
type DBConnection struct {
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection creates a connection pool and performs an initial health check.
//
// Parameters:
//   - ctx: Context for connection timeout control
//   - cfg: Database configuration including host, port, credentials, and pool settings
//   - log: Logger instance for connection lifecycle events
//
// Returns:
//   - *DBConnection: Initialized connection manager
//   - error: Connection establishment error if any
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, errors.ErrInvalidConfig("database", "configuration is missing")
	}
	log = log.WithComponent("DBConnection")

	log.Info(ctx, "Initializing PostgreSQL connection pool",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, errors.ErrInvalidConfig("database", "cannot parse connection string").WithCause(err)
	}
	return NewDBConnectionWithPoolConfig(ctx, cfg, poolConfig, log)
}

// NewDBConnectionWithPoolConfig is NewDBConnection for a pre-parsed pool configuration,
// e.g. one built from a connection URL.
func NewDBConnectionWithPoolConfig(ctx context.Context, cfg *config.DatabaseConfig, poolConfig *pgxpool.Config, log logger.Logger) (*DBConnection, error) {
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		log.Error(ctx, "Failed to create database connection pool", err)
		return nil, errors.ErrKeyStore("connect", err)
	}

	dbConn := &DBConnection{pool: pool, config: cfg, logger: log}
	if err := dbConn.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info(ctx, "PostgreSQL connection pool initialized successfully",
		logger.Int("total_conns", int(pool.Stat().TotalConns())),
	)
	return dbConn, nil
}

// Pool returns the underlying pgxpool.Pool for repository implementations.
func (db *DBConnection) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping verifies database connectivity and responsiveness.
func (db *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startTime := time.Now()
	if err := db.pool.Ping(pingCtx); err != nil {
		db.logger.Error(ctx, "Database ping failed", err)
		return errors.ErrKeyStore("ping", fmt.Errorf("postgres: %w", err))
	}

	if latency := time.Since(startTime); latency > 100*time.Millisecond {
		db.logger.Warn(ctx, "High database latency detected",
			logger.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return nil
}

// Close gracefully shuts down the connection pool.
func (db *DBConnection) Close() {
	db.pool.Close()
	db.logger.Info(context.Background(), "PostgreSQL connection pool closed")
}
