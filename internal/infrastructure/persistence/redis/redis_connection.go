// Package redis provides Redis connection management and client initialization.
// It supports standalone, cluster, and sentinel deployment modes with connection pooling.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// ConnectionMode defines Redis deployment mode
type ConnectionMode string

const (
	// ModeStandalone represents single Redis instance
	ModeStandalone ConnectionMode = "standalone"
	// ModeCluster represents Redis cluster mode
	ModeCluster ConnectionMode = "cluster"
	// ModeSentinel represents Redis sentinel mode for high availability
	ModeSentinel ConnectionMode = "sentinel"
)

// RedisConnection manages Redis client lifecycle and health monitoring.
type RedisConnection struct {
	config *config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection creates a new Redis connection manager instance.
//
// Parameters:
//   - cfg: Redis configuration
//   - log: Logger instance
//
// Returns:
//   - *RedisConnection: connection manager, call Connect before use
func NewRedisConnection(cfg *config.RedisConfig, log logger.Logger) *RedisConnection {
	return &RedisConnection{
		config: cfg,
		logger: log.WithComponent("RedisConnection"),
	}
}

// Connect establishes Redis connection based on configured mode and verifies it with a ping.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	if rc.client != nil {
		rc.logger.Warn(ctx, "Redis connection already initialized")
		return nil
	}

	rc.setDefaults()

	var client redis.UniversalClient
	switch ConnectionMode(rc.config.Mode) {
	case ModeStandalone:
		client = redis.NewClient(&redis.Options{
			Addr:         rc.config.Addr(),
			Password:     rc.config.Password,
			DB:           rc.config.DB,
			PoolSize:     rc.config.PoolSize,
			MinIdleConns: rc.config.MinIdleConns,
			DialTimeout:  rc.config.DialTimeout,
			ReadTimeout:  rc.config.ReadTimeout,
			WriteTimeout: rc.config.WriteTimeout,
		})
	case ModeCluster:
		if len(rc.config.ClusterAddrs) == 0 {
			return fmt.Errorf("cluster addresses not configured")
		}
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        rc.config.ClusterAddrs,
			Password:     rc.config.Password,
			PoolSize:     rc.config.PoolSize,
			MinIdleConns: rc.config.MinIdleConns,
			DialTimeout:  rc.config.DialTimeout,
			ReadTimeout:  rc.config.ReadTimeout,
			WriteTimeout: rc.config.WriteTimeout,
		})
	case ModeSentinel:
		if len(rc.config.SentinelAddrs) == 0 || rc.config.SentinelMaster == "" {
			return fmt.Errorf("sentinel addresses and master name must be configured")
		}
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    rc.config.SentinelMaster,
			SentinelAddrs: rc.config.SentinelAddrs,
			Password:      rc.config.Password,
			DB:            rc.config.DB,
			PoolSize:      rc.config.PoolSize,
			MinIdleConns:  rc.config.MinIdleConns,
			DialTimeout:   rc.config.DialTimeout,
			ReadTimeout:   rc.config.ReadTimeout,
			WriteTimeout:  rc.config.WriteTimeout,
		})
	default:
		return fmt.Errorf("unsupported Redis mode: %s", rc.config.Mode)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		rc.logger.Error(ctx, "Redis ping failed", err, logger.String("mode", rc.config.Mode))
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	rc.client = client
	rc.logger.Info(ctx, "Redis connection established successfully",
		logger.String("mode", rc.config.Mode),
		logger.Int("pool_size", rc.config.PoolSize),
	)
	return nil
}

// setDefaults sets default configuration values if not specified.
func (rc *RedisConnection) setDefaults() {
	if rc.config.Mode == "" {
		rc.config.Mode = string(ModeStandalone)
	}
	if rc.config.Host == "" {
		rc.config.Host = "localhost"
	}
	if rc.config.Port == 0 {
		rc.config.Port = 6379
	}
	if rc.config.PoolSize == 0 {
		rc.config.PoolSize = 10
	}
	if rc.config.DialTimeout == 0 {
		rc.config.DialTimeout = 5 * time.Second
	}
	if rc.config.ReadTimeout == 0 {
		rc.config.ReadTimeout = 3 * time.Second
	}
	if rc.config.WriteTimeout == 0 {
		rc.config.WriteTimeout = 3 * time.Second
	}
}

// GetClient returns the Redis client, or nil before Connect succeeded.
func (rc *RedisConnection) GetClient() redis.UniversalClient {
	return rc.client
}

// Ping checks Redis server connectivity.
func (rc *RedisConnection) Ping(ctx context.Context) error {
	if rc.client == nil {
		return fmt.Errorf("redis connection not initialized")
	}
	return rc.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (rc *RedisConnection) Close() error {
	if rc.client == nil {
		return nil
	}
	err := rc.client.Close()
	rc.client = nil
	return err
}
