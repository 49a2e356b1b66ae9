package keystore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// RedisStore keeps the key ring in a single hash (<prefix>keys, field = key id)
// and announces modifications on the <prefix>keys:changed channel.
type RedisStore struct {
	client  redis.UniversalClient
	hashKey string
	channel string
	logger  logger.Logger

	changes chan struct{}
	mu      sync.Mutex
	pubsub  *redis.PubSub
	wg      sync.WaitGroup
}

var (
	_ repository.KeyStore          = (*RedisStore)(nil)
	_ repository.KeyChangeNotifier = (*RedisStore)(nil)
)

// NewRedisStore creates a store on an already connected client.
func NewRedisStore(client redis.UniversalClient, prefix string, log logger.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		hashKey: prefix + "keys",
		channel: prefix + "keys:changed",
		logger:  log.WithComponent("RedisStore"),
		changes: make(chan struct{}, 1),
	}
}

// Name implements repository.KeyStore.
func (s *RedisStore) Name() string { return string(constants.KeySourceRedis) }

// LoadAll implements repository.KeyStore.
func (s *RedisStore) LoadAll(ctx context.Context) ([]*models.KeyEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, errors.ErrKeyStore("load", err)
	}

	keys := make([]*models.KeyEntry, 0, len(fields))
	for field, doc := range fields {
		key, err := DecodeKey([]byte(doc))
		if err != nil {
			s.logger.Warn(ctx, "Skipping invalid key entry", logger.String("field", field), logger.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Save implements repository.KeyStore.
func (s *RedisStore) Save(ctx context.Context, key *models.KeyEntry) error {
	data, err := EncodeKey(key)
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey, key.ID.String(), data)
		pipe.Publish(ctx, s.channel, key.ID.String())
		return nil
	})
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}
	return nil
}

// Delete implements repository.KeyStore.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.hashKey, id.String())
		pipe.Publish(ctx, s.channel, id.String())
		return nil
	})
	if err != nil {
		return errors.ErrKeyStore("delete", err)
	}
	return nil
}

// Subscribe listens on the change channel until Close. It returns once the
// subscription is confirmed by the server.
func (s *RedisStore) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub != nil {
		return nil
	}

	ps := s.client.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return errors.ErrKeyStore("subscribe", err)
	}
	s.pubsub = ps

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for msg := range ps.Channel() {
			s.logger.Debug(context.Background(), "Key ring change announced", logger.String("key_id", msg.Payload))
			select {
			case s.changes <- struct{}{}:
			default:
			}
		}
	}()
	return nil
}

// Changes implements repository.KeyChangeNotifier.
func (s *RedisStore) Changes() <-chan struct{} { return s.changes }

// Close ends the subscription. The client itself is owned by the caller.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	ps := s.pubsub
	s.pubsub = nil
	s.mu.Unlock()

	if ps == nil {
		return nil
	}
	err := ps.Close()
	s.wg.Wait()
	return err
}
