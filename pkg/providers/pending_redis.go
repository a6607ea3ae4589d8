package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/types"
)

// RedisPendingStoreConfig describes the Redis connection for pending acquisitions
type RedisPendingStoreConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisPendingStore shares pending acquisitions between processes, so the
// redirect can land on a different instance than the one that navigated
type RedisPendingStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPendingStore connects to Redis and verifies the connection
func NewRedisPendingStore(ctx context.Context, cfg RedisPendingStoreConfig) (*RedisPendingStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "walletbridge:pending:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = constants.PendingAcquisitionTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisPendingStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisPendingStore) Save(ctx context.Context, pending *types.PendingAcquisition) error {
	if pending == nil {
		return errors.New("nil pending acquisition")
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending acquisition: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+PendingKey(pending), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending acquisition: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Take(ctx context.Context, key string) (*types.PendingAcquisition, error) {
	data, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to load pending acquisition: %w", err)
	}

	var pending types.PendingAcquisition
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending acquisition: %w", err)
	}
	return &pending, nil
}

// Close closes the Redis connection
func (s *RedisPendingStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
