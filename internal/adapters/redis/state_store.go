package redis

// Package redis provides the Redis-backed StateStore used when session state is shared
// between machines or processes.

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/target/promptopt-client/internal/ports"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "promptopt:"

const scanBatch = 100

var _ ports.StateStore = (*StateStore)(nil)

// StateStore keeps values under prefixed keys with no expiry.
type StateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewStateStore creates a new Redis-based state store using DefaultPrefix.
func NewStateStore(client redis.UniversalClient) *StateStore {
	return NewStateStoreWithPrefix(client, DefaultPrefix)
}

// NewStateStoreWithPrefix creates a Redis state store with a custom key prefix.
func NewStateStoreWithPrefix(client redis.UniversalClient, prefix string) *StateStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &StateStore{
		client: client,
		prefix: prefix,
	}
}

func (s *StateStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (s *StateStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("state key cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, s.prefix+k)
		}
	}
	if len(full) == 0 {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every key under the store prefix.
func (s *StateStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
