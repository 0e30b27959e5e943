// Package kv is the persistent key-value collaborator. It holds a handful of
// small device-local strings (the archive checkpoint, the session token)
// in Redis so they survive restarts.
package kv

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Store reads and writes single string keys.
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a Store using the provided Redis client. All keys are
// namespaced under prefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "taskothon"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + ":" + k
}

// Get returns the value for key, or "" when the key has never been set.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores value under key with no expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
