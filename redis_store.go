package main

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps player records in Redis under "mc:<player>:<key>"
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(playerID, key string) string {
	return "mc:" + playerID + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, playerID, key string) (string, error) {
	val, err := s.client.Get(ctx, redisKey(playerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores without expiry; profiles live until explicitly reset.
func (s *RedisStore) Set(ctx context.Context, playerID, key, value string) error {
	return s.client.Set(ctx, redisKey(playerID, key), value, 0).Err()
}
