package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisKV keeps values in Redis under Namespace + ":" + key.  Entries never
// expire; staleness is decided by the repositories from their own savedAt.
type RedisKV struct {
	Client    *redis.Client
	Namespace string
}

func NewRedisKV(client *redis.Client, namespace string) *RedisKV {
	return &RedisKV{Client: client, Namespace: namespace}
}

func (s *RedisKV) key(k string) string {
	if s.Namespace == "" {
		return k
	}
	return s.Namespace + ":" + k
}

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return raw, nil
}

func (s *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return errors.Wrapf(s.Client.Set(ctx, s.key(key), value, 0).Err(), "redis set %s", key)
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(s.Client.Del(ctx, s.key(key)).Err(), "redis del %s", key)
}
