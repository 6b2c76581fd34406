package database

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisDocumentStore struct {
	client *redis.Client
}

func NewRedisDocumentStore(addr, password string) (*RedisDocumentStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisDocumentStore{client: client}, nil
}

func (r *RedisDocumentStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisDocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return val, nil
}

// Put stores the document without expiry. Session documents carry their own
// expiry timestamp and are pruned lazily on read.
func (r *RedisDocumentStore) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisDocumentStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisDocumentStore) Close() error {
	return r.client.Close()
}
