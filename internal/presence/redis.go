package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps presence in one Redis hash per board.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Dial parses redisURL, configures the pool and checks the connection.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 1
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (r *RedisStore) Set(ctx context.Context, boardID, userID, name string) error {
	return r.client.HSet(ctx, key(boardID), userID, name).Err()
}

func (r *RedisStore) GetAll(ctx context.Context, boardID string) (map[string]string, error) {
	users, err := r.client.HGetAll(ctx, key(boardID)).Result()
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = map[string]string{}
	}
	return users, nil
}

func (r *RedisStore) Remove(ctx context.Context, boardID, userID string) error {
	return r.client.HDel(ctx, key(boardID), userID).Err()
}
