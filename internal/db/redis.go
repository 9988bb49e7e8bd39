package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects and pings redis.
func NewRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("redis initialization canceled: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	return client, nil
}
