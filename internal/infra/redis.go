// README: Redis client initialization for the persisted session record and its events.
package infra

import (
    "context"
    "fmt"

    "github.com/redis/go-redis/v9"
)

func NewRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
    client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("redis ping %s: %w", addr, err)
    }
    return client, nil
}
