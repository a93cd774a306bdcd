package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeAllocator reserves join codes in Redis so multiple instances never
// hand out the same code. Reservation is SETNX, so it is atomic; a plain
// EXISTS-then-SET pair would race across instances.
type CodeAllocator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeAllocator(client *redis.Client, ttl time.Duration) *CodeAllocator {
	return &CodeAllocator{client: client, ttl: ttl}
}

func (a *CodeAllocator) IsCodeInUse(ctx context.Context, code string) (bool, error) {
	n, err := a.client.Exists(ctx, a.key(code)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *CodeAllocator) Reserve(ctx context.Context, code string) (bool, error) {
	return a.client.SetNX(ctx, a.key(code), "1", a.ttl).Result()
}

func (a *CodeAllocator) Release(ctx context.Context, code string) error {
	return a.client.Del(ctx, a.key(code)).Err()
}

func (a *CodeAllocator) key(code string) string {
	return "lobby:code:" + code
}
