package payment

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedirectCache remembers built redirect URLs while they are still valid at
// the gateway, so repeated requests do not open new gateway sessions.
type RedirectCache interface {
	Get(ctx context.Context, paymentID string) (string, bool, error)
	Set(ctx context.Context, paymentID, url string, ttl time.Duration) error
	Delete(ctx context.Context, paymentID string) error
}

type RedisRedirectCache struct {
	Client *redis.Client
}

func redirectKey(paymentID string) string {
	return "payment:redirect:" + paymentID
}

func (c *RedisRedirectCache) Get(ctx context.Context, paymentID string) (string, bool, error) {
	v, err := c.Client.Get(ctx, redirectKey(paymentID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisRedirectCache) Set(ctx context.Context, paymentID, url string, ttl time.Duration) error {
	return c.Client.Set(ctx, redirectKey(paymentID), url, ttl).Err()
}

func (c *RedisRedirectCache) Delete(ctx context.Context, paymentID string) error {
	return c.Client.Del(ctx, redirectKey(paymentID)).Err()
}

// NoopRedirectCache never stores anything.
type NoopRedirectCache struct{}

func (NoopRedirectCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (NoopRedirectCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (NoopRedirectCache) Delete(context.Context, string) error { return nil }
