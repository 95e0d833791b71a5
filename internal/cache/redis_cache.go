package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisOTPStore struct {
	client *redis.Client
}

func NewRedisOTPStore(addr string, password string, db int) *RedisOTPStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisOTPStore{client: client}
}

func (c *RedisOTPStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisOTPStore) Close() error {
	return c.client.Close()
}

func otpKey(email string) string {
	return "salon:otp:" + normalizeEmail(email)
}

func attemptsKey(email string) string {
	return "salon:otp-attempts:" + normalizeEmail(email)
}

func (c *RedisOTPStore) Put(ctx context.Context, email string, code string, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, otpKey(email), code, ttl)
	pipe.Del(ctx, attemptsKey(email))
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisOTPStore) Verify(ctx context.Context, email string, code string) (bool, error) {
	expected, err := c.client.Get(ctx, otpKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if codesMatch(expected, code) {
		// DEL reports whether this caller consumed the code; a concurrent
		// verify that loses the race sees zero.
		removed, err := c.client.Del(ctx, otpKey(email)).Result()
		if err != nil {
			return false, err
		}
		_ = c.client.Del(ctx, attemptsKey(email)).Err()
		return removed == 1, nil
	}

	attempts, err := c.client.Incr(ctx, attemptsKey(email)).Result()
	if err != nil {
		return false, err
	}
	if attempts >= MaxOTPAttempts {
		return false, c.client.Del(ctx, otpKey(email), attemptsKey(email)).Err()
	}
	if ttl, err := c.client.PTTL(ctx, otpKey(email)).Result(); err == nil && ttl > 0 {
		_ = c.client.PExpire(ctx, attemptsKey(email), ttl).Err()
	}
	return false, nil
}

func (c *RedisOTPStore) Delete(ctx context.Context, email string) error {
	return c.client.Del(ctx, otpKey(email), attemptsKey(email)).Err()
}
