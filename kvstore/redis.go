package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// casScript performs the conditional swap server-side so two concurrent
// callers with the same expected value produce exactly one winner, even
// across process instances. The remaining TTL is carried over.
const casScript = `
local current = redis.call("GET", KEYS[1])
if current == false then
  return 0
end
if current ~= ARGV[1] then
  return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

// incrScript increments and reads the remaining window in one atomic
// step. TTL is set only on the first hit in the window.
const incrScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`

var (
	casLua  = redis.NewScript(casScript)
	incrLua = redis.NewScript(incrScript)
)

// RedisStore implements [Store] on a Redis-compatible backend. Every
// operation runs under OpTimeout; a miss of that budget or any transport
// error surfaces as [ErrUnavailable].
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewRedisStore wraps client. opTimeout bounds each round-trip; zero
// applies a 2s default.
func NewRedisStore(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Put implements [Store].
func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("kvstore: non-positive ttl for %q", key)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, wrapUnavailable(err)
	}
	return value, true, nil
}

// CompareAndSwap implements [Store].
func (s *RedisStore) CompareAndSwap(ctx context.Context, key, expected, next string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := casLua.Run(ctx, s.client, []string{key}, expected, next).Int64()
	if err != nil {
		return false, wrapUnavailable(err)
	}
	return res == 1, nil
}

// Increment implements [Store].
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		return 0, 0, fmt.Errorf("kvstore: non-positive window for %q", key)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := incrLua.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, wrapUnavailable(err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected increment reply", ErrUnavailable)
	}

	count := res[0]
	remaining := time.Duration(res[1]) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}
	return count, remaining, nil
}

// Delete implements [Store].
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
