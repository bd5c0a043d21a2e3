// Package lock provides a Redis-backed lease lock. A lease is held for a
// bounded TTL and expires on its own, so a crashed holder can never starve
// other callers. Release is guarded: only the holder's token may delete the
// key, so a slow holder cannot release a lease that already expired and was
// re-acquired by someone else.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the resource is currently held by another
// caller. It signals contention, not failure.
var ErrNotAcquired = errors.New("lock: resource already held")

// Lease is a held lock that must be released (or left to expire).
type Lease interface {
	// Resource returns the locked resource name.
	Resource() string
	// Refresh extends the lease TTL. It fails with ErrNotAcquired when the
	// lease has already expired and the key is gone or held by another token.
	Refresh(ctx context.Context, ttl time.Duration) error
	// Release frees the lease. Releasing an already-expired lease is a no-op.
	Release(ctx context.Context) error
}

// Locker acquires leases on named resources.
type Locker interface {
	// Acquire attempts to take the lease for resource with the given TTL.
	// It returns ErrNotAcquired without blocking when the resource is held.
	Acquire(ctx context.Context, resource string, ttl time.Duration) (Lease, error)
}

const keyPrefix = "locks:"

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only when the key still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis client.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a RedisLocker using the given client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the lease via SET NX PX with a per-lease token.
func (l *RedisLocker) Acquire(ctx context.Context, resource string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+resource, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &redisLease{client: l.client, resource: resource, token: token}, nil
}

type redisLease struct {
	client   *redis.Client
	resource string
	token    string
}

func (r *redisLease) Resource() string { return r.resource }

func (r *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, r.client,
		[]string{keyPrefix + r.resource}, r.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotAcquired
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, r.client, []string{keyPrefix + r.resource}, r.token).Err()
}

// NewClient connects to Redis and verifies the connection with a short ping.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
