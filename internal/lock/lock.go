// Package lock provides the leases that keep sweep cycles from overlapping.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/fulfillment/internal/fulfillment"
)

// ErrLeaseLost is returned by Unlock and Renew when the lease expired and was taken over.
var ErrLeaseLost = errors.New("lease expired before release")

// Local is a lease held within one process.
type Local struct {
	mu sync.Mutex
}

// NewLocal creates an in-process lease.
func NewLocal() *Local {
	return &Local{}
}

// TryLock acquires the lease if it is free.
func (l *Local) TryLock(ctx context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

// Unlock releases the lease.
func (l *Local) Unlock(ctx context.Context) error {
	l.mu.Unlock()
	return nil
}

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// renewScript pushes the expiry out only if the key still holds our token.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// Redis is a lease shared by every instance pointed at the same Redis.
// The TTL bounds how long a crashed holder blocks the others.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRedis creates a Redis lease on key.
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// TryLock sets the key if it is absent.
func (r *Redis) TryLock(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" {
		return false, nil
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		r.token = token
	}
	return ok, nil
}

// Unlock deletes the key if this holder still owns it.
func (r *Redis) Unlock(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token == "" {
		return nil
	}
	token := r.token
	r.token = ""

	deleted, err := r.client.Eval(ctx, releaseScript, []string{r.key}, token).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Renew restarts the TTL of a held lease. Once the lease is lost this
// holder forgets it, so the sweep stops instead of racing the new holder.
func (r *Redis) Renew(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token == "" {
		return ErrLeaseLost
	}
	renewed, err := r.client.Eval(ctx, renewScript, []string{r.key}, r.token, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if renewed == 0 {
		r.token = ""
		return ErrLeaseLost
	}
	return nil
}

var (
	_ fulfillment.Locker       = (*Local)(nil)
	_ fulfillment.Locker       = (*Redis)(nil)
	_ fulfillment.LeaseRenewer = (*Redis)(nil)
)
