package lock_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/lock"
)

// fakeRedis keeps keys in a map; only the commands the lease uses are implemented.
type fakeRedis struct {
	redis.UniversalClient

	mu       sync.Mutex
	values   map[string]string
	ttls     map[string]time.Duration
	renewals int
	evalErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}
	if f.values[keys[0]] != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	if strings.Contains(script, "PEXPIRE") {
		f.ttls[keys[0]] = time.Duration(args[1].(int64)) * time.Millisecond
		f.renewals++
		return redis.NewCmdResult(int64(1), nil)
	}
	delete(f.values, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	delete(f.values, key)
	f.mu.Unlock()
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocal()

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx))

	ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ExcludesOtherInstances(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()

	a := lock.NewRedis(client, "fulfillment:sweep", 30*time.Second)
	b := lock.NewRedis(client, "fulfillment:sweep", 30*time.Second)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, client.ttls["fulfillment:sweep"])

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock(ctx))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_UnlockAfterExpiryDoesNotReleaseNewHolder(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()

	a := lock.NewRedis(client, "k", time.Second)
	b := lock.NewRedis(client, "k", time.Second)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	client.expire("k")
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = a.Unlock(ctx)
	assert.ErrorIs(t, err, lock.ErrLeaseLost)

	// b still holds it
	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_UnlockWithoutLockIsNoop(t *testing.T) {
	l := lock.NewRedis(newFakeRedis(), "k", time.Second)
	assert.NoError(t, l.Unlock(context.Background()))
}

func TestRedis_HolderCannotReacquire(t *testing.T) {
	ctx := context.Background()
	l := lock.NewRedis(newFakeRedis(), "k", time.Second)

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_RenewExtendsHeldLease(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	l := lock.NewRedis(client, "k", 2*time.Minute)

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	client.ttls["k"] = time.Second

	require.NoError(t, l.Renew(ctx))
	assert.Equal(t, 2*time.Minute, client.ttls["k"])
	assert.Equal(t, 1, client.renewals)
}

func TestRedis_RenewAfterTakeoverReportsLoss(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	a := lock.NewRedis(client, "k", time.Second)
	b := lock.NewRedis(client, "k", time.Second)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	client.expire("k")
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, a.Renew(ctx), lock.ErrLeaseLost)
	assert.Equal(t, 0, client.renewals)
	// a forgot the lease, so releasing it is a no-op and b keeps it.
	assert.NoError(t, a.Unlock(ctx))
	assert.NoError(t, b.Renew(ctx))
}

func TestRedis_RenewWithoutLease(t *testing.T) {
	l := lock.NewRedis(newFakeRedis(), "k", time.Second)
	assert.ErrorIs(t, l.Renew(context.Background()), lock.ErrLeaseLost)
}
