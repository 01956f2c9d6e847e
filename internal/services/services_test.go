package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/terra-clan/staffing-engine/internal/models"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, "staffing:lock:", zaptest.NewLogger(t))

	release, err := locker.Acquire(ctx, "project:p1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("staffing:lock:project:p1"))

	_, err = locker.Acquire(ctx, "project:p1", time.Minute)
	assert.True(t, errors.Is(err, ErrLockHeld))

	// other keys are independent
	releaseOther, err := locker.Acquire(ctx, "project:p2", time.Minute)
	require.NoError(t, err)
	releaseOther()

	release()
	assert.False(t, mr.Exists("staffing:lock:project:p1"))

	release2, err := locker.Acquire(ctx, "project:p1", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_Expiry(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, "lock:", zaptest.NewLogger(t))

	stale, err := locker.Acquire(ctx, "p1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, "p1", time.Minute)
	require.NoError(t, err)

	// releasing the expired holder must not drop the new lock
	stale()
	assert.True(t, mr.Exists("lock:p1"))
	fresh()
	assert.False(t, mr.Exists("lock:p1"))
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	mr, client := newRedis(t)
	core, logs := observer.New(zap.WarnLevel)
	locker := NewRedisLocker(client, "lock:", zap.New(core))

	release, err := locker.Acquire(context.Background(), "p1", time.Minute)
	require.NoError(t, err)

	mr.SetError("server unavailable")
	release()
	mr.SetError("")

	entries := logs.FilterMessage("failed to release lock").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].ContextMap()["key"])
	assert.True(t, mr.Exists("lock:p1"))
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	release, err := locker.Acquire(ctx, "p1", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "p1", time.Minute)
	assert.True(t, errors.Is(err, ErrLockHeld))

	now = now.Add(2 * time.Minute)
	release2, err := locker.Acquire(ctx, "p1", time.Minute)
	require.NoError(t, err, "expired lock can be taken over")

	release() // stale release is ignored
	_, err = locker.Acquire(ctx, "p1", time.Minute)
	assert.True(t, errors.Is(err, ErrLockHeld))

	release2()
	release3, err := locker.Acquire(ctx, "p1", time.Minute)
	require.NoError(t, err)
	release3()
}

func TestRedisBus(t *testing.T) {
	_, client := newRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := NewRedisBus(client, "staffing:execution:", zaptest.NewLogger(t))

	events, unsubscribe, err := bus.Subscribe(ctx, "t1")
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, bus.Publish(ctx, models.ExecutionEvent{Type: models.EventStepStart, TaskID: "t1", Step: 1, Total: 5, Progress: 20}))
	require.NoError(t, bus.Publish(ctx, models.ExecutionEvent{Type: models.EventStepStart, TaskID: "other"}))
	require.NoError(t, bus.Publish(ctx, models.ExecutionEvent{Type: models.EventDone, TaskID: "t1", Progress: 100}))

	first := receive(t, events)
	assert.Equal(t, models.EventStepStart, first.Type)
	assert.Equal(t, 20, first.Progress)

	second := receive(t, events)
	assert.Equal(t, models.EventDone, second.Type)
	assert.True(t, second.Terminal())
}

func TestLocalBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewLocalBus()

	a, cancelA, err := bus.Subscribe(ctx, "t1")
	require.NoError(t, err)
	b, _, err := bus.Subscribe(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, models.ExecutionEvent{Type: models.EventStepComplete, TaskID: "t1", Step: 1}))
	assert.Equal(t, 1, receive(t, a).Step)
	assert.Equal(t, 1, receive(t, b).Step)

	cancelA()
	_, open := <-a
	assert.False(t, open)
	cancelA() // idempotent

	cancel()
	select {
	case _, open := <-b:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
}

func receive(t *testing.T, ch <-chan models.ExecutionEvent) models.ExecutionEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.ExecutionEvent{}
}

type fakeProvider struct {
	BaseProvider
	err error
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return f.err }

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)

	reg := NewRegistry()
	reg.Register("redis", &RedisProvider{BaseProvider: BaseProvider{serviceType: "redis"}, client: client})
	reg.Register("database", NewDatabaseProvider("memory", pingFunc(func(context.Context) error { return nil })))

	assert.Equal(t, []string{"database", "redis"}, reg.List())
	assert.Equal(t, "memory", reg.Get("database").Type())
	assert.NoError(t, reg.Ready(ctx))

	reg.Register("broken", &fakeProvider{BaseProvider: BaseProvider{serviceType: "fake"}, err: errors.New("down")})
	results := reg.HealthCheckAll(ctx)
	assert.Len(t, results, 3)
	assert.Error(t, results["broken"])
	assert.ErrorContains(t, reg.Ready(ctx), "broken unavailable")

	reg.Unregister("broken")
	assert.NoError(t, reg.Ready(ctx))
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
