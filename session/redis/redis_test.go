package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/learncatalog/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T, ctx context.Context) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("redis container test skipped in short mode")
	}
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubToolset struct{ id string }

func (s stubToolset) Call(context.Context, string, json.RawMessage) (any, error) { return s.id, nil }

func factory(id string) session.Toolset { return stubToolset{id: id} }

func TestRedisRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t, ctx)
	clk := &clock{now: time.Now()}
	r := New(client, "test:", factory, session.Options{TTL: time.Hour, Now: clk.Now})

	s, err := r.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateUninitialized, s.State)

	ttl, err := client.TTL(ctx, "test:session:"+s.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Initialized())
	require.NotNil(t, got.Toolset)

	require.NoError(t, r.MarkInitialized(ctx, s.ID))
	got, err = r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Initialized())

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := r.Terminate(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = r.Terminate(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.False(t, errors.Is(err, session.ErrSessionExpired))
}

func TestRedisRegistryExpiry(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t, ctx)
	clk := &clock{now: time.Now()}
	r := New(client, "test:", factory, session.Options{TTL: time.Hour, Now: clk.Now})

	s, err := r.Create(ctx)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	_, err = r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrSessionExpired)

	// the key is gone now; the marker still identifies the id as expired
	_, err = r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.ErrorIs(t, r.MarkInitialized(ctx, s.ID), session.ErrSessionExpired)

	exists, err := client.Exists(ctx, "test:session:"+s.ID).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	_, err = r.Get(ctx, "never-issued")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.False(t, errors.Is(err, session.ErrSessionExpired))
}

func (r *Registry) tracking(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.toolsets[id]
	return ok
}

type closeCounter struct {
	mu      sync.Mutex
	opened  int
	reasons []string
}

func (c *closeCounter) SessionOpened() {
	c.mu.Lock()
	c.opened++
	c.mu.Unlock()
}

func (c *closeCounter) SessionClosed(reason string) {
	c.mu.Lock()
	c.reasons = append(c.reasons, reason)
	c.mu.Unlock()
}

func (c *closeCounter) closed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.reasons...)
}

func TestRedisRegistrySweepForgetsKeysExpiredByRedis(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t, ctx)
	obs := &closeCounter{}
	r := New(client, "test:", factory, session.Options{TTL: time.Second, Observer: obs})

	idle, err := r.Create(ctx)
	require.NoError(t, err)
	require.True(t, r.tracking(idle.ID))

	require.Eventually(t, func() bool {
		n, err := client.Exists(ctx, "test:session:"+idle.ID).Result()
		return err == nil && n == 0
	}, 5*time.Second, 100*time.Millisecond)

	// a session created after the first expired is still live
	live, err := r.Create(ctx)
	require.NoError(t, err)

	swept, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.False(t, r.tracking(idle.ID))
	assert.True(t, r.tracking(live.ID))
	assert.Equal(t, []string{session.ReasonExpired}, obs.closed())

	swept, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
	assert.Len(t, obs.closed(), 1)
}

func TestRedisRegistryClosesOwnedSessionsOnce(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t, ctx)
	obs := &closeCounter{}
	r := New(client, "test:", factory, session.Options{TTL: time.Hour, Observer: obs})
	other := New(client, "test:", factory, session.Options{TTL: time.Hour})

	s, err := r.Create(ctx)
	require.NoError(t, err)

	// another replica terminates it; this process learns on its next sweep
	removed, err := other.Terminate(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = r.Sweep(ctx)
	require.NoError(t, err)
	_, err = r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	assert.Equal(t, 1, obs.opened)
	assert.Len(t, obs.closed(), 1)
}
