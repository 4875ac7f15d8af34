package redis_session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/learncatalog/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultKeyPrefix = "learncatalog:"

// markInitialized only touches a key that still exists so an expired session
// is never recreated without a TTL.
var markInitialized = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "state", ARGV[1])
return 1
`)

// Registry stores session metadata in Redis so several replicas can share
// sessions. Each key carries the session TTL, set once at creation. A second
// marker key lives for two TTLs and lets Get tell expired ids from unknown
// ones. Toolsets are process local and rebuilt from the factory on a miss.
// Sessions Redis expires on its own are forgotten by Sweep.
type Registry struct {
	client  redis.UniversalClient
	prefix  string
	factory session.ToolsetFactory
	opts    session.Options

	mu       sync.Mutex
	toolsets map[string]tracked
}

// tracked is the local state of one session. owned marks sessions created by
// this process, the only ones it reported to the observer as opened.
type tracked struct {
	toolset session.Toolset
	owned   bool
}

var _ session.Registry = (*Registry)(nil)

func New(client redis.UniversalClient, prefix string, factory session.ToolsetFactory, opts session.Options) *Registry {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Registry{
		client:   client,
		prefix:   prefix,
		factory:  factory,
		opts:     opts.WithDefaults(),
		toolsets: make(map[string]tracked),
	}
}

func (r *Registry) key(id string) string    { return r.prefix + "session:" + id }
func (r *Registry) seenKey(id string) string { return r.prefix + "session-seen:" + id }

func (r *Registry) Create(ctx context.Context) (session.Session, error) {
	id := uuid.NewString()
	now := r.opts.Now()
	sess := session.Session{
		ID:        id,
		State:     session.StateUninitialized,
		CreatedAt: now,
		ExpiresAt: now.Add(r.opts.TTL),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key(id), map[string]interface{}{
			"state":      string(sess.State),
			"created_at": strconv.FormatInt(now.UnixNano(), 10),
			"expires_at": strconv.FormatInt(sess.ExpiresAt.UnixNano(), 10),
		})
		pipe.Expire(ctx, r.key(id), r.opts.TTL)
		pipe.Set(ctx, r.seenKey(id), "1", 2*r.opts.TTL)
		return nil
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("store session: %w", err)
	}

	sess.Toolset = r.factory(id)
	r.mu.Lock()
	r.toolsets[id] = tracked{toolset: sess.Toolset, owned: true}
	r.mu.Unlock()

	r.opts.Logger.Info("session created", zap.String("session_id", id), zap.Time("expires_at", sess.ExpiresAt))
	r.opts.Opened()
	return sess, nil
}

func (r *Registry) Get(ctx context.Context, id string) (session.Session, error) {
	if id == "" {
		return session.Session{}, session.ErrSessionNotFound
	}
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return session.Session{}, r.missing(ctx, id)
	}

	sess := session.Session{
		ID:        id,
		State:     session.State(fields["state"]),
		CreatedAt: parseUnixNano(fields["created_at"]),
		ExpiresAt: parseUnixNano(fields["expires_at"]),
	}
	if !r.opts.Now().Before(sess.ExpiresAt) {
		r.dropExpired(ctx, id)
		return session.Session{}, session.ErrSessionExpired
	}
	sess.Toolset = r.toolset(id)
	return sess, nil
}

func (r *Registry) MarkInitialized(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	n, err := markInitialized.Run(ctx, r.client, []string{r.key(id)}, string(session.StateInitialized)).Int()
	if err != nil {
		return fmt.Errorf("mark session initialized: %w", err)
	}
	if n == 0 {
		return r.missing(ctx, id)
	}
	return nil
}

func (r *Registry) Terminate(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.key(id))
		pipe.Del(ctx, r.seenKey(id))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	owned := r.forget(id)
	if del.Val() == 0 {
		if owned {
			r.opts.Closed(session.ReasonExpired)
		}
		return false, nil
	}

	r.opts.Logger.Info("session terminated", zap.String("session_id", id))
	if owned {
		r.opts.Closed(session.ReasonTerminated)
	}
	return true, nil
}

func (r *Registry) Count(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"session:*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (r *Registry) missing(ctx context.Context, id string) error {
	if r.forget(id) {
		r.opts.Logger.Info("session expired", zap.String("session_id", id))
		r.opts.Closed(session.ReasonExpired)
	}
	seen, err := r.client.Exists(ctx, r.seenKey(id)).Result()
	if err != nil {
		return fmt.Errorf("load session marker: %w", err)
	}
	if seen > 0 {
		return session.ErrSessionExpired
	}
	return session.ErrSessionNotFound
}

// dropExpired removes a session whose deadline passed on the registry clock
// before Redis got to it.
func (r *Registry) dropExpired(ctx context.Context, id string) {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		r.opts.Logger.Warn("could not delete expired session", zap.String("session_id", id), zap.Error(err))
	}
	r.opts.Logger.Info("session expired", zap.String("session_id", id))
	if r.forget(id) {
		r.opts.Closed(session.ReasonExpired)
	}
}

// Sweep forgets local state for sessions whose key no longer exists, which
// happens when Redis expires a session nobody touched again or another
// replica terminated it. It returns the number of sessions forgotten.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.toolsets))
	for id := range r.toolsets {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.IntCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Exists(ctx, r.key(id))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}

	swept := 0
	for i, id := range ids {
		if cmds[i].Val() > 0 {
			continue
		}
		swept++
		if r.forget(id) {
			r.opts.Logger.Info("session expired", zap.String("session_id", id))
			r.opts.Closed(session.ReasonExpired)
		}
	}
	return swept, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.opts.Logger.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}

func (r *Registry) toolset(id string) session.Toolset {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.toolsets[id]
	if !ok {
		t = tracked{toolset: r.factory(id)}
		r.toolsets[id] = t
	}
	return t.toolset
}

// forget drops local state for id and reports whether this process opened it.
func (r *Registry) forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.toolsets[id]
	delete(r.toolsets, id)
	return ok && t.owned
}


func parseUnixNano(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}
