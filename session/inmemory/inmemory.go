package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/learncatalog/session"
	"go.uber.org/zap"
)

// Registry keeps sessions in process memory. Expired ids are remembered for
// one further TTL so late callers are told the session expired rather than
// that it never existed.
type Registry struct {
	factory session.ToolsetFactory
	opts    session.Options

	mu       sync.RWMutex
	sessions map[string]*session.Session
	expired  map[string]time.Time
}

var _ session.Registry = (*Registry)(nil)

func New(factory session.ToolsetFactory, opts session.Options) *Registry {
	return &Registry{
		factory:  factory,
		opts:     opts.WithDefaults(),
		sessions: make(map[string]*session.Session),
		expired:  make(map[string]time.Time),
	}
}

func (r *Registry) Create(_ context.Context) (session.Session, error) {
	id := uuid.NewString()
	now := r.opts.Now()
	sess := &session.Session{
		ID:        id,
		State:     session.StateUninitialized,
		CreatedAt: now,
		ExpiresAt: now.Add(r.opts.TTL),
		Toolset:   r.factory(id),
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	r.opts.Logger.Info("session created", zap.String("session_id", id), zap.Time("expires_at", sess.ExpiresAt))
	r.opts.Opened()
	return *sess, nil
}

func (r *Registry) Get(_ context.Context, id string) (session.Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	var snapshot session.Session
	if ok {
		snapshot = *sess
	}
	_, tombstoned := r.expired[id]
	r.mu.RUnlock()

	if !ok {
		if tombstoned {
			return session.Session{}, session.ErrSessionExpired
		}
		return session.Session{}, session.ErrSessionNotFound
	}
	if !r.opts.Now().Before(snapshot.ExpiresAt) {
		r.expire(id)
		return session.Session{}, session.ErrSessionExpired
	}
	return snapshot, nil
}

func (r *Registry) MarkInitialized(_ context.Context, id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok {
		_, tombstoned := r.expired[id]
		r.mu.Unlock()
		if tombstoned {
			return session.ErrSessionExpired
		}
		return session.ErrSessionNotFound
	}
	if !r.opts.Now().Before(sess.ExpiresAt) {
		r.mu.Unlock()
		r.expire(id)
		return session.ErrSessionExpired
	}
	sess.State = session.StateInitialized
	r.mu.Unlock()
	return nil
}

func (r *Registry) Terminate(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	if !r.opts.Now().Before(sess.ExpiresAt) {
		r.mu.Unlock()
		r.expire(id)
		return false, nil
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	r.opts.Logger.Info("session terminated", zap.String("session_id", id))
	r.opts.Closed(session.ReasonTerminated)
	return true, nil
}

func (r *Registry) Count(_ context.Context) (int, error) {
	now := r.opts.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sess := range r.sessions {
		if now.Before(sess.ExpiresAt) {
			n++
		}
	}
	return n, nil
}

// Sweep evicts expired sessions and forgets tombstones older than one TTL.
// It returns the number of sessions evicted.
func (r *Registry) Sweep() int {
	now := r.opts.Now()
	var evicted []string

	r.mu.Lock()
	for id, sess := range r.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(r.sessions, id)
			r.expired[id] = sess.ExpiresAt
			evicted = append(evicted, id)
		}
	}
	for id, at := range r.expired {
		if !now.Before(at.Add(r.opts.TTL)) {
			delete(r.expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		r.opts.Logger.Info("session expired", zap.String("session_id", id))
		r.opts.Closed(session.ReasonExpired)
	}
	return len(evicted)
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
			r.Sweep()
		}
	}
}

func (r *Registry) expire(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok || r.opts.Now().Before(sess.ExpiresAt) {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, id)
	r.expired[id] = sess.ExpiresAt
	r.mu.Unlock()

	r.opts.Logger.Info("session expired", zap.String("session_id", id))
	r.opts.Closed(session.ReasonExpired)
}
