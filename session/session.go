package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long a session lives after creation. Access does not
// extend it.
const DefaultTTL = time.Hour

// State is the lifecycle stage of a session. It only moves forward.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
)

// Toolset is the per-session operation handler bound when the session is
// created.
type Toolset interface {
	Call(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// ToolsetFactory builds a fresh Toolset for a new session id.
type ToolsetFactory func(sessionID string) Toolset

// Session is a snapshot of one conversation's state.
type Session struct {
	ID        string
	State     State
	CreatedAt time.Time
	ExpiresAt time.Time
	Toolset   Toolset
}

func (s Session) Initialized() bool { return s.State == StateInitialized }

type sessionError struct {
	msg    string
	parent error
}

func (e *sessionError) Error() string { return e.msg }
func (e *sessionError) Unwrap() error { return e.parent }

var (
	// ErrSessionNotFound is returned for ids that were never issued or were
	// terminated.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned for ids whose TTL elapsed. It matches
	// ErrSessionNotFound under errors.Is.
	ErrSessionExpired error = &sessionError{msg: "session expired", parent: ErrSessionNotFound}
)

// Registry owns every live session. Implementations are safe for concurrent
// use and never resurrect an expired session.
type Registry interface {
	// Create issues a new uninitialized session with its own Toolset.
	Create(ctx context.Context) (Session, error)
	// Get resolves an id without creating anything.
	Get(ctx context.Context, id string) (Session, error)
	// MarkInitialized advances the session to StateInitialized.
	MarkInitialized(ctx context.Context, id string) error
	// Terminate removes the session and reports whether it was live.
	Terminate(ctx context.Context, id string) (bool, error)
	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}

// Observer is notified of session lifecycle events.
type Observer interface {
	SessionOpened()
	SessionClosed(reason string)
}

// Reasons passed to Observer.SessionClosed.
const (
	ReasonTerminated = "terminated"
	ReasonExpired    = "expired"
)

// Options are shared by every Registry implementation.
type Options struct {
	TTL      time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
	Observer Observer
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Opened and Closed forward to the observer when one is set.
func (o Options) Opened() {
	if o.Observer != nil {
		o.Observer.SessionOpened()
	}
}

func (o Options) Closed(reason string) {
	if o.Observer != nil {
		o.Observer.SessionClosed(reason)
	}
}
