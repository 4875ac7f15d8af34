package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// ErrUnknownTool is returned when a call names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports arguments that do not satisfy a tool's contract.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the payload of a successful tools/call.
type Result struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError,omitempty"`
}

// TextResult wraps plain text.
func TextResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}}
}

// JSONResult renders v as indented JSON text and also attaches it as
// structured content.
func JSONResult(v any) (*Result, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &Result{Content: []Content{{Type: "text", Text: string(b)}}, StructuredContent: v}, nil
}

// Handler runs a tool with arguments that already passed schema validation.
type Handler func(ctx context.Context, args json.RawMessage) (*Result, error)

// Descriptor is the advertised shape of a tool plus its handler.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`

	handler Handler
	schema  *jsonschema.Schema
}

// Observer is told about every tool invocation.
type Observer interface {
	ToolCalled(name, outcome string, elapsed time.Duration)
}

// Registry is the immutable set of tools, built once at startup.
type Registry struct {
	byName   map[string]*Descriptor
	ordered  []*Descriptor
	logger   *zap.Logger
	observer Observer
}

// NewRegistry compiles every tool schema and wires handlers to deps.
func NewRegistry(deps Deps) (*Registry, error) {
	deps = deps.withDefaults()
	defs := deps.definitions()
	return newRegistry(defs, deps.Logger, deps.Observer)
}

func newRegistry(defs []Descriptor, logger *zap.Logger, observer Observer) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]*Descriptor, len(defs)),
		logger:   logger,
		observer: observer,
	}
	compiler := jsonschema.NewCompiler()
	for i := range defs {
		d := defs[i]
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("tool %s registered twice", d.Name)
		}
		res := d.Name + ".json"
		if err := compiler.AddResource(res, bytes.NewReader(d.InputSchema)); err != nil {
			return nil, fmt.Errorf("add schema for %s: %w", d.Name, err)
		}
		schema, err := compiler.Compile(res)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", d.Name, err)
		}
		d.schema = schema
		r.byName[d.Name] = &d
		r.ordered = append(r.ordered, &d)
	}
	sort.SliceStable(r.ordered, func(i, j int) bool { return r.ordered[i].Name < r.ordered[j].Name })
	return r, nil
}

// List returns the advertised descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.ordered))
	for _, d := range r.ordered {
		out = append(out, Descriptor{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return out
}

// Invoke validates args against the tool schema and runs the handler.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	args = normalizeArgs(args)

	start := time.Now()
	res, err := r.invoke(ctx, d, args)
	if r.observer != nil {
		r.observer.ToolCalled(name, outcomeOf(err), time.Since(start))
	}
	return res, err
}

func (r *Registry) invoke(ctx context.Context, d *Descriptor, args json.RawMessage) (*Result, error) {
	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return nil, &ArgumentError{Tool: d.Name, Err: err}
	}
	if _, isObject := doc.(map[string]any); !isObject {
		return nil, &ArgumentError{Tool: d.Name, Err: errors.New("arguments must be a JSON object")}
	}
	if err := d.schema.Validate(doc); err != nil {
		return nil, &ArgumentError{Tool: d.Name, Err: err}
	}
	return d.handler(ctx, args)
}

func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return trimmed
}

func outcomeOf(err error) string {
	var argErr *ArgumentError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &argErr):
		return "invalid_arguments"
	default:
		return "error"
	}
}

// NewToolset binds a per-session handler to the registry.
func (r *Registry) NewToolset(sessionID string) *Toolset {
	return &Toolset{
		registry:  r,
		sessionID: sessionID,
		logger:    r.logger.With(zap.String("session_id", sessionID)),
	}
}

// Toolset is the operation handler owned by one session.
type Toolset struct {
	registry  *Registry
	sessionID string
	logger    *zap.Logger
	calls     atomic.Int64
}

// Call satisfies session.Toolset.
func (t *Toolset) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	n := t.calls.Add(1)
	t.logger.Debug("tool call", zap.String("tool", name), zap.Int64("call", n))
	res, err := t.registry.Invoke(ctx, name, args)
	if err != nil {
		t.logger.Info("tool call failed", zap.String("tool", name), zap.Error(err))
		return nil, err
	}
	return res, nil
}

// Calls is the number of tools/call requests this session has made.
func (t *Toolset) Calls() int64 { return t.calls.Load() }

func decodeArgs(tool string, args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return &ArgumentError{Tool: tool, Err: err}
	}
	return nil
}
