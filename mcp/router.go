package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mohammad-safakhou/learncatalog/mcp/tools"
	"github.com/mohammad-safakhou/learncatalog/session"
	"go.uber.org/zap"
)

const (
	methodInitialize = "initialize"
	methodPing       = "ping"
	methodToolsList  = "tools/list"
	methodToolsCall  = "tools/call"

	notificationInitialized = "notifications/initialized"
	notificationCancelled   = "notifications/cancelled"
)

// ToolLister advertises the operation catalog for tools/list.
type ToolLister interface {
	List() []tools.Descriptor
}

// Observer is told about every handled message.
type Observer interface {
	MessageHandled(method, kind, outcome string, elapsed time.Duration)
}

// Options configure a Router.
type Options struct {
	Info     ServerInfo
	Logger   *zap.Logger
	Observer Observer
}

// Inbound is one message as received by a transport.
type Inbound struct {
	SessionID       string
	ProtocolVersion string
	Body            []byte
}

// Outbound is what the transport sends back. A nil Response means the
// message was accepted without a payload.
type Outbound struct {
	Status    int
	SessionID string
	Response  *Response
}

type methodHandler func(ctx context.Context, sess session.Session, params json.RawMessage) (any, error)

// Router resolves the session of each message, enforces the lifecycle and
// dispatches to the method table.
type Router struct {
	sessions session.Registry
	tools    ToolLister
	info     ServerInfo
	logger   *zap.Logger
	observer Observer
	methods  map[string]methodHandler
}

func NewRouter(sessions session.Registry, lister ToolLister, opts Options) *Router {
	if opts.Info.Name == "" {
		opts.Info.Name = "mcp-learn-catalog"
	}
	if opts.Info.Version == "" {
		opts.Info.Version = "2.0.0"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Router{
		sessions: sessions,
		tools:    lister,
		info:     opts.Info,
		logger:   opts.Logger.Named("router"),
		observer: opts.Observer,
	}
	r.methods = map[string]methodHandler{
		methodPing:      r.ping,
		methodToolsList: r.listTools,
		methodToolsCall: r.callTool,
	}
	return r
}

// Handle processes one inbound message. It never panics and always returns
// an Outbound the transport can write as is.
func (r *Router) Handle(ctx context.Context, in Inbound) (out Outbound) {
	start := time.Now()
	var (
		id     json.RawMessage
		method string
		kind   Kind
	)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic while handling message", zap.String("method", method), zap.Any("panic", p), zap.Stack("stack"))
			out = r.fail(id, &Error{Status: http.StatusInternalServerError, Code: CodeInternalError, Message: "Internal error", Data: fmt.Sprint(p)})
		}
		r.observe(method, kind, out, time.Since(start))
	}()

	if v := in.ProtocolVersion; v != "" && v != ProtocolVersion {
		return r.fail(nil, newError(http.StatusBadRequest, CodeInvalidRequest, "Unsupported protocol version: %s", v))
	}
	msg, perr := parseMessage(in.Body)
	if perr != nil {
		return r.fail(nil, perr)
	}
	id, method, kind = msg.ID, msg.Method, msg.Kind()

	if method == methodInitialize {
		if kind != KindRequest {
			return r.fail(nil, newError(http.StatusBadRequest, CodeInvalidRequest, "initialize must be a request"))
		}
		return r.initialize(ctx, msg)
	}

	if in.SessionID == "" {
		return r.fail(id, newError(http.StatusBadRequest, CodeInvalidRequest, "Missing %s header", HeaderSessionID))
	}
	sess, err := r.sessions.Get(ctx, in.SessionID)
	if err != nil {
		e := asError(err)
		if e.Code == CodeInternalError {
			e.Status = http.StatusInternalServerError
		}
		return r.fail(id, e)
	}
	logger := r.logger.With(zap.String("session_id", sess.ID))

	switch kind {
	case KindResponse:
		logger.Debug("ignoring client response")
		return Outbound{Status: http.StatusAccepted, SessionID: sess.ID}
	case KindNotification:
		r.notify(logger, msg)
		return Outbound{Status: http.StatusAccepted, SessionID: sess.ID}
	}

	h, ok := r.methods[method]
	if !ok {
		return r.fail(id, &Error{Status: http.StatusOK, Code: CodeMethodNotFound, Message: "Method not found: " + method})
	}
	if !sess.Initialized() {
		return r.fail(id, &Error{Status: http.StatusOK, Code: CodeNotInitialized, Message: "Session not initialized"})
	}

	result, err := h(ctx, sess, msg.Params)
	if err != nil {
		logger.Debug("request failed", zap.String("method", method), zap.Error(err))
		return r.fail(id, asError(err))
	}
	return Outbound{Status: http.StatusOK, SessionID: sess.ID, Response: resultResponse(id, result)}
}

// Terminate ends a session on behalf of the transport.
func (r *Router) Terminate(ctx context.Context, sessionID string) (bool, error) {
	removed, err := r.sessions.Terminate(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("terminate session: %w", err)
	}
	if removed {
		r.logger.Info("session terminated by client", zap.String("session_id", sessionID))
	}
	return removed, nil
}

func parseMessage(body []byte) (*Message, *Error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, newError(http.StatusBadRequest, CodeParseError, "Parse error")
	}
	switch trimmed[0] {
	case '{':
	case '[':
		return nil, newError(http.StatusBadRequest, CodeInvalidRequest, "Batch messages are not supported")
	default:
		return nil, newError(http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON-RPC message")
	}
	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, newError(http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON-RPC message")
	}
	if msg.JSONRPC != jsonRPCVersion {
		return nil, newError(http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON-RPC message")
	}
	return &msg, nil
}

func (r *Router) initialize(ctx context.Context, msg *Message) Outbound {
	sess, err := r.sessions.Create(ctx)
	if err != nil {
		r.logger.Error("session create failed", zap.Error(err))
		return r.fail(msg.ID, &Error{Status: http.StatusInternalServerError, Code: CodeInternalError, Message: "Internal error", Data: err.Error()})
	}
	resp := resultResponse(msg.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      r.info,
		Capabilities:    map[string]any{"tools": map[string]any{}},
	})
	if err := r.sessions.MarkInitialized(ctx, sess.ID); err != nil {
		r.logger.Error("session initialize failed", zap.String("session_id", sess.ID), zap.Error(err))
		return r.fail(msg.ID, asError(err))
	}
	r.logger.Info("session initialized", zap.String("session_id", sess.ID))
	return Outbound{Status: http.StatusOK, SessionID: sess.ID, Response: resp}
}

func (r *Router) notify(logger *zap.Logger, msg *Message) {
	switch msg.Method {
	case notificationInitialized, notificationCancelled:
		logger.Debug("notification", zap.String("method", msg.Method))
	default:
		logger.Info("unhandled notification", zap.String("method", msg.Method))
	}
}

func (r *Router) ping(context.Context, session.Session, json.RawMessage) (any, error) {
	return struct{}{}, nil
}

func (r *Router) listTools(context.Context, session.Session, json.RawMessage) (any, error) {
	return map[string]any{"tools": r.tools.List()}, nil
}

func (r *Router) callTool(ctx context.Context, sess session.Session, params json.RawMessage) (any, error) {
	var p callParams
	if len(bytes.TrimSpace(params)) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Status: http.StatusOK, Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
		}
	}
	if p.Name == "" {
		return nil, &Error{Status: http.StatusOK, Code: CodeInvalidParams, Message: "Invalid params", Data: "tool name is required"}
	}
	if sess.Toolset == nil {
		return nil, fmt.Errorf("session %s has no toolset", sess.ID)
	}
	return sess.Toolset.Call(ctx, p.Name, p.Arguments)
}

func (r *Router) fail(id json.RawMessage, e *Error) Outbound {
	return Outbound{Status: e.Status, Response: errorResponse(id, e)}
}

func (r *Router) observe(method string, kind Kind, out Outbound, elapsed time.Duration) {
	outcome := "ok"
	if out.Response != nil && out.Response.Error != nil {
		outcome = strconv.Itoa(out.Response.Error.Code)
	}
	r.logger.Debug("message handled",
		zap.String("method", method),
		zap.String("kind", string(kind)),
		zap.String("outcome", outcome),
		zap.Int("status", out.Status),
		zap.Duration("elapsed", elapsed))
	if r.observer == nil {
		return
	}
	if _, known := r.methods[method]; !known && method != methodInitialize &&
		method != notificationInitialized && method != notificationCancelled {
		method = "other"
	}
	r.observer.MessageHandled(method, string(kind), outcome, elapsed)
}
