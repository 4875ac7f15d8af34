package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/learncatalog/catalog"
	"github.com/mohammad-safakhou/learncatalog/internal/auth"
	"github.com/mohammad-safakhou/learncatalog/internal/metrics"
	"github.com/mohammad-safakhou/learncatalog/mcp"
	"github.com/mohammad-safakhou/learncatalog/mcp/tools"
	"github.com/mohammad-safakhou/learncatalog/scraper"
	"github.com/mohammad-safakhou/learncatalog/session"
	"github.com/mohammad-safakhou/learncatalog/session/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type nopCatalog struct{}

func (nopCatalog) Query(context.Context, catalog.Filters) (catalog.Response, error) {
	return catalog.Response{}, nil
}

type nopScraper struct{}

func (nopScraper) Run(context.Context, scraper.Request) ([]scraper.Outcome, error) {
	return []scraper.Outcome{}, nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	m := metrics.New()
	reg, err := tools.NewRegistry(tools.Deps{Catalog: nopCatalog{}, Scraper: nopScraper{}, Observer: m})
	require.NoError(t, err)
	sessions := inmemory.New(func(id string) session.Toolset { return reg.NewToolset(id) }, session.Options{Observer: m})
	router := mcp.NewRouter(sessions, reg, mcp.Options{Observer: m})
	opts.Sessions = sessions
	opts.Metrics = m.Handler()
	opts.Info = mcp.ServerInfo{Name: "mcp-learn-catalog", Version: "test"}
	return New(router, opts)
}

type exchange struct {
	method  string
	body    string
	headers map[string]string
}

func (s *Server) do(x exchange) *httptest.ResponseRecorder {
	req := httptest.NewRequest(x.method, "/mcp", strings.NewReader(x.body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range x.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) mcp.Message {
	t.Helper()
	var m mcp.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func rpcCode(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	var e mcp.RPCError
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Error, &e))
	return e.Code
}

func initialize(t *testing.T, s *Server) string {
	t.Helper()
	rec := s.do(exchange{method: http.MethodPost, body: `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := rec.Header().Get(mcp.HeaderSessionID)
	require.NotEmpty(t, sid)
	return sid
}

func TestSessionFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, Options{})
	sid := initialize(t, s)
	withSession := map[string]string{mcp.HeaderSessionID: sid, mcp.HeaderProtocolVersion: mcp.ProtocolVersion}

	rec := s.do(exchange{method: http.MethodPost, headers: withSession, body: `{"jsonrpc":"2.0","method":"notifications/initialized"}`})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(exchange{method: http.MethodPost, headers: withSession,
		body: `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"simpleTest","arguments":{"msg":"http"}}}`})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeResponse(t, rec).Result), "Echo: http")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = s.do(exchange{method: http.MethodDelete, headers: withSession})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(exchange{method: http.MethodDelete, headers: withSession})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, mcp.CodeSessionNotFound, rpcCode(t, rec))

	rec = s.do(exchange{method: http.MethodPost, headers: withSession, body: `{"jsonrpc":"2.0","id":3,"method":"ping"}`})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectedRequests(t *testing.T) {
	s := newTestServer(t, Options{})
	cases := map[string]struct {
		x      exchange
		status int
		code   int
	}{
		"bad accept": {
			x:      exchange{method: http.MethodPost, body: `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, headers: map[string]string{"Accept": "text/html"}},
			status: http.StatusBadRequest, code: mcp.CodeInvalidRequest,
		},
		"bad protocol version": {
			x:      exchange{method: http.MethodPost, body: `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, headers: map[string]string{mcp.HeaderProtocolVersion: "1999-01-01"}},
			status: http.StatusBadRequest, code: mcp.CodeInvalidRequest,
		},
		"parse error": {
			x:      exchange{method: http.MethodPost, body: `{`},
			status: http.StatusBadRequest, code: mcp.CodeParseError,
		},
		"missing session": {
			x:      exchange{method: http.MethodPost, body: `{"jsonrpc":"2.0","id":1,"method":"ping"}`},
			status: http.StatusBadRequest, code: mcp.CodeInvalidRequest,
		},
		"delete without header": {
			x:      exchange{method: http.MethodDelete},
			status: http.StatusBadRequest, code: mcp.CodeInvalidRequest,
		},
		"sse": {
			x:      exchange{method: http.MethodGet, headers: map[string]string{"Accept": "text/event-stream"}},
			status: http.StatusMethodNotAllowed, code: mcp.CodeMethodNotFound,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(tc.x)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, rpcCode(t, rec))
		})
	}
}

func TestHealthAndDescribe(t *testing.T) {
	s := newTestServer(t, Options{})
	initialize(t, s)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, mcp.ProtocolVersion, health.Protocol)
	require.NotNil(t, health.Sessions)
	assert.Equal(t, 1, *health.Sessions)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), `"mcp":"/mcp"`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "learncatalog_session_opened_total 1")
}

func TestCORSPreflightAllowsSessionHeader(t *testing.T) {
	s := newTestServer(t, Options{AllowedOrigins: []string{"https://app.example"}})
	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", mcp.HeaderSessionID)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), mcp.HeaderSessionID)
}

func TestBearerTokenGuardsMCP(t *testing.T) {
	secret := []byte("s3cret")
	core, logs := observer.New(zap.InfoLevel)
	s := newTestServer(t, Options{JWTSecret: secret, Logger: zap.New(core)})
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`

	rec := s.do(exchange{method: http.MethodPost, body: body})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing token")

	tok, err := auth.SignJWT("client", secret, time.Minute)
	require.NoError(t, err)
	rec = s.do(exchange{method: http.MethodPost, body: body, headers: map[string]string{"Authorization": "Bearer " + tok}})
	assert.Equal(t, http.StatusOK, rec.Code)

	opened := logs.FilterMessage("session opened").All()
	require.Len(t, opened, 1)
	assert.Equal(t, "client", opened[0].ContextMap()["subject"])
	assert.Equal(t, rec.Header().Get(mcp.HeaderSessionID), opened[0].ContextMap()["session_id"])

	health := httptest.NewRecorder()
	s.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code, "health stays public")
}
