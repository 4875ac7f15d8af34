package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/learncatalog/catalog"
	"github.com/mohammad-safakhou/learncatalog/mcp"
	"github.com/mohammad-safakhou/learncatalog/mcp/tools"
	"github.com/mohammad-safakhou/learncatalog/scraper"
	"github.com/mohammad-safakhou/learncatalog/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ mcp.Observer           = (*Metrics)(nil)
	_ session.Observer       = (*Metrics)(nil)
	_ tools.Observer         = (*Metrics)(nil)
	_ catalog.StatusObserver = (*Metrics)(nil)
	_ scraper.Observer       = (*Metrics)(nil)
)

func TestSessionGaugeTracksLifecycle(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(session.ReasonExpired)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsClosed.WithLabelValues(session.ReasonExpired)))
}

func TestFetchInFlightReturnsToZero(t *testing.T) {
	m := New()
	m.FetchStarted()
	m.FetchStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetchInFlight))
	m.FetchFinished(scraper.ResultOK, time.Millisecond)
	m.FetchFinished(scraper.ResultHTTPError, time.Millisecond)
	assert.Zero(t, testutil.ToFloat64(m.fetchInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues(scraper.ResultHTTPError)))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.MessageHandled("tools/call", "request", "ok", 5*time.Millisecond)
	m.CatalogResponse(200, 10*time.Millisecond)
	m.ToolCalled("listCatalog", "ok", time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `learncatalog_mcp_messages_total{kind="request",method="tools/call",outcome="ok"} 1`)
	assert.Contains(t, text, `learncatalog_catalog_responses_total{status="200"} 1`)
	assert.Contains(t, text, `learncatalog_tools_calls_total{outcome="ok",tool="listCatalog"} 1`)
	assert.Contains(t, text, "go_goroutines")
}
