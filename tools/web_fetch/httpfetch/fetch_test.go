package httpfetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = "<html><body><main><h1>Hello</h1></main></body></html>"

func TestFetchDecodesContentEncodings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "learncatalog-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/gzip":
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write([]byte(page))
			_ = zw.Close()
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(buf.Bytes())
		case "/br":
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, _ = bw.Write([]byte(page))
			_ = bw.Close()
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(buf.Bytes())
		default:
			_, _ = w.Write([]byte(page))
		}
	}))
	defer srv.Close()

	f, err := New(Options{UserAgent: "learncatalog-test"})
	require.NoError(t, err)

	for _, path := range []string{"/plain", "/gzip", "/br"} {
		p, err := f.Fetch(context.Background(), srv.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusOK, p.StatusCode, path)
		assert.True(t, p.OK(), path)
		assert.Equal(t, page, string(p.Body), path)
	}
}

func TestFetchReturnsNonSuccessAsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, err := New(Options{})
	require.NoError(t, err)

	p, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, p.StatusCode)
	assert.False(t, p.OK())
}

func TestFetchBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f, err := New(Options{MaxBodyBytes: 16})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrBodyTooLarge)
	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, models.ReasonBodyTooLarge, fe.Reason)
	assert.Equal(t, http.StatusOK, fe.Status)
}

func TestFetchBodyLimitAppliesAfterDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(strings.Repeat("x", 4096)))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f, err := New(Options{MaxBodyBytes: 1024})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetchRejectsUnknownEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write([]byte("??"))
	}))
	defer srv.Close()

	f, err := New(Options{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, models.ReasonDecode, fe.Reason)
}

func TestFetchRejectsBadScheme(t *testing.T) {
	f, err := New(Options{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "ftp://example.com/file")
	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, models.ReasonScheme, fe.Reason)
}

func TestHostLimiter(t *testing.T) {
	assert.Nil(t, NewHostLimiter(RateSettings{}))
	var nilLimiter *HostLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "example.com"))

	l := NewHostLimiter(RateSettings{Requests: 1, Window: time.Hour})
	require.NotNil(t, l)
	require.NoError(t, l.Wait(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "EXAMPLE.com"))
	assert.NoError(t, l.Wait(context.Background(), "other.example.com"))
}
