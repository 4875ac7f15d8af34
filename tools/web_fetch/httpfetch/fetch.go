package httpfetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/models"
)

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Headers      map[string]string
	Timeout      time.Duration
	MaxBodyBytes int64
	Rate         RateSettings
	// Client replaces the default client, mostly for tests.
	Client *http.Client
}

// Fetcher downloads pages with a plain GET.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	extraHeaders map[string]string
	maxBodyBytes int64
	limiter      *HostLimiter
}

// New constructs an HTTP fetcher using the provided options.
func New(opts Options) (*Fetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024
	}

	client := opts.Client
	if client == nil {
		transport := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		client = &http.Client{Timeout: opts.Timeout, Transport: transport}
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Fetcher{
		client:       client,
		userAgent:    opts.UserAgent,
		extraHeaders: headers,
		maxBodyBytes: opts.MaxBodyBytes,
		limiter:      NewHostLimiter(opts.Rate),
	}, nil
}

// ErrBodyTooLarge is wrapped in a FetchError when a page exceeds
// MaxBodyBytes after decoding.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// Fetch downloads a single URL. Any status code is returned as a page; other
// failures come back as *models.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.Page, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, &models.FetchError{URL: rawURL, Reason: models.ReasonScheme, Err: err}
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, &models.FetchError{URL: rawURL, Reason: models.ReasonScheme, Err: fmt.Errorf("unsupported url scheme %q", target.Scheme)}
	}
	if err := f.limiter.Wait(ctx, target.Hostname()); err != nil {
		return nil, &models.FetchError{URL: rawURL, Reason: models.ReasonRateLimit, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &models.FetchError{URL: rawURL, Reason: models.ReasonTransport, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range f.extraHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &models.FetchError{URL: rawURL, Reason: models.ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	body, reason, err := f.readBody(resp)
	if err != nil {
		return nil, &models.FetchError{URL: rawURL, Reason: reason, Status: resp.StatusCode, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &models.Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header.Clone(),
		Body:        body,
		FetchedAt:   time.Now(),
		Latency:     time.Since(start),
	}, nil
}

const acceptEncoding = "gzip, deflate, br"

// decoders wrap a body for each Content-Encoding we advertise.
var decoders = map[string]func(io.Reader) (io.ReadCloser, error){
	"":         func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
	"identity": func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
	"gzip":     func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
	"deflate":  func(r io.Reader) (io.ReadCloser, error) { return flate.NewReader(r), nil },
	"br":       func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(brotli.NewReader(r)), nil },
}

// readBody decodes and caps the body. The cap applies to decoded bytes so a
// small compressed payload cannot expand past MaxBodyBytes.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, string, error) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	decode, ok := decoders[encoding]
	if !ok {
		return nil, models.ReasonDecode, fmt.Errorf("unsupported content encoding %q", encoding)
	}
	r, err := decode(resp.Body)
	if err != nil {
		return nil, models.ReasonDecode, err
	}
	defer r.Close()

	body, err := io.ReadAll(io.LimitReader(r, f.maxBodyBytes+1))
	if err != nil {
		return nil, models.ReasonDecode, err
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, models.ReasonBodyTooLarge, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}
	return body, "", nil
}
