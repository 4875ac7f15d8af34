package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://learn.microsoft.com/api/catalog/"
	DefaultLocale    = "en-us"
	DefaultUserAgent = "mcp-learn-catalog-http/1.0 (+https://learn.microsoft.com/api/catalog/)"
	DefaultTimeout   = 30 * time.Second

	maxErrorBody = 4096
)

// Filters is the flat set of query parameters understood by the catalog:
// type, locale, uid, level, role, product, subject, popularity, last_modified.
// Blank values are dropped.
type Filters map[string]string

// Encode renders the non-blank filters as a sorted query string.
func (f Filters) Encode() string {
	v := url.Values{}
	for k, val := range f {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		if k == "type" {
			val = normalizeKinds(val)
		}
		v.Set(k, val)
	}
	return v.Encode()
}

func normalizeKinds(list string) string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = NormalizeKind(p)
	}
	return strings.Join(parts, ",")
}

// Response holds every array-valued collection of a catalog reply, keyed by
// collection name.
type Response map[string][]Item

// Items returns the collection for kind, resolving aliases.
func (r Response) Items(kind string) []Item {
	return r[NormalizeKind(kind)]
}

// Kinds lists the non-empty collections in a stable order.
func (r Response) Kinds() []string {
	out := make([]string, 0, len(r))
	for k, items := range r {
		if len(items) > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// APIError reports a non-2xx catalog reply.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog api returned %d: %s", e.Status, e.Body)
}

// StatusObserver is told about every completed catalog call.
type StatusObserver interface {
	CatalogResponse(status int, elapsed time.Duration)
}

type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Observer   StatusObserver
}

// Client queries the public Learn catalog.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *zap.Logger
	observer  StatusObserver
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		http:      opts.HTTPClient,
		logger:    opts.Logger,
		observer:  opts.Observer,
	}
}

// Query performs one catalog GET. Non-array members of the reply are ignored.
func (c *Client) Query(ctx context.Context, f Filters) (Response, error) {
	target := c.baseURL
	if q := f.Encode(); q != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + q
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()
	if c.observer != nil {
		c.observer.CatalogResponse(resp.StatusCode, time.Since(start))
	}
	c.logger.Debug("catalog query", zap.String("url", target), zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	out := make(Response, len(raw))
	for key, msg := range raw {
		trimmed := strings.TrimSpace(string(msg))
		if !strings.HasPrefix(trimmed, "[") {
			continue
		}
		var items []Item
		if err := json.Unmarshal(msg, &items); err != nil {
			c.logger.Warn("skipping undecodable catalog collection", zap.String("collection", key), zap.Error(err))
			continue
		}
		out[key] = items
	}
	return out, nil
}
