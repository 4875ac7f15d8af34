package models

import (
	"fmt"
	"net/http"
	"time"
)

// Page is a fetched document as returned by a fetcher. A non-2xx status is
// reported here rather than as an error.
type Page struct {
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url"`
	StatusCode  int           `json:"status"`
	ContentType string        `json:"content_type"`
	Headers     http.Header   `json:"-"`
	Body        []byte        `json:"-"`
	Rendered    bool          `json:"rendered"`
	FetchedAt   time.Time     `json:"fetched_at"`
	Latency     time.Duration `json:"latency"`
}

// OK reports whether the page was served with a 2xx status.
func (p *Page) OK() bool {
	return p != nil && p.StatusCode >= 200 && p.StatusCode < 300
}

// Reasons carried by FetchError.
const (
	ReasonScheme       = "scheme"
	ReasonHostPolicy   = "host_policy"
	ReasonRateLimit    = "rate_limit"
	ReasonTransport    = "transport"
	ReasonDecode       = "decode"
	ReasonBodyTooLarge = "body_too_large"
)

// FetchError is a fetch that produced no usable page. Status is the upstream
// status when a response arrived before the failure, otherwise zero.
type FetchError struct {
	URL    string
	Reason string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
