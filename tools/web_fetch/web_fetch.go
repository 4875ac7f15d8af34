package web_fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/models"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "mcp-learn-catalog-scraper/1.0"
	DefaultMaxBodyBytes = 5 * 1024 * 1024
)

// WebFetcher retrieves a single page.
type WebFetcher interface {
	Fetch(ctx context.Context, url string) (*models.Page, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// Options is shared by all fetcher types; fields a type has no use for are ignored.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	RateRequests int
	RateWindow   time.Duration
	Hosts        HostPolicy
}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	var fetcher WebFetcher
	switch fetcherType {
	case HTTPFetcherType, "":
		f, err := httpfetch.New(httpfetch.Options{
			UserAgent:    opts.UserAgent,
			Timeout:      opts.Timeout,
			MaxBodyBytes: opts.MaxBodyBytes,
			Rate:         httpfetch.RateSettings{Requests: opts.RateRequests, Window: opts.RateWindow},
		})
		if err != nil {
			return nil, err
		}
		fetcher = f
	case ChromedpFetcherType:
		fetcher = &chromedp.Fetch{Timeout: opts.Timeout, UserAgent: opts.UserAgent}
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", fetcherType)
	}
	return WithHostPolicy(fetcher, opts.Hosts), nil
}
