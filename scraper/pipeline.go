package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/models"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MaxInFlight bounds concurrent page fetches across every Run of a Pipeline.
const MaxInFlight = 4

// ErrMissingInput is returned before any fetch when the reference URL or the
// identifier list is absent.
var ErrMissingInput = errors.New("scraper: a first unit url and at least one unit identifier are required")

// Fetcher retrieves one page. Non-2xx responses come back as pages.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.Page, error)
}

// Observer receives fetch lifecycle events, typically for metrics.
type Observer interface {
	FetchStarted()
	FetchFinished(result string, elapsed time.Duration)
}

// Fetch results reported to an Observer.
const (
	ResultOK           = "ok"
	ResultHTTPError    = "http_error"
	ResultNetworkError = "network_error"
	ResultParseError   = "parse_error"
)

// Request describes one module scrape.
type Request struct {
	ReferenceURL string
	Identifiers  []string
	// MaxUnits keeps only the first N units when set. N <= 0 scrapes nothing.
	MaxUnits        *int
	WithExcerpt     bool
	MaxExcerptChars int
}

// Outcome is the per-unit result. Failures are recorded, never returned.
type Outcome struct {
	Index   int    `json:"index"`
	UID     string `json:"uid"`
	Slug    string `json:"slug"`
	URL     string `json:"url"`
	OK      bool   `json:"ok"`
	Status  int    `json:"status,omitempty"`
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"text_excerpt,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Pipeline fetches unit pages with bounded concurrency and extracts their
// title and text.
type Pipeline struct {
	fetcher  Fetcher
	parser   Parser
	gate     *semaphore.Weighted
	logger   *zap.Logger
	observer Observer
}

type Option func(*Pipeline)

func WithParser(p Parser) Option { return func(pl *Pipeline) { pl.parser = p } }

func WithLogger(l *zap.Logger) Option { return func(pl *Pipeline) { pl.logger = l } }

func WithObserver(o Observer) Option { return func(pl *Pipeline) { pl.observer = o } }

// WithConcurrency lowers the fetch gate below MaxInFlight. Values outside
// 1..MaxInFlight are ignored.
func WithConcurrency(n int) Option {
	return func(pl *Pipeline) {
		if n >= 1 && n <= MaxInFlight {
			pl.gate = semaphore.NewWeighted(int64(n))
		}
	}
}

func NewPipeline(fetcher Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: fetcher,
		parser:  GoqueryParser{},
		gate:    semaphore.NewWeighted(MaxInFlight),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run scrapes every referenced unit and returns one outcome per unit, ordered
// by ordinal. Fetches are admitted in input order. Once admitted they run to
// completion even if ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, req Request) ([]Outcome, error) {
	if strings.TrimSpace(req.ReferenceURL) == "" || len(req.Identifiers) == 0 {
		return nil, ErrMissingInput
	}

	refs := BuildReferences(req.ReferenceURL, req.Identifiers)
	if req.MaxUnits != nil {
		n := *req.MaxUnits
		if n <= 0 {
			return []Outcome{}, nil
		}
		if n < len(refs) {
			refs = refs[:n]
		}
	}
	limit := req.MaxExcerptChars
	if limit <= 0 {
		limit = DefaultExcerptChars
	}

	fetchCtx := context.WithoutCancel(ctx)
	out := make([]Outcome, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		// the context never cancels, so Acquire only returns once a permit is free
		_ = p.gate.Acquire(fetchCtx, 1)
		wg.Add(1)
		go func(i int, ref UnitRef) {
			defer wg.Done()
			defer p.gate.Release(1)
			defer func() {
				if r := recover(); r != nil {
					out[i] = failed(ref, 0, fmt.Sprintf("panic: %v", r))
				}
			}()
			out[i] = p.scrape(fetchCtx, ref, req.WithExcerpt, limit)
		}(i, ref)
	}
	wg.Wait()
	return out, nil
}

func (p *Pipeline) scrape(ctx context.Context, ref UnitRef, withExcerpt bool, limit int) Outcome {
	start := time.Now()
	if p.observer != nil {
		p.observer.FetchStarted()
	}
	result := ResultOK
	defer func() {
		if p.observer != nil {
			p.observer.FetchFinished(result, time.Since(start))
		}
	}()

	page, err := p.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		result = ResultNetworkError
		fields := []zap.Field{zap.String("url", ref.URL), zap.Error(err)}
		var fe *models.FetchError
		if errors.As(err, &fe) {
			fields = append(fields, zap.String("reason", fe.Reason), zap.Int("status", fe.Status))
		}
		p.logger.Warn("unit fetch failed", fields...)
		return failed(ref, 0, err.Error())
	}
	if !page.OK() {
		result = ResultHTTPError
		p.logger.Warn("unit fetch returned non-success status", zap.String("url", ref.URL), zap.Int("status", page.StatusCode))
		return failed(ref, page.StatusCode, "")
	}

	doc, err := p.parser.Parse(page.Body)
	if err != nil {
		result = ResultParseError
		p.logger.Warn("unit page could not be parsed", zap.String("url", ref.URL), zap.Error(err))
		return failed(ref, page.StatusCode, err.Error())
	}

	o := Outcome{
		Index:  ref.Index,
		UID:    ref.UID,
		Slug:   ref.Slug,
		URL:    ref.URL,
		OK:     true,
		Status: page.StatusCode,
		Title:  ExtractTitle(doc, ref.Slug),
	}
	if withExcerpt {
		o.Excerpt = ExtractExcerpt(doc, limit)
	}
	return o
}

func failed(ref UnitRef, status int, msg string) Outcome {
	return Outcome{
		Index:  ref.Index,
		UID:    ref.UID,
		Slug:   ref.Slug,
		URL:    ref.URL,
		Status: status,
		Error:  msg,
	}
}
