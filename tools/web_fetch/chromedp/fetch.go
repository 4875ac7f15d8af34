package chromedp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/models"
)

// Fetch renders pages in headless Chrome. Pages that only fill in their unit
// content from script are readable this way when a plain GET is not enough.
type Fetch struct {
	Timeout   time.Duration
	UserAgent string
}

func (f *Fetch) Fetch(ctx context.Context, url string) (*models.Page, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &models.FetchError{URL: url, Reason: models.ReasonScheme, Err: errors.New("empty url")}
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, finalURL, err := f.render(ctx, url)
	if err != nil {
		return nil, &models.FetchError{URL: url, Reason: models.ReasonTransport, Err: err}
	}

	// chromedp does not surface the document status; a rendered body counts as 200
	return &models.Page{
		URL:         url,
		FinalURL:    finalURL,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(html),
		Rendered:    true,
		FetchedAt:   time.Now(),
		Latency:     time.Since(t0),
	}, nil
}

func (f *Fetch) render(ctx context.Context, url string) (string, string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html, location string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, location, err
}
