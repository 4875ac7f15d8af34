package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/learncatalog/catalog"
	"github.com/mohammad-safakhou/learncatalog/scraper"
	"go.uber.org/zap"
)

// Units scraped per module and their excerpt size when a learning path is
// walked with text.
const (
	pathUnitsPerModule = 3
	pathExcerptChars   = 500
	defaultPathModules = 5
)

type moduleRef struct {
	UID              string   `json:"uid"`
	FirstUnitURL     string   `json:"firstUnitUrl"`
	Units            []string `json:"units"`
	NumberOfChildren *int     `json:"number_of_children"`
}

func (d Deps) scrapeModuleUnits(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args struct {
		Module          *moduleRef `json:"module"`
		FirstUnitURL    string     `json:"firstUnitUrl"`
		Units           []string   `json:"units"`
		WithTextExcerpt bool       `json:"with_text_excerpt"`
		MaxCharsExcerpt int        `json:"max_chars_excerpt"`
		MaxUnits        *int       `json:"max_units"`
	}
	if err := decodeArgs("scrapeModuleUnits", raw, &args); err != nil {
		return nil, err
	}

	reference, units := args.FirstUnitURL, args.Units
	var uid string
	if m := args.Module; m != nil {
		uid = m.UID
		if m.FirstUnitURL != "" {
			reference = m.FirstUnitURL
		}
		if len(m.Units) > 0 {
			units = m.Units
		}
		if m.NumberOfChildren != nil && *m.NumberOfChildren != len(units) {
			d.Logger.Warn("module child count differs from its unit list, using the list",
				zap.String("module", m.UID),
				zap.Int("number_of_children", *m.NumberOfChildren),
				zap.Int("units", len(units)))
		}
	}

	limit := args.MaxCharsExcerpt
	if limit <= 0 {
		limit = scraper.DefaultExcerptChars
	}
	outcomes, err := d.Scraper.Run(ctx, scraper.Request{
		ReferenceURL:    reference,
		Identifiers:     units,
		MaxUnits:        args.MaxUnits,
		WithExcerpt:     args.WithTextExcerpt,
		MaxExcerptChars: limit,
	})
	if err != nil {
		if errors.Is(err, scraper.ErrMissingInput) {
			return nil, &ArgumentError{Tool: "scrapeModuleUnits", Err: err}
		}
		return nil, err
	}

	payload := struct {
		Module  string            `json:"module,omitempty"`
		Base    string            `json:"base"`
		Count   int               `json:"count"`
		Units   []scraper.Outcome `json:"units"`
		Listing []string          `json:"listing"`
	}{
		Module:  uid,
		Base:    scraper.DeriveBase(reference),
		Count:   len(outcomes),
		Units:   outcomes,
		Listing: listing(outcomes),
	}
	res, err := JSONResult(payload)
	if err != nil {
		return nil, err
	}
	res.Content = append([]Content{{Type: "text", Text: strings.Join(payload.Listing, "\n")}}, res.Content...)
	return res, nil
}

// listing renders "N. title" per unit, or the failure with its status.
func listing(outcomes []scraper.Outcome) []string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK {
			lines = append(lines, fmt.Sprintf("%d. %s", o.Index, o.Title))
			continue
		}
		status := "network"
		if o.Status != 0 {
			status = fmt.Sprint(o.Status)
		}
		lines = append(lines, fmt.Sprintf("%d. [ERROR %s] %s", o.Index, status, o.Slug))
	}
	return lines
}

type pathModule struct {
	UID         string            `json:"uid"`
	Title       string            `json:"title"`
	URL         string            `json:"url,omitempty"`
	Duration    int               `json:"duration_in_minutes,omitempty"`
	UnitCount   int               `json:"unitCount"`
	Units       []scraper.Outcome `json:"units,omitempty"`
	ScrapeError string            `json:"scrapeError,omitempty"`
}

func (d Deps) scrapeLearningPath(ctx context.Context, raw json.RawMessage) (*Result, error) {
	args := struct {
		PathUID     string `json:"pathUid"`
		Locale      string `json:"locale"`
		IncludeText bool   `json:"includeText"`
		MaxModules  int    `json:"maxModules"`
	}{MaxModules: defaultPathModules}
	if err := decodeArgs("scrapeLearningPath", raw, &args); err != nil {
		return nil, err
	}
	locale := d.locale(args.Locale)
	path, err := d.lookupPath(ctx, "scrapeLearningPath", args.PathUID, locale)
	if err != nil {
		return nil, err
	}

	children := path.ChildUIDs()
	if args.MaxModules > 0 && len(children) > args.MaxModules {
		children = children[:args.MaxModules]
	}
	mods, err := d.modulesByUID(ctx, children, locale)
	if err != nil {
		return nil, err
	}

	out := make([]pathModule, 0, len(mods))
	for _, m := range mods {
		pm := pathModule{
			UID:       m.Key(),
			Title:     m.DisplayTitle(),
			URL:       m.URL,
			Duration:  m.DurationInMinutes,
			UnitCount: len(m.Units),
		}
		if args.IncludeText {
			pm.Units, pm.ScrapeError = d.scrapeFirstUnits(ctx, m)
		}
		out = append(out, pm)
	}

	return JSONResult(map[string]any{
		"uid":         path.Key(),
		"title":       path.DisplayTitle(),
		"url":         path.URL,
		"moduleCount": len(path.ChildUIDs()),
		"modules":     out,
	})
}

func (d Deps) scrapeFirstUnits(ctx context.Context, m catalog.Item) ([]scraper.Outcome, string) {
	reference := m.FirstUnitURL
	if reference == "" {
		reference = m.URL
	}
	n := pathUnitsPerModule
	outcomes, err := d.Scraper.Run(ctx, scraper.Request{
		ReferenceURL:    reference,
		Identifiers:     m.Units,
		MaxUnits:        &n,
		WithExcerpt:     true,
		MaxExcerptChars: pathExcerptChars,
	})
	if err != nil {
		d.Logger.Warn("module scrape skipped", zap.String("module", m.Key()), zap.Error(err))
		return nil, err.Error()
	}
	return outcomes, ""
}
