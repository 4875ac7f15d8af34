package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mohammad-safakhou/learncatalog/catalog"
	"github.com/mohammad-safakhou/learncatalog/scraper"
	"go.uber.org/zap"
)

// CatalogQuerier is the catalog capability the tools depend on.
type CatalogQuerier interface {
	Query(ctx context.Context, f catalog.Filters) (catalog.Response, error)
}

// UnitScraper is the pipeline capability the tools depend on.
type UnitScraper interface {
	Run(ctx context.Context, req scraper.Request) ([]scraper.Outcome, error)
}

// Deps are the shared collaborators of every tool.
type Deps struct {
	Catalog       CatalogQuerier
	Scraper       UnitScraper
	DefaultLocale string
	Logger        *zap.Logger
	Observer      Observer
}

func (d Deps) withDefaults() Deps {
	if d.DefaultLocale == "" {
		d.DefaultLocale = catalog.DefaultLocale
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

func (d Deps) locale(requested string) string {
	if l := strings.TrimSpace(requested); l != "" {
		return l
	}
	return d.DefaultLocale
}

func (d Deps) definitions() []Descriptor {
	return []Descriptor{
		{
			Name:        "listCatalog",
			Description: "List Microsoft Learn objects by type (modules, units, learningPaths, appliedSkills, certifications, mergedCertifications, exams, courses, levels, roles, products, subjects).",
			InputSchema: json.RawMessage(listCatalogSchema),
			handler:     d.listCatalog,
		},
		{
			Name:        "searchCatalog",
			Description: "Search the Microsoft Learn catalog with API filters and an optional free-text q over title, summary and subtitle.",
			InputSchema: json.RawMessage(searchCatalogSchema),
			handler:     d.searchCatalog,
		},
		{
			Name:        "getDetail",
			Description: "Fetch one or more catalog objects by exact uid across all content types.",
			InputSchema: json.RawMessage(getDetailSchema),
			handler:     d.getDetail,
		},
		{
			Name:        "scrapeModuleUnits",
			Description: "Given a module (or firstUnitUrl and units), build each unit URL, fetch the pages and return 'number + title' with optional text excerpts.",
			InputSchema: json.RawMessage(scrapeModuleUnitsSchema),
			handler:     d.scrapeModuleUnits,
		},
		{
			Name:        "simpleTest",
			Description: "Echo a message back.",
			InputSchema: json.RawMessage(simpleTestSchema),
			handler:     d.simpleTest,
		},
		{
			Name:        "findByProduct",
			Description: "Find modules and learning paths for one or more products.",
			InputSchema: json.RawMessage(findByProductSchema),
			handler:     d.findByProduct,
		},
		{
			Name:        "findCertificationPath",
			Description: "Find learning paths that prepare for a certification.",
			InputSchema: json.RawMessage(findCertificationPathSchema),
			handler:     d.findCertificationPath,
		},
		{
			Name:        "getLearningPathDetails",
			Description: "Describe a learning path and optionally its modules.",
			InputSchema: json.RawMessage(getLearningPathDetailsSchema),
			handler:     d.getLearningPathDetails,
		},
		{
			Name:        "getAdvancedSearch",
			Description: "Search several collections at once with filters, a module duration range and sorting.",
			InputSchema: json.RawMessage(getAdvancedSearchSchema),
			handler:     d.getAdvancedSearch,
		},
		{
			Name:        "scrapeLearningPath",
			Description: "Walk a learning path's modules and optionally scrape the first units of each.",
			InputSchema: json.RawMessage(scrapeLearningPathSchema),
			handler:     d.scrapeLearningPath,
		},
	}
}

func (d Deps) simpleTest(_ context.Context, raw json.RawMessage) (*Result, error) {
	var args struct {
		Msg string `json:"msg"`
	}
	if err := decodeArgs("simpleTest", raw, &args); err != nil {
		return nil, err
	}
	return TextResult("Echo: " + args.Msg), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
