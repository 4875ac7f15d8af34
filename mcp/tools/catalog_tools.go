package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/learncatalog/catalog"
	"github.com/mohammad-safakhou/learncatalog/internal/helpers"
	"go.uber.org/zap"
)

// Items per product and collection returned by findByProduct and
// findCertificationPath.
const previewItems = 10

// Module details fetched for a learning path in one call.
const maxPathModules = 10

var defaultSearchKinds = []string{
	catalog.KindModules, catalog.KindLearningPaths, catalog.KindAppliedSkills, catalog.KindCertifications,
	catalog.KindMergedCertifications, catalog.KindExams, catalog.KindCourses, catalog.KindUnits,
}

// itemSummary is the compact record tools return for catalog items.
type itemSummary struct {
	UID               string   `json:"uid,omitempty"`
	Title             string   `json:"title"`
	Type              string   `json:"type,omitempty"`
	URL               string   `json:"url,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	Levels            []string `json:"levels,omitempty"`
	Roles             []string `json:"roles,omitempty"`
	Products          []string `json:"products,omitempty"`
	DurationInMinutes int      `json:"duration_in_minutes,omitempty"`
}

func summarize(kind string, it catalog.Item) itemSummary {
	t := it.Type
	if t == "" {
		t = kind
	}
	title := it.DisplayTitle()
	if title == "" {
		title = "Unknown"
	}
	return itemSummary{
		UID:               it.Key(),
		Title:             title,
		Type:              t,
		URL:               it.URL,
		Summary:           helpers.PlainText(it.Summary),
		Levels:            it.Levels,
		Roles:             it.Roles,
		Products:          it.Products,
		DurationInMinutes: it.DurationInMinutes,
	}
}

func summarizeAll(kind string, items []catalog.Item) []itemSummary {
	out := make([]itemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, summarize(kind, it))
	}
	return out
}

func (d Deps) listCatalog(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args struct {
		Type       string `json:"type"`
		Locale     string `json:"locale"`
		MaxResults int    `json:"max_results"`
	}
	if err := decodeArgs("listCatalog", raw, &args); err != nil {
		return nil, err
	}
	data, err := d.Catalog.Query(ctx, catalog.Filters{"type": args.Type, "locale": d.locale(args.Locale)})
	if err != nil {
		return nil, err
	}
	kind := catalog.NormalizeKind(args.Type)
	items := data.Items(kind)
	return JSONResult(map[string]any{
		"type":  kind,
		"count": len(items),
		"items": summarizeAll(kind, catalog.Limit(items, args.MaxResults)),
	})
}

func (d Deps) searchCatalog(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args struct {
		Type         string `json:"type"`
		Locale       string `json:"locale"`
		Level        string `json:"level"`
		Role         string `json:"role"`
		Product      string `json:"product"`
		Subject      string `json:"subject"`
		Popularity   string `json:"popularity"`
		LastModified string `json:"last_modified"`
		Q            string `json:"q"`
		MaxResults   int    `json:"max_results"`
	}
	if err := decodeArgs("searchCatalog", raw, &args); err != nil {
		return nil, err
	}
	data, err := d.Catalog.Query(ctx, catalog.Filters{
		"type":          args.Type,
		"locale":        d.locale(args.Locale),
		"level":         args.Level,
		"role":          args.Role,
		"product":       args.Product,
		"subject":       args.Subject,
		"popularity":    args.Popularity,
		"last_modified": args.LastModified,
	})
	if err != nil {
		return nil, err
	}

	kinds := splitList(args.Type)
	if len(kinds) == 0 {
		kinds = defaultSearchKinds
	}
	var results []itemSummary
	for _, kind := range kinds {
		results = append(results, summarizeAll(catalog.NormalizeKind(kind), catalog.FilterText(data.Items(kind), args.Q))...)
	}
	total := len(results)
	if args.MaxResults > 0 && len(results) > args.MaxResults {
		results = results[:args.MaxResults]
	}
	if results == nil {
		results = []itemSummary{}
	}
	return JSONResult(map[string]any{"count": total, "items": results})
}

func (d Deps) getDetail(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args struct {
		UID    string `json:"uid"`
		Locale string `json:"locale"`
		Type   string `json:"type"`
	}
	if err := decodeArgs("getDetail", raw, &args); err != nil {
		return nil, err
	}
	data, err := d.Catalog.Query(ctx, catalog.Filters{"uid": args.UID, "locale": d.locale(args.Locale), "type": args.Type})
	if err != nil {
		return nil, err
	}

	aggregates := make(map[string][]catalog.Item)
	var b strings.Builder
	for _, kind := range data.Kinds() {
		items := data[kind]
		aggregates[kind] = items
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# %s\n\n", heading(kind))
		for _, it := range items {
			summary := helpers.PlainText(it.Summary)
			if summary == "" {
				summary = "No description available"
			}
			link := it.URL
			if link == "" {
				link = "No URL available"
			}
			fmt.Fprintf(&b, "## %s\n\n%s\n\nURL: %s\n\n", it.DisplayTitle(), summary, link)
		}
	}
	if b.Len() == 0 {
		b.WriteString("No catalog objects matched " + args.UID)
	}
	return &Result{
		Content:           []Content{{Type: "text", Text: strings.TrimSpace(b.String())}},
		StructuredContent: aggregates,
	}, nil
}

type productGroup struct {
	Product string        `json:"product"`
	Type    string        `json:"type"`
	Count   int           `json:"count"`
	Items   []itemSummary `json:"items"`
}

func (d Deps) findByProduct(ctx context.Context, raw json.RawMessage) (*Result, error) {
	args := struct {
		ProductNames   string `json:"productNames"`
		Locale         string `json:"locale"`
		IncludeModules bool   `json:"includeModules"`
		IncludePaths   bool   `json:"includePaths"`
	}{IncludeModules: true, IncludePaths: true}
	if err := decodeArgs("findByProduct", raw, &args); err != nil {
		return nil, err
	}
	products := splitList(args.ProductNames)
	if len(products) == 0 {
		return nil, &ArgumentError{Tool: "findByProduct", Err: fmt.Errorf("productNames has no product ids")}
	}

	var kinds []string
	if args.IncludeModules {
		kinds = append(kinds, catalog.KindModules)
	}
	if args.IncludePaths {
		kinds = append(kinds, catalog.KindLearningPaths)
	}

	groups := []productGroup{}
	for _, product := range products {
		for _, kind := range kinds {
			data, err := d.Catalog.Query(ctx, catalog.Filters{"type": kind, "locale": d.locale(args.Locale), "product": product})
			if err != nil {
				return nil, err
			}
			items := data.Items(kind)
			if len(items) == 0 {
				continue
			}
			groups = append(groups, productGroup{
				Product: product,
				Type:    kind,
				Count:   len(items),
				Items:   summarizeAll(kind, catalog.Limit(items, previewItems)),
			})
		}
	}
	return JSONResult(groups)
}

type certificationPaths struct {
	Certification struct {
		UID      string   `json:"uid"`
		Title    string   `json:"title"`
		URL      string   `json:"url,omitempty"`
		Products []string `json:"products"`
	} `json:"certification"`
	Count         int           `json:"count"`
	LearningPaths []itemSummary `json:"learningPaths"`
}

func (d Deps) findCertificationPath(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args struct {
		CertificationName string `json:"certificationName"`
		Locale            string `json:"locale"`
	}
	if err := decodeArgs("findCertificationPath", raw, &args); err != nil {
		return nil, err
	}
	locale := d.locale(args.Locale)
	data, err := d.Catalog.Query(ctx, catalog.Filters{"type": catalog.KindCertifications, "locale": locale})
	if err != nil {
		return nil, err
	}
	certs := catalog.Limit(catalog.FilterText(data.Items(catalog.KindCertifications), args.CertificationName), previewItems)

	results := []certificationPaths{}
	for _, cert := range certs {
		if len(cert.Products) == 0 {
			continue
		}
		paths, err := d.Catalog.Query(ctx, catalog.Filters{
			"type":    catalog.KindLearningPaths,
			"locale":  locale,
			"product": strings.Join(cert.Products, ","),
		})
		if err != nil {
			return nil, err
		}
		var entry certificationPaths
		entry.Certification.UID = cert.Key()
		entry.Certification.Title = cert.DisplayTitle()
		entry.Certification.URL = cert.URL
		entry.Certification.Products = cert.Products
		items := paths.Items(catalog.KindLearningPaths)
		entry.Count = len(items)
		entry.LearningPaths = summarizeAll(catalog.KindLearningPaths, catalog.Limit(items, previewItems))
		results = append(results, entry)
	}
	return JSONResult(results)
}

// lookupPath resolves a learning path, accepting a module uid as well.
func (d Deps) lookupPath(ctx context.Context, tool, uid, locale string) (catalog.Item, error) {
	data, err := d.Catalog.Query(ctx, catalog.Filters{"uid": uid, "locale": locale})
	if err != nil {
		return catalog.Item{}, err
	}
	if paths := data.Items(catalog.KindLearningPaths); len(paths) > 0 {
		return paths[0], nil
	}
	if mods := data.Items(catalog.KindModules); len(mods) > 0 {
		return mods[0], nil
	}
	return catalog.Item{}, &ArgumentError{Tool: tool, Err: fmt.Errorf("learning path not found: %s", uid)}
}

// modulesByUID loads the given modules in one catalog call and returns them
// in the requested order. Unknown uids are skipped.
func (d Deps) modulesByUID(ctx context.Context, uids []string, locale string) ([]catalog.Item, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	data, err := d.Catalog.Query(ctx, catalog.Filters{
		"type":   catalog.KindModules,
		"uid":    strings.Join(uids, ","),
		"locale": locale,
	})
	if err != nil {
		return nil, err
	}
	byUID := make(map[string]catalog.Item)
	for _, m := range data.Items(catalog.KindModules) {
		byUID[m.Key()] = m
	}
	out := make([]catalog.Item, 0, len(uids))
	for _, uid := range uids {
		if m, ok := byUID[uid]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type pathDetails struct {
	UID           string        `json:"uid"`
	Title         string        `json:"title"`
	Summary       string        `json:"summary,omitempty"`
	URL           string        `json:"url,omitempty"`
	Duration      int           `json:"duration_in_minutes,omitempty"`
	Levels        []string      `json:"levels,omitempty"`
	Roles         []string      `json:"roles,omitempty"`
	Products      []string      `json:"products,omitempty"`
	Subjects      []string      `json:"subjects,omitempty"`
	ModuleCount   int           `json:"moduleCount"`
	Modules       []string      `json:"modules"`
	ModuleDetails []itemSummary `json:"moduleDetails,omitempty"`
}

func (d Deps) getLearningPathDetails(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args struct {
		PathUID              string `json:"pathUid"`
		Locale               string `json:"locale"`
		IncludeModuleDetails bool   `json:"includeModuleDetails"`
	}
	if err := decodeArgs("getLearningPathDetails", raw, &args); err != nil {
		return nil, err
	}
	locale := d.locale(args.Locale)
	path, err := d.lookupPath(ctx, "getLearningPathDetails", args.PathUID, locale)
	if err != nil {
		return nil, err
	}

	children := path.ChildUIDs()
	out := pathDetails{
		UID:         path.Key(),
		Title:       path.DisplayTitle(),
		Summary:     helpers.PlainText(path.Summary),
		URL:         path.URL,
		Duration:    path.DurationInMinutes,
		Levels:      path.Levels,
		Roles:       path.Roles,
		Products:    path.Products,
		Subjects:    path.Subjects,
		ModuleCount: path.NumberOfChildren,
		Modules:     children,
	}
	if out.ModuleCount == 0 {
		out.ModuleCount = len(children)
	}

	if args.IncludeModuleDetails && len(children) > 0 {
		uids := children
		if len(uids) > maxPathModules {
			uids = uids[:maxPathModules]
		}
		mods, err := d.modulesByUID(ctx, uids, locale)
		if err != nil {
			// details are best effort, the path itself is still useful
			d.Logger.Warn("module details unavailable", zap.String("path", path.Key()), zap.Error(err))
		}
		out.ModuleDetails = summarizeAll(catalog.KindModules, mods)
	}
	return JSONResult(out)
}

type searchGroup struct {
	Type  string        `json:"type"`
	Count int           `json:"count"`
	Items []itemSummary `json:"items"`
}

func (d Deps) getAdvancedSearch(ctx context.Context, raw json.RawMessage) (*Result, error) {
	args := struct {
		Query      string `json:"query"`
		Types      string `json:"types"`
		Locale     string `json:"locale"`
		Level      string `json:"level"`
		Role       string `json:"role"`
		Product    string `json:"product"`
		Subject    string `json:"subject"`
		Duration   string `json:"duration"`
		Sort       string `json:"sort"`
		MaxResults int    `json:"max_results"`
	}{Types: "modules,learningPaths", MaxResults: 20}
	if err := decodeArgs("getAdvancedSearch", raw, &args); err != nil {
		return nil, err
	}

	kinds := splitList(args.Types)
	if len(kinds) == 0 {
		return nil, &ArgumentError{Tool: "getAdvancedSearch", Err: fmt.Errorf("types has no collections")}
	}
	var durations *catalog.DurationRange
	if strings.TrimSpace(args.Duration) != "" {
		r, err := catalog.ParseDurationRange(args.Duration)
		if err != nil {
			return nil, &ArgumentError{Tool: "getAdvancedSearch", Err: err}
		}
		durations = &r
	}
	perKind := args.MaxResults / len(kinds)
	if perKind < 1 {
		perKind = 1
	}

	groups := []searchGroup{}
	for _, kind := range kinds {
		data, err := d.Catalog.Query(ctx, catalog.Filters{
			"type":    kind,
			"locale":  d.locale(args.Locale),
			"level":   args.Level,
			"role":    args.Role,
			"product": args.Product,
			"subject": args.Subject,
		})
		if err != nil {
			return nil, err
		}
		items := catalog.FilterText(data.Items(kind), args.Query)
		if durations != nil && catalog.NormalizeKind(kind) == catalog.KindModules {
			items = catalog.FilterDuration(items, *durations)
		}
		if len(items) == 0 {
			continue
		}
		items = catalog.SortBy(items, args.Sort)
		groups = append(groups, searchGroup{
			Type:  catalog.NormalizeKind(kind),
			Count: len(items),
			Items: summarizeAll(kind, catalog.Limit(items, perKind)),
		})
	}
	return JSONResult(groups)
}

// heading capitalises a collection key for markdown output.
func heading(kind string) string {
	if kind == "" {
		return "Items"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}
