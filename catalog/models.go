package catalog

import "strings"

// Item is one catalog entry. The catalog serves several shapes (modules,
// learning paths, certifications, taxonomy entries such as levels or roles)
// and Item carries the union of the fields the server reads.
type Item struct {
	UID               string   `json:"uid,omitempty"`
	ID                string   `json:"id,omitempty"`
	Type              string   `json:"type,omitempty"`
	Title             string   `json:"title,omitempty"`
	Name              string   `json:"name,omitempty"`
	Subtitle          string   `json:"subtitle,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	URL               string   `json:"url,omitempty"`
	Locale            string   `json:"locale,omitempty"`
	IconURL           string   `json:"icon_url,omitempty"`
	LastModified      string   `json:"last_modified,omitempty"`
	Levels            []string `json:"levels,omitempty"`
	Roles             []string `json:"roles,omitempty"`
	Products          []string `json:"products,omitempty"`
	Subjects          []string `json:"subjects,omitempty"`
	Units             []string `json:"units,omitempty"`
	Modules           []string `json:"modules,omitempty"`
	Children          []Item   `json:"children,omitempty"`
	FirstUnitURL      string   `json:"firstUnitUrl,omitempty"`
	FirstModuleURL    string   `json:"firstModuleUrl,omitempty"`
	NumberOfChildren  int      `json:"number_of_children,omitempty"`
	DurationInMinutes int      `json:"duration_in_minutes,omitempty"`
	Popularity        float64  `json:"popularity,omitempty"`
	Rating            *Rating  `json:"rating,omitempty"`
}

type Rating struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// DisplayTitle prefers the title and falls back to the taxonomy name.
func (it Item) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	return it.Name
}

// Key is the identifier used to look the item up again.
func (it Item) Key() string {
	if it.UID != "" {
		return it.UID
	}
	return it.ID
}

// ChildUIDs lists the identifiers of a path's modules. Older payloads only
// carry them as nested children.
func (it Item) ChildUIDs() []string {
	if len(it.Modules) > 0 {
		return it.Modules
	}
	out := make([]string, 0, len(it.Children))
	for _, c := range it.Children {
		if k := c.Key(); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Catalog item kinds accepted in the type filter.
const (
	KindModules              = "modules"
	KindUnits                = "units"
	KindLearningPaths        = "learningPaths"
	KindAppliedSkills        = "appliedSkills"
	KindCertifications       = "certifications"
	KindMergedCertifications = "mergedCertifications"
	KindExams                = "exams"
	KindCourses              = "courses"
	KindLevels               = "levels"
	KindRoles                = "roles"
	KindProducts             = "products"
	KindSubjects             = "subjects"
)

// certAlias is the short certification type some clients still send.
const certAlias = "cert"

// Kinds is every value accepted by the type filter, aliases included.
var Kinds = []string{
	KindModules, KindUnits, KindLearningPaths, KindAppliedSkills, KindCertifications, certAlias,
	KindMergedCertifications, KindExams, KindCourses, KindLevels, KindRoles, KindProducts, KindSubjects,
}

// NormalizeKind resolves aliases to the collection name used by the catalog.
func NormalizeKind(kind string) string {
	kind = strings.TrimSpace(kind)
	if kind == certAlias {
		return KindCertifications
	}
	return kind
}
