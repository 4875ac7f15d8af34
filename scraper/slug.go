package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

const uidPrefix = "learn.wwl."

var (
	moduleMarker  = regexp.MustCompile(`^(.*/modules/[^/]+)`)
	lastSegment   = regexp.MustCompile(`/[^/]*$`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChar   = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRun     = regexp.MustCompile(`-+`)
)

// UnitRef is a derived reference to one unit page of a module.
type UnitRef struct {
	Index int    `json:"index"`
	UID   string `json:"uid"`
	Slug  string `json:"slug"`
	URL   string `json:"url"`
}

// DeriveBase returns the module base URL for a unit URL. The query string and
// fragment are ignored. When the path contains a modules/<name> segment the URL
// is cut right after it, otherwise the final path segment is dropped. A trailing
// slash counts as an empty final segment.
func DeriveBase(referenceURL string) string {
	u := referenceURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if m := moduleMarker.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return lastSegment.ReplaceAllString(u, "")
}

// DeriveSlug maps a unit identifier such as "learn.wwl.foo.intro" to its URL
// slug ("intro").
func DeriveSlug(uid string) string {
	s := strings.TrimPrefix(uid, uidPrefix)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return NormalizeSlug(s)
}

// NormalizeSlug lowercases s and reduces it to [a-z0-9-] with single hyphens
// and no leading or trailing hyphen.
func NormalizeSlug(s string) string {
	s = strings.ToLower(s)
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = nonSlugChar.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// BuildURL joins a module base, a 1-based ordinal and a slug into a unit URL.
func BuildURL(base string, ordinal int, slug string) string {
	return base + "/" + strconv.Itoa(ordinal) + "-" + slug + "/"
}

// BuildReferences derives one UnitRef per identifier, in order, using ordinals
// starting at 1. An empty identifier list yields nil without parsing the URL.
func BuildReferences(referenceURL string, uids []string) []UnitRef {
	if len(uids) == 0 {
		return nil
	}
	base := DeriveBase(referenceURL)
	refs := make([]UnitRef, 0, len(uids))
	for i, uid := range uids {
		slug := DeriveSlug(uid)
		refs = append(refs, UnitRef{
			Index: i + 1,
			UID:   uid,
			Slug:  slug,
			URL:   BuildURL(base, i+1, slug),
		})
	}
	return refs
}
