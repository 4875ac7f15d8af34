package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MatchesText reports whether q occurs, case-insensitively, in the item's
// title, summary or subtitle. An empty q matches everything.
func MatchesText(it Item, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, field := range []string{it.DisplayTitle(), it.Summary, it.Subtitle} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// FilterText keeps the items matching q.
func FilterText(items []Item, q string) []Item {
	if strings.TrimSpace(q) == "" {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if MatchesText(it, q) {
			out = append(out, it)
		}
	}
	return out
}

// Limit returns at most n items. n <= 0 means no limit.
func Limit(items []Item, n int) []Item {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// DurationRange is an inclusive minute range such as "10-30".
type DurationRange struct {
	Min int
	Max int
}

// ParseDurationRange parses "min-max". Either bound may be omitted ("-30",
// "60-") to leave that side open.
func ParseDurationRange(s string) (DurationRange, error) {
	s = strings.TrimSpace(s)
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return DurationRange{}, fmt.Errorf("duration %q must look like min-max", s)
	}
	r := DurationRange{Min: 0, Max: -1}
	if lo = strings.TrimSpace(lo); lo != "" {
		v, err := strconv.Atoi(lo)
		if err != nil || v < 0 {
			return DurationRange{}, fmt.Errorf("duration %q has an invalid minimum", s)
		}
		r.Min = v
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		v, err := strconv.Atoi(hi)
		if err != nil || v < 0 {
			return DurationRange{}, fmt.Errorf("duration %q has an invalid maximum", s)
		}
		r.Max = v
	}
	if r.Max >= 0 && r.Max < r.Min {
		return DurationRange{}, fmt.Errorf("duration %q has maximum below minimum", s)
	}
	return r, nil
}

func (r DurationRange) Contains(minutes int) bool {
	if minutes < r.Min {
		return false
	}
	return r.Max < 0 || minutes <= r.Max
}

// FilterDuration keeps items whose duration falls inside r.
func FilterDuration(items []Item, r DurationRange) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if r.Contains(it.DurationInMinutes) {
			out = append(out, it)
		}
	}
	return out
}

// Sort orders accepted by SortBy.
const (
	SortPopularity = "popularity"
	SortRating     = "rating"
	SortDuration   = "duration"
)

// SortBy orders a copy of items: popularity and rating descending, duration
// ascending. Unknown keys return the items unchanged.
func SortBy(items []Item, key string) []Item {
	var less func(a, b Item) bool
	switch key {
	case SortPopularity:
		less = func(a, b Item) bool { return a.Popularity > b.Popularity }
	case SortRating:
		less = func(a, b Item) bool { return ratingOf(a) > ratingOf(b) }
	case SortDuration:
		less = func(a, b Item) bool { return a.DurationInMinutes < b.DurationInMinutes }
	default:
		return items
	}
	out := append([]Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func ratingOf(it Item) float64 {
	if it.Rating == nil {
		return 0
	}
	return it.Rating.Average
}
