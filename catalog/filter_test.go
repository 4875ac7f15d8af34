package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Item {
	return []Item{
		{UID: "a", Title: "Azure Fundamentals", Summary: "Cloud concepts", DurationInMinutes: 45, Popularity: 0.2, Rating: &Rating{Average: 4.1}},
		{UID: "b", Title: "Intro to Python", Subtitle: "Programming basics", DurationInMinutes: 20, Popularity: 0.9},
		{UID: "c", Title: "Security", Summary: "Protect AZURE workloads", DurationInMinutes: 90, Popularity: 0.5, Rating: &Rating{Average: 4.8}},
	}
}

func uids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.UID)
	}
	return out
}

func TestFilterText(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, uids(FilterText(sample(), "azure")))
	assert.Equal(t, []string{"b"}, uids(FilterText(sample(), "programming")))
	assert.Len(t, FilterText(sample(), ""), 3)
	assert.Empty(t, FilterText(sample(), "kubernetes"))
}

func TestLimit(t *testing.T) {
	assert.Len(t, Limit(sample(), 2), 2)
	assert.Len(t, Limit(sample(), 10), 3)
	assert.Len(t, Limit(sample(), 0), 3)
}

func TestParseDurationRange(t *testing.T) {
	r, err := ParseDurationRange("10-60")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, uids(FilterDuration(sample(), r)))

	r, err = ParseDurationRange("60-")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, uids(FilterDuration(sample(), r)))

	r, err = ParseDurationRange("-20")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, uids(FilterDuration(sample(), r)))

	for _, bad := range []string{"abc", "30", "x-10", "50-10"} {
		_, err := ParseDurationRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestSortBy(t *testing.T) {
	items := sample()
	assert.Equal(t, []string{"b", "c", "a"}, uids(SortBy(items, SortPopularity)))
	assert.Equal(t, []string{"c", "a", "b"}, uids(SortBy(items, SortRating)))
	assert.Equal(t, []string{"b", "a", "c"}, uids(SortBy(items, SortDuration)))
	assert.Equal(t, []string{"a", "b", "c"}, uids(SortBy(items, "unknown")))
	assert.Equal(t, []string{"a", "b", "c"}, uids(items))
}
