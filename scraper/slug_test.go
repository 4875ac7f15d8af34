package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveBase(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"module marker", "https://x/training/modules/foo/1-bar/", "https://x/training/modules/foo"},
		{"module marker with query", "https://x/training/modules/foo/1-bar/?tabs=a&b=c", "https://x/training/modules/foo"},
		{"module marker with fragment", "https://x/training/modules/foo/1-bar/#top", "https://x/training/modules/foo"},
		{"module root", "https://x/training/modules/foo", "https://x/training/modules/foo"},
		{"no marker", "https://x/docs/a/b", "https://x/docs/a"},
		{"no marker trailing slash", "https://x/docs/a/b/", "https://x/docs/a/b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveBase(tc.in))
		})
	}
}

func TestDeriveBaseIgnoresQuery(t *testing.T) {
	base := "https://learn.microsoft.com/en-us/training/modules/intro-to-azure/2-what-is-azure/"
	assert.Equal(t, DeriveBase(base), DeriveBase(base+"?source=recommendations"))
}

func TestDeriveSlug(t *testing.T) {
	cases := map[string]string{
		"learn.wwl.foo.intro":                          "intro",
		"foo.intro":                                    "intro",
		"learn.wwl.azure-fundamentals.Knowledge Check": "knowledge-check",
		"learn.wwl.x.Summary_and--Resources!":          "summary-and-resources",
		"plain":                                        "plain",
		"learn.wwl.x.--edge--":                         "edge",
	}
	for in, want := range cases {
		assert.Equal(t, want, DeriveSlug(in), in)
	}
}

func TestDeriveSlugPrefixIsIdempotent(t *testing.T) {
	for _, uid := range []string{"foo.intro", "a.b.c.Knowledge-check", "single"} {
		assert.Equal(t, DeriveSlug(uid), DeriveSlug(uidPrefix+uid))
	}
}

func TestBuildReferences(t *testing.T) {
	refs := BuildReferences("https://x/training/modules/foo/1-bar/", []string{"learn.wwl.foo.intro", "learn.wwl.foo.summary"})
	require.Len(t, refs, 2)
	assert.Equal(t, UnitRef{Index: 1, UID: "learn.wwl.foo.intro", Slug: "intro", URL: "https://x/training/modules/foo/1-intro/"}, refs[0])
	assert.Equal(t, UnitRef{Index: 2, UID: "learn.wwl.foo.summary", Slug: "summary", URL: "https://x/training/modules/foo/2-summary/"}, refs[1])
}

func TestBuildReferencesEmpty(t *testing.T) {
	assert.Nil(t, BuildReferences("::not a url::", nil))
}
