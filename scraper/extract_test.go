package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, body string) Document {
	t.Helper()
	doc, err := GoqueryParser{}.Parse([]byte(body))
	require.NoError(t, err)
	return doc
}

func TestExtractTitleProbeOrder(t *testing.T) {
	doc := parse(t, `<html><body>
		<header><h1>Site name</h1></header>
		<main><h1> Unit heading </h1></main>
	</body></html>`)
	assert.Equal(t, "Unit heading", ExtractTitle(doc, "intro"))
}

func TestExtractTitleUnitTitleClass(t *testing.T) {
	doc := parse(t, `<html><body><div class="unit-title">Knowledge check</div><h1>Other</h1></body></html>`)
	assert.Equal(t, "Knowledge check", ExtractTitle(doc, "knowledge-check"))
}

func TestExtractTitleFallsBackToMeta(t *testing.T) {
	doc := parse(t, `<html><head><meta property="og:title" content="From meta"></head><body><p>no heading</p></body></html>`)
	assert.Equal(t, "From meta", ExtractTitle(doc, "intro"))
}

func TestExtractTitleFallsBackToSlug(t *testing.T) {
	doc := parse(t, `<html><body><p>nothing useful</p></body></html>`)
	assert.Equal(t, "knowledge check", ExtractTitle(doc, "knowledge-check"))
}

func TestExtractExcerptSkipsChrome(t *testing.T) {
	doc := parse(t, `<html><body><nav>Menu</nav><main><h2>Heading</h2><p>First   para.</p><p>Second<br>line</p><script>track()</script><footer>Footer</footer></main></body></html>`)
	assert.Equal(t, "Heading\n\nFirst para.\n\nSecond\nline", ExtractExcerpt(doc, 800))
}

func TestExtractExcerptRootFallback(t *testing.T) {
	doc := parse(t, `<html><body><header>Top</header><article><p>Article text</p></article></body></html>`)
	assert.Equal(t, "Article text", ExtractExcerpt(doc, 800))

	doc = parse(t, `<html><body><header>Top</header><div>Body <b>text</b> only</div><style>p{}</style></body></html>`)
	assert.Equal(t, "Body text only", ExtractExcerpt(doc, 800))
}

func TestExtractExcerptTruncates(t *testing.T) {
	doc := parse(t, `<html><body><main><p>abcdefghij</p></main></body></html>`)
	assert.Equal(t, "abcd…", ExtractExcerpt(doc, 4))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abc", 2))
	assert.Equal(t, "hé…", Truncate("héllo", 2))
	assert.Equal(t, "", Truncate("", 5))
}
