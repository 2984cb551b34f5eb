package scrape

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const samplePage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{"@type":"NewsArticle","headline":"Company X announces merger","datePublished":"2024-03-12",
"description":"Merger announcement","author":{"@type":"Organization","name":"Company X GmbH"}}
</script>
</head><body>
<article>
  <div class="card">
    <h1>Ignored because JSON-LD wins</h1>
    <p class="date">12.03.2024 - 09:00</p>
    <p>Berlin (ots) - Company X and Company Y are merging.</p>
    <p>The combined group will employ 4,000 people.</p>
    <p>Rückfragen bitte an: presse@example.com</p>
    <p>This footer must not appear.</p>
  </div>
</article>
<a data-label="pdf" href="/pdf/12345.pdf">PDF</a>
<ul class="tags"><li><a>Wirtschaft</a></li><li><a>Fusion</a></li></ul>
</body></html>`

func parsePage(t *testing.T, page string) *PressRelease {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	return dissect(doc, "https://www.presseportal.de/pm/12345")
}

func TestDissect_FullPage(t *testing.T) {
	pr := parsePage(t, samplePage)

	assert.Equal(t, "Company X announces merger", pr.Headline)
	assert.Equal(t, "Company X GmbH", pr.Sender)
	assert.Equal(t, "2024-03-12", pr.Date)
	assert.Equal(t, "Merger announcement", pr.Description)
	assert.Equal(t, []string{"Wirtschaft", "Fusion"}, pr.Tags)
	assert.Equal(t, "/pdf/12345.pdf", pr.PDFURL)

	assert.Contains(t, pr.Content, "Company X and Company Y are merging.")
	assert.Contains(t, pr.Content, "employ 4,000 people")
	assert.NotContains(t, pr.Content, "12.03.2024")
	assert.NotContains(t, pr.Content, "Rückfragen")
	assert.NotContains(t, pr.Content, "footer must not appear")
}

func TestDissect_HeadingFallbackWithoutJSONLD(t *testing.T) {
	page := `<html><body><article><div class="card">
<h1>Fallback headline</h1>
<p>Body text.</p>
</div></article></body></html>`
	pr := parsePage(t, page)
	assert.Equal(t, "Fallback headline", pr.Headline)
	assert.Equal(t, "Body text.", pr.Content)
}

func TestDissect_OriginalContentMarkerStops(t *testing.T) {
	page := `<html><body><article><div class="card">
<p>Useful paragraph.</p>
<p>Original-Content von: Company X, übermittelt durch news aktuell</p>
<p>Trailing junk.</p>
</div></article></body></html>`
	pr := parsePage(t, page)
	assert.Equal(t, "Useful paragraph.", pr.Content)
}

func TestDissect_EmptyPage(t *testing.T) {
	pr := parsePage(t, `<html><body></body></html>`)
	assert.Empty(t, pr.Headline)
	assert.Empty(t, pr.Content)
	assert.Empty(t, pr.Tags)
	assert.Equal(t, "https://www.presseportal.de/pm/12345", pr.URL)
}

func TestScrape_RejectsForeignHosts(t *testing.T) {
	s := New()
	_, err := s.Scrape(context.Background(), "https://example.com/news/1")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestFormatForLLM(t *testing.T) {
	pr := &PressRelease{
		URL:      "https://www.presseportal.de/pm/1",
		Headline: "H",
		Sender:   "S",
		Date:     "2024-01-01",
		Tags:     []string{"a", "b"},
		Content:  "body",
	}
	got := pr.FormatForLLM()
	assert.Contains(t, got, "SCRAPED DATA FROM https://www.presseportal.de/pm/1")
	assert.Contains(t, got, "HEADLINE: H")
	assert.Contains(t, got, "TAGS: a, b")
	assert.Contains(t, got, "CONTENT:\nbody")
}
