// Package scrape fetches press releases from presseportal.de and formats
// them as context material for the pipeline.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ErrUnsupportedURL rejects anything outside presseportal.de.
var ErrUnsupportedURL = errors.New("scrape: URL must be from presseportal.de")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Boilerplate markers ending the useful part of an article body.
var stopMarkers = []string{"Rückfragen bitte an:", "Original-Content von:"}

// PressRelease holds the scraped pieces of one press release.
type PressRelease struct {
	URL         string   `json:"url"`
	Headline    string   `json:"headline"`
	Sender      string   `json:"sender"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	PDFURL      string   `json:"pdf_url"`
	Content     string   `json:"content"`
}

type Scraper struct {
	http *http.Client
}

func New() *Scraper {
	return &Scraper{http: &http.Client{Timeout: 10 * time.Second}}
}

// Scrape downloads and dissects one press release page. Metadata comes
// from the embedded JSON-LD NewsArticle block when present, with the page
// heading as fallback.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*PressRelease, error) {
	if !strings.Contains(pageURL, "presseportal.de") {
		return nil, ErrUnsupportedURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape: status %d for %s", resp.StatusCode, pageURL)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	return dissect(doc, pageURL), nil
}

func dissect(doc *html.Node, pageURL string) *PressRelease {
	out := &PressRelease{URL: pageURL}

	if meta := findJSONLD(doc); meta != nil {
		out.Headline = str(meta["headline"])
		out.Date = str(meta["datePublished"])
		out.Description = str(meta["description"])
		if author, ok := meta["author"].(map[string]any); ok {
			out.Sender = str(author["name"])
		}
	}

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "a":
			if attr(n, "data-label") == "pdf" && out.PDFURL == "" {
				out.PDFURL = attr(n, "href")
			}
		case "ul":
			if hasClass(n, "tags") {
				walk(n, func(c *html.Node) {
					if c.Type == html.ElementNode && c.Data == "a" {
						if t := strings.TrimSpace(text(c)); t != "" {
							out.Tags = append(out.Tags, t)
						}
					}
				})
			}
		}
	})

	if card := findArticleCard(doc); card != nil {
		out.Content = extractBody(card)
		if out.Headline == "" {
			if h1 := findFirst(card, "h1"); h1 != nil {
				out.Headline = strings.TrimSpace(text(h1))
			}
		}
	}
	return out
}

// findJSONLD returns the first parsed JSON-LD block describing a NewsArticle.
func findJSONLD(doc *html.Node) map[string]any {
	var meta map[string]any
	walk(doc, func(n *html.Node) {
		if meta != nil || n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		if attr(n, "type") != "application/ld+json" {
			return
		}
		raw := text(n)
		if !strings.Contains(raw, "NewsArticle") {
			return
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			meta = m
		}
	})
	return meta
}

func findArticleCard(doc *html.Node) *html.Node {
	article := findFirst(doc, "article")
	if article == nil {
		return nil
	}
	var card *html.Node
	walk(article, func(n *html.Node) {
		if card == nil && n.Type == html.ElementNode && hasClass(n, "card") {
			card = n
		}
	})
	return card
}

// extractBody joins the card's paragraphs, skipping date lines and
// stopping at the contact/boilerplate footer.
func extractBody(card *html.Node) string {
	var parts []string
	stopped := false
	walk(card, func(n *html.Node) {
		if stopped || n.Type != html.ElementNode || n.Data != "p" {
			return
		}
		if hasClass(n, "date") {
			return
		}
		t := strings.Join(strings.Fields(text(n)), " ")
		for _, marker := range stopMarkers {
			if strings.Contains(t, marker) {
				stopped = true
				return
			}
		}
		if t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

// FormatForLLM renders the scraped release as a context block.
func (p *PressRelease) FormatForLLM() string {
	return fmt.Sprintf(
		"--- SCRAPED DATA FROM %s ---\n"+
			"HEADLINE: %s\n"+
			"SENDER: %s\n"+
			"DATE: %s\n"+
			"TAGS: %s\n"+
			"PDF URL: %s\n\n"+
			"CONTENT:\n%s\n"+
			"----------------------------------------",
		p.URL, p.Headline, p.Sender, p.Date, strings.Join(p.Tags, ", "), p.PDFURL, p.Content)
}

// ---- small DOM helpers ----

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, name string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.Data == name {
			found = c
		}
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
	})
	return sb.String()
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
