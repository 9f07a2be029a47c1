package websearch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// google scrapes the Google result page. Organic hits wrap the title in
// <h3> inside the result link; links may be indirected through
// /url?q=<target>.
type google struct {
	scraper
}

func newGoogle(cfg Config) *google {
	return &google{scraper: newScraper(cfg)}
}

func (g *google) Name() string { return "google" }

func (g *google) SearchURL(query string) string {
	return appendQuery("https://www.google.com/search", "q", query)
}

var (
	googleResultPattern  = regexp.MustCompile(`(?s)<a[^>]*href="(/url\?q=[^"]+|https?://[^"]+)"[^>]*>\s*<h3[^>]*>(.*?)</h3>`)
	googleSnippetPattern = regexp.MustCompile(`(?s)<div[^>]*data-sncf="1"[^>]*>(.*?)</div>`)
)

func (g *google) Search(ctx context.Context, query string) ([]Result, error) {
	pageURL := g.SearchURL(query)
	page, err := g.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	return parseGoogleResults(pageURL, page), nil
}

func parseGoogleResults(pageURL, page string) []Result {
	matches := googleResultPattern.FindAllStringSubmatch(page, -1)
	snippets := googleSnippetPattern.FindAllStringSubmatch(page, -1)

	var results []Result
	for i, m := range matches {
		if len(results) >= maxParsedResults {
			break
		}
		title := cleanFragment(m[2])
		link := unwrapGoogleLink(resolveLink(pageURL, m[1]))
		if title == "" || link == "" {
			continue
		}
		var snippet string
		if i < len(snippets) {
			snippet = cleanFragment(snippets[i][1])
		}
		results = append(results, Result{
			Title:   title,
			Link:    link,
			Snippet: snippet,
			Source:  "google",
		})
	}
	return results
}

// unwrapGoogleLink resolves the /url?q=<target> indirection to the real
// destination.
func unwrapGoogleLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if !strings.HasSuffix(u.Path, "/url") {
		return link
	}
	if target := u.Query().Get("q"); strings.HasPrefix(target, "http") {
		return target
	}
	return link
}
