package websearch

import (
	"context"
	"fmt"
	"regexp"
)

// bing scrapes the Bing result page. Result blocks look like
// <li class="b_algo"><h2><a href="...">title</a></h2>...<p>snippet</p>.
type bing struct {
	scraper
}

func newBing(cfg Config) *bing {
	return &bing{scraper: newScraper(cfg)}
}

func (b *bing) Name() string { return "bing" }

func (b *bing) SearchURL(query string) string {
	return appendQuery("https://www.bing.com/search", "q", query)
}

var (
	bingResultPattern  = regexp.MustCompile(`(?s)<h2><a[^>]*href="([^"]*)"[^>]*>(.*?)</a></h2>`)
	bingSnippetPattern = regexp.MustCompile(`(?s)<p[^>]*>(.*?)</p>`)
)

func (b *bing) Search(ctx context.Context, query string) ([]Result, error) {
	pageURL := b.SearchURL(query)
	page, err := b.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("bing: %w", err)
	}
	return parseBingResults(pageURL, page), nil
}

func parseBingResults(pageURL, page string) []Result {
	matches := bingResultPattern.FindAllStringSubmatch(page, -1)
	snippets := bingSnippetPattern.FindAllStringSubmatch(page, -1)

	var results []Result
	for i, m := range matches {
		if len(results) >= maxParsedResults {
			break
		}
		title := cleanFragment(m[2])
		link := resolveLink(pageURL, m[1])
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
			Source:  "bing",
		})
	}
	return results
}
