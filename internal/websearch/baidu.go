package websearch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// baidu scrapes the Baidu result page. Hit titles sit in
// <h3 class="t..."><a href="...">title</a></h3>; links are usually
// indirected through www.baidu.com/link?url=<token>.
type baidu struct {
	scraper
}

func newBaidu(cfg Config) *baidu {
	return &baidu{scraper: newScraper(cfg)}
}

func (b *baidu) Name() string { return "baidu" }

func (b *baidu) SearchURL(query string) string {
	return appendQuery("https://www.baidu.com/s", "wd", query)
}

var (
	baiduResultPattern  = regexp.MustCompile(`(?s)<h3[^>]*class="[^"]*t[^"]*"[^>]*>\s*<a[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	baiduSnippetPattern = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*c-abstract[^"]*"[^>]*>(.*?)</div>`)
)

func (b *baidu) Search(ctx context.Context, query string) ([]Result, error) {
	pageURL := b.SearchURL(query)
	page, err := b.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("baidu: %w", err)
	}
	return parseBaiduResults(pageURL, page), nil
}

func parseBaiduResults(pageURL, page string) []Result {
	matches := baiduResultPattern.FindAllStringSubmatch(page, -1)
	snippets := baiduSnippetPattern.FindAllStringSubmatch(page, -1)

	var results []Result
	for i, m := range matches {
		if len(results) >= maxParsedResults {
			break
		}
		title := cleanFragment(m[2])
		link := unwrapBaiduLink(resolveLink(pageURL, m[1]))
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
			Source:  "baidu",
		})
	}
	return results
}

// unwrapBaiduLink extracts a direct destination from the redirect URL
// when one is present in the query string. Opaque redirect tokens stay
// as-is; the deep fetch follows them like any other link.
func unwrapBaiduLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("url"); strings.HasPrefix(target, "http") {
		return target
	}
	return link
}
