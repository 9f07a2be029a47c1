package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/deskchat/deskchat/internal/httpkit"
)

// Engine retrieves search results for a query.
type Engine interface {
	// Name returns the engine identifier (e.g. "bing").
	Name() string

	// SearchURL returns the full result-page URL for the query.
	SearchURL(query string) string

	// Search fetches the result page and returns the parsed hits.
	Search(ctx context.Context, query string) ([]Result, error)
}

// maxParsedResults caps how many hits an engine extracts from one
// result page.
const maxParsedResults = 5

const searchTimeout = 15 * time.Second

// scraper holds what every regex-based engine adapter needs.
type scraper struct {
	client    *http.Client
	userAgent string
}

func newScraper(cfg Config) scraper {
	return scraper{
		client: httpkit.NewClient(
			httpkit.WithTimeout(searchTimeout),
			httpkit.WithoutUserAgent(),
		),
		userAgent: cfg.UserAgent,
	}
}

// fetchPage retrieves rawURL and returns the body as a string.
func (s scraper) fetchPage(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}

	data, err := httpkit.ReadBody(resp.Body, 4*1024*1024)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// appendQuery attaches param=query to base, using "&" when base already
// carries a query string.
func appendQuery(base, param, query string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + param + "=" + url.QueryEscape(query)
}

// resolveLink makes href absolute against the result page URL.
func resolveLink(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// cleanFragment strips markup and entities from a regex-captured HTML
// fragment.
func cleanFragment(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
