package websearch

import (
	"context"
	"fmt"
)

// custom fetches a user-configured search URL and returns the page text
// as a single result. No markup assumptions: whatever the endpoint
// renders is extracted wholesale and left to the distillation step.
type custom struct {
	scraper
	searchURL string
	param     string
}

func newCustom(cfg Config) *custom {
	return &custom{
		scraper:   newScraper(cfg),
		searchURL: cfg.SearchURL,
		param:     cfg.SearchParam,
	}
}

func (c *custom) Name() string { return "custom" }

func (c *custom) SearchURL(query string) string {
	return appendQuery(c.searchURL, c.param, query)
}

// customPageLimit bounds how much extracted page text a custom result
// carries into the prompt.
const customPageLimit = 8000

func (c *custom) Search(ctx context.Context, query string) ([]Result, error) {
	pageURL := c.SearchURL(query)
	page, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("custom: %w", err)
	}

	title, text := ExtractText(page)
	if title == "" {
		title = query
	}
	text = truncateText(text, customPageLimit)

	return []Result{{
		Title:   title,
		Link:    pageURL,
		Snippet: text,
		Source:  c.Name(),
	}}, nil
}
