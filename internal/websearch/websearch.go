// Package websearch augments chat prompts with live web results. An
// engine adapter retrieves result pages, the orchestrator asks the
// model whether a search is warranted, extracts keywords, fetches and
// distills the top hits, and injects the digest into the conversation.
package websearch

import "fmt"

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	// Source names the engine that produced the hit.
	Source string `json:"source"`
	// Description holds the distilled full-page text when a deep fetch
	// succeeded; empty otherwise.
	Description string `json:"description,omitempty"`
}

// Config controls the search pipeline.
type Config struct {
	Enabled bool
	// Engine is one of: none, bing, google, baidu, custom.
	Engine string
	// SearchURL is the result-page URL for the custom engine.
	SearchURL string
	// SearchParam is the query parameter appended to SearchURL.
	SearchParam string
	// UserAgent is sent on search and result-page fetches.
	UserAgent string
	// MaxResults caps how many hits get a full-page fetch.
	MaxResults int
}

// BrowserUserAgent is the default User-Agent for engine scraping. Major
// engines serve stripped-down markup to anything that does not look
// like a browser, which breaks the result extraction patterns.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (c *Config) applyDefaults() {
	if c.SearchParam == "" {
		c.SearchParam = "q"
	}
	if c.UserAgent == "" {
		c.UserAgent = BrowserUserAgent
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 3
	}
}

// NewEngine builds the engine adapter named by cfg.Engine. Engine
// "none" (or a disabled config) returns nil with no error.
func NewEngine(cfg Config) (Engine, error) {
	cfg.applyDefaults()
	if !cfg.Enabled || cfg.Engine == "" || cfg.Engine == "none" {
		return nil, nil
	}

	switch cfg.Engine {
	case "bing":
		return newBing(cfg), nil
	case "google":
		return newGoogle(cfg), nil
	case "baidu":
		return newBaidu(cfg), nil
	case "custom":
		if cfg.SearchURL == "" {
			return nil, fmt.Errorf("custom search engine requires a search URL")
		}
		return newCustom(cfg), nil
	default:
		return nil, fmt.Errorf("unknown search engine %q", cfg.Engine)
	}
}
