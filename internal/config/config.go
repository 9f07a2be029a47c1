// Package config handles deskchat configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/deskchat/config.yaml, /etc/deskchat/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "deskchat", "config.yaml"))
	}

	paths = append(paths, "/etc/deskchat/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all deskchat configuration.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	WebSearch WebSearchConfig `yaml:"web_search"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// ProviderConfig selects and configures the active chat backend.
type ProviderConfig struct {
	// Type is the provider identifier: "ollama" (local streaming server)
	// or "openai" (any OpenAI-compatible token-authenticated API, e.g.
	// Siliconflow, Zhipu, OpenAI itself).
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// APIKey is required for token-authenticated providers and ignored
	// by the local server type. It is passed verbatim as a bearer token.
	APIKey string `yaml:"api_key"`
}

// WebSearchConfig configures the web-search augmentation pipeline.
type WebSearchConfig struct {
	Enabled bool `yaml:"enabled"`
	// Engine is one of: none, bing, google, baidu, custom.
	Engine string `yaml:"engine"`
	// SearchURL overrides the engine's result-page URL. Required when
	// Engine is "custom".
	SearchURL string `yaml:"search_url"`
	// SearchParam is the query parameter name appended to SearchURL.
	// Defaults to "q".
	SearchParam string `yaml:"search_param"`
	// UserAgent is sent on search-page and result-page fetches. Defaults
	// to a desktop browser User-Agent; many engines serve degraded markup
	// to non-browser agents.
	UserAgent string `yaml:"user_agent"`
	// MaxResults is how many results get a full-page fetch during
	// distillation. Defaults to 3.
	MaxResults int `yaml:"max_results"`
}

// Load reads and parses the config file at path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in unset fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider.Type == "" {
		c.Provider.Type = "ollama"
	}
	if c.Provider.BaseURL == "" && c.Provider.Type == "ollama" {
		c.Provider.BaseURL = "http://localhost:11434"
	}
	if c.WebSearch.Engine == "" {
		c.WebSearch.Engine = "none"
	}
	if c.WebSearch.SearchParam == "" {
		c.WebSearch.SearchParam = "q"
	}
	if c.WebSearch.MaxResults <= 0 {
		c.WebSearch.MaxResults = 3
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	// Enabled tracks the engine selection: "none" means off.
	if c.WebSearch.Engine == "none" {
		c.WebSearch.Enabled = false
	}
}

// Validate reports configuration errors that would otherwise surface as
// confusing network failures later.
func (c *Config) Validate() error {
	switch c.Provider.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown provider type %q (valid: ollama, openai)", c.Provider.Type)
	}

	if c.Provider.Type == "openai" && c.Provider.APIKey == "" {
		return fmt.Errorf("provider type %q requires api_key", c.Provider.Type)
	}

	switch c.WebSearch.Engine {
	case "none", "bing", "google", "baidu", "custom":
	default:
		return fmt.Errorf("unknown search engine %q (valid: none, bing, google, baidu, custom)", c.WebSearch.Engine)
	}

	if c.WebSearch.Enabled && c.WebSearch.Engine == "custom" && c.WebSearch.SearchURL == "" {
		return fmt.Errorf("search engine %q requires search_url", c.WebSearch.Engine)
	}

	return nil
}
