package websearch

import (
	"log/slog"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// Factory caches engine adapters so repeated searches with the same
// settings reuse one HTTP client.
type Factory struct {
	cache  *gocache.Cache
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: logger.With("component", "search-factory"),
	}
}

// Get returns the engine for cfg, constructing it on first use. A nil
// engine with nil error means search is disabled.
func (f *Factory) Get(cfg Config) (Engine, error) {
	if !cfg.Enabled || cfg.Engine == "" || cfg.Engine == "none" {
		return nil, nil
	}

	key := strings.Join([]string{cfg.Engine, cfg.SearchURL, cfg.SearchParam, cfg.UserAgent}, "|")
	if cached, found := f.cache.Get(key); found {
		return cached.(Engine), nil
	}

	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("constructed search engine", "engine", cfg.Engine)
	f.cache.Set(key, engine, gocache.NoExpiration)
	return engine, nil
}

// Clear drops all cached engines. Call after a search settings change.
func (f *Factory) Clear() {
	f.cache.Flush()
}
