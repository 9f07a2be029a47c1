package chat

import (
	"fmt"
	"log/slog"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// Manager caches provider instances so repeated chats against the same
// backend reuse one connection pool and one cancellation registry.
//
// Keying differs by provider type. The local server can switch models
// in place, so its key omits the model and a model change becomes an
// UpdateConfig on the cached instance. Token-authenticated providers
// key on model and credential too: a credential change must never reuse
// an instance built with the old key.
type Manager struct {
	cache  *gocache.Cache
	specs  map[string]providerSpec
	logger *slog.Logger
}

type providerSpec struct {
	construct func(cfg Config, logger *slog.Logger) Provider
	key       func(cfg Config) string
}

// NewManager returns a Manager with the built-in provider types
// ("ollama", "openai") registered.
func NewManager(logger *slog.Logger) *Manager {
	m := &Manager{
		cache:  gocache.New(gocache.NoExpiration, 0),
		specs:  make(map[string]providerSpec),
		logger: logger.With("component", "provider-manager"),
	}

	m.specs["ollama"] = providerSpec{
		construct: func(cfg Config, logger *slog.Logger) Provider { return NewOllama(cfg, logger) },
		key: func(cfg Config) string {
			return join("ollama", cfg.BaseURL)
		},
	}
	m.specs["openai"] = providerSpec{
		construct: func(cfg Config, logger *slog.Logger) Provider { return NewOpenAICompat(cfg, logger) },
		key: func(cfg Config) string {
			return join("openai", cfg.BaseURL, cfg.Model, cfg.APIKey)
		},
	}

	return m
}

func join(parts ...string) string { return strings.Join(parts, "|") }

// Get returns the cached provider for (ptype, cfg), constructing one on
// first use. A cache hit whose instance is configured for a different
// model is switched in place rather than rebuilt.
func (m *Manager) Get(ptype string, cfg Config) (Provider, error) {
	spec, ok := m.specs[ptype]
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q", ptype)
	}

	key := spec.key(cfg)
	if cached, found := m.cache.Get(key); found {
		p := cached.(Provider)
		if cfg.Model != "" && p.Model() != cfg.Model {
			m.logger.Debug("switching model on cached provider",
				"type", ptype, "from", p.Model(), "to", cfg.Model)
			p.UpdateConfig(Config{Model: cfg.Model})
		}
		return p, nil
	}

	m.logger.Debug("constructing provider", "type", ptype, "base_url", cfg.BaseURL, "model", cfg.Model)
	p := spec.construct(cfg, m.logger)
	m.cache.Set(key, p, gocache.NoExpiration)
	return p, nil
}

// Invalidate drops every cached instance for the given provider type
// and endpoint, regardless of model or credential. Outstanding requests
// on dropped instances are cancelled first.
func (m *Manager) Invalidate(ptype, baseURL string) {
	prefix := join(ptype, baseURL)
	for key, item := range m.cache.Items() {
		if key != prefix && !strings.HasPrefix(key, prefix+"|") {
			continue
		}
		if p, ok := item.Object.(Provider); ok {
			p.CancelAll()
		}
		m.cache.Delete(key)
	}
}

// CancelSession aborts the session's in-flight requests on every cached
// provider.
func (m *Manager) CancelSession(sessionID string) {
	for _, item := range m.cache.Items() {
		if p, ok := item.Object.(Provider); ok {
			p.CancelSession(sessionID)
		}
	}
}

// CancelAll aborts all in-flight requests on every cached provider.
func (m *Manager) CancelAll() {
	for _, item := range m.cache.Items() {
		if p, ok := item.Object.(Provider); ok {
			p.CancelAll()
		}
	}
}
