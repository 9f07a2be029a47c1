// Package turn runs a complete chat turn: load history, optionally
// augment the prompt with web search, stream the provider response, and
// persist the exchange.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/deskchat/deskchat/internal/chat"
	"github.com/deskchat/deskchat/internal/store"
	"github.com/deskchat/deskchat/internal/websearch"
)

// Notifier receives out-of-band events for the UI layer (search
// started, provider errors). Payload is event-specific.
type Notifier func(event string, payload any)

// Store is the slice of the persistence layer a turn needs.
type Store interface {
	SaveMessage(ctx context.Context, m store.Message) (store.Message, error)
	Messages(ctx context.Context, sessionID string) ([]store.Message, error)
}

// Options configures a Service.
type Options struct {
	Manager      *chat.Manager
	ProviderType string
	Provider     chat.Config
	Search       websearch.Config
	// Engines caches search engine adapters. Optional; a private
	// factory is created when nil.
	Engines *websearch.Factory
	// Store is optional; without it turns are stateless.
	Store  Store
	Logger *slog.Logger
	// Notify is optional.
	Notify Notifier
}

// Service orchestrates chat turns.
type Service struct {
	mu           sync.Mutex
	manager      *chat.Manager
	providerType string
	providerCfg  chat.Config

	engines    *websearch.Factory
	search     *websearch.Orchestrator
	store      Store
	baseLogger *slog.Logger
	logger     *slog.Logger
	notify     Notifier
}

// NewService wires a Service from opts.
func NewService(opts Options) (*Service, error) {
	if opts.Manager == nil {
		return nil, errors.New("turn: manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Engines == nil {
		opts.Engines = websearch.NewFactory(opts.Logger)
	}

	s := &Service{
		manager:      opts.Manager,
		providerType: opts.ProviderType,
		providerCfg:  opts.Provider,
		engines:      opts.Engines,
		store:        opts.Store,
		baseLogger:   opts.Logger,
		logger:       opts.Logger.With("component", "turn"),
		notify:       opts.Notify,
	}

	engine, err := s.engines.Get(opts.Search)
	if err != nil {
		return nil, fmt.Errorf("turn: %w", err)
	}
	s.search = websearch.NewOrchestrator(opts.Search, engine, completer{s}, opts.Logger)

	return s, nil
}

// completer routes the orchestrator's helper calls through the current
// provider, so model switches apply to them too.
type completer struct{ s *Service }

func (c completer) Chat(ctx context.Context, req chat.Request) (string, error) {
	p, err := c.s.provider()
	if err != nil {
		return "", err
	}
	return p.Chat(ctx, req)
}

func (s *Service) provider() (chat.Provider, error) {
	s.mu.Lock()
	ptype, cfg := s.providerType, s.providerCfg
	s.mu.Unlock()
	return s.manager.Get(ptype, cfg)
}

func (s *Service) orchestrator() *websearch.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

// Reply is the outcome of a completed turn.
type Reply struct {
	SessionID string
	Content   string
	Reasoning string
}

// Send runs one turn. An empty sessionID starts a new session. onToken
// and onReasoning receive cumulative streaming snapshots and may be
// nil. Provider failures other than cancellation are recorded in the
// session history so the conversation shows what happened.
func (s *Service) Send(ctx context.Context, sessionID, text string, onToken, onReasoning func(string)) (Reply, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	p, err := s.provider()
	if err != nil {
		return Reply{SessionID: sessionID}, err
	}

	messages, err := s.history(ctx, sessionID)
	if err != nil {
		return Reply{SessionID: sessionID}, err
	}
	messages = append(messages, chat.Message{Role: chat.RoleUser, Content: text})
	s.persist(ctx, store.Message{SessionID: sessionID, Role: chat.RoleUser, Content: text})

	augmented := s.orchestrator().Augment(ctx, sessionID, messages)

	var reasoning string
	content, err := p.Chat(ctx, chat.Request{
		Messages:  augmented,
		SessionID: sessionID,
		OnToken:   onToken,
		OnReasoning: func(r string) {
			reasoning = r
			if onReasoning != nil {
				onReasoning(r)
			}
		},
	})
	if err != nil {
		if errors.Is(err, chat.ErrCancelled) {
			s.logger.Info("turn cancelled", "session_id", sessionID)
			return Reply{SessionID: sessionID}, err
		}
		s.logger.Error("provider call failed", "session_id", sessionID, "error", err)
		s.event("error", err.Error())
		// Record the failure so the conversation shows it.
		s.persist(ctx, store.Message{
			SessionID: sessionID,
			Role:      chat.RoleAssistant,
			Content:   fmt.Sprintf("(error: %v)", err),
		})
		return Reply{SessionID: sessionID}, err
	}

	s.persist(ctx, store.Message{
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   content,
		Reasoning: reasoning,
	})

	return Reply{SessionID: sessionID, Content: content, Reasoning: reasoning}, nil
}

// history loads the session's prior messages as chat messages.
func (s *Service) history(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if s.store == nil {
		return nil, nil
	}
	stored, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, chat.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

func (s *Service) persist(ctx context.Context, m store.Message) {
	if s.store == nil {
		return
	}
	if _, err := s.store.SaveMessage(ctx, m); err != nil {
		s.logger.Warn("failed to persist message", "session_id", m.SessionID, "error", err)
	}
}

func (s *Service) event(name string, payload any) {
	if s.notify != nil {
		s.notify(name, payload)
	}
}

// ListModels returns the provider's models, or an empty list when the
// backend cannot be reached. Listing is best effort.
func (s *Service) ListModels(ctx context.Context) []string {
	p, err := s.provider()
	if err != nil {
		s.logger.Warn("cannot construct provider", "error", err)
		return nil
	}
	models, err := p.Models(ctx)
	if err != nil {
		s.logger.Warn("model listing failed", "error", err)
		return nil
	}
	return models
}

// CheckAvailability reports whether the configured backend answers.
func (s *Service) CheckAvailability(ctx context.Context) bool {
	p, err := s.provider()
	if err != nil {
		return false
	}
	return p.CheckAvailability(ctx)
}

// Cancel aborts the session's in-flight requests.
func (s *Service) Cancel(sessionID string) {
	s.manager.CancelSession(sessionID)
}

// CancelAll aborts every in-flight request.
func (s *Service) CancelAll() {
	s.manager.CancelAll()
}

// UpdateProvider switches to a new provider configuration. Cached
// instances for the previous endpoint are invalidated so stale
// credentials or URLs cannot be reused.
func (s *Service) UpdateProvider(ptype string, cfg chat.Config) {
	s.mu.Lock()
	oldType, oldCfg := s.providerType, s.providerCfg
	s.providerType, s.providerCfg = ptype, cfg
	s.mu.Unlock()

	if oldType != ptype || oldCfg.BaseURL != cfg.BaseURL {
		s.manager.Invalidate(oldType, oldCfg.BaseURL)
	}
	s.logger.Info("provider updated", "type", ptype, "base_url", cfg.BaseURL, "model", cfg.Model)
}

// UpdateSearch switches to a new web search configuration. Cached
// engine adapters are dropped so the next turn builds against the new
// settings.
func (s *Service) UpdateSearch(cfg websearch.Config) error {
	s.engines.Clear()
	engine, err := s.engines.Get(cfg)
	if err != nil {
		return fmt.Errorf("turn: %w", err)
	}
	search := websearch.NewOrchestrator(cfg, engine, completer{s}, s.baseLogger)

	s.mu.Lock()
	s.search = search
	s.mu.Unlock()

	s.logger.Info("search updated", "enabled", cfg.Enabled, "engine", cfg.Engine)
	return nil
}
