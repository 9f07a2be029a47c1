package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/deskchat/deskchat/internal/config"
	"github.com/deskchat/deskchat/internal/httpkit"
)

const availabilityTimeout = 5 * time.Second

// Ollama talks to a local Ollama server. Responses stream as
// newline-delimited JSON where each line carries a content delta.
type Ollama struct {
	mu  sync.Mutex
	cfg Config

	// client has no timeout: a local model can stream for minutes.
	// Lifetime is bounded by the request context instead.
	client *http.Client
	probe  *http.Client

	requests *sessionRegistry
	logger   *slog.Logger
}

// NewOllama returns a provider for the Ollama server at cfg.BaseURL.
func NewOllama(cfg Config, logger *slog.Logger) *Ollama {
	return &Ollama{
		cfg:      cfg,
		client:   httpkit.NewClient(httpkit.WithTimeout(0)),
		probe:    httpkit.NewClient(),
		requests: newSessionRegistry(),
		logger:   logger.With("provider", "ollama"),
	}
}

func (p *Ollama) Name() string { return "ollama" }

func (p *Ollama) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Model
}

func (p *Ollama) UpdateConfig(partial Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.merge(partial)
}

func (p *Ollama) CancelSession(sessionID string) { p.requests.cancelSession(sessionID) }
func (p *Ollama) CancelAll()                     { p.requests.cancelAll() }

func (p *Ollama) snapshot() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Chat streams a completion from /api/chat. The accumulated answer is
// returned with reasoning blocks stripped.
func (p *Ollama) Chat(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := p.requests.add(req.SessionID, cancel)
	defer release()

	cfg := p.snapshot()

	body, err := json.Marshal(ollamaChatRequest{
		Model:    cfg.Model,
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	p.logger.Log(ctx, config.LevelTrace, "chat request", "body", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(cfg.BaseURL, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 4096)}
	}

	emitter := newStreamEmitter(req)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaChatChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			p.logger.Debug("skipping malformed stream line", "error", err)
			continue
		}
		if chunk.Error != "" {
			p.logger.Warn("server reported stream error", "error", chunk.Error)
			break
		}

		emitter.appendContent(chunk.Message.Content)
		if chunk.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		// Keep what arrived before the connection dropped.
		p.logger.Warn("stream read failed, returning partial response", "error", err)
	}

	emitter.flush()
	_, answer := emitter.snapshot()
	return answer, nil
}

// Models lists the locally installed models via /api/tags.
func (p *Ollama) Models(ctx context.Context) ([]string, error) {
	cfg := p.snapshot()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(cfg.BaseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}

	resp, err := p.probe.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 4096)}
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CheckAvailability probes /api/version with a short timeout.
func (p *Ollama) CheckAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	cfg := p.snapshot()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(cfg.BaseURL, "/")+"/api/version", nil)
	if err != nil {
		return false
	}

	resp, err := p.probe.Do(httpReq)
	if err != nil {
		p.logger.Debug("availability check failed", "error", err)
		return false
	}
	httpkit.DrainAndClose(resp.Body, 4096)
	return resp.StatusCode == http.StatusOK
}
