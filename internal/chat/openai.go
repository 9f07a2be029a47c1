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

	"github.com/deskchat/deskchat/internal/config"
	"github.com/deskchat/deskchat/internal/httpkit"
)

// OpenAICompat talks to any OpenAI-compatible chat completion API
// (OpenAI itself, Siliconflow, Zhipu and the like). Responses stream as
// server-sent events; reasoning models additionally deliver their chain
// of thought through the delta's reasoning_content field.
type OpenAICompat struct {
	mu  sync.Mutex
	cfg Config

	client *http.Client
	probe  *http.Client

	requests *sessionRegistry
	logger   *slog.Logger
}

// NewOpenAICompat returns a provider for the API at cfg.BaseURL,
// authenticating every call with cfg.APIKey as a bearer token.
func NewOpenAICompat(cfg Config, logger *slog.Logger) *OpenAICompat {
	return &OpenAICompat{
		cfg:      cfg,
		client:   httpkit.NewClient(httpkit.WithTimeout(0)),
		probe:    httpkit.NewClient(),
		requests: newSessionRegistry(),
		logger:   logger.With("provider", "openai"),
	}
}

func (p *OpenAICompat) Name() string { return "openai" }

func (p *OpenAICompat) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Model
}

func (p *OpenAICompat) UpdateConfig(partial Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.merge(partial)
}

func (p *OpenAICompat) CancelSession(sessionID string) { p.requests.cancelSession(sessionID) }
func (p *OpenAICompat) CancelAll()                     { p.requests.cancelAll() }

func (p *OpenAICompat) snapshot() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

func (p *OpenAICompat) endpoint(cfg Config, path string) string {
	return strings.TrimSuffix(cfg.BaseURL, "/") + path
}

type openaiChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Chat streams a completion from /v1/chat/completions.
func (p *OpenAICompat) Chat(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := p.requests.add(req.SessionID, cancel)
	defer release()

	cfg := p.snapshot()

	body, err := json.Marshal(openaiChatRequest{
		Model:    cfg.Model,
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	p.logger.Log(ctx, config.LevelTrace, "chat request", "body", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint(cfg, "/v1/chat/completions"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 4096)}
	}

	emitter := newStreamEmitter(req)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			p.logger.Debug("skipping malformed event", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		emitter.appendReasoning(delta.ReasoningContent)
		emitter.appendContent(delta.Content)
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		p.logger.Warn("stream read failed, returning partial response", "error", err)
	}

	emitter.flush()
	_, answer := emitter.snapshot()
	return answer, nil
}

// Models lists the model identifiers from /v1/models.
func (p *OpenAICompat) Models(ctx context.Context) ([]string, error) {
	cfg := p.snapshot()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(cfg, "/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("build models request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := p.probe.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 4096)}
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	ids := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// CheckAvailability probes /v1/models with a short timeout. A 401 still
// counts as reachable but is reported as unavailable since every chat
// call would fail the same way.
func (p *OpenAICompat) CheckAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	cfg := p.snapshot()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(cfg, "/v1/models"), nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := p.probe.Do(httpReq)
	if err != nil {
		p.logger.Debug("availability check failed", "error", err)
		return false
	}
	httpkit.DrainAndClose(resp.Body, 4096)
	return resp.StatusCode == http.StatusOK
}
