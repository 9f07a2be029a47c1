package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/deskchat/deskchat/internal/chat"
)

// Completer is the slice of the chat provider the orchestrator needs
// for its helper calls (search decision, keyword extraction, result
// distillation).
type Completer interface {
	Chat(ctx context.Context, req chat.Request) (string, error)
}

// Orchestrator runs the search-augmentation pipeline: decide whether a
// query needs fresh information, extract keywords, retrieve results,
// distill the top pages, and fold the digest into the conversation.
// Every stage degrades instead of failing: the worst outcome is an
// unaugmented conversation, never a lost turn.
type Orchestrator struct {
	cfg    Config
	engine Engine
	llm    Completer
	pages  scraper
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewOrchestrator wires the pipeline. engine may be nil, in which case
// Augment is a pass-through.
func NewOrchestrator(cfg Config, engine Engine, llm Completer, logger *slog.Logger) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:    cfg,
		engine: engine,
		llm:    llm,
		pages:  newScraper(cfg),
		logger: logger.With("component", "websearch"),
		now:    time.Now,
	}
}

// Augment returns messages with the final user message enriched by web
// search context when the pipeline decides a search is warranted. The
// input slice is never mutated.
func (o *Orchestrator) Augment(ctx context.Context, sessionID string, messages []chat.Message) []chat.Message {
	if !o.cfg.Enabled || o.engine == nil || len(messages) == 0 {
		return messages
	}

	last := messages[len(messages)-1]
	if last.Role != chat.RoleUser {
		return messages
	}
	query := chat.StripThinkTags(last.Content)
	if query == "" {
		return messages
	}

	if !o.ShouldSearch(ctx, sessionID, query) {
		return messages
	}

	keywords := o.ExtractKeywords(ctx, sessionID, query)
	results, err := o.engine.Search(ctx, keywords.Query())
	if err != nil || len(results) == 0 {
		if err != nil {
			o.logger.Warn("search failed", "engine", o.engine.Name(), "error", err)
		} else {
			o.logger.Info("search returned no results", "engine", o.engine.Name())
		}
		return o.replaceLast(messages, o.fallbackPrompt(query))
	}

	digest := o.Distill(ctx, sessionID, query, results)
	return o.replaceLast(messages, o.augmentedPrompt(query, digest))
}

func (o *Orchestrator) replaceLast(messages []chat.Message, content string) []chat.Message {
	out := make([]chat.Message, len(messages))
	copy(out, messages)
	out[len(out)-1].Content = content
	return out
}

const decisionPrompt = `Decide whether answering the question below requires a web search for current or factual information you may not have. Reply with only "yes" or "no".

Question: %s`

// ShouldSearch asks the model whether the query needs fresh
// information. Any failure means no search: a wasted search is cheap
// but a lost turn is not, and the model can still answer from its own
// knowledge.
func (o *Orchestrator) ShouldSearch(ctx context.Context, sessionID, query string) bool {
	resp, err := o.llm.Chat(ctx, chat.Request{
		Messages:  []chat.Message{{Role: chat.RoleUser, Content: fmt.Sprintf(decisionPrompt, query)}},
		SessionID: sessionID,
	})
	if err != nil {
		o.logger.Warn("search decision failed", "error", err)
		return false
	}

	answer := strings.ToLower(chat.StripThinkTags(resp))
	o.logger.Debug("search decision", "answer", answer)
	return strings.Contains(answer, "yes") ||
		strings.Contains(answer, "是") ||
		strings.Contains(answer, "需要")
}

// Keywords is the structured output of keyword extraction.
type Keywords struct {
	Question    string   `json:"question"`
	Requirement string   `json:"requirement"`
	Keywords    []string `json:"keywords"`
}

// Query joins the keywords into a search query string.
func (k Keywords) Query() string {
	return strings.Join(k.Keywords, " ")
}

const keywordPrompt = `Extract search keywords from the question below. Reply with only a JSON object of this exact shape, nothing else:
{"question": "the core question", "requirement": "what kind of answer is wanted", "keywords": ["keyword1", "keyword2"]}

Question: %s`

var jsonSpanPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractKeywords asks the model for search keywords. It never fails:
// when the model's output cannot be parsed, the raw query itself is the
// keyword.
func (o *Orchestrator) ExtractKeywords(ctx context.Context, sessionID, query string) Keywords {
	fallback := Keywords{Question: query, Keywords: []string{query}}

	resp, err := o.llm.Chat(ctx, chat.Request{
		Messages:  []chat.Message{{Role: chat.RoleUser, Content: fmt.Sprintf(keywordPrompt, query)}},
		SessionID: sessionID,
	})
	if err != nil {
		o.logger.Warn("keyword extraction failed", "error", err)
		return fallback
	}

	kw, ok := parseKeywords(resp)
	if !ok || len(kw.Keywords) == 0 {
		o.logger.Debug("keyword extraction unparseable, using raw query", "response", resp)
		return fallback
	}
	return kw
}

// parseKeywords tries the whole response as JSON first, then the widest
// brace-delimited span. Models often wrap the object in prose or code
// fences despite instructions.
func parseKeywords(resp string) (Keywords, bool) {
	resp = strings.TrimSpace(chat.StripThinkTags(resp))
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")

	var kw Keywords
	if err := json.Unmarshal([]byte(resp), &kw); err == nil {
		return kw, true
	}

	span := jsonSpanPattern.FindString(resp)
	if span == "" {
		return Keywords{}, false
	}
	if err := json.Unmarshal([]byte(span), &kw); err != nil {
		return Keywords{}, false
	}
	return kw, true
}

// pageTextLimit bounds the extracted text per fetched result page.
const pageTextLimit = 4000

const digestPrompt = `The current time is %s. Below are web search results for: %s

Organize the relevant information from these results. Do not answer the question yourself; present the facts with their sources so a later answer can cite them. Point out when a result looks outdated relative to the current time.

%s`

// Distill fetches the top result pages, extracts their text, and asks
// the model to organize the material. When fetching or the model call
// fails, the plain snippets stand in for the digest.
func (o *Orchestrator) Distill(ctx context.Context, sessionID, query string, results []Result) string {
	enriched := o.fetchPages(ctx, results)

	resp, err := o.llm.Chat(ctx, chat.Request{
		Messages: []chat.Message{{
			Role: chat.RoleUser,
			Content: fmt.Sprintf(digestPrompt,
				o.now().Format("2006-01-02 15:04"), query, formatResults(enriched)),
		}},
		SessionID: sessionID,
	})
	if err != nil {
		o.logger.Warn("distillation failed, using raw snippets", "error", err)
		return formatResults(results)
	}
	return chat.StripThinkTags(resp)
}

// fetchPages deep-fetches up to MaxResults hits and attaches the
// extracted page text. Fetch failures leave the snippet in place.
func (o *Orchestrator) fetchPages(ctx context.Context, results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)

	fetched := 0
	for i := range out {
		if fetched >= o.cfg.MaxResults {
			break
		}
		if out[i].Link == "" || out[i].Description != "" {
			continue
		}
		page, err := o.pages.fetchPage(ctx, out[i].Link)
		if err != nil {
			o.logger.Debug("page fetch failed", "url", out[i].Link, "error", err)
			continue
		}
		_, text := ExtractText(page)
		out[i].Description = truncateText(text, pageTextLimit)
		fetched++
	}
	return out
}

// formatResults renders hits as a numbered list for prompt inclusion.
func formatResults(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n   Source: %s", i+1, r.Title, r.Link)
		if r.Description != "" {
			b.WriteString("\n   ")
			b.WriteString(r.Description)
		} else if r.Snippet != "" {
			b.WriteString("\n   ")
			b.WriteString(r.Snippet)
		}
	}
	return b.String()
}

func (o *Orchestrator) augmentedPrompt(query, digest string) string {
	return fmt.Sprintf(`Reference information from a web search performed at %s:

%s

Using the reference information above where relevant, answer the question. Cite the sources you draw on and note when the information may not be current.

Question: %s`, o.now().Format("2006-01-02 15:04"), digest, query)
}

func (o *Orchestrator) fallbackPrompt(query string) string {
	return fmt.Sprintf(`The current time is %s. A web search was attempted but returned nothing usable. Answer from your own knowledge and mention that the information may not be current.

Question: %s`, o.now().Format("2006-01-02 15:04"), query)
}
