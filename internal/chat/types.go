// Package chat provides the multi-provider chat service abstraction:
// a common Provider contract, concrete clients for the supported
// backends, per-session request cancellation, and the provider
// instance cache.
package chat

import "context"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single chat message sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries one chat call. OnToken receives the normalized
// cumulative answer text so far (reasoning excluded); OnReasoning
// receives the cumulative reasoning text so far. Either callback may be
// nil. SessionID ties the request to cancellation bookkeeping and is
// never sent over the wire.
type Request struct {
	Messages    []Message
	SessionID   string
	OnToken     func(text string)
	OnReasoning func(text string)
}

// Config holds the connection settings for a provider instance.
type Config struct {
	BaseURL string
	Model   string
	// APIKey is passed verbatim as a bearer token by providers that
	// require one; the local server type ignores it.
	APIKey string
}

// merge applies non-zero fields of p onto c. Zero values leave the
// existing setting untouched, giving partial-update semantics.
func (c *Config) merge(p Config) {
	if p.BaseURL != "" {
		c.BaseURL = p.BaseURL
	}
	if p.Model != "" {
		c.Model = p.Model
	}
	if p.APIKey != "" {
		c.APIKey = p.APIKey
	}
}

// Provider is the contract every chat backend implements.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama").
	Name() string

	// Model returns the currently configured model.
	Model() string

	// Chat sends the conversation and returns the final tag-stripped
	// answer text, streaming partial answer and reasoning text through
	// the request callbacks as data arrives. Cancellation via ctx (or
	// CancelSession) returns ErrCancelled. A non-2xx response returns
	// *APIError before any stream read. Mid-stream read failures are
	// logged and the accumulated partial text is returned without
	// error.
	Chat(ctx context.Context, req Request) (string, error)

	// Models lists the model identifiers the backend offers.
	Models(ctx context.Context) ([]string, error)

	// CheckAvailability reports whether the backend answers within a
	// bounded timeout. Network failure and timeout both yield false.
	CheckAvailability(ctx context.Context) bool

	// UpdateConfig merges non-zero fields into the current config.
	// In-flight requests are not disturbed.
	UpdateConfig(p Config)

	// CancelSession aborts every outstanding request registered under
	// the session. Calling it for a session with no active requests is
	// a no-op.
	CancelSession(sessionID string)

	// CancelAll aborts every outstanding request on this provider.
	CancelAll()
}
