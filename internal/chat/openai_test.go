package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompatChatStreaming(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"let me see. \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"got it.\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive comment, must be ignored\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"after done\"}}]}\n\n")
	}))
	defer ts.Close()

	p := NewOpenAICompat(Config{BaseURL: ts.URL, Model: "deepseek-r1", APIKey: "sk-test"}, testLogger())

	var lastAnswer, lastReasoning string
	got, err := p.Chat(context.Background(), Request{
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		SessionID:   "s1",
		OnToken:     func(s string) { lastAnswer = s },
		OnReasoning: func(s string) { lastReasoning = s },
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "Hello" {
		t.Errorf("answer = %q, want Hello (stream must stop at [DONE])", got)
	}
	if lastAnswer != "Hello" {
		t.Errorf("last answer snapshot = %q", lastAnswer)
	}
	if lastReasoning != "let me see. got it." {
		t.Errorf("reasoning = %q", lastReasoning)
	}
}

func TestOpenAICompatChatInlineThinkTags(t *testing.T) {
	// Some compatible backends still inline tags in content instead of
	// using the reasoning field. Both paths must work.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"<think>hmm</think>yes\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	p := NewOpenAICompat(Config{BaseURL: ts.URL, Model: "m", APIKey: "k"}, testLogger())
	got, err := p.Chat(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "yes" {
		t.Errorf("answer = %q, want yes", got)
	}
}

func TestOpenAICompatChatAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	p := NewOpenAICompat(Config{BaseURL: ts.URL, Model: "m", APIKey: "bad"}, testLogger())
	_, err := p.Chat(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
}

func TestOpenAICompatModels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"id":"deepseek-ai/DeepSeek-R1"},{"id":"Qwen/Qwen3-8B"}]}`)
	}))
	defer ts.Close()

	p := NewOpenAICompat(Config{BaseURL: ts.URL, APIKey: "k"}, testLogger())
	models, err := p.Models(context.Background())
	if err != nil {
		t.Fatalf("Models failed: %v", err)
	}
	if len(models) != 2 || models[0] != "deepseek-ai/DeepSeek-R1" {
		t.Errorf("models = %v", models)
	}
}

func TestOpenAICompatCheckAvailability(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer ts.Close()

	good := NewOpenAICompat(Config{BaseURL: ts.URL, APIKey: "k"}, testLogger())
	if !good.CheckAvailability(context.Background()) {
		t.Error("expected available with valid key")
	}

	bad := NewOpenAICompat(Config{BaseURL: ts.URL, APIKey: "wrong"}, testLogger())
	if bad.CheckAvailability(context.Background()) {
		t.Error("expected unavailable with rejected key")
	}
}
