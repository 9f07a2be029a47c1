package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deskchat/deskchat/internal/chat"
)

func TestPrinterAppendsIncrements(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}

	p.update("Hel")
	p.update("Hello")
	p.update("Hello world")

	if got := buf.String(); got != "Hello world" {
		t.Errorf("output = %q, want %q", got, "Hello world")
	}
}

func TestPrinterRecoversFromRewrittenSnapshot(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}

	p.update("abc")
	p.update("xyz")

	if got := buf.String(); got != "abc\nxyz" {
		t.Errorf("output = %q, want re-render on a fresh line", got)
	}
	if p.printed != "xyz" {
		t.Errorf("printed = %q", p.printed)
	}
}

func TestPrinterCleanOutputWithSplitThinkTags(t *testing.T) {
	// A think tag split across stream chunks must never leave tag
	// fragments on screen.
	chunks := []string{"<thi", "nk>reasoning here</thi", "nk>answer text"}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, `{"message":{"content":%q},"done":false}`+"\n", c)
			f.Flush()
		}
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer ts.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := chat.NewOllama(chat.Config{BaseURL: ts.URL, Model: "qwen3"}, logger)

	var buf bytes.Buffer
	out := &printer{w: &buf}
	answer, err := provider.Chat(context.Background(), chat.Request{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "think about it"}},
		OnToken:  out.update,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if answer != "answer text" {
		t.Errorf("answer = %q", answer)
	}
	if got := buf.String(); got != "answer text" {
		t.Errorf("terminal output = %q, want %q", got, "answer text")
	}
}
