package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCustomEngineSearch(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("kw")
		if r.URL.Query().Get("lang") != "en" {
			t.Errorf("existing query param lost: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `<html><head><title>Weather Portal</title></head>
<body><script>ignore();</script><p>Sunny, 25 degrees.</p></body></html>`)
	}))
	defer ts.Close()

	engine, err := NewEngine(Config{
		Enabled:     true,
		Engine:      "custom",
		SearchURL:   ts.URL + "/search?lang=en",
		SearchParam: "kw",
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	results, err := engine.Search(context.Background(), "weather today")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotQuery != "weather today" {
		t.Errorf("query param = %q", gotQuery)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Title != "Weather Portal" {
		t.Errorf("title = %q", results[0].Title)
	}
	if !strings.Contains(results[0].Snippet, "Sunny, 25 degrees.") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
	if strings.Contains(results[0].Snippet, "ignore") {
		t.Error("script content leaked into snippet")
	}
	if results[0].Source != "custom" {
		t.Errorf("source = %q", results[0].Source)
	}
}

func TestCustomEngineHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	engine, _ := NewEngine(Config{Enabled: true, Engine: "custom", SearchURL: ts.URL})
	if _, err := engine.Search(context.Background(), "q"); err == nil {
		t.Error("expected error for HTTP 503")
	}
}

func TestScraperSendsConfiguredUserAgent(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "<html></html>")
	}))
	defer ts.Close()

	engine, _ := NewEngine(Config{Enabled: true, Engine: "custom", SearchURL: ts.URL})
	engine.Search(context.Background(), "q")

	if gotUA != BrowserUserAgent {
		t.Errorf("User-Agent = %q, want browser default", gotUA)
	}
}
