package websearch

import (
	"strings"
	"testing"
)

func TestExtractText(t *testing.T) {
	raw := `<html><head><title>Page Title</title><style>.x{}</style></head>
<body>
<nav>Home | About</nav>
<article><h1>Heading</h1><p>First paragraph.</p><p>Second   paragraph.</p></article>
<script>var tracking = true;</script>
<footer>Copyright</footer>
</body></html>`

	title, text := ExtractText(raw)
	if title != "Page Title" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{"Heading", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q in %q", want, text)
		}
	}
	for _, banned := range []string{"tracking", "Copyright", "Home | About", ".x{}"} {
		if strings.Contains(text, banned) {
			t.Errorf("text contains boilerplate %q", banned)
		}
	}
}

func TestExtractTextListItems(t *testing.T) {
	_, text := ExtractText(`<ul><li>one</li><li>two</li></ul>`)
	if !strings.Contains(text, "one") || !strings.Contains(text, "two") {
		t.Errorf("list items missing: %q", text)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("a   b\n\n\n\nc\t\td\n")
	want := "a b\n\nc d"
	if got != want {
		t.Errorf("collapseWhitespace = %q, want %q", got, want)
	}
}

func TestTruncateTextRuneSafe(t *testing.T) {
	s := "天气预报" // 3 bytes per rune
	got := truncateText(s, 7)
	if got != "天气" {
		t.Errorf("truncateText = %q, want %q", got, "天气")
	}
	if got := truncateText("short", 100); got != "short" {
		t.Errorf("truncateText short = %q", got)
	}
}

func TestCleanFragment(t *testing.T) {
	got := cleanFragment(`  <strong>Bold</strong> &amp; <em>spaced</em>   text `)
	if got != "Bold & spaced text" {
		t.Errorf("cleanFragment = %q", got)
	}
}
