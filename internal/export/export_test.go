package export

import (
	"strings"
	"testing"
	"time"

	"quill/api/internal/doc"
)

func TestRenderHTMLBasicBlocks(t *testing.T) {
	d := &doc.Document{Root: &doc.Node{Type: doc.KindDoc, Content: []*doc.Node{
		{ID: "h1", Type: doc.KindHeading, Attrs: map[string]any{"level": float64(2)}, Content: []*doc.Node{
			{Type: doc.KindText, Text: "Section"},
		}},
		{ID: "p1", Type: doc.KindParagraph, Content: []*doc.Node{
			{Type: doc.KindText, Text: "plain "},
			{Type: doc.KindText, Text: "bold", Marks: []doc.Mark{{Type: "bold"}}},
		}},
		{ID: "hr", Type: doc.KindHorizontalRule},
	}}}

	html := RenderHTML(d)
	for _, want := range []string{"<h2>Section</h2>", "<strong>bold</strong>", "<hr>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("missing %q in:\n%s", want, html)
		}
	}
}

func TestRenderHTMLEscapesText(t *testing.T) {
	d := &doc.Document{Root: &doc.Node{Type: doc.KindDoc, Content: []*doc.Node{
		{ID: "p1", Type: doc.KindParagraph, Content: []*doc.Node{
			{Type: doc.KindText, Text: "<script>alert(1)</script>"},
		}},
	}}}
	html := RenderHTML(d)
	if strings.Contains(html, "<script>") {
		t.Fatalf("unescaped markup in:\n%s", html)
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Fatalf("expected escaped markup in:\n%s", html)
	}
}

func TestRenderHTMLLists(t *testing.T) {
	d := &doc.Document{Root: &doc.Node{Type: doc.KindDoc, Content: []*doc.Node{
		{ID: "ul", Type: doc.KindBulletList, Content: []*doc.Node{
			{ID: "li1", Type: doc.KindListItem, Content: []*doc.Node{
				{ID: "p1", Type: doc.KindParagraph, Content: []*doc.Node{
					{Type: doc.KindText, Text: "item one"},
				}},
			}},
		}},
	}}}
	html := RenderHTML(d)
	if !strings.Contains(html, "<ul>") || !strings.Contains(html, "<li>") || !strings.Contains(html, "item one") {
		t.Fatalf("list markup missing:\n%s", html)
	}
}

func TestRenderHTMLLinkMark(t *testing.T) {
	d := &doc.Document{Root: &doc.Node{Type: doc.KindDoc, Content: []*doc.Node{
		{ID: "p1", Type: doc.KindParagraph, Content: []*doc.Node{
			{Type: doc.KindText, Text: "docs", Marks: []doc.Mark{
				{Type: "link", Attrs: map[string]any{"href": "https://example.com"}},
			}},
		}},
	}}}
	html := RenderHTML(d)
	if !strings.Contains(html, `<a href="https://example.com">docs</a>`) {
		t.Fatalf("link markup missing:\n%s", html)
	}
}

func TestRenderHTMLCodeBlock(t *testing.T) {
	d := &doc.Document{Root: &doc.Node{Type: doc.KindDoc, Content: []*doc.Node{
		{ID: "c1", Type: doc.KindCodeBlock, Content: []*doc.Node{
			{Type: doc.KindText, Text: "a < b"},
		}},
	}}}
	html := RenderHTML(d)
	if !strings.Contains(html, "<pre><code>a &lt; b</code></pre>") {
		t.Fatalf("code block markup missing:\n%s", html)
	}
}

func TestRenderPageHTMLIncludesThreads(t *testing.T) {
	out, err := RenderPageHTML(TemplateData{
		Title:     "My Page",
		Author:    "alice",
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Threads: []TemplateThread{{
			Snapshot: "anchored text",
			Resolved: true,
			Messages: []TemplateMessage{{Author: "bob", Body: "looks good"}},
		}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"My Page", "anchored text", "Resolved", "looks good"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in rendered page", want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Release Notes 2026":    "Release-Notes-2026",
		"weird / name <>":       "weird--name-",
		"":                      "page",
		strings.Repeat("a", 80): strings.Repeat("a", 50),
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b<c>")
	if got != "a%20b%3Cc%3E" {
		t.Fatalf("encoded = %q", got)
	}
}
