package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

var longParagraph = strings.Repeat("Customer support teams answer questions faster with good tooling. ", 8)

type fakeRenderer struct {
	pages map[string]string
	err   error
	calls []string
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return "", f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("not found")
	}
	return page, nil
}

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return doc
}

func TestCascadeFallsBackToBody(t *testing.T) {
	markup := `<html><head><title>Fallback Page | Example</title></head><body>
		<article><p>Too short to count.</p></article>
		<div class="wrapper"><p>` + longParagraph + `</p></div>
	</body></html>`

	doc := mustDoc(t, markup)
	text, strategy := MustDefaultCascade().Run(doc)

	if text == "" {
		t.Fatal("Expected body fallback content, got empty string")
	}
	if strategy != "selector:body" {
		t.Errorf("Expected body fallback strategy, got %s", strategy)
	}
	if !strings.Contains(text, "Customer support teams answer questions") {
		t.Errorf("Expected long paragraph in content, got %q", text)
	}
	if !strings.Contains(text, "Too short to count.") {
		t.Errorf("Expected body text to include the article text, got %q", text)
	}
}

func TestCascadePrefersSpecificContainer(t *testing.T) {
	markup := `<html><body>
		<header><h1>Site Header</h1></header>
		<div id="main-container"><main id="main" class="site-main">
			<p>` + longParagraph + `</p>
			<div class="share-buttons">Share on social</div>
		</main></div>
		<footer>Copyright footer</footer>
		<script>track()</script>
	</body></html>`

	doc := mustDoc(t, markup)
	text, strategy := MustDefaultCascade().Run(doc)

	if strategy != "selector:#main-container #main.site-main" {
		t.Errorf("Expected the most specific selector to win, got %s", strategy)
	}
	for _, unwanted := range []string{"Site Header", "Copyright footer", "Share on social", "track()"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("Expected %q to be stripped, got %q", unwanted, text)
		}
	}
}

func TestCascadeTruncates(t *testing.T) {
	markup := `<html><body><article><p>` + strings.Repeat("word ", 2000) + `</p></article></body></html>`

	text, _ := MustDefaultCascade().Run(mustDoc(t, markup))

	if !strings.HasSuffix(text, TruncationMarker) {
		t.Errorf("Expected truncation marker, got suffix %q", text[len(text)-10:])
	}
	if n := utf8.RuneCountInString(text); n != 5000+len(TruncationMarker) {
		t.Errorf("Expected %d runes, got %d", 5000+len(TruncationMarker), n)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a   b \n\n\n\n c\t d ", "a b\n\nc d"},
		{"line one\nline two", "line one\nline two"},
		{"\n\n\n", ""},
		{"x  y", "x y"},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelectionTextBreaksBlocks(t *testing.T) {
	doc := mustDoc(t, `<div id="x"><p>Hello</p><p>World</p><span>in</span><span>line</span></div>`)

	got := NormalizeText(SelectionText(doc.Find("#x")))
	if got != "Hello\n\nWorld\ninline" {
		t.Errorf("Expected block-separated text, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 10); got != "héllo" {
		t.Errorf("Expected short string untouched, got %q", got)
	}
	if got := Truncate("héllo world", 5); got != "héllo..." {
		t.Errorf("Expected rune-safe truncation, got %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("Expected zero max to disable truncation, got %q", got)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"h1", `<html><head><title>Doc | Site</title></head><body><h1> Main  Heading </h1><h1>Second</h1></body></html>`, "Main Heading"},
		{"title split", `<html><head><title>Doc Title | Site Name</title></head><body></body></html>`, "Doc Title"},
		{"unknown", `<html><body><p>no title</p></body></html>`, UnknownTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(mustDoc(t, tt.markup)); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLoadCascade(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	content := `min_length: 10
remove: [nav]
strategies:
  - kind: selector
    selector: ".post"
  - kind: readability
`
	if err := os.WriteFile(good, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write cascade: %v", err)
	}

	c, err := LoadCascade(good)
	if err != nil {
		t.Fatalf("Expected valid cascade, got %v", err)
	}
	if len(c.strategies) != 2 || c.strategies[1].Name() != KindReadability {
		t.Errorf("Expected selector and readability strategies, got %d", len(c.strategies))
	}
	if c.maxLength != 5000 || c.fallback.Name() != "selector:body" {
		t.Errorf("Expected defaults for max length and fallback, got %d / %s", c.maxLength, c.fallback.Name())
	}

	text, strategy := c.Run(mustDoc(t, `<html><body><nav>Menu</nav><div class="post">Enough text here</div></body></html>`))
	if strategy != "selector:.post" || text != "Enough text here" {
		t.Errorf("Expected .post text with a low threshold, got %q from %s", text, strategy)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("strategies:\n  - kind: magic\n"), 0o644); err != nil {
		t.Fatalf("Failed to write cascade: %v", err)
	}
	if _, err := LoadCascade(bad); err == nil {
		t.Error("Expected error for unknown strategy kind")
	}
}

func TestExtractorExtract(t *testing.T) {
	renderer := &fakeRenderer{pages: map[string]string{
		"https://www.example.com/blog/post": `<html><head><title>Ignored | Example</title></head><body>
			<h1>Remote Work Guide</h1><article><p>` + longParagraph + `</p></article></body></html>`,
	}}
	extractor := NewExtractor(renderer, nil)

	page, err := extractor.Extract(context.Background(), "https://www.example.com/blog/post")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if page.Title != "Remote Work Guide" {
		t.Errorf("Expected h1 title, got %q", page.Title)
	}
	if page.Source != "example.com" {
		t.Errorf("Expected source example.com, got %q", page.Source)
	}
	if page.URL != "https://www.example.com/blog/post" {
		t.Errorf("Expected URL to be kept, got %q", page.URL)
	}
	if !strings.HasPrefix(page.Content, "Customer support") {
		t.Errorf("Expected article content, got %q", page.Content)
	}
}

func TestExtractorRenderFailure(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("navigation timeout")}
	extractor := NewExtractor(renderer, nil)

	page, err := extractor.Extract(context.Background(), "https://example.com/slow")
	if err == nil || page != nil {
		t.Errorf("Expected nil page and error, got %v / %v", page, err)
	}

	if _, err := extractor.Extract(context.Background(), "not a url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
	if len(renderer.calls) != 1 {
		t.Errorf("Expected invalid URL to be rejected before rendering, got %d calls", len(renderer.calls))
	}
}

func TestSelectHTML(t *testing.T) {
	base, _ := url.Parse("https://beyondchats.com/blogs/post/")
	markup := `<html><body><div id="content">
		<p>` + longParagraph + `</p>
		<img data-src="/img/a.png" loading="eager">
		<img src="//cdn.example.com/c.png" srcset="/a.png 1x, /b.png 2x">
		<a href="/blogs/other/">Other</a>
		<script>bad()</script>
		<div class="share-buttons">Share</div>
	</div></body></html>`

	doc := mustDoc(t, markup)
	got := SelectHTML(doc, base, DefaultHTMLOptions())

	want := []string{
		`src="https://beyondchats.com/img/a.png"`,
		`src="https://cdn.example.com/c.png"`,
		`srcset="https://beyondchats.com/a.png 1x, https://beyondchats.com/b.png 2x"`,
		`href="https://beyondchats.com/blogs/other/"`,
		`target="_blank"`,
		`rel="noopener noreferrer"`,
		`loading="lazy"`,
	}
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("Expected %s in cleaned HTML:\n%s", w, got)
		}
	}
	for _, unwanted := range []string{"bad()", "Share", "data-src", `loading="eager"`} {
		if strings.Contains(got, unwanted) {
			t.Errorf("Expected %q to be removed:\n%s", unwanted, got)
		}
	}

	if doc.Find("script").Length() != 1 {
		t.Error("Expected the source document to be left untouched")
	}
}

func TestSelectHTMLFallsBackToMain(t *testing.T) {
	base, _ := url.Parse("https://beyondchats.com/")
	markup := `<html><body><div id="content"><p>tiny</p></div><main><p>` + longParagraph + `</p></main></body></html>`

	got := SelectHTML(mustDoc(t, markup), base, DefaultHTMLOptions())
	if !strings.Contains(got, "Customer support") {
		t.Errorf("Expected main content after short #content, got %q", got)
	}
}

func TestAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://beyondchats.com/blogs/post/")

	tests := map[string]string{
		"https://other.com/x": "https://other.com/x",
		"//cdn.com/y.png":     "https://cdn.com/y.png",
		"/root.png":           "https://beyondchats.com/root.png",
		"rel.png":             "https://beyondchats.com/blogs/post/rel.png",
	}
	for in, want := range tests {
		if got := AbsoluteURL(base, in); got != want {
			t.Errorf("AbsoluteURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPRenderer(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	renderer := NewHTTPRenderer(0, "articleforge-test")

	body, err := renderer.Render(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(body, "ok") {
		t.Errorf("Expected body, got %q", body)
	}
	if gotUA != "articleforge-test" {
		t.Errorf("Expected user agent to be sent, got %q", gotUA)
	}

	if _, err := renderer.Render(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("Expected error for 404")
	}
}
