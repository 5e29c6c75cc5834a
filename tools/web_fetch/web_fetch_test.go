package web_fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch/models"
)

type stubFetcher struct {
	res   models.Result
	err   error
	calls int
}

func (s *stubFetcher) Exec(context.Context, string) (models.Result, error) {
	s.calls++
	return s.res, s.err
}

func TestHTTPFetchExtractsArticleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Jobs report</title>
			<meta property="og:site_name" content="Bureau"></head>
			<body><nav>menu</nav><article><h1>Jobs</h1><p>Unemployment fell to 3.4 percent.</p>
			<script>var x = 1;</script><p>Payrolls rose.</p></article></body></html>`))
	}))
	defer srv.Close()

	res, err := httpfetch.Fetch{}.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Title != "Jobs report" || res.SiteName != "Bureau" {
		t.Fatalf("unexpected metadata %+v", res)
	}
	if !strings.Contains(res.Text, "Unemployment fell to 3.4 percent.") || strings.Contains(res.Text, "var x") || strings.Contains(res.Text, "menu") {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if !res.OK() {
		t.Fatalf("expected OK result")
	}
}

func TestHTTPFetchReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	res, err := httpfetch.Fetch{}.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Status != http.StatusNotFound || res.OK() {
		t.Fatalf("expected 404 result, got %+v", res)
	}
}

func TestFallbackUsesSecondaryForThinPages(t *testing.T) {
	primary := &stubFetcher{res: models.Result{Status: 200, Text: "short"}}
	secondary := &stubFetcher{res: models.Result{Status: 200, Text: strings.Repeat("rendered ", 40)}}
	f := Fallback{Primary: primary, Secondary: secondary, MinChars: 100}

	res, err := f.Exec(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if secondary.calls != 1 || !strings.HasPrefix(res.Text, "rendered") {
		t.Fatalf("expected secondary result, got %+v", res)
	}

	rich := &stubFetcher{res: models.Result{Status: 200, Text: strings.Repeat("x", 150)}}
	unused := &stubFetcher{}
	if _, err := (Fallback{Primary: rich, Secondary: unused, MinChars: 100}).Exec(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}
	if unused.calls != 0 {
		t.Fatalf("secondary should not run for rich pages")
	}
}

func TestNewWebFetcherRejectsUnknownType(t *testing.T) {
	if _, err := NewWebFetcher("curl", 0, 0); err != ErrUnsupportedFetcher {
		t.Fatalf("expected ErrUnsupportedFetcher, got %v", err)
	}
}
