package dedupe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/claimcheck/models"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"The Unemployment rate FELL to 3%.": "unemployment rate fell 3",
		"  Café prices, in Paris!  ":        "cafe prices paris",
		"":                                  "",
		"the and of":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeText(in), "input %q", in)
	}
}

func TestRatio(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, Ratio("abc", "abc"))
	assert.Equal(t, 0.0, Ratio("", ""))
	assert.Equal(t, 0.0, Ratio("abc", ""))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
	// "abcd" vs "bcde": one block "bcd" of 3 runes, 2*3/8.
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)
}

func TestReferencesCollapseTrailingSlash(t *testing.T) {
	t.Parallel()
	e := New(DefaultThresholds())
	refs := []models.Reference{
		{URL: "https://x.com/a"},
		{URL: "https://x.com/a/"},
	}
	out := e.References(refs)
	require.Len(t, out, 1)
	assert.Equal(t, "https://x.com/a", out[0].URL)
}

func TestReferencesKeepsHigherCredibility(t *testing.T) {
	t.Parallel()
	e := New(DefaultThresholds())
	refs := []models.Reference{
		{URL: "http://www.bls.gov/news.release/empsit.htm", Title: "Employment Situation", Credibility: models.CredibilityMedium},
		{URL: "", Title: "no url"},
		{URL: "https://bls.gov/news.release/empsit", Title: "Employment Situation Summary", Credibility: models.CredibilityHigh},
		{URL: "https://example.org/report", Title: "Report", Credibility: models.CredibilityLow},
	}
	out := e.References(refs)
	require.Len(t, out, 2)
	assert.Equal(t, models.CredibilityHigh, out[0].Credibility)
	assert.Equal(t, "https://example.org/report", out[1].URL)
}

func TestReferencesSameTitleSameDomain(t *testing.T) {
	t.Parallel()
	e := New(DefaultThresholds())
	refs := []models.Reference{
		{URL: "https://news.example.com/a?id=1", Title: "Jobs report", Credibility: models.CredibilityMedium},
		{URL: "https://news.example.com/b/story/42", Title: "Jobs Report!", Credibility: models.CredibilityHigh},
		{URL: "https://other.example.net/x", Title: "Jobs report", Credibility: models.CredibilityLow},
	}
	out := e.References(refs)
	require.Len(t, out, 2)
	assert.Equal(t, "https://news.example.com/b/story/42", out[0].URL)
	assert.Equal(t, "https://other.example.net/x", out[1].URL)
}

func TestPerspectivesMergeSameStanceOnly(t *testing.T) {
	t.Parallel()
	e := New(DefaultThresholds())
	ps := []models.ExpertPerspective{
		{ExpertName: "a", Stance: models.StanceSupporting, Reasoning: "Official labor statistics show unemployment fell to 3 percent.", ConfidenceLevel: 60},
		{ExpertName: "b", Stance: models.StanceSupporting, Reasoning: "Official labor statistics show unemployment fell to 3 percent", ConfidenceLevel: 85},
		{ExpertName: "c", Stance: models.StanceOpposing, Reasoning: "Official labor statistics show unemployment fell to 3 percent.", ConfidenceLevel: 90},
	}
	out := e.Perspectives(ps)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ExpertName)
	assert.Equal(t, "c", out[1].ExpertName)
}

func TestFindingsKeepLonger(t *testing.T) {
	t.Parallel()
	e := New(DefaultThresholds())
	out := e.Findings([]string{
		"Unemployment fell to 3%",
		"Unemployment fell to 3% in March",
		"Inflation rose",
		"",
	})
	assert.Equal(t, []string{"Unemployment fell to 3% in March", "Inflation rose"}, out)
}

func TestSearchResultsCollapseURLThenContent(t *testing.T) {
	t.Parallel()
	e := New(DefaultThresholds())
	in := []models.SearchResult{
		{URL: "https://a.com/story", Snippet: "Unemployment dropped to three percent last month", Relevance: 0.4},
		{URL: "https://a.com/story/", Snippet: "different text", Relevance: 0.9},
		{URL: "https://b.com/mirror", Snippet: "Unemployment dropped to three percent last month.", Relevance: 0.5},
		{URL: "https://c.com/other", Relevance: 0.1},
	}
	out := e.SearchResults(in)
	require.Len(t, out, 3)
	assert.Equal(t, "https://a.com/story/", out[0].URL)
	assert.Equal(t, "https://b.com/mirror", out[1].URL)
	assert.Equal(t, "https://c.com/other", out[2].URL)
}

func TestDedupeIdempotent(t *testing.T) {
	t.Parallel()
	e := New(DefaultThresholds())
	findings := []string{
		"abcdefghij", "abcdefghxy", "abcdefxyzw", "klmnopqrst", "klmnopqrsz", "zzzz",
	}
	once := e.Findings(findings)
	twice := e.Findings(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("findings not idempotent (-once +twice):\n%s", diff)
	}

	refs := []models.Reference{
		{URL: "https://x.com/a"}, {URL: "https://x.com/a/"}, {URL: "https://x.com/ab"},
		{URL: "https://x.com/abc", Credibility: models.CredibilityHigh}, {URL: "https://y.org/z"},
	}
	r1 := e.References(refs)
	r2 := e.References(r1)
	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Fatalf("references not idempotent (-once +twice):\n%s", diff)
	}
}

func TestNewFallsBackToDefaults(t *testing.T) {
	t.Parallel()
	e := New(Thresholds{Content: 0, URL: 1.5, Finding: 0.5})
	assert.Equal(t, Thresholds{Content: 0.8, URL: 0.9, Finding: 0.5}, e.Thresholds())
}
