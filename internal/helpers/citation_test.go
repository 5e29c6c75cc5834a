package helpers

import (
	"testing"

	"github.com/mohammad-safakhou/claimcheck/models"
)

func TestFormatCitation(t *testing.T) {
	t.Parallel()
	ref := models.Reference{
		Title:       "Labor Force Statistics",
		URL:         "https://www.bls.gov/cps/?ref=homepage",
		Category:    "governance",
		Credibility: models.CredibilityHigh,
		KeyFinding:  "Unemployment fell to 3.7 percent in November.",
	}

	got := FormatCitation("A1", ref)
	want := `[A1] Labor Force Statistics "Unemployment fell to 3.7 percent in November." (bls.gov, governance, high) <https://www.bls.gov/cps/?ref=homepage>`

	if got != want {
		t.Fatalf("FormatCitation() = %q, want %q", got, want)
	}
}

func TestFormatCitationTruncatesFinding(t *testing.T) {
	t.Parallel()
	ref := models.Reference{
		URL:        "https://example.com/article",
		Domain:     "example.com",
		KeyFinding: "A very long finding that should be truncated for neat citation summaries and avoid overly verbose output.",
	}

	got := FormatCitation("", ref, WithMaxFindingLength(40))
	want := `[source] "A very long finding that should be tr..." (example.com) <https://example.com/article>`

	if got != want {
		t.Fatalf("FormatCitation() = %q, want %q", got, want)
	}
}

func TestFormatCitationsBatch(t *testing.T) {
	t.Parallel()
	list := []models.Reference{
		{Title: "First", URL: "https://a.example.com"},
		{Title: "Second", URL: "https://b.example.com"},
	}
	items := FormatCitations("D", list)
	if len(items) != 2 {
		t.Fatalf("expected 2 formatted citations, got %d", len(items))
	}
	if items[1] != "[D2] Second (b.example.com) <https://b.example.com>" {
		t.Fatalf("unexpected second citation: %q", items[1])
	}
	if FormatCitations("D", nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
}
