package helpers

import (
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// citationConfig controls formatting behaviour.
type citationConfig struct {
	maxFinding int
}

// CitationOption configures citation formatting.
type CitationOption func(*citationConfig)

// WithMaxFindingLength truncates key findings to n runes (default 180).
func WithMaxFindingLength(n int) CitationOption {
	return func(cfg *citationConfig) {
		if n > 0 {
			cfg.maxFinding = n
		}
	}
}

// FormatCitation renders a reference in a consistent layout:
// [label] Title "Key finding" (domain, category, credibility) <URL>
func FormatCitation(label string, ref models.Reference, opts ...CitationOption) string {
	cfg := citationConfig{maxFinding: 180}
	for _, opt := range opts {
		opt(&cfg)
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = "source"
	}
	parts := []string{"[" + label + "]"}

	if title := strings.TrimSpace(ref.Title); title != "" {
		parts = append(parts, title)
	}
	if finding := quoteFinding(ref.KeyFinding, cfg.maxFinding); finding != "" {
		parts = append(parts, finding)
	}

	domain := ref.Domain
	if domain == "" {
		domain = Domain(ref.URL)
	}
	var meta []string
	for _, m := range []string{domain, ref.Category, string(ref.Credibility)} {
		if m = strings.TrimSpace(m); m != "" {
			meta = append(meta, m)
		}
	}
	if len(meta) > 0 {
		parts = append(parts, "("+strings.Join(meta, ", ")+")")
	}

	if link := strings.TrimSpace(ref.URL); link != "" {
		parts = append(parts, "<"+link+">")
	}
	return strings.Join(parts, " ")
}

// FormatCitations renders refs labelled prefix1, prefix2, ...
func FormatCitations(prefix string, refs []models.Reference, opts ...CitationOption) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for i, r := range refs {
		out = append(out, FormatCitation(prefix+strconv.Itoa(i+1), r, opts...))
	}
	return out
}

func quoteFinding(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	s = Truncate(s, limit)
	return `"` + strings.Trim(s, `"`) + `"`
}
