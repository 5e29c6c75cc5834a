// Package dedupe collapses near-duplicate references, perspectives, findings and
// search results using normalized-text and URL similarity.
package dedupe

import (
	"strings"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// Thresholds are the similarity ratios at or above which two items are duplicates.
type Thresholds struct {
	Content float64 `json:"content"`
	URL     float64 `json:"url"`
	Finding float64 `json:"finding"`
}

// DefaultThresholds returns the empirically tuned ratios.
func DefaultThresholds() Thresholds {
	return Thresholds{Content: 0.8, URL: 0.9, Finding: 0.7}
}

// Spec tells Dedupe how to compare and rank items of one type.
type Spec[T any] struct {
	// Key returns the comparison text. It should already be normalized.
	Key func(T) string
	// Score ranks duplicates; the higher score survives, ties keep the earlier item.
	Score func(T) float64
	// Compatible optionally restricts which pairs may be merged at all.
	Compatible func(a, b T) bool
	// KeepEmpty keeps items with an empty key instead of dropping them. Such items are never merged.
	KeepEmpty bool
}

// Dedupe collapses items whose keys have Ratio >= threshold, keeping the
// higher-scored item in the position of the first occurrence. Passes repeat until
// nothing merges, so Dedupe(Dedupe(x)) equals Dedupe(x).
func Dedupe[T any](items []T, threshold float64, spec Spec[T]) []T {
	if len(items) == 0 {
		return nil
	}
	type entry struct {
		item T
		key  string
	}
	current := make([]entry, 0, len(items))
	for _, it := range items {
		k := spec.Key(it)
		if k == "" && !spec.KeepEmpty {
			continue
		}
		current = append(current, entry{item: it, key: k})
	}

	for {
		kept := make([]entry, 0, len(current))
		for _, e := range current {
			merged := false
			if e.key != "" {
				for i := range kept {
					if kept[i].key == "" {
						continue
					}
					if spec.Compatible != nil && !spec.Compatible(kept[i].item, e.item) {
						continue
					}
					if Ratio(kept[i].key, e.key) < threshold {
						continue
					}
					if spec.Score != nil && spec.Score(e.item) > spec.Score(kept[i].item) {
						kept[i] = e
					}
					merged = true
					break
				}
			}
			if !merged {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(current) {
			out := make([]T, len(kept))
			for i, e := range kept {
				out[i] = e.item
			}
			return out
		}
		current = kept
	}
}

// Engine applies the configured thresholds to the domain collections.
type Engine struct {
	th Thresholds
}

// New builds an Engine; zero or out-of-range thresholds fall back to the defaults.
func New(th Thresholds) *Engine {
	def := DefaultThresholds()
	if th.Content <= 0 || th.Content > 1 {
		th.Content = def.Content
	}
	if th.URL <= 0 || th.URL > 1 {
		th.URL = def.URL
	}
	if th.Finding <= 0 || th.Finding > 1 {
		th.Finding = def.Finding
	}
	return &Engine{th: th}
}

// Thresholds returns the active thresholds.
func (e *Engine) Thresholds() Thresholds { return e.th }

// TextSimilarity compares two free-text strings after normalization.
func (e *Engine) TextSimilarity(a, b string) float64 {
	return Ratio(NormalizeText(a), NormalizeText(b))
}

// URLSimilarity compares two URLs after canonical reduction.
func (e *Engine) URLSimilarity(a, b string) float64 {
	return Ratio(helpers.ComparableURL(a), helpers.ComparableURL(b))
}

// Similar reports whether two statements are near-duplicates at the content threshold.
func (e *Engine) Similar(a, b string) bool {
	return e.TextSimilarity(a, b) >= e.th.Content
}

// References drops entries without a URL, collapses near-identical URLs and then
// identical titles from the same domain. Higher credibility wins.
func (e *Engine) References(refs []models.Reference) []models.Reference {
	score := func(r models.Reference) float64 {
		s := float64(r.Credibility.Rank()) * 10
		if strings.TrimSpace(r.KeyFinding) != "" {
			s++
		}
		return s
	}
	byURL := Dedupe(refs, e.th.URL, Spec[models.Reference]{
		Key:   func(r models.Reference) string { return helpers.ComparableURL(r.URL) },
		Score: score,
	})
	return Dedupe(byURL, 1, Spec[models.Reference]{
		Key: func(r models.Reference) string {
			title := NormalizeText(r.Title)
			if title == "" {
				return ""
			}
			return helpers.Domain(r.URL) + "|" + title
		},
		Score:     score,
		KeepEmpty: true,
	})
}

// Perspectives merges entries with the same stance and similar reasoning; the more
// confident one survives.
func (e *Engine) Perspectives(ps []models.ExpertPerspective) []models.ExpertPerspective {
	return Dedupe(ps, e.th.Content, Spec[models.ExpertPerspective]{
		Key: func(p models.ExpertPerspective) string {
			if k := NormalizeText(p.Reasoning); k != "" {
				return k
			}
			return NormalizeText(p.Summary)
		},
		Score:      func(p models.ExpertPerspective) float64 { return p.ConfidenceLevel },
		Compatible: func(a, b models.ExpertPerspective) bool { return a.Stance == b.Stance },
	})
}

// Findings collapses short key-finding strings at the finding threshold, keeping the longer text.
func (e *Engine) Findings(findings []string) []string {
	return Dedupe(findings, e.th.Finding, Spec[string]{
		Key:   NormalizeText,
		Score: func(s string) float64 { return float64(len(s)) },
	})
}

// SearchResults collapses hits pointing at the same page, then hits with near-identical text.
func (e *Engine) SearchResults(results []models.SearchResult) []models.SearchResult {
	relevance := func(r models.SearchResult) float64 { return r.Relevance }
	byURL := Dedupe(results, e.th.URL, Spec[models.SearchResult]{
		Key:   func(r models.SearchResult) string { return helpers.ComparableURL(r.URL) },
		Score: relevance,
	})
	return Dedupe(byURL, e.th.Content, Spec[models.SearchResult]{
		Key: func(r models.SearchResult) string {
			text := r.Summary
			if text == "" {
				text = r.Snippet
			}
			return NormalizeText(text)
		},
		Score:     relevance,
		KeepEmpty: true,
	})
}
