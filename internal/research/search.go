package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/models"
	"github.com/mohammad-safakhou/claimcheck/tools/web_search"
)

// WebSearch is the live-search tier backed by a plain search API.
type WebSearch struct {
	searcher web_search.WebSearcher
	k        int
	recency  int
}

// NewWebSearch asks searcher for k results per statement, limited to the last recency days when positive.
func NewWebSearch(searcher web_search.WebSearcher, k, recency int) *WebSearch {
	if k <= 0 {
		k = 8
	}
	return &WebSearch{searcher: searcher, k: k, recency: recency}
}

func (w *WebSearch) Name() string { return w.searcher.Name() }

func (w *WebSearch) Search(ctx context.Context, req models.ResearchRequest) (models.Evidence, error) {
	query := req.Statement
	if req.Source != "" {
		query = req.Source + " " + query
	}
	hits, err := w.searcher.Discover(ctx, query, w.k, nil, w.recency)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("%s: %w", w.Name(), err)
	}
	ev := models.Evidence{Provider: w.Name(), Verdict: models.VerdictUnverifiable, Confidence: UnverifiableConfidence}
	var b strings.Builder
	for i, h := range hits {
		if strings.TrimSpace(h.URL) == "" {
			continue
		}
		pos := h.Position
		if pos <= 0 {
			pos = i + 1
		}
		ev.Results = append(ev.Results, models.SearchResult{
			URL:       h.URL,
			Title:     h.Title,
			Snippet:   h.Snippet,
			Summary:   h.Snippet,
			Relevance: positionRelevance(pos, w.k),
		})
		fmt.Fprintf(&b, "%s (%s): %s\n", h.Title, h.URL, h.Snippet)
	}
	ev.Content = strings.TrimSpace(b.String())
	return ev, nil
}

// positionRelevance maps a 1-based rank onto (0,1], first result highest.
func positionRelevance(pos, k int) float64 {
	if k < pos {
		k = pos
	}
	return 1 - float64(pos-1)/float64(k+1)
}

// webPerspectives turns descriptive search results into neutral perspectives.
func webPerspectives(results []models.SearchResult, limit int) []models.ExpertPerspective {
	var out []models.ExpertPerspective
	for _, r := range results {
		if len(out) >= limit {
			break
		}
		text := strings.TrimSpace(r.Summary)
		if text == "" {
			text = strings.TrimSpace(r.Snippet)
		}
		if len(text) <= 50 {
			continue
		}
		name := r.Title
		if name == "" {
			name = helpers.Domain(r.URL)
		}
		conf := r.Relevance * 100
		if conf > 90 {
			conf = 90
		}
		out = append(out, models.ExpertPerspective{
			ExpertName:      name,
			Stance:          models.StanceNeutral,
			Reasoning:       helpers.Truncate(text, 100),
			ConfidenceLevel: conf,
			Summary:         text,
			SourceType:      "web",
			ExpertiseArea:   helpers.Domain(r.URL),
		})
	}
	return out
}
