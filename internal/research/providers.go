// Package research combines knowledge, live-search and document-analysis evidence
// into one confidence-scored verdict per statement.
package research

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/claimcheck/models"
)

var (
	// ErrNoKnowledgeProvider is returned when no knowledge strategy produced evidence.
	ErrNoKnowledgeProvider = errors.New("no knowledge provider produced evidence")
	// ErrUnparseable is returned when provider output holds no usable evidence.
	ErrUnparseable = errors.New("provider response is not structured evidence")
)

// Tier names used in research_method labels, metrics and provenance.
const (
	TierKnowledge = "knowledge"
	TierSearch    = "live-search"
	TierDocuments = "document-analysis"
)

// KnowledgeProvider answers a statement from model knowledge.
type KnowledgeProvider interface {
	Name() string
	Research(ctx context.Context, req models.ResearchRequest) (models.Evidence, error)
}

// SearchProvider gathers current evidence for a statement from the web.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, req models.ResearchRequest) (models.Evidence, error)
}

// DocumentAnalyzer extracts and classifies supporting/opposing references from live-search evidence.
type DocumentAnalyzer interface {
	Name() string
	Analyze(ctx context.Context, req models.ResearchRequest, web models.Evidence) (models.Evidence, error)
}

// Completer is a text-completion endpoint.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Grounder is a completion endpoint that can search the web and report its sources.
type Grounder interface {
	Name() string
	Grounded(ctx context.Context, prompt string) (string, []models.SearchResult, error)
}
