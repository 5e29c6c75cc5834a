package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/models"
	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch"
)

// LLMKnowledge answers from a completion model's own knowledge.
type LLMKnowledge struct {
	completer Completer
	logger    *zap.Logger
}

func NewLLMKnowledge(c Completer, logger *zap.Logger) *LLMKnowledge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMKnowledge{completer: c, logger: logger.Named("knowledge").With(zap.String("provider", c.Name()))}
}

func (k *LLMKnowledge) Name() string { return k.completer.Name() }

// Research returns transport errors as-is so a chain can move on; unreadable
// answers degrade to UNVERIFIABLE evidence.
func (k *LLMKnowledge) Research(ctx context.Context, req models.ResearchRequest) (models.Evidence, error) {
	raw, err := k.completer.Complete(ctx, knowledgeSystem, knowledgePrompt(req))
	if err != nil {
		return models.Evidence{}, fmt.Errorf("%s: %w", k.Name(), err)
	}
	ev, err := ParseEvidence(k.Name(), raw)
	if errors.Is(err, ErrUnparseable) {
		k.logger.Warn("unparseable knowledge response", zap.Error(err))
		return Fallback(k.Name(), "knowledge response could not be parsed"), nil
	}
	return ev, err
}

// LLMDocumentAnalyzer fetches the pages behind live-search results and asks a
// completion model to classify them.
type LLMDocumentAnalyzer struct {
	completer    Completer
	fetcher      web_fetch.WebFetcher
	registry     *DomainRegistry
	maxDocuments int
	maxChars     int
	logger       *zap.Logger
}

func NewLLMDocumentAnalyzer(c Completer, fetcher web_fetch.WebFetcher, registry *DomainRegistry, maxDocuments int, logger *zap.Logger) *LLMDocumentAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDocuments <= 0 {
		maxDocuments = 5
	}
	if registry == nil {
		registry = DefaultDomainRegistry()
	}
	return &LLMDocumentAnalyzer{
		completer:    c,
		fetcher:      fetcher,
		registry:     registry,
		maxDocuments: maxDocuments,
		maxChars:     1500,
		logger:       logger.Named("documents").With(zap.String("provider", c.Name())),
	}
}

func (d *LLMDocumentAnalyzer) Name() string { return d.completer.Name() }

func (d *LLMDocumentAnalyzer) Analyze(ctx context.Context, req models.ResearchRequest, web models.Evidence) (models.Evidence, error) {
	documents := d.collect(ctx, web)
	if strings.TrimSpace(documents) == "" {
		documents = web.Content
	}
	raw, err := d.completer.Complete(ctx, knowledgeSystem, documentPrompt(req, documents))
	if err != nil {
		return models.Evidence{}, fmt.Errorf("%s: %w", d.Name(), err)
	}
	ev, err := ParseEvidence(d.Name(), raw)
	if errors.Is(err, ErrUnparseable) {
		d.logger.Warn("unparseable document analysis", zap.Error(err))
		return Fallback(d.Name(), "document analysis could not be parsed"), nil
	}
	if err != nil {
		return models.Evidence{}, err
	}
	ev.Supporting = d.classify(ev.Supporting)
	ev.Opposing = d.classify(ev.Opposing)
	return ev, nil
}

// collect fetches up to maxDocuments result pages concurrently, keeping result order.
func (d *LLMDocumentAnalyzer) collect(ctx context.Context, web models.Evidence) string {
	if d.fetcher == nil || len(web.Results) == 0 {
		return ""
	}
	results := web.Results
	if len(results) > d.maxDocuments {
		results = results[:d.maxDocuments]
	}
	texts := make([]string, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, r := range results {
		g.Go(func() error {
			page, err := d.fetcher.Exec(gctx, r.URL)
			if err != nil || !page.OK() {
				d.logger.Debug("document fetch skipped", zap.String("url", r.URL), zap.Error(err), zap.Int("status", page.Status))
				return nil
			}
			title := page.Title
			if title == "" {
				title = r.Title
			}
			texts[i] = fmt.Sprintf("[%d] %s (%s)\n%s", i+1, title, r.URL, helpers.Truncate(page.Text, d.maxChars))
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	for _, t := range texts {
		if t == "" {
			continue
		}
		b.WriteString(t)
		b.WriteString("\n\n")
	}
	return b.String()
}

func (d *LLMDocumentAnalyzer) classify(refs []models.Reference) []models.Reference {
	for i := range refs {
		if refs[i].Category == "other" {
			if c := d.registry.Classify(refs[i].URL); c != "" {
				refs[i].Category = c
			}
		}
	}
	return refs
}

// GroundedSearch uses a model with built-in web search as the live-search tier.
type GroundedSearch struct {
	grounder Grounder
}

func NewGroundedSearch(g Grounder) *GroundedSearch { return &GroundedSearch{grounder: g} }

func (g *GroundedSearch) Name() string { return g.grounder.Name() }

func (g *GroundedSearch) Search(ctx context.Context, req models.ResearchRequest) (models.Evidence, error) {
	text, sources, err := g.grounder.Grounded(ctx, groundedPrompt(req))
	if err != nil {
		return models.Evidence{}, fmt.Errorf("%s: %w", g.Name(), err)
	}
	ev := models.Evidence{Provider: g.Name(), Verdict: models.VerdictUnverifiable, Confidence: UnverifiableConfidence}
	if parsed, perr := ParseEvidence(g.Name(), text); perr == nil {
		ev = parsed
	}
	ev.Content = strings.TrimSpace(text)
	ev.Results = sources
	return ev, nil
}
