package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/claimcheck/internal/dedupe"
	"github.com/mohammad-safakhou/claimcheck/internal/telemetry"
	"github.com/mohammad-safakhou/claimcheck/models"
)

const (
	DefaultMinWebContent = 100
	maxWebPerspectives   = 5
	maxWebFindings       = 5
)

// Synthesizer turns one statement into a SynthesizedVerdict using the knowledge
// chain as backbone and the live-search and document tiers as enrichment.
type Synthesizer struct {
	chain         *Chain
	search        []SearchProvider
	documents     DocumentAnalyzer
	engine        *dedupe.Engine
	registry      *DomainRegistry
	scoring       Scoring
	minWebContent int
	tierTimeout   time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

type Option func(*Synthesizer)

// WithSearch sets the live-search providers, tried in order until one returns enough content.
func WithSearch(providers ...SearchProvider) Option {
	return func(s *Synthesizer) { s.search = providers }
}

func WithDocuments(d DocumentAnalyzer) Option {
	return func(s *Synthesizer) { s.documents = d }
}

func WithEngine(e *dedupe.Engine) Option {
	return func(s *Synthesizer) {
		if e != nil {
			s.engine = e
		}
	}
}

func WithRegistry(r *DomainRegistry) Option {
	return func(s *Synthesizer) {
		if r != nil {
			s.registry = r
		}
	}
}

func WithScoring(sc Scoring) Option {
	return func(s *Synthesizer) { s.scoring = sc.Normalize() }
}

func WithMinWebContent(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.minWebContent = n
		}
	}
}

// WithTierTimeout bounds each live-search and document call.
func WithTierTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.tierTimeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSynthesizer(chain *Chain, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		chain:         chain,
		engine:        dedupe.New(dedupe.DefaultThresholds()),
		registry:      DefaultDomainRegistry(),
		scoring:       DefaultScoring(),
		minWebContent: DefaultMinWebContent,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("research")
	return s
}

// Engine exposes the deduplication engine the synthesizer uses.
func (s *Synthesizer) Engine() *dedupe.Engine { return s.engine }

type knowledgeOutcome struct {
	evidence models.Evidence
	index    int
	err      error
}

type enrichmentOutcome struct {
	web         models.Evidence
	webLabel    string
	webOK       bool
	docs        models.Evidence
	docsLabel   string
	docsOK      bool
	fallbackWhy string
}

// Synthesize never fails because of a provider: unavailable or unreadable tiers
// degrade the verdict instead. Only a cancelled or expired ctx is returned as an error.
func (s *Synthesizer) Synthesize(ctx context.Context, req models.ResearchRequest) (models.SynthesizedVerdict, error) {
	ctx, span := telemetry.StartSpan(ctx, "research.synthesize", "statement", req.Statement)
	var k knowledgeOutcome
	var e enrichmentOutcome

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		k = s.knowledge(gctx, req)
		return nil
	})
	g.Go(func() error {
		e = s.enrich(gctx, req)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		telemetry.EndSpan(span, err)
		return models.SynthesizedVerdict{}, fmt.Errorf("synthesize: %w", err)
	}
	out := s.combine(req, k, e)
	telemetry.Annotate(span, "research_method", out.ResearchMethod, "status", string(out.Verdict))
	telemetry.EndSpan(span, nil)
	return out, nil
}

func (s *Synthesizer) knowledge(ctx context.Context, req models.ResearchRequest) knowledgeOutcome {
	if s.chain == nil {
		return knowledgeOutcome{index: -1, err: ErrNoKnowledgeProvider}
	}
	ev, idx, attempts, err := s.chain.Research(ctx, req)
	if err != nil {
		s.logger.Warn("knowledge tier unavailable", zap.Int("attempts", len(attempts)), zap.Error(err))
		return knowledgeOutcome{index: -1, err: err}
	}
	return knowledgeOutcome{evidence: ev, index: idx}
}

func (s *Synthesizer) enrich(ctx context.Context, req models.ResearchRequest) enrichmentOutcome {
	var out enrichmentOutcome
	reason := "no live-search provider configured"
	for _, p := range s.search {
		ev, err := s.searchOnce(ctx, p, req)
		if err != nil {
			s.logger.Warn("live-search provider failed", zap.String("tier", TierSearch), zap.String("provider", p.Name()), zap.Error(err))
			reason = "live-search provider " + p.Name() + " failed"
			continue
		}
		if len(strings.TrimSpace(ev.Content)) < s.minWebContent {
			reason = fmt.Sprintf("live-search content from %s below %d characters", p.Name(), s.minWebContent)
			continue
		}
		out.web, out.webLabel, out.webOK = ev, p.Name(), true
		break
	}
	if !out.webOK {
		out.web.Content = FallbackContext(req, reason, s.now())
		out.fallbackWhy = reason
		return out
	}

	if s.documents == nil {
		return out
	}
	docs, err := s.analyzeOnce(ctx, req, out.web)
	if err != nil {
		s.logger.Warn("document analysis failed", zap.String("tier", TierDocuments), zap.String("provider", s.documents.Name()), zap.Error(err))
		return out
	}
	if docs.Verdict.Definitive() || len(docs.Supporting)+len(docs.Opposing) > 0 {
		out.docs, out.docsLabel, out.docsOK = docs, s.documents.Name(), true
	}
	return out
}

func (s *Synthesizer) searchOnce(ctx context.Context, p SearchProvider, req models.ResearchRequest) (models.Evidence, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	started := time.Now()
	ev, err := p.Search(ctx, req)
	telemetry.ObserveProvider(TierSearch, p.Name(), started, err)
	return ev, err
}

func (s *Synthesizer) analyzeOnce(ctx context.Context, req models.ResearchRequest, web models.Evidence) (models.Evidence, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	started := time.Now()
	ev, err := s.documents.Analyze(ctx, req, web)
	telemetry.ObserveProvider(TierDocuments, s.documents.Name(), started, err)
	return ev, err
}

func (s *Synthesizer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.tierTimeout > 0 {
		return context.WithTimeout(ctx, s.tierTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Synthesizer) combine(req models.ResearchRequest, k knowledgeOutcome, e enrichmentOutcome) models.SynthesizedVerdict {
	base := k.evidence
	var methods, provenance, tiers []string
	if k.err != nil {
		base = Fallback("none", "no knowledge provider produced an answer")
		methods = append(methods, TierKnowledge+":unavailable")
	} else {
		label := TierKnowledge + ":" + base.Provider
		if k.index > 0 {
			label += " (fallback)"
		}
		methods = append(methods, label)
		provenance = append(provenance, base.Provider)
		tiers = append(tiers, TierKnowledge)
	}

	// A tier that is not named in the method contributes nothing else either.
	var results []models.SearchResult
	if e.webOK {
		results = s.engine.SearchResults(e.web.Results)
		methods = append(methods, TierSearch+":"+e.webLabel)
		provenance = append(provenance, e.webLabel)
		tiers = append(tiers, TierSearch)
	}
	if e.docsOK {
		methods = append(methods, TierDocuments+":"+e.docsLabel)
		provenance = append(provenance, e.docsLabel)
		tiers = append(tiers, TierDocuments)
	}

	agreed := s.engine.References(normalizeRefs(append(append([]models.Reference{}, base.Supporting...), e.docs.Supporting...)))
	disagreed := s.engine.References(normalizeRefs(append(append([]models.Reference{}, base.Opposing...), e.docs.Opposing...)))

	perspectives := append([]models.ExpertPerspective{}, base.Perspectives...)
	perspectives = append(perspectives, e.docs.Perspectives...)
	perspectives = append(perspectives, webPerspectives(results, maxWebPerspectives)...)
	perspectives = s.engine.Perspectives(perspectives)

	llmFindings := s.engine.Findings(base.Findings)
	var webFindings []string
	if e.webOK {
		webFindings = s.engine.Findings(webFindingsFrom(e.web, results))
	}
	resourceFindings := e.docs.Findings
	for _, r := range append(append([]models.Reference{}, agreed...), disagreed...) {
		if r.KeyFinding != "" {
			resourceFindings = append(resourceFindings, r.KeyFinding)
		}
	}
	resourceFindings = s.engine.Findings(resourceFindings)
	all := append(append(append([]string{}, llmFindings...), webFindings...), resourceFindings...)
	keyFindings := s.engine.Findings(all)

	var enrichment []string
	var officialRefs []models.Reference
	if e.webOK {
		for _, r := range results {
			enrichment = append(enrichment, r.URL)
		}
		for _, r := range append(append([]models.Reference{}, e.docs.Supporting...), e.docs.Opposing...) {
			enrichment = append(enrichment, r.URL)
		}
		officialRefs = e.docs.Supporting
	}
	confidence := s.scoring.Score(ScoreInput{
		Base:           base,
		Sources:        enrichment,
		Official:       countOfficial(s.registry, urlsOf(results), officialRefs),
		Contradictions: len(e.docs.Opposing),
	})

	country := models.NormalizeCountry(base.Country)
	if country == "unknown" && req.Country != "" {
		country = models.NormalizeCountry(req.Country)
	}

	return models.SynthesizedVerdict{
		Verdict:            base.Verdict,
		VerdictText:        base.Summary,
		Correction:         base.Correction,
		Country:            country,
		Category:           req.Category,
		ValidSources:       validSources(len(agreed), len(agreed)+len(disagreed)),
		ResourcesAgreed:    nonNilRefs(agreed),
		ResourcesDisagreed: nonNilRefs(disagreed),
		ExpertPerspectives: nonNilPerspectives(perspectives),
		KeyFindings:        nonNilStrings(keyFindings),
		LLMFindings:        nonNilStrings(llmFindings),
		WebFindings:        nonNilStrings(webFindings),
		ResourceFindings:   nonNilStrings(resourceFindings),
		ResearchSummary:    summary(base, e, len(results)),
		ConfidenceScore:    confidence,
		ResearchMethod:     strings.Join(methods, " + "),
		Provenance:         nonNilStrings(provenance),
		Metadata: models.ResearchMetadata{
			ResearchSources:        nonNilStrings(tiers),
			ResearchTimestamp:      s.now().UTC(),
			TriFactorResearch:      k.err == nil && e.webOK && e.docsOK,
			WebResultsCount:        len(results),
			TotalResourcesAnalyzed: len(agreed) + len(disagreed),
		},
	}
}

func urlsOf(results []models.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.URL)
	}
	return out
}

func webFindingsFrom(web models.Evidence, results []models.SearchResult) []string {
	if len(web.Findings) > 0 {
		return web.Findings
	}
	var out []string
	for _, r := range results {
		if len(out) >= maxWebFindings {
			break
		}
		if text := strings.TrimSpace(r.Snippet); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func summary(base models.Evidence, e enrichmentOutcome, results int) string {
	var parts []string
	if base.Summary != "" {
		parts = append(parts, base.Summary)
	}
	if e.webOK {
		parts = append(parts, fmt.Sprintf("Live search via %s returned %d results.", e.webLabel, results))
	} else if e.fallbackWhy != "" {
		parts = append(parts, "Live search unavailable: "+e.fallbackWhy+".")
	}
	if e.docsOK {
		parts = append(parts, fmt.Sprintf("Document analysis via %s found %d supporting and %d contradicting sources.",
			e.docsLabel, len(e.docs.Supporting), len(e.docs.Opposing)))
	}
	return strings.Join(parts, " ")
}

func validSources(agreed, total int) string {
	pct := 0
	if total > 0 {
		pct = agreed * 100 / total
	}
	return fmt.Sprintf("%d (%d%% agreement across %d unique sources)", agreed, pct, total)
}

func normalizeRefs(refs []models.Reference) []models.Reference {
	out := make([]models.Reference, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Normalize())
	}
	return out
}

func nonNilRefs(in []models.Reference) []models.Reference {
	if in == nil {
		return []models.Reference{}
	}
	return in
}

func nonNilPerspectives(in []models.ExpertPerspective) []models.ExpertPerspective {
	if in == nil {
		return []models.ExpertPerspective{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
