package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/config"
	"github.com/mohammad-safakhou/claimcheck/internal/dedupe"
	"github.com/mohammad-safakhou/claimcheck/internal/factcheck"
	"github.com/mohammad-safakhou/claimcheck/internal/pipeline"
	"github.com/mohammad-safakhou/claimcheck/internal/progress"
	"github.com/mohammad-safakhou/claimcheck/internal/queue/streams"
	"github.com/mohammad-safakhou/claimcheck/internal/research"
	"github.com/mohammad-safakhou/claimcheck/internal/store"
	"github.com/mohammad-safakhou/claimcheck/provider"
	"github.com/mohammad-safakhou/claimcheck/tools/media/elevenlabs"
	"github.com/mohammad-safakhou/claimcheck/tools/media/ytdlp"
	"github.com/mohammad-safakhou/claimcheck/tools/search"
	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch"
	"github.com/mohammad-safakhou/claimcheck/tools/web_search"
)

const jobKeyPrefix = "claimcheck:job:"

// app holds the components shared by the serve, research and process commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store    *store.Store
	redis    *redis.Client
	index    *search.StatementIndex
	research *factcheck.Service
	hub      *progress.Hub
	pipeline *pipeline.Orchestrator
}

// newResearchApp wires the record store, the statement index and the synthesizer.
func newResearchApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	synth, err := buildSynthesizer(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []factcheck.Option{
		factcheck.WithEngine(synth.Engine()),
		factcheck.WithDefaultCountry(cfg.Research.DefaultCountry),
		factcheck.WithLogger(logger),
	}
	if a.store != nil {
		idx, err := search.NewStatementIndex(cfg.Research.IndexPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.index = idx
		opts = append(opts, factcheck.WithRecords(a.store), factcheck.WithIndex(idx))
	}
	a.research = factcheck.New(synth, opts...)
	if n, err := a.indexSize(); err == nil && n == 0 {
		n, err := a.research.RebuildIndex(ctx, cfg.Research.IndexRebuildLimit)
		if err != nil {
			logger.Warn("statement index rebuild failed", zap.Error(err))
		} else {
			logger.Info("statement index rebuilt", zap.Int("records", n))
		}
	}
	return a, nil
}

// newPipelineApp extends the research app with the progress hub and the media pipeline.
func newPipelineApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a, err := newResearchApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	hubOpts := []progress.Option{progress.WithBuffer(cfg.Server.SubscriberBuffer), progress.WithLogger(logger)}
	var jobs progress.JobStore = progress.NewMemoryJobStore()
	if cfg.Storage.Redis.Enabled {
		relay, err := a.openRedis(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		jobs = progress.NewRedisJobStore(a.redis, jobKeyPrefix, cfg.Storage.Redis.JobTTL)
		hubOpts = append(hubOpts, progress.WithTransport(relay))
	}
	a.hub = progress.NewHub(jobs, hubOpts...)

	extractor, err := completer(ctx, cfg, cfg.Pipeline.Extractor)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("claim extractor: %w", err)
	}
	el := cfg.Media.ElevenLabs
	opts := []pipeline.Option{
		pipeline.WithWorkDir(cfg.Pipeline.WorkDir),
		pipeline.WithStatementDelay(cfg.Pipeline.StatementDelay),
		pipeline.WithStageTimeout(cfg.Pipeline.StageTimeout),
		pipeline.WithJobTimeout(cfg.Server.JobTimeout),
		pipeline.WithRequestDefaults(cfg.Pipeline.DefaultContext, cfg.Pipeline.DefaultLanguage, cfg.Pipeline.TranscriptionModel),
		pipeline.WithLogger(logger),
	}
	if cfg.Pipeline.ResearchEnabled {
		opts = append(opts, pipeline.WithResearcher(a.research))
	}
	if a.store != nil {
		opts = append(opts, pipeline.WithMediaRegistry(a.store))
	}
	a.pipeline = pipeline.New(a.hub,
		ytdlp.New(cfg.Media.YTDLPPath, cfg.Media.FFmpegPath),
		elevenlabs.New(el.APIKey, el.BaseURL, el.Timeout),
		pipeline.NewLLMExtractor(extractor),
		opts...,
	)
	return a, nil
}

func (a *app) indexSize() (uint64, error) {
	if a.index == nil {
		return 0, errors.New("no statement index")
	}
	return a.index.Count()
}

func (a *app) openStore(ctx context.Context) error {
	sc := a.cfg.Storage
	var cfg store.Config
	switch sc.Driver {
	case "none":
		a.logger.Warn("record storage disabled; duplicate detection and record lookup are off")
		return nil
	case "postgres":
		if err := store.Migrate("", sc.Postgres.DSN(), "up", 0); err != nil {
			return err
		}
		cfg = store.Config{Driver: store.Postgres, DSN: sc.Postgres.DSN()}
	default:
		cfg = store.Config{Driver: store.SQLite, SQLitePath: sc.SQLite.Path}
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	a.store = st
	return nil
}

// openRedis connects to Redis and builds the relay that shares progress events
// with the other instances through the progress stream.
func (a *app) openRedis(ctx context.Context) (*progress.StreamRelay, error) {
	rc := a.cfg.Storage.Redis
	a.redis = redis.NewClient(&redis.Options{
		Addr:        rc.Addr(),
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.Timeout,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", rc.Addr(), err)
	}
	registry := streams.NewSchemaRegistry()
	if err := streams.RegisterBaseSchemas(registry); err != nil {
		return nil, err
	}
	origin := "claimcheck-" + uuid.NewString()[:8]
	pub := streams.NewPublisher(a.redis, registry, rc.Stream, origin, rc.MaxLen)
	con := streams.NewConsumer(a.redis, registry, rc.Stream, origin, origin, 2*time.Second, 64)
	return progress.NewStreamRelay(pub, con, origin, a.logger), nil
}

func (a *app) Close() {
	if a.pipeline != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.pipeline.Shutdown(ctx)
		cancel()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("close statement index", zap.Error(err))
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func providerSettings(cfg *config.Config, p config.LLMProvider) provider.Settings {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = cfg.Research.ProviderTimeout
	}
	return provider.Settings{
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		Timeout:     timeout,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

func completer(ctx context.Context, cfg *config.Config, name string) (research.Completer, error) {
	p, ok := cfg.LLM.Provider(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, provider.ErrMissingAPIKey)
	}
	return provider.NewCompleter(ctx, provider.Client(name), providerSettings(cfg, p))
}

// buildSynthesizer assembles the knowledge chain from the configured providers that
// have keys, plus whichever live-search and document tiers can be built.
func buildSynthesizer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*research.Synthesizer, error) {
	rc := cfg.Research
	var strategies []research.KnowledgeProvider
	for _, name := range []string{rc.Primary, rc.Secondary} {
		c, err := completer(ctx, cfg, name)
		if errors.Is(err, provider.ErrMissingAPIKey) {
			logger.Warn("knowledge provider skipped", zap.String("provider", name), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, research.NewLLMKnowledge(c, logger))
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no knowledge provider configured (set llm.providers.%s.api_key)", rc.Primary)
	}
	chain := research.NewChain(strategies, rc.ChainTimeout, rc.ProviderTimeout, logger)

	registry := research.DefaultDomainRegistry()
	scoring := research.DefaultScoring()
	scoring.OfficialBonus = rc.OfficialBonus
	scoring.GenericBonus = rc.GenericBonus
	scoring.ContradictionPenalty = rc.ContradictionPenalty
	opts := []research.Option{
		research.WithEngine(dedupe.New(dedupe.Thresholds{
			Content: cfg.Dedupe.Content,
			URL:     cfg.Dedupe.URL,
			Finding: cfg.Dedupe.Finding,
		})),
		research.WithRegistry(registry),
		research.WithScoring(scoring.Normalize()),
		research.WithMinWebContent(rc.MinWebContent),
		research.WithTierTimeout(rc.ProviderTimeout),
		research.WithLogger(logger),
	}

	var searchers []research.SearchProvider
	if rc.Grounded != "" {
		if p, ok := cfg.LLM.Provider(rc.Grounded); ok {
			g, err := provider.NewGrounder(ctx, provider.Client(rc.Grounded), providerSettings(cfg, p))
			if err != nil {
				return nil, fmt.Errorf("grounded search: %w", err)
			}
			searchers = append(searchers, research.NewGroundedSearch(g))
		} else {
			logger.Warn("grounded search skipped: provider has no api key", zap.String("provider", rc.Grounded))
		}
	}
	ws := cfg.Sources.WebSearch
	if key := ws.APIKey(); key != "" {
		searcher, err := web_search.NewWebSearcher(web_search.Provider(ws.Provider), key, ws.Timeout)
		if err != nil {
			return nil, fmt.Errorf("web search: %w", err)
		}
		searchers = append(searchers, research.NewWebSearch(searcher, ws.MaxResults, rc.SearchRecencyDays))
	}
	if len(searchers) > 0 {
		opts = append(opts, research.WithSearch(searchers...))
	} else {
		logger.Warn("live-search tier disabled: no grounded provider or web search key")
	}

	if len(searchers) > 0 {
		docs, err := completer(ctx, cfg, rc.Documents)
		switch {
		case errors.Is(err, provider.ErrMissingAPIKey):
			logger.Warn("document-analysis tier disabled", zap.String("provider", rc.Documents))
		case err != nil:
			return nil, err
		default:
			wf := cfg.Sources.WebFetch
			kind := web_fetch.HTTPFetcherType
			if wf.RenderWithBrowser {
				kind = web_fetch.AutoFetcherType
			}
			fetcher, err := web_fetch.NewWebFetcher(kind, wf.Timeout, wf.MaxChars)
			if err != nil {
				return nil, err
			}
			opts = append(opts, research.WithDocuments(
				research.NewLLMDocumentAnalyzer(docs, fetcher, registry, rc.MaxDocuments, logger)))
		}
	}
	return research.NewSynthesizer(chain, opts...), nil
}
