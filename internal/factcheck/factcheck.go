// Package factcheck answers single-statement research requests: it reuses stored
// verdicts for statements seen before and otherwise runs the synthesizer, stores the
// result and links it to similar earlier statements.
package factcheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/internal/dedupe"
	"github.com/mohammad-safakhou/claimcheck/internal/store"
	"github.com/mohammad-safakhou/claimcheck/internal/telemetry"
	"github.com/mohammad-safakhou/claimcheck/models"
	"github.com/mohammad-safakhou/claimcheck/tools/search"
)

// MethodDatabaseRetrieval labels responses served from an earlier stored record.
const MethodDatabaseRetrieval = "database_retrieval"

const relatedCandidates = 10

// ErrStorageDisabled is returned by Record when no record store is configured.
var ErrStorageDisabled = errors.New("research storage is disabled")

// Synthesizer produces a verdict for one statement.
type Synthesizer interface {
	Synthesize(ctx context.Context, req models.ResearchRequest) (models.SynthesizedVerdict, error)
}

// Records is the subset of the record store the service needs.
type Records interface {
	FindByStatement(ctx context.Context, statement string) (store.ResearchRecord, bool, error)
	CreateResearch(ctx context.Context, rec store.ResearchRecord) (store.ResearchRecord, error)
	GetResearch(ctx context.Context, id string) (store.ResearchRecord, error)
	ListRecent(ctx context.Context, limit int) ([]store.ResearchRecord, error)
}

// Index finds earlier statements by text.
type Index interface {
	Add(id string, doc search.Document) error
	Similar(text string, k int) ([]search.Hit, error)
}

type Service struct {
	synth          Synthesizer
	records        Records
	index          Index
	engine         *dedupe.Engine
	defaultCountry string
	logger         *zap.Logger
	now            func() time.Time
}

type Option func(*Service)

// WithRecords enables duplicate detection and persistence.
func WithRecords(r Records) Option {
	return func(s *Service) { s.records = r }
}

// WithIndex enables related-record lookup.
func WithIndex(idx Index) Option {
	return func(s *Service) { s.index = idx }
}

func WithEngine(e *dedupe.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

func WithDefaultCountry(country string) Option {
	return func(s *Service) {
		if country != "" {
			s.defaultCountry = country
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(synth Synthesizer, opts ...Option) *Service {
	s := &Service{
		synth:          synth,
		engine:         dedupe.New(dedupe.DefaultThresholds()),
		defaultCountry: "US",
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("factcheck")
	return s
}

// StorageEnabled reports whether records are persisted.
func (s *Service) StorageEnabled() bool { return s.records != nil }

// Research verifies one statement that is not tied to a media item.
func (s *Service) Research(ctx context.Context, req models.ResearchRequest) (models.ResearchResponse, error) {
	return s.ResearchMedia(ctx, "", req)
}

// ResearchMedia verifies one statement and stores it under mediaID when set.
func (s *Service) ResearchMedia(ctx context.Context, mediaID string, req models.ResearchRequest) (models.ResearchResponse, error) {
	req = req.Normalize(s.defaultCountry)
	if err := req.Validate(); err != nil {
		return models.ResearchResponse{}, err
	}
	requested := s.now().UTC()

	if s.records != nil {
		rec, ok, err := s.records.FindByStatement(ctx, req.Statement)
		switch {
		case err != nil:
			s.logger.Warn("duplicate lookup failed", zap.Error(err))
		case ok:
			telemetry.ResearchRequests.WithLabelValues("database").Inc()
			resp := rec.Response()
			resp.ResearchMethod = MethodDatabaseRetrieval
			resp.Duplicate = true
			resp.RelatedRecords = s.related(req.Statement, rec.ID)
			return resp, nil
		}
	}

	verdict, err := s.synth.Synthesize(ctx, req)
	if err != nil {
		return models.ResearchResponse{}, fmt.Errorf("research statement: %w", err)
	}
	telemetry.ResearchRequests.WithLabelValues("synthesized").Inc()

	rec := store.ResearchRecord{MediaID: mediaID, Request: req, RequestDatetime: requested, Verdict: verdict}
	if s.records != nil {
		stored, err := s.records.CreateResearch(ctx, rec)
		if err != nil {
			s.logger.Error("failed to store research result", zap.String("statement", req.Statement), zap.Error(err))
		} else {
			rec = stored
		}
	}

	resp := rec.Response()
	resp.RelatedRecords = s.related(req.Statement, rec.ID)
	if rec.ID != "" {
		s.indexRecord(rec)
	}
	return resp, nil
}

// Record loads a stored verdict by id.
func (s *Service) Record(ctx context.Context, id string) (models.ResearchResponse, error) {
	if s.records == nil {
		return models.ResearchResponse{}, ErrStorageDisabled
	}
	rec, err := s.records.GetResearch(ctx, id)
	if err != nil {
		return models.ResearchResponse{}, err
	}
	resp := rec.Response()
	resp.RelatedRecords = s.related(rec.Request.Statement, rec.ID)
	return resp, nil
}

// RebuildIndex loads up to limit recent records into the statement index.
func (s *Service) RebuildIndex(ctx context.Context, limit int) (int, error) {
	if s.records == nil || s.index == nil {
		return 0, nil
	}
	recs, err := s.records.ListRecent(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("rebuild statement index: %w", err)
	}
	for _, rec := range recs {
		s.indexRecord(rec)
	}
	return len(recs), nil
}

func (s *Service) indexRecord(rec store.ResearchRecord) {
	if s.index == nil {
		return
	}
	err := s.index.Add(rec.ID, search.Document{
		Statement: rec.Request.Statement,
		Verdict:   string(rec.Verdict.Verdict),
		Country:   rec.Request.Country,
		Category:  string(rec.Request.Category),
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("failed to index statement", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// related returns ids of indexed statements similar to statement, excluding selfID.
func (s *Service) related(statement, selfID string) []string {
	if s.index == nil {
		return nil
	}
	hits, err := s.index.Similar(statement, relatedCandidates)
	if err != nil {
		s.logger.Warn("related record lookup failed", zap.Error(err))
		return nil
	}
	var out []string
	for _, h := range hits {
		if h.ID == selfID {
			continue
		}
		if s.engine.Similar(statement, h.Statement) {
			out = append(out, h.ID)
		}
	}
	return out
}
