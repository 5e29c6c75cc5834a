package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// ResearchRecord is one stored statement verdict.
type ResearchRecord struct {
	ID              string
	MediaID         string
	Request         models.ResearchRequest
	RequestDatetime time.Time
	Verdict         models.SynthesizedVerdict
	CreatedAt       time.Time
}

// Response renders the record in API shape.
func (r ResearchRecord) Response() models.ResearchResponse {
	return models.ResearchResponse{
		SynthesizedVerdict: r.Verdict,
		Statement:          r.Request.Statement,
		Source:             r.Request.Source,
		Context:            r.Request.Context,
		StatementDate:      r.Request.StatementDate,
		RequestDatetime:    r.RequestDatetime,
		RecordID:           r.ID,
	}
}

type findingsColumn struct {
	Key      []string `json:"key"`
	LLM      []string `json:"llm"`
	Web      []string `json:"web"`
	Resource []string `json:"resource"`
}

var researchColumns = []string{
	"id", "media_id", "statement", "statement_hash", "source", "context", "statement_date", "country",
	"category", "request_datetime", "status", "verdict", "correction", "confidence_score", "valid_sources",
	"research_summary", "research_method", "resources_agreed", "resources_disagreed", "expert_perspectives",
	"findings", "provenance", "research_metadata", "created_at",
}

// CreateResearch inserts rec, assigning ID and CreatedAt when empty.
func (s *Store) CreateResearch(ctx context.Context, rec ResearchRecord) (ResearchRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.RequestDatetime.IsZero() {
		rec.RequestDatetime = rec.CreatedAt
	}
	v := rec.Verdict
	blobs, err := marshalAll(
		v.ResourcesAgreed, v.ResourcesDisagreed, v.ExpertPerspectives,
		findingsColumn{Key: v.KeyFindings, LLM: v.LLMFindings, Web: v.WebFindings, Resource: v.ResourceFindings},
		v.Provenance, v.Metadata,
	)
	if err != nil {
		return ResearchRecord{}, err
	}

	var statementDate any
	if rec.Request.StatementDate != nil {
		statementDate = rec.Request.StatementDate.UTC()
	}
	var mediaID any
	if rec.MediaID != "" {
		mediaID = rec.MediaID
	}
	query, args, err := s.sb.Insert("research_results").Columns(researchColumns...).Values(
		rec.ID, mediaID, rec.Request.Statement, StatementHash(rec.Request.Statement), rec.Request.Source,
		rec.Request.Context, statementDate, rec.Request.Country, string(rec.Request.Category),
		rec.RequestDatetime.UTC(), string(v.Verdict), v.VerdictText, v.Correction, v.ConfidenceScore,
		v.ValidSources, v.ResearchSummary, v.ResearchMethod,
		blobs[0], blobs[1], blobs[2], blobs[3], blobs[4], blobs[5], rec.CreatedAt.UTC(),
	).ToSql()
	if err != nil {
		return ResearchRecord{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return ResearchRecord{}, fmt.Errorf("insert research result: %w", err)
	}
	return rec, nil
}

// GetResearch loads a record by id, or ErrNotFound.
func (s *Store) GetResearch(ctx context.Context, id string) (ResearchRecord, error) {
	rec, ok, err := s.selectOne(ctx, sq.Eq{"id": id})
	if err != nil {
		return ResearchRecord{}, err
	}
	if !ok {
		return ResearchRecord{}, ErrNotFound
	}
	return rec, nil
}

// FindByStatement returns the most recent record whose statement text matches exactly.
func (s *Store) FindByStatement(ctx context.Context, statement string) (ResearchRecord, bool, error) {
	return s.selectOne(ctx, sq.Eq{"statement_hash": StatementHash(statement), "statement": statement})
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]ResearchRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query, args, err := s.sb.Select(researchColumns...).From("research_results").
		OrderBy("created_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list research results: %w", err)
	}
	defer rows.Close()
	var out []ResearchRecord
	for rows.Next() {
		rec, err := scanResearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListByMedia returns every record produced while processing one media item.
func (s *Store) ListByMedia(ctx context.Context, mediaID string) ([]ResearchRecord, error) {
	query, args, err := s.sb.Select(researchColumns...).From("research_results").
		Where(sq.Eq{"media_id": mediaID}).OrderBy("created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media results: %w", err)
	}
	defer rows.Close()
	var out []ResearchRecord
	for rows.Next() {
		rec, err := scanResearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) selectOne(ctx context.Context, where sq.Eq) (ResearchRecord, bool, error) {
	query, args, err := s.sb.Select(researchColumns...).From("research_results").
		Where(where).OrderBy("created_at DESC").Limit(1).ToSql()
	if err != nil {
		return ResearchRecord{}, false, fmt.Errorf("build select: %w", err)
	}
	rec, err := scanResearch(s.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ResearchRecord{}, false, nil
	}
	if err != nil {
		return ResearchRecord{}, false, err
	}
	return rec, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResearch(row scanner) (ResearchRecord, error) {
	var (
		rec           ResearchRecord
		mediaID       sql.NullString
		hash          string
		category      string
		status        string
		statementDate sql.NullTime
		agreed        []byte
		disagreed     []byte
		perspectives  []byte
		findings      []byte
		provenance    []byte
		metadata      []byte
	)
	v := &rec.Verdict
	err := row.Scan(
		&rec.ID, &mediaID, &rec.Request.Statement, &hash, &rec.Request.Source, &rec.Request.Context,
		&statementDate, &rec.Request.Country, &category, &rec.RequestDatetime, &status, &v.VerdictText,
		&v.Correction, &v.ConfidenceScore, &v.ValidSources, &v.ResearchSummary, &v.ResearchMethod,
		&agreed, &disagreed, &perspectives, &findings, &provenance, &metadata, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResearchRecord{}, err
		}
		return ResearchRecord{}, fmt.Errorf("scan research result: %w", err)
	}
	rec.MediaID = mediaID.String
	rec.Request.Category = models.StatementCategory(category)
	v.Category = rec.Request.Category
	v.Verdict = models.Verdict(status)
	if statementDate.Valid {
		t := statementDate.Time
		rec.Request.StatementDate = &t
	}

	var fc findingsColumn
	for _, item := range []struct {
		raw []byte
		dst any
	}{
		{agreed, &v.ResourcesAgreed},
		{disagreed, &v.ResourcesDisagreed},
		{perspectives, &v.ExpertPerspectives},
		{findings, &fc},
		{provenance, &v.Provenance},
		{metadata, &v.Metadata},
	} {
		if len(item.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(item.raw, item.dst); err != nil {
			return ResearchRecord{}, fmt.Errorf("decode research result %s: %w", rec.ID, err)
		}
	}
	v.KeyFindings, v.LLMFindings, v.WebFindings, v.ResourceFindings = fc.Key, fc.LLM, fc.Web, fc.Resource
	return rec, nil
}

// marshalAll encodes values as JSON strings; lib/pq sends []byte as bytea, which jsonb rejects.
func marshalAll(values ...any) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode column %d: %w", i, err)
		}
		out[i] = string(raw)
	}
	return out, nil
}
