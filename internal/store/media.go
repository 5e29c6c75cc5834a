package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// MediaRecord is a downloaded media item whose statements were researched.
type MediaRecord struct {
	models.MediaArtifact
	JobID     string
	CreatedAt time.Time
}

// CreateMedia stores the artifact and returns it with its assigned id.
func (s *Store) CreateMedia(ctx context.Context, jobID string, media models.MediaArtifact) (models.MediaArtifact, error) {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}
	query, args, err := s.sb.Insert("media").
		Columns("id", "job_id", "source_url", "title", "uploader", "duration_seconds", "created_at").
		Values(media.ID, jobID, media.SourceURL, media.Title, media.Uploader, media.DurationSeconds, s.now()).
		ToSql()
	if err != nil {
		return models.MediaArtifact{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return models.MediaArtifact{}, fmt.Errorf("insert media: %w", err)
	}
	return media, nil
}

// GetMedia loads a media record by id, or ErrNotFound.
func (s *Store) GetMedia(ctx context.Context, id string) (MediaRecord, error) {
	query, args, err := s.sb.Select("id", "job_id", "source_url", "title", "uploader", "duration_seconds", "created_at").
		From("media").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return MediaRecord{}, fmt.Errorf("build select: %w", err)
	}
	var rec MediaRecord
	err = s.DB.QueryRowContext(ctx, query, args...).Scan(
		&rec.ID, &rec.JobID, &rec.SourceURL, &rec.Title, &rec.Uploader, &rec.DurationSeconds, &rec.CreatedAt,
	)
	if isNoRows(err) {
		return MediaRecord{}, ErrNotFound
	}
	if err != nil {
		return MediaRecord{}, fmt.Errorf("get media: %w", err)
	}
	return rec, nil
}
