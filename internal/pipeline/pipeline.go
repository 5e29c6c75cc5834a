// Package pipeline drives a media job through download, transcription, claim
// extraction and statement research, reporting every transition to the broadcaster.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/internal/progress"
	"github.com/mohammad-safakhou/claimcheck/internal/telemetry"
	"github.com/mohammad-safakhou/claimcheck/models"
)

const (
	DefaultContext  = "Political speech or interview"
	DefaultLanguage = "en"
	DefaultModel    = "scribe_v1"
)

// Downloader acquires the media behind a URL.
type Downloader interface {
	// Probe resolves the URL's metadata without downloading it.
	Probe(ctx context.Context, rawURL string) (models.MediaArtifact, error)
	// Download stores the media under dir and returns the file path.
	Download(ctx context.Context, media models.MediaArtifact, dir string) (string, error)
	// ExtractAudio converts the downloaded file into an audio track under dir.
	ExtractAudio(ctx context.Context, mediaPath, dir string) (string, error)
}

// TranscribeOptions tunes one transcription call.
type TranscribeOptions struct {
	LanguageCode string
	ModelID      string
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (models.Transcript, error)
}

// ExtractRequest describes the speech a transcript came from.
type ExtractRequest struct {
	Speaker  string
	Context  string
	Language string
}

// Extractor finds checkable statements in a transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript models.Transcript, req ExtractRequest) (models.TranscriptAnalysis, error)
}

// StatementResearcher verifies one extracted statement.
type StatementResearcher interface {
	ResearchMedia(ctx context.Context, mediaID string, req models.ResearchRequest) (models.ResearchResponse, error)
}

// MediaRegistry records downloaded media and assigns their ids.
type MediaRegistry interface {
	CreateMedia(ctx context.Context, jobID string, media models.MediaArtifact) (models.MediaArtifact, error)
}

type Orchestrator struct {
	broadcaster    progress.Broadcaster
	downloader     Downloader
	transcriber    Transcriber
	extractor      Extractor
	researcher     StatementResearcher
	media          MediaRegistry
	workDir        string
	statementDelay time.Duration
	stageTimeout   time.Duration
	jobTimeout     time.Duration
	defaults       models.JobRequest
	logger         *zap.Logger

	base    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("pipeline is shutting down")

// shutdownGrace is how long Shutdown waits for cancelled jobs to publish their terminal event.
const shutdownGrace = 5 * time.Second

type Option func(*Orchestrator)

// WithResearcher enables the research stage.
func WithResearcher(r StatementResearcher) Option {
	return func(o *Orchestrator) { o.researcher = r }
}

func WithMediaRegistry(m MediaRegistry) Option {
	return func(o *Orchestrator) { o.media = m }
}

// WithWorkDir sets the directory that holds per-job downloads.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) {
		if dir != "" {
			o.workDir = dir
		}
	}
}

// WithStatementDelay paces research calls within one job.
func WithStatementDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.statementDelay = d
		}
	}
}

// WithStageTimeout bounds download, transcription and extraction.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

// WithJobTimeout bounds a whole job started through Submit.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.jobTimeout = d }
}

// WithRequestDefaults overrides the context, language and model applied to
// submissions that leave them empty. Empty arguments keep the built-in defaults.
func WithRequestDefaults(contextText, language, model string) Option {
	return func(o *Orchestrator) {
		if contextText != "" {
			o.defaults.Context = contextText
		}
		if language != "" {
			o.defaults.LanguageCode = language
		}
		if model != "" {
			o.defaults.ModelID = model
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func New(b progress.Broadcaster, d Downloader, t Transcriber, x Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		broadcaster:    b,
		downloader:     d,
		transcriber:    t,
		extractor:      x,
		workDir:        filepath.Join(os.TempDir(), "claimcheck"),
		statementDelay: time.Second,
		stageTimeout:   10 * time.Minute,
		jobTimeout:     30 * time.Minute,
		defaults:       builtinDefaults,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("pipeline")
	o.base, o.stop = context.WithCancel(context.Background())
	return o
}

var builtinDefaults = models.JobRequest{
	Context:      DefaultContext,
	LanguageCode: DefaultLanguage,
	ModelID:      DefaultModel,
}

// PrepareRequest applies the built-in defaults and validates a submission.
func PrepareRequest(req models.JobRequest) (models.JobRequest, error) {
	return prepare(req, builtinDefaults)
}

func prepare(req, defaults models.JobRequest) (models.JobRequest, error) {
	req.URL = strings.TrimSpace(req.URL)
	u, err := url.Parse(req.URL)
	if req.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return req, fmt.Errorf("%w: url must be an absolute http(s) URL", models.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Context) == "" {
		req.Context = defaults.Context
	}
	if strings.TrimSpace(req.LanguageCode) == "" {
		req.LanguageCode = defaults.LanguageCode
	}
	if strings.TrimSpace(req.ModelID) == "" {
		req.ModelID = defaults.ModelID
	}
	return req, nil
}

// Prepare applies this orchestrator's defaults and validates a submission.
func (o *Orchestrator) Prepare(req models.JobRequest) (models.JobRequest, error) {
	return prepare(req, o.defaults)
}

// Submit registers a job and runs it in the background. The job outlives ctx.
func (o *Orchestrator) Submit(ctx context.Context, req models.JobRequest) (models.Job, error) {
	req, err := o.Prepare(req)
	if err != nil {
		return models.Job{}, err
	}
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		return models.Job{}, ErrShuttingDown
	}
	o.wg.Add(1)
	o.mu.Unlock()

	job, err := o.broadcaster.CreateJob(ctx, req.URL, req)
	if err != nil {
		o.wg.Done()
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}
	telemetry.JobsSubmitted.Inc()

	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	detach := context.AfterFunc(o.base, cancelRun)
	go func() {
		defer o.wg.Done()
		defer detach()
		defer cancelRun()
		var cancel context.CancelFunc = func() {}
		if o.jobTimeout > 0 {
			runCtx, cancel = context.WithTimeout(runCtx, o.jobTimeout)
		}
		defer cancel()
		_ = o.Run(runCtx, job)
	}()
	return job, nil
}

// Wait blocks until every job started by Submit has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Shutdown stops accepting jobs and waits for running ones until ctx is done.
// Jobs still running then are cancelled, which fails them with a terminal event,
// and Shutdown gives them a short grace period before returning ctx's error.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	o.logger.Warn("cancelling running jobs", zap.Error(ctx.Err()))
	o.stop()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		o.logger.Warn("jobs still running after cancellation")
	}
	return ctx.Err()
}

// Run executes job synchronously and returns the stage error that failed it, if any.
// Exactly one terminal event is published either way.
func (o *Orchestrator) Run(ctx context.Context, job models.Job) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run", "job_id", job.ID)
	r := &run{o: o, job: job, req: job.Request, logger: o.logger.With(zap.String("job_id", job.ID))}
	defer func() {
		r.cleanup()
		telemetry.EndSpan(span, err)
	}()

	if err = r.execute(ctx); err != nil {
		r.logger.Error("pipeline failed", zap.Error(err))
		r.publish(ctx, progress.Update{
			Status:  models.StatusFailed,
			Step:    "Processing failed",
			Message: "Media processing pipeline failed",
			Error:   err.Error(),
		})
		telemetry.JobsFinished.WithLabelValues(string(models.StatusFailed)).Inc()
		return err
	}
	telemetry.JobsFinished.WithLabelValues(string(models.StatusCompleted)).Inc()
	return nil
}

// run holds the state of one job execution.
type run struct {
	o      *Orchestrator
	job    models.Job
	req    models.JobRequest
	logger *zap.Logger

	dir      string
	media    models.MediaArtifact
	files      []string
	transcript models.Transcript
	analysis   models.TranscriptAnalysis
	language   string
	researched int
}

func (r *run) publish(ctx context.Context, u progress.Update) {
	// a cancelled job still reports its terminal event
	if _, err := r.o.broadcaster.Publish(context.WithoutCancel(ctx), r.job.ID, u); err != nil {
		r.logger.Warn("publish progress failed", zap.String("step", u.Step), zap.Error(err))
	}
}

func (r *run) cleanup() {
	if !r.req.CleanupAudio {
		return
	}
	for _, f := range r.files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove media file", zap.String("path", f), zap.Error(err))
		}
	}
	if r.dir != "" {
		if err := os.RemoveAll(r.dir); err != nil {
			r.logger.Warn("failed to remove job directory", zap.String("path", r.dir), zap.Error(err))
		}
	}
}

func (r *run) execute(ctx context.Context) error {
	for _, s := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"download", r.download},
		{"transcribe", r.transcribe},
		{"analyze", r.analyze},
		{"research", r.research},
	} {
		if err := r.stage(ctx, s.name, s.fn); err != nil {
			return err
		}
	}
	r.complete(ctx)
	return nil
}

func (r *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "pipeline."+name, "job_id", r.job.ID)
	err := fn(ctx)
	telemetry.EndSpan(span, err)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.StageDuration.WithLabelValues(name, outcome).Observe(time.Since(started).Seconds())
	return err
}

// bounded applies the per-stage timeout to a blocking provider call.
func (r *run) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.o.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.o.stageTimeout)
}

func (r *run) download(ctx context.Context) error {
	r.publish(ctx, progress.Update{Status: models.StatusDownloading, Step: "Validating URL", Progress: 0, Message: "Validating media URL"})

	r.publish(ctx, progress.Update{Step: "Fetching metadata", Progress: 5, Message: "Fetching media information"})
	sctx, cancel := r.bounded(ctx)
	defer cancel()
	media, err := r.o.downloader.Probe(sctx, r.req.URL)
	if err != nil {
		return fmt.Errorf("fetch media metadata: %w", err)
	}
	if media.SourceURL == "" {
		media.SourceURL = r.req.URL
	}

	r.dir = filepath.Join(r.o.workDir, r.job.ID)
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	r.publish(ctx, progress.Update{Step: "Downloading media", Progress: 10, Message: "Downloading " + displayTitle(media)})
	mediaPath, err := r.o.downloader.Download(sctx, media, r.dir)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	r.files = append(r.files, mediaPath)

	r.publish(ctx, progress.Update{Step: "Extracting audio", Progress: 20, Message: "Extracting audio track"})
	audioPath, err := r.o.downloader.ExtractAudio(sctx, mediaPath, r.dir)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	if audioPath != mediaPath {
		r.files = append(r.files, audioPath)
	}
	media.AudioPath = audioPath

	r.publish(ctx, progress.Update{Step: "Saving media", Progress: 30, Message: "Saving media record"})
	if r.o.media != nil {
		saved, err := r.o.media.CreateMedia(ctx, r.job.ID, media)
		if err != nil {
			return fmt.Errorf("save media record: %w", err)
		}
		saved.AudioPath = audioPath
		media = saved
	} else if media.ID == "" {
		media.ID = uuid.NewString()
	}
	r.media = media

	r.publish(ctx, progress.Update{Step: "Media record created", Progress: 60, MediaID: media.ID, Message: "Media record created"})
	r.publish(ctx, progress.Update{
		Step:     "Download complete",
		Progress: 70,
		Message:  "Media downloaded",
		Data: map[string]any{
			"video_id":         media.ID,
			"title":            media.Title,
			"uploader":         media.Uploader,
			"duration_seconds": media.DurationSeconds,
		},
	})
	return nil
}

func (r *run) transcribe(ctx context.Context) error {
	r.publish(ctx, progress.Update{Status: models.StatusTranscribing, Step: "Starting transcription", Progress: 71, Message: "Preparing audio for transcription"})
	r.publish(ctx, progress.Update{Step: "Transcribing audio", Progress: 75, Message: "Transcribing audio with " + r.req.ModelID})
	sctx, cancel := r.bounded(ctx)
	defer cancel()
	tr, err := r.o.transcriber.Transcribe(sctx, r.media.AudioPath, TranscribeOptions{LanguageCode: r.req.LanguageCode, ModelID: r.req.ModelID})
	if err != nil {
		return fmt.Errorf("transcribe audio: %w", err)
	}
	if strings.TrimSpace(tr.Text) == "" {
		return fmt.Errorf("transcribe audio: empty transcript")
	}
	r.language = firstNonEmpty(tr.DetectedLanguage, tr.LanguageCode, r.req.LanguageCode)
	r.publish(ctx, progress.Update{Step: "Transcription received", Progress: 80, Message: fmt.Sprintf("Received %d characters of transcript", len(tr.Text))})
	r.publish(ctx, progress.Update{
		Step:     "Transcription complete",
		Progress: 85,
		Message:  "Transcription complete",
		Data:     map[string]any{"detected_language": r.language, "transcript_length": len(tr.Text)},
	})
	r.transcript = tr
	return nil
}

func (r *run) analyze(ctx context.Context) error {
	r.publish(ctx, progress.Update{Status: models.StatusAnalyzing, Step: "Analyzing transcript", Progress: 86, Message: "Analyzing transcript"})
	r.publish(ctx, progress.Update{Step: "Extracting statements", Progress: 90, Message: "Extracting checkable statements"})
	sctx, cancel := r.bounded(ctx)
	defer cancel()
	analysis, err := r.o.extractor.Extract(sctx, r.transcript, ExtractRequest{
		Speaker:  r.req.SpeakerName,
		Context:  r.req.Context,
		Language: r.language,
	})
	if err != nil {
		return fmt.Errorf("analyze transcript: %w", err)
	}
	if analysis.DetectedLanguage == "" {
		analysis.DetectedLanguage = r.language
	}
	r.analysis = analysis
	r.publish(ctx, progress.Update{
		Step:            "Statements extracted",
		Progress:        95,
		Message:         fmt.Sprintf("Found %d statements", len(analysis.Statements)),
		StatementsTotal: progress.Count(len(analysis.Statements)),
	})
	r.publish(ctx, progress.Update{
		Step:     "Analysis complete",
		Progress: 98,
		Message:  "Transcript analysis complete",
		Data: map[string]any{
			"statements_count":    len(analysis.Statements),
			"analysis_summary":    analysis.AnalysisSummary,
			"dominant_categories": analysis.DominantCategories,
		},
	})
	return nil
}

func (r *run) complete(ctx context.Context) {
	r.publish(ctx, progress.Update{
		Status:  models.StatusCompleted,
		Step:    "Processing complete",
		Message: "Media processing completed",
		Data: map[string]any{
			"total_statements":      len(r.analysis.Statements),
			"researched_statements": r.researched,
			"video_id":              r.media.ID,
			"detected_language":     r.analysis.DetectedLanguage,
			"processing_summary":    r.analysis.AnalysisSummary,
			"dominant_categories":   r.analysis.DominantCategories,
		},
	})
}

func displayTitle(m models.MediaArtifact) string {
	if m.Title != "" {
		return m.Title
	}
	return m.SourceURL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
