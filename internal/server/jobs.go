package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/internal/progress"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// jobSubmission mirrors models.JobRequest with optional flags.
type jobSubmission struct {
	URL                string `json:"url"`
	SpeakerName        string `json:"speaker_name"`
	Context            string `json:"context"`
	LanguageCode       string `json:"language_code"`
	ModelID            string `json:"model_id"`
	CleanupAudio       *bool  `json:"cleanup_audio"`
	ResearchStatements *bool  `json:"research_statements"`
}

func (j jobSubmission) request(cleanupDefault bool) models.JobRequest {
	flag := func(v *bool, def bool) bool {
		if v == nil {
			return def
		}
		return *v
	}
	return models.JobRequest{
		URL:                j.URL,
		SpeakerName:        helpers.PlainText(j.SpeakerName),
		Context:            helpers.PlainText(j.Context),
		LanguageCode:       j.LanguageCode,
		ModelID:            j.ModelID,
		CleanupAudio:       flag(j.CleanupAudio, cleanupDefault),
		ResearchStatements: flag(j.ResearchStatements, true),
	}
}

type jobAccepted struct {
	JobID     string        `json:"job_id"`
	Status    models.Status `json:"status"`
	StreamURL string        `json:"stream_url"`
	Message   string        `json:"message"`
}

func (s *Server) submitJob(c echo.Context) error {
	var body jobSubmission
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	job, err := s.jobs.Submit(c.Request().Context(), body.request(s.cleanupDefault))
	if err != nil {
		return err
	}
	s.logger.Info("job accepted", zap.String("job_id", job.ID), zap.String("url", job.Target))
	return c.JSON(http.StatusAccepted, jobAccepted{
		JobID:     job.ID,
		Status:    job.Status,
		StreamURL: fmt.Sprintf("/api/jobs/%s/stream", job.ID),
		Message:   "Media processing started",
	})
}

func (s *Server) getJob(c echo.Context) error {
	job, err := s.progress.Job(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// streamJob writes the job's events as Server-Sent Events until the job reaches a
// terminal status or the client goes away.
func (s *Server) streamJob(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()
	jobID := c.Param("id")
	sub, err := s.progress.Subscribe(ctx, jobID)
	if err != nil {
		return err
	}
	defer sub.Close()

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	send := func(ev models.ProgressEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	logger := s.logger.With(zap.String("job_id", jobID))
	err = send(models.ProgressEvent{
		Type:      models.EventConnection,
		JobID:     jobID,
		Message:   "Connected to job progress stream",
		Timestamp: time.Now().UTC(),
	})
	if err == nil {
		err = progress.Stream(ctx, sub, s.heartbeat, send)
	}
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, progress.ErrSubscriberLagged):
		logger.Warn("stream subscriber dropped", zap.Error(err))
	default:
		logger.Debug("stream closed", zap.Error(err))
	}
	// the response is committed; nothing useful can be returned to the client
	return nil
}
