package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/internal/factcheck"
	"github.com/mohammad-safakhou/claimcheck/internal/pipeline"
	"github.com/mohammad-safakhou/claimcheck/internal/progress"
	"github.com/mohammad-safakhou/claimcheck/internal/store"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// Submitter starts media jobs.
type Submitter interface {
	Submit(ctx context.Context, req models.JobRequest) (models.Job, error)
}

// Progress exposes job snapshots and live event subscriptions.
type Progress interface {
	Job(ctx context.Context, jobID string) (models.Job, error)
	Subscribe(ctx context.Context, jobID string) (*progress.Subscription, error)
}

// Researcher checks single statements and loads stored verdicts.
type Researcher interface {
	Research(ctx context.Context, req models.ResearchRequest) (models.ResearchResponse, error)
	Record(ctx context.Context, id string) (models.ResearchResponse, error)
}

type Option func(*Server)

// WithHeartbeat sets the idle interval after which stream subscribers get a heartbeat.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithCleanupDefault sets cleanup_audio for submissions that omit it.
func WithCleanupDefault(cleanup bool) Option {
	return func(s *Server) { s.cleanupDefault = cleanup }
}

func WithMetricsPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.metricsPath = path
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server is the HTTP surface over the pipeline, the progress hub and statement research.
type Server struct {
	echo        *echo.Echo
	jobs        Submitter
	progress    Progress
	research    Researcher
	heartbeat   time.Duration
	metricsPath string
	logger      *zap.Logger

	cleanupDefault bool
}

func New(jobs Submitter, prog Progress, research Researcher, opts ...Option) *Server {
	s := &Server{
		jobs:        jobs,
		progress:    prog,
		research:    research,
		heartbeat:   30 * time.Second,
		metricsPath: "/metrics",
		logger:      zap.NewNop(),

		cleanupDefault: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET(s.metricsPath, echo.WrapHandler(promhttp.Handler()))
	registerDocs(e)

	api := e.Group("/api")
	api.POST("/jobs", s.submitJob)
	api.GET("/jobs/:id", s.getJob)
	api.GET("/jobs/:id/stream", s.streamJob)
	api.POST("/research", s.researchStatement)
	api.GET("/research/:id", s.getResearch)

	s.echo = e
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError renders every error as {"error": message} with a status derived from its kind.
func (s *Server) handleError(err error, c echo.Context) {
	code, msg := statusFor(err)
	req := c.Request()
	fields := []zap.Field{
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("remote", c.RealIP()),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}
	if c.Response().Committed {
		return
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]any{"error": msg})
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, progress.ErrJobNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, factcheck.ErrStorageDisabled), errors.Is(err, pipeline.ErrShuttingDown):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
