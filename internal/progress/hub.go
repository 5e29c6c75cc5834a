package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/internal/telemetry"
	"github.com/mohammad-safakhou/claimcheck/models"
)

const defaultBuffer = 64

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber event buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTransport relays events to and from other instances.
func WithTransport(t Transport) Option {
	return func(h *Hub) { h.transport = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// Hub is the Broadcaster implementation. Job state lives in a JobStore; fan-out is
// per job and guarded by a per-job mutex so that a subscriber's snapshot and its
// registration are atomic with respect to publishes on the same job.
type Hub struct {
	store     JobStore
	transport Transport
	logger    *zap.Logger
	buffer    int
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*jobState
}

type jobState struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

var _ Broadcaster = (*Hub)(nil)

// NewHub builds a Hub over store.
func NewHub(store JobStore, opts ...Option) *Hub {
	h := &Hub{
		store:  store,
		logger: zap.NewNop(),
		buffer: defaultBuffer,
		now:    time.Now,
		jobs:   make(map[string]*jobState),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("progress")
	return h
}

// Run relays remote events into local subscribers until ctx is done. It returns
// immediately when no transport is configured.
func (h *Hub) Run(ctx context.Context) error {
	if h.transport == nil {
		return nil
	}
	return h.transport.Run(ctx, h.deliver)
}

func (h *Hub) CreateJob(ctx context.Context, target string, req models.JobRequest) (models.Job, error) {
	now := h.now().UTC()
	job := models.Job{
		ID:        uuid.NewString(),
		Target:    target,
		Request:   req,
		Status:    models.StatusCreated,
		Step:      "Job created",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.Create(ctx, job); err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}
	h.state(job.ID)
	return job, nil
}

func (h *Hub) Job(ctx context.Context, jobID string) (models.Job, error) {
	job, ok, err := h.store.Get(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("get job: %w", err)
	}
	if !ok {
		return models.Job{}, ErrJobNotFound
	}
	return job, nil
}

// Publish applies u to the job, stores it and fans the resulting event out. It never
// waits on subscribers.
func (h *Hub) Publish(ctx context.Context, jobID string, u Update) (models.ProgressEvent, error) {
	ev, err := h.commit(ctx, jobID, u)
	if err != nil {
		return models.ProgressEvent{}, err
	}
	if h.transport != nil {
		if err := h.transport.Publish(ctx, ev); err != nil {
			h.logger.Warn("relay publish failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	return ev, nil
}

func (h *Hub) commit(ctx context.Context, jobID string, u Update) (models.ProgressEvent, error) {
	st := h.state(jobID)
	st.mu.Lock()
	defer st.mu.Unlock()

	job, ok, err := h.store.Get(ctx, jobID)
	if err != nil {
		return models.ProgressEvent{}, fmt.Errorf("get job: %w", err)
	}
	if !ok {
		return models.ProgressEvent{}, ErrJobNotFound
	}
	now := h.now().UTC()
	job, err = apply(job, u, now)
	if err != nil {
		return models.ProgressEvent{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := h.store.Save(ctx, job); err != nil {
		return models.ProgressEvent{}, fmt.Errorf("save job: %w", err)
	}

	ev := eventFor(job, u, now)
	h.fanout(st, ev)
	telemetry.EventsPublished.WithLabelValues("local").Inc()
	return ev, nil
}

// Subscribe registers a subscriber whose first event is the job's current snapshot.
func (h *Hub) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	if _, err := h.Job(ctx, jobID); err != nil {
		return nil, err
	}
	st := h.state(jobID)
	st.mu.Lock()
	defer st.mu.Unlock()

	job, ok, err := h.store.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	sub := &Subscription{
		JobID:  jobID,
		events: make(chan models.ProgressEvent, h.buffer+1),
		state:  st,
	}
	sub.events <- Snapshot(job, h.now().UTC())
	st.subs[sub] = struct{}{}
	telemetry.Subscribers.Inc()
	return sub, nil
}

func (h *Hub) deliver(ev models.ProgressEvent) {
	st := h.state(ev.JobID)
	st.mu.Lock()
	defer st.mu.Unlock()
	h.fanout(st, ev)
	telemetry.EventsPublished.WithLabelValues("remote").Inc()
}

// fanout must be called with st.mu held.
func (h *Hub) fanout(st *jobState, ev models.ProgressEvent) {
	for sub := range st.subs {
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("dropping slow subscriber", zap.String("job_id", ev.JobID))
			sub.lagged = true
			delete(st.subs, sub)
			sub.closeLocked()
			telemetry.SubscribersDropped.Inc()
		}
	}
}

func (h *Hub) state(jobID string) *jobState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.jobs[jobID]
	if !ok {
		st = &jobState{subs: make(map[*Subscription]struct{})}
		h.jobs[jobID] = st
	}
	return st
}

// Subscription is one live listener on a job.
type Subscription struct {
	JobID string

	events chan models.ProgressEvent
	state  *jobState
	closed bool
	lagged bool
}

// Events yields the snapshot followed by live events. It is closed on Close or
// when the subscriber falls behind.
func (s *Subscription) Events() <-chan models.ProgressEvent { return s.events }

// Lagged reports whether the hub dropped this subscriber for a full buffer.
func (s *Subscription) Lagged() bool {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.lagged
}

// Close removes the subscriber from the fan-out set. It is safe to call more than once.
func (s *Subscription) Close() {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	delete(s.state.subs, s)
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
	telemetry.Subscribers.Dec()
}
