package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// fakeRedis implements the string commands RedisJobStore uses.
type fakeRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) set(key string, value interface{}, ttl time.Duration) {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.set(key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) SetXX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	f.set(key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisJobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	s := NewRedisJobStore(rdb, "", time.Hour)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Save(ctx, models.Job{ID: "missing"}), ErrJobNotFound)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job := models.Job{
		ID:        "job-1",
		Target:    "https://video.example/1",
		Request:   models.JobRequest{URL: "https://video.example/1", LanguageCode: "en", CleanupAudio: true},
		Status:    models.StatusCreated,
		Step:      "Job created",
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, s.Create(ctx, job))
	assert.Error(t, s.Create(ctx, job), "ids are unique")
	assert.Contains(t, rdb.data, "claimcheck:job:job-1")
	assert.Equal(t, time.Hour, rdb.ttls["claimcheck:job:job-1"])

	job.Status = models.StatusTranscribing
	job.Progress = 75
	job.StatementsTotal = 3
	require.NoError(t, s.Save(ctx, job))

	got, ok, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusTranscribing, got.Status)
	assert.Equal(t, 75, got.Progress)
	assert.Equal(t, 3, got.StatementsTotal)
	assert.Equal(t, job.Request, got.Request)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestHubsSharingRedisStoreStayForwardOnly(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	a := NewHub(NewRedisJobStore(rdb, "cc:", 0))
	b := NewHub(NewRedisJobStore(rdb, "cc:", 0))

	job := newJob(t, a)
	_, err := a.Publish(ctx, job.ID, Update{Status: models.StatusTranscribing, Progress: 75})
	require.NoError(t, err)

	seen, err := b.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTranscribing, seen.Status)

	_, err = b.Publish(ctx, job.ID, Update{Status: models.StatusDownloading, Progress: 30})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	ev, err := b.Publish(ctx, job.ID, Update{Progress: 40})
	require.NoError(t, err)
	assert.Equal(t, 75, ev.Progress, "progress never decreases across instances")

	_, err = a.Publish(ctx, job.ID, Update{Status: models.StatusFailed, Error: "transcription failed"})
	require.NoError(t, err)
	_, err = b.Publish(ctx, job.ID, Update{Status: models.StatusCompleted})
	assert.ErrorIs(t, err, ErrTerminal)

	final, err := b.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, "transcription failed", final.Error)
	assert.NotNil(t, final.CompletedAt)
}
