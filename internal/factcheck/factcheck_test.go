package factcheck

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/claimcheck/internal/store"
	"github.com/mohammad-safakhou/claimcheck/models"
	"github.com/mohammad-safakhou/claimcheck/tools/search"
)

type countingSynth struct {
	calls atomic.Int32
	err   error
}

func (c *countingSynth) Synthesize(_ context.Context, req models.ResearchRequest) (models.SynthesizedVerdict, error) {
	c.calls.Add(1)
	if c.err != nil {
		return models.SynthesizedVerdict{}, c.err
	}
	return models.SynthesizedVerdict{
		Verdict:         models.VerdictTrue,
		VerdictText:     "Matches official figures.",
		ConfidenceScore: 80,
		ResearchMethod:  "knowledge:groq + live-search:serper",
		Country:         req.Country,
		Category:        req.Category,
		Provenance:      []string{"groq", "serper"},
	}, nil
}

type failingRecords struct{ *store.Store }

func (failingRecords) FindByStatement(context.Context, string) (store.ResearchRecord, bool, error) {
	return store.ResearchRecord{}, false, nil
}

func (failingRecords) CreateResearch(context.Context, store.ResearchRecord) (store.ResearchRecord, error) {
	return store.ResearchRecord{}, errors.New("disk full")
}

func newSQLite(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{Driver: store.SQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newIndex(t *testing.T) *search.StatementIndex {
	t.Helper()
	idx, err := search.NewStatementIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestExactDuplicateSkipsProviders(t *testing.T) {
	ctx := context.Background()
	synth := &countingSynth{}
	svc := New(synth, WithRecords(newSQLite(t)), WithIndex(newIndex(t)), WithClock(fixedClock))

	req := models.ResearchRequest{Statement: "Unemployment fell to 3%.", Source: "Senator X"}
	first, err := svc.Research(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, first.RecordID)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "knowledge:groq + live-search:serper", first.ResearchMethod)
	assert.Equal(t, "US", first.Country)

	second, err := svc.Research(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.True(t, second.Duplicate)
	assert.Equal(t, MethodDatabaseRetrieval, second.ResearchMethod)
	assert.Equal(t, models.VerdictTrue, second.Verdict)
	assert.EqualValues(t, 1, synth.calls.Load())
}

func TestRelatedRecordsExcludeSelf(t *testing.T) {
	ctx := context.Background()
	svc := New(&countingSynth{}, WithRecords(newSQLite(t)), WithIndex(newIndex(t)), WithClock(fixedClock))

	first, err := svc.Research(ctx, models.ResearchRequest{Statement: "The unemployment rate fell to 3 percent last year."})
	require.NoError(t, err)
	assert.Empty(t, first.RelatedRecords)

	second, err := svc.Research(ctx, models.ResearchRequest{Statement: "The unemployment rate fell to 3 percent last year!"})
	require.NoError(t, err)
	assert.NotEqual(t, first.RecordID, second.RecordID)
	assert.Equal(t, []string{first.RecordID}, second.RelatedRecords)

	unrelated, err := svc.Research(ctx, models.ResearchRequest{Statement: "Wind power supplies half of the grid."})
	require.NoError(t, err)
	assert.Empty(t, unrelated.RelatedRecords)
}

func TestValidationRejectsBadInput(t *testing.T) {
	svc := New(&countingSynth{})
	cases := []models.ResearchRequest{
		{Statement: "   "},
		{Statement: "x", Country: "USA"},
		{Statement: "x", Category: "sports"},
	}
	for _, req := range cases {
		_, err := svc.Research(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
	}
}

func TestStorageFailureIsNotFatal(t *testing.T) {
	svc := New(&countingSynth{}, WithRecords(failingRecords{}))
	resp, err := svc.Research(context.Background(), models.ResearchRequest{Statement: "Inflation doubled."})
	require.NoError(t, err)
	assert.Empty(t, resp.RecordID)
	assert.Equal(t, models.VerdictTrue, resp.Verdict)
}

func TestSynthesizerErrorPropagates(t *testing.T) {
	svc := New(&countingSynth{err: context.DeadlineExceeded})
	_, err := svc.Research(context.Background(), models.ResearchRequest{Statement: "Inflation doubled."})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecordWithoutStorage(t *testing.T) {
	svc := New(&countingSynth{})
	_, err := svc.Record(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.False(t, svc.StorageEnabled())
}

func TestRecordAndRebuildIndex(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	svc := New(&countingSynth{}, WithRecords(st), WithClock(fixedClock))
	created, err := svc.Research(ctx, models.ResearchRequest{Statement: "Crime fell by 10% in 2023.", Category: "social"})
	require.NoError(t, err)

	got, err := svc.Record(ctx, created.RecordID)
	require.NoError(t, err)
	assert.Equal(t, "Crime fell by 10% in 2023.", got.Statement)
	assert.Equal(t, models.StatementCategory("social"), got.Category)

	_, err = svc.Record(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	idx := newIndex(t)
	rebuilt := New(&countingSynth{}, WithRecords(st), WithIndex(idx))
	n, err := rebuilt.RebuildIndex(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
