package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/claimcheck/models"
)

var req = models.ResearchRequest{Statement: "Unemployment fell to 3%.", Country: "US"}

func TestChainAcceptsDefinitivePrimary(t *testing.T) {
	primary := &stubKnowledge{name: "groq", ev: models.Evidence{Verdict: models.VerdictTrue, Confidence: 60}}
	secondary := &stubKnowledge{name: "gemini"}
	c := NewChain([]KnowledgeProvider{primary, secondary}, time.Second, 0, nil)

	ev, idx, attempts, err := c.Research(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "groq", ev.Provider)
	assert.Len(t, attempts, 1)
	assert.Zero(t, secondary.calls.Load())
}

func TestChainEscalatesOnUnverifiableAndAcceptsLastRegardless(t *testing.T) {
	primary := &stubKnowledge{name: "groq", ev: models.Evidence{Verdict: models.VerdictUnverifiable, Confidence: 20}}
	secondary := &stubKnowledge{name: "gemini", ev: models.Evidence{Verdict: models.VerdictUnverifiable, Summary: "no data"}}
	c := NewChain([]KnowledgeProvider{primary, secondary}, time.Second, 0, nil)

	ev, idx, attempts, err := c.Research(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "gemini", ev.Provider)
	assert.Equal(t, "no data", ev.Summary)
	assert.Len(t, attempts, 2)
}

func TestChainFallsBackOnError(t *testing.T) {
	primary := &stubKnowledge{name: "groq", err: errors.New("503")}
	secondary := &stubKnowledge{name: "gemini", ev: models.Evidence{Verdict: models.VerdictFactualError, Confidence: 70}}
	c := NewChain([]KnowledgeProvider{primary, secondary}, time.Second, 0, nil)

	ev, idx, attempts, err := c.Research(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, models.VerdictFactualError, ev.Verdict)
	require.Len(t, attempts, 2)
	assert.Error(t, attempts[0].Err)
}

func TestChainHoldsUnverifiableWhenLastFails(t *testing.T) {
	primary := &stubKnowledge{name: "groq", ev: models.Evidence{Verdict: models.VerdictUnverifiable, Confidence: 20}}
	secondary := &stubKnowledge{name: "gemini", err: errors.New("quota")}
	c := NewChain([]KnowledgeProvider{primary, secondary}, time.Second, 0, nil)

	ev, idx, _, err := c.Research(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, models.VerdictUnverifiable, ev.Verdict)
}

func TestChainAllFail(t *testing.T) {
	c := NewChain([]KnowledgeProvider{
		&stubKnowledge{name: "a", err: errors.New("down")},
		&stubKnowledge{name: "b", err: errors.New("down")},
	}, time.Second, 0, nil)
	_, idx, _, err := c.Research(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoKnowledgeProvider)
	assert.Equal(t, -1, idx)

	_, _, _, err = NewChain(nil, 0, 0, nil).Research(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoKnowledgeProvider)
}

func TestChainSharedBudget(t *testing.T) {
	slow := &stubKnowledge{name: "slow", block: true}
	never := &stubKnowledge{name: "never", ev: models.Evidence{Verdict: models.VerdictTrue}}
	c := NewChain([]KnowledgeProvider{slow, never}, 30*time.Millisecond, 0, nil)

	start := time.Now()
	_, _, _, err := c.Research(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoKnowledgeProvider)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, never.calls.Load())
}
