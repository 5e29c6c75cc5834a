package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementIndexSimilar(t *testing.T) {
	idx, err := NewStatementIndex("")
	require.NoError(t, err)
	defer idx.Close()

	now := time.Now()
	require.NoError(t, idx.Add("r1", Document{Statement: "Unemployment fell to 3 percent last year", CreatedAt: now}))
	require.NoError(t, idx.Add("r2", Document{Statement: "The new bridge cost two billion dollars", CreatedAt: now}))
	require.NoError(t, idx.Add("", Document{Statement: "ignored"}))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	hits, err := idx.Similar("unemployment fell to 3 percent", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "r1", hits[0].ID)
	assert.Equal(t, "Unemployment fell to 3 percent last year", hits[0].Statement)
	assert.Equal(t, 1, hits[0].Rank)

	hits, err = idx.Similar("   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
