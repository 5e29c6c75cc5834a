package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/claimcheck/config"
	"github.com/mohammad-safakhou/claimcheck/models"
)

func TestRootRegistersCommands(t *testing.T) {
	root := rootCMD()
	for _, name := range []string{"serve", "migrate", "research", "process"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(config.GeneralConfig{LogLevel: "loud"})
	assert.Error(t, err)

	logger, err := newLogger(config.GeneralConfig{LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}

func TestEventPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{w: &buf}

	require.NoError(t, p.print(models.ProgressEvent{Type: models.EventHeartbeat, Progress: 40}))
	require.NoError(t, p.print(models.ProgressEvent{
		Type:     models.EventProgress,
		Status:   models.StatusResearching,
		Step:     "Statement 1/2 researched",
		Progress: 99,
		Data: map[string]any{
			"statement_index": 1,
			"statement_text":  "Inflation halved last year",
			"research_result": map[string]any{"status": models.VerdictTrue, "record_id": "rec-1"},
		},
	}))
	require.NoError(t, p.print(models.ProgressEvent{
		Type:   models.EventProgress,
		Status: models.StatusFailed,
		Step:   "Processing failed",
		Error:  "download failed",
	}))
	p.summary()

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[0], "[ 99%] researching  Statement 1/2 researched")
	assert.Contains(t, lines[1], "error: download failed")
	assert.Contains(t, out, "Inflation halved last year")
	assert.Contains(t, out, "rec-1")
	assert.Contains(t, out, "1 statements researched")
	assert.NotContains(t, out, "[ 40%]")
}

func TestPrintVerdict(t *testing.T) {
	var buf bytes.Buffer
	printVerdict(&buf, models.ResearchResponse{
		SynthesizedVerdict: models.SynthesizedVerdict{
			Verdict:         models.VerdictTrue,
			VerdictText:     "Supported by official data",
			ConfidenceScore: 85,
			ResourcesAgreed: []models.Reference{{Title: "CPI release", URL: "https://www.bls.gov/cpi"}},
			ExpertPerspectives: []models.ExpertPerspective{
				{ExpertName: "Economist", Stance: models.StanceSupporting, ConfidenceLevel: 80, Reasoning: "Matches CPI"},
			},
		},
		Statement: "Inflation halved last year",
		RecordID:  "rec-9",
		Duplicate: true,
	})
	out := buf.String()
	for _, want := range []string{"Inflation halved last year", "85", "rec-9", "[A1] CPI release (bls.gov) <https://www.bls.gov/cpi>", "Economist"} {
		assert.Contains(t, out, want)
	}
}
