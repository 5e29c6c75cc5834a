package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/internal/research"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// ErrNoAnalysis is returned when the model's answer holds no statement list.
var ErrNoAnalysis = errors.New("transcript analysis is not valid JSON")

const extractSystem = `You extract checkable factual claims from speech transcripts. Answer only with one JSON object.`

// maxTranscriptChars keeps the extraction prompt inside common model context windows.
const maxTranscriptChars = 60000

// LLMExtractor asks a completion model for the checkable statements in a transcript.
type LLMExtractor struct {
	completer research.Completer
}

func NewLLMExtractor(c research.Completer) *LLMExtractor {
	return &LLMExtractor{completer: c}
}

type wireAnalysis struct {
	Statements []struct {
		Text      string          `json:"text"`
		Statement string          `json:"statement"`
		StartTime json.RawMessage `json:"start_time"`
		EndTime   json.RawMessage `json:"end_time"`
		Category  string          `json:"category"`
		Context   string          `json:"context"`
		Language  string          `json:"language"`
	} `json:"statements"`
	DetectedLanguage   string   `json:"detected_language"`
	AnalysisSummary    string   `json:"analysis_summary"`
	DominantCategories []string `json:"dominant_categories"`
}

// Extract is all-or-nothing: an unreadable answer fails the whole analysis.
func (x *LLMExtractor) Extract(ctx context.Context, tr models.Transcript, req ExtractRequest) (models.TranscriptAnalysis, error) {
	raw, err := x.completer.Complete(ctx, extractSystem, extractPrompt(tr, req))
	if err != nil {
		return models.TranscriptAnalysis{}, fmt.Errorf("%s: %w", x.completer.Name(), err)
	}
	return ParseAnalysis(raw)
}

// ParseAnalysis reads a statement list out of a model answer.
func ParseAnalysis(raw string) (models.TranscriptAnalysis, error) {
	body, ok := research.ExtractJSON(raw)
	if !ok {
		return models.TranscriptAnalysis{}, ErrNoAnalysis
	}
	var w wireAnalysis
	if err := json.Unmarshal(body, &w); err != nil {
		return models.TranscriptAnalysis{}, fmt.Errorf("%w: %v", ErrNoAnalysis, err)
	}
	out := models.TranscriptAnalysis{
		Statements:       make([]models.Statement, 0, len(w.Statements)),
		AnalysisSummary:  strings.TrimSpace(w.AnalysisSummary),
		DetectedLanguage: strings.ToLower(strings.TrimSpace(w.DetectedLanguage)),
	}
	for _, s := range w.Statements {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			text = strings.TrimSpace(s.Statement)
		}
		if text == "" {
			continue
		}
		out.Statements = append(out.Statements, models.Statement{
			Text:        text,
			Language:    strings.TrimSpace(s.Language),
			Context:     strings.TrimSpace(s.Context),
			Category:    models.ParseStatementCategory(s.Category),
			StartSecond: parseTimestamp(s.StartTime),
			EndSecond:   parseTimestamp(s.EndTime),
		})
	}
	for _, c := range w.DominantCategories {
		out.DominantCategories = append(out.DominantCategories, models.ParseStatementCategory(c))
	}
	return out, nil
}

// parseTimestamp accepts seconds as a number or string, or "mm:ss" / "hh:mm:ss".
func parseTimestamp(raw json.RawMessage) *int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return nil
		}
		v := int(f)
		return &v
	}
	total := 0
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil
		}
		total = total*60 + n
	}
	return &total
}

func extractPrompt(tr models.Transcript, req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("Identify every specific, checkable factual claim in the transcript below. Skip opinions, ")
	b.WriteString("promises and rhetorical questions. Quote each claim as closely as the transcript allows.\n\n")
	if req.Speaker != "" {
		fmt.Fprintf(&b, "Speaker: %s\n", req.Speaker)
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.Context)
	}
	if req.Language != "" {
		fmt.Fprintf(&b, "Transcript language: %s\n", req.Language)
	}
	categories := make([]string, len(models.StatementCategories))
	for i, c := range models.StatementCategories {
		categories[i] = string(c)
	}
	fmt.Fprintf(&b, "\nRespond with JSON of this shape:\n"+
		`{"statements":[{"text":"","start_time":"mm:ss","end_time":"mm:ss","category":"%s","context":"","language":""}],`+
		`"detected_language":"","analysis_summary":"","dominant_categories":[]}`+"\n\n", strings.Join(categories, "|"))
	b.WriteString("Transcript:\n")
	b.WriteString(helpers.Truncate(tr.Text, maxTranscriptChars))
	return b.String()
}
