package research

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/claimcheck/models"
)

//go:embed evidence.schema.json
var evidenceSchemaSource string

var evidenceSchema = jsonschema.MustCompileString("evidence.schema.json", evidenceSchemaSource)

// Confidence bounds applied to parsed evidence.
const (
	ConfidenceFloor        = 30
	ConfidenceCeiling      = 95
	UnverifiableConfidence = 20
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON finds a JSON object in model output: the whole text, then a fenced
// block, then the first balanced {...} span.
func ExtractJSON(raw string) ([]byte, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}
	if strings.HasPrefix(text, "{") && json.Valid([]byte(text)) {
		return []byte(text), true
	}
	if m := fencedJSON.FindStringSubmatch(text); m != nil && json.Valid([]byte(m[1])) {
		return []byte(m[1]), true
	}
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := balancedEnd(text[start:]); end > 0 {
			candidate := text[start : start+end]
			if json.Valid([]byte(candidate)) {
				return []byte(candidate), true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// balancedEnd returns the length of the brace-balanced prefix of s, or 0.
func balancedEnd(s string) int {
	depth := 0
	inString, escaped := false, false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{':
			depth++
		case r == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}

type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimSuffix(s, "%")
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("not a finite number: %q", s)
	}
	*f = flexNumber(v)
	return nil
}

type wireReference struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Country     string `json:"country"`
	Credibility string `json:"credibility"`
	KeyFinding  string `json:"key_finding"`
}

type wirePerspective struct {
	ExpertName      string     `json:"expert_name"`
	Stance          string     `json:"stance"`
	Reasoning       string     `json:"reasoning"`
	ConfidenceLevel flexNumber `json:"confidence_level"`
	Summary         string     `json:"summary"`
	ExpertiseArea   string     `json:"expertise_area"`
}

type wireEvidence struct {
	Status             string            `json:"status"`
	Verdict            string            `json:"verdict"`
	Correction         string            `json:"correction"`
	Country            string            `json:"country"`
	Confidence         flexNumber        `json:"confidence_score"`
	KeyFindings        []string          `json:"key_findings"`
	ResourcesAgreed    json.RawMessage   `json:"resources_agreed"`
	ResourcesDisagreed json.RawMessage   `json:"resources_disagreed"`
	Perspectives       []wirePerspective `json:"expert_perspectives"`
}

// ParseEvidence turns model output into Evidence. Output without a JSON object, or
// whose object fails the evidence schema or names an unknown status, yields ErrUnparseable.
func ParseEvidence(provider, raw string) (models.Evidence, error) {
	body, ok := ExtractJSON(raw)
	if !ok {
		return models.Evidence{}, fmt.Errorf("%w: no JSON object found", ErrUnparseable)
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.Evidence{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if err := evidenceSchema.Validate(doc); err != nil {
		return models.Evidence{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	var w wireEvidence
	if err := json.Unmarshal(body, &w); err != nil {
		return models.Evidence{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	verdict, ok := models.ParseVerdict(w.Status)
	if !ok {
		return models.Evidence{}, fmt.Errorf("%w: unknown status %q", ErrUnparseable, w.Status)
	}

	ev := models.Evidence{
		Provider:   provider,
		Verdict:    verdict,
		Summary:    strings.TrimSpace(w.Verdict),
		Correction: strings.TrimSpace(w.Correction),
		Country:    strings.TrimSpace(w.Country),
		Confidence: ClampConfidence(verdict, int(float64(w.Confidence)+0.5)),
		Findings:   nonEmpty(w.KeyFindings),
		Supporting: decodeReferences(w.ResourcesAgreed),
		Opposing:   decodeReferences(w.ResourcesDisagreed),
	}
	for _, p := range w.Perspectives {
		if strings.TrimSpace(p.Reasoning) == "" && strings.TrimSpace(p.Summary) == "" {
			continue
		}
		ev.Perspectives = append(ev.Perspectives, models.ExpertPerspective{
			ExpertName:      strings.TrimSpace(p.ExpertName),
			Stance:          parseStance(p.Stance),
			Reasoning:       strings.TrimSpace(p.Reasoning),
			ConfidenceLevel: clampFloat(float64(p.ConfidenceLevel), 0, 100),
			Summary:         strings.TrimSpace(p.Summary),
			SourceType:      "llm",
			ExpertiseArea:   strings.TrimSpace(p.ExpertiseArea),
		})
	}
	return ev, nil
}

// Fallback is the degraded evidence used when a provider's answer cannot be interpreted.
func Fallback(provider, reason string) models.Evidence {
	return models.Evidence{
		Provider:   provider,
		Verdict:    models.VerdictUnverifiable,
		Summary:    "Unable to verify the statement: " + reason,
		Confidence: UnverifiableConfidence,
	}
}

// ClampConfidence bounds definitive verdicts to [ConfidenceFloor, ConfidenceCeiling]
// and pins UNVERIFIABLE to UnverifiableConfidence.
func ClampConfidence(v models.Verdict, c int) int {
	if !v.Definitive() {
		return UnverifiableConfidence
	}
	if c < ConfidenceFloor {
		return ConfidenceFloor
	}
	if c > ConfidenceCeiling {
		return ConfidenceCeiling
	}
	return c
}

func decodeReferences(raw json.RawMessage) []models.Reference {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []wireReference
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			References []wireReference `json:"references"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		list = wrapped.References
	}
	out := make([]models.Reference, 0, len(list))
	for _, r := range list {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		out = append(out, models.Reference{
			URL:         r.URL,
			Title:       r.Title,
			Category:    r.Category,
			Country:     r.Country,
			Credibility: models.Credibility(r.Credibility),
			KeyFinding:  strings.TrimSpace(r.KeyFinding),
		}.Normalize())
	}
	return out
}

func parseStance(s string) models.Stance {
	switch models.Stance(strings.ToUpper(strings.TrimSpace(s))) {
	case models.StanceSupporting:
		return models.StanceSupporting
	case models.StanceOpposing:
		return models.StanceOpposing
	}
	return models.StanceNeutral
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
