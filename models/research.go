package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Verdict is the closed set of verification outcomes.
type Verdict string

const (
	VerdictTrue          Verdict = "TRUE"
	VerdictFactualError  Verdict = "FACTUAL_ERROR"
	VerdictDeceptiveLie  Verdict = "DECEPTIVE_LIE"
	VerdictManipulative  Verdict = "MANIPULATIVE"
	VerdictPartiallyTrue Verdict = "PARTIALLY_TRUE"
	VerdictOutOfContext  Verdict = "OUT_OF_CONTEXT"
	VerdictUnverifiable  Verdict = "UNVERIFIABLE"
)

var verdictAliases = map[string]Verdict{
	"TRUE":           VerdictTrue,
	"FACTUAL_ERROR":  VerdictFactualError,
	"FALSE":          VerdictFactualError,
	"DECEPTIVE_LIE":  VerdictDeceptiveLie,
	"LIE":            VerdictDeceptiveLie,
	"MANIPULATIVE":   VerdictManipulative,
	"PARTIALLY_TRUE": VerdictPartiallyTrue,
	"MOSTLY_TRUE":    VerdictPartiallyTrue,
	"OUT_OF_CONTEXT": VerdictOutOfContext,
	"MISLEADING":     VerdictOutOfContext,
	"UNVERIFIABLE":   VerdictUnverifiable,
	"UNVERIFIED":     VerdictUnverifiable,
}

// ParseVerdict maps free-form provider output onto the closed verdict set.
func ParseVerdict(s string) (Verdict, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	v, ok := verdictAliases[key]
	return v, ok
}

// Definitive reports whether v is a usable answer rather than UNVERIFIABLE.
func (v Verdict) Definitive() bool {
	_, ok := verdictAliases[string(v)]
	return ok && v != VerdictUnverifiable
}

// Credibility ranks a reference's source.
type Credibility string

const (
	CredibilityHigh   Credibility = "high"
	CredibilityMedium Credibility = "medium"
	CredibilityLow    Credibility = "low"
)

// Rank returns 3/2/1 for high/medium/low and 0 for unknown values.
func (c Credibility) Rank() int {
	switch c {
	case CredibilityHigh:
		return 3
	case CredibilityMedium:
		return 2
	case CredibilityLow:
		return 1
	}
	return 0
}

// Reference is a single cited source.
type Reference struct {
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Category    string      `json:"category"`
	Country     string      `json:"country"`
	Credibility Credibility `json:"credibility"`
	Domain      string      `json:"domain,omitempty"`
	KeyFinding  string      `json:"key_finding,omitempty"`
}

// Normalize folds category, country and credibility onto their vocabularies and fills Domain.
func (r Reference) Normalize() Reference {
	r.URL = strings.TrimSpace(r.URL)
	r.Title = strings.TrimSpace(r.Title)
	r.Category = NormalizeSourceCategory(r.Category)
	r.Country = NormalizeCountry(r.Country)
	switch Credibility(strings.ToLower(strings.TrimSpace(string(r.Credibility)))) {
	case CredibilityHigh:
		r.Credibility = CredibilityHigh
	case CredibilityLow:
		r.Credibility = CredibilityLow
	default:
		r.Credibility = CredibilityMedium
	}
	if r.Domain == "" && r.URL != "" {
		if u, err := url.Parse(r.URL); err == nil {
			r.Domain = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
	}
	return r
}

// Stance is an expert perspective's position on a statement.
type Stance string

const (
	StanceSupporting Stance = "SUPPORTING"
	StanceOpposing   Stance = "OPPOSING"
	StanceNeutral    Stance = "NEUTRAL"
)

// ExpertPerspective is a single reasoned position on a statement.
type ExpertPerspective struct {
	ExpertName      string  `json:"expert_name"`
	Stance          Stance  `json:"stance"`
	Reasoning       string  `json:"reasoning"`
	ConfidenceLevel float64 `json:"confidence_level"`
	Summary         string  `json:"summary"`
	SourceType      string  `json:"source_type,omitempty"`
	ExpertiseArea   string  `json:"expertise_area,omitempty"`
}

// Evidence is one provider's answer for one statement.
type Evidence struct {
	Provider     string              `json:"provider"`
	Verdict      Verdict             `json:"status"`
	Summary      string              `json:"verdict"`
	Correction   string              `json:"correction,omitempty"`
	Country      string              `json:"country,omitempty"`
	Confidence   int                 `json:"confidence_score"`
	Findings     []string            `json:"key_findings,omitempty"`
	Supporting   []Reference         `json:"resources_agreed,omitempty"`
	Opposing     []Reference         `json:"resources_disagreed,omitempty"`
	Perspectives []ExpertPerspective `json:"expert_perspectives,omitempty"`
	Content      string              `json:"content,omitempty"`
	Results      []SearchResult      `json:"results,omitempty"`
}

// SearchResult is one live-search hit.
type SearchResult struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Summary   string  `json:"summary,omitempty"`
	Relevance float64 `json:"relevance"`
}

// ResearchMetadata records which tiers ran and what they produced.
type ResearchMetadata struct {
	ResearchSources        []string  `json:"research_sources"`
	ResearchTimestamp      time.Time `json:"research_timestamp"`
	TriFactorResearch      bool      `json:"tri_factor_research"`
	WebResultsCount        int       `json:"web_results_count"`
	TotalResourcesAnalyzed int       `json:"total_resources_analyzed"`
}

// SynthesizedVerdict is the combined result of all tiers for one statement.
type SynthesizedVerdict struct {
	Verdict            Verdict             `json:"status"`
	VerdictText        string              `json:"verdict"`
	Correction         string              `json:"correction,omitempty"`
	Country            string              `json:"country,omitempty"`
	Category           StatementCategory   `json:"category,omitempty"`
	ValidSources       string              `json:"valid_sources"`
	ResourcesAgreed    []Reference         `json:"resources_agreed"`
	ResourcesDisagreed []Reference         `json:"resources_disagreed"`
	ExpertPerspectives []ExpertPerspective `json:"expert_perspectives"`
	KeyFindings        []string            `json:"key_findings"`
	LLMFindings        []string            `json:"llm_findings"`
	WebFindings        []string            `json:"web_findings"`
	ResourceFindings   []string            `json:"resource_findings"`
	ResearchSummary    string              `json:"research_summary"`
	ConfidenceScore    int                 `json:"confidence_score"`
	ResearchMethod     string              `json:"research_method"`
	Provenance         []string            `json:"provenance"`
	Metadata           ResearchMetadata    `json:"research_metadata"`
}

// ResearchRequest asks for one statement to be verified.
type ResearchRequest struct {
	Statement     string            `json:"statement"`
	Source        string            `json:"source"`
	Context       string            `json:"context"`
	StatementDate *time.Time        `json:"datetime,omitempty"`
	Country       string            `json:"country,omitempty"`
	Category      StatementCategory `json:"category,omitempty"`
}

// UnmarshalJSON accepts datetime as RFC 3339 or as a plain YYYY-MM-DD date.
func (r *ResearchRequest) UnmarshalJSON(b []byte) error {
	type plain ResearchRequest
	aux := struct {
		*plain
		Datetime *string `json:"datetime"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.StatementDate = nil
	if aux.Datetime == nil || strings.TrimSpace(*aux.Datetime) == "" {
		return nil
	}
	t, err := ParseStatementDate(*aux.Datetime)
	if err != nil {
		return err
	}
	r.StatementDate = &t
	return nil
}

// ParseStatementDate parses an RFC 3339 timestamp or a YYYY-MM-DD date (UTC midnight).
func ParseStatementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("datetime %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// Normalize trims fields, folds the country code and applies defaultCountry when empty.
func (r ResearchRequest) Normalize(defaultCountry string) ResearchRequest {
	r.Statement = strings.TrimSpace(r.Statement)
	r.Source = strings.TrimSpace(r.Source)
	r.Context = strings.TrimSpace(r.Context)
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	if r.Country == "" {
		r.Country = strings.ToUpper(defaultCountry)
	}
	r.Category = StatementCategory(strings.ToLower(strings.TrimSpace(string(r.Category))))
	return r
}

// Validate checks the request after Normalize.
func (r ResearchRequest) Validate() error {
	if r.Statement == "" {
		return fmt.Errorf("%w: statement is required", ErrInvalidRequest)
	}
	if r.Country != "" && len(r.Country) != 2 {
		return fmt.Errorf("%w: country must be a two-letter code", ErrInvalidRequest)
	}
	if r.Category != "" && !r.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, r.Category)
	}
	return nil
}

// ResearchResponse is a SynthesizedVerdict plus request echo and storage fields.
type ResearchResponse struct {
	SynthesizedVerdict
	Statement       string     `json:"statement"`
	Source          string     `json:"source"`
	Context         string     `json:"context"`
	StatementDate   *time.Time `json:"statement_date,omitempty"`
	RequestDatetime time.Time  `json:"request_datetime"`
	RecordID        string     `json:"research_id,omitempty"`
	Duplicate       bool       `json:"duplicate"`
	RelatedRecords  []string   `json:"related_records,omitempty"`
}
