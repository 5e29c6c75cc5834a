package research

import (
	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// Scoring holds the confidence adjustments applied on top of the knowledge tier.
type Scoring struct {
	OfficialBonusSingle  int // one official source
	OfficialBonus        int // two or more official sources
	GenericBonus         int
	GenericMinSources    int
	ContradictionPenalty int // per contradicting document reference
	MaxPenalty           int
}

func DefaultScoring() Scoring {
	return Scoring{
		OfficialBonusSingle:  10,
		OfficialBonus:        15,
		GenericBonus:         5,
		GenericMinSources:    3,
		ContradictionPenalty: 5,
		MaxPenalty:           15,
	}
}

// Normalize keeps every adjustment inside the bounds the verdict contract allows.
func (s Scoring) Normalize() Scoring {
	d := DefaultScoring()
	clamp := func(v, lo, hi, def int) int {
		if v < lo || v > hi {
			return def
		}
		return v
	}
	s.OfficialBonus = clamp(s.OfficialBonus, 0, 15, d.OfficialBonus)
	s.OfficialBonusSingle = clamp(s.OfficialBonusSingle, 0, s.OfficialBonus, min(d.OfficialBonusSingle, s.OfficialBonus))
	s.GenericBonus = clamp(s.GenericBonus, 0, 5, d.GenericBonus)
	if s.GenericMinSources <= 0 {
		s.GenericMinSources = d.GenericMinSources
	}
	s.ContradictionPenalty = clamp(s.ContradictionPenalty, 0, 50, d.ContradictionPenalty)
	s.MaxPenalty = clamp(s.MaxPenalty, 0, 50, d.MaxPenalty)
	return s
}

// ScoreInput is what the enrichment tiers contributed for one statement.
type ScoreInput struct {
	Base           models.Evidence
	Sources        []string // enrichment source URLs (web results and document references)
	Official       int
	Contradictions int
}

// Score derives the final confidence. UNVERIFIABLE is pinned to UnverifiableConfidence;
// anything else is clamped to [ConfidenceFloor, ConfidenceCeiling].
func (s Scoring) Score(in ScoreInput) int {
	if !in.Base.Verdict.Definitive() {
		return UnverifiableConfidence
	}
	score := in.Base.Confidence
	switch {
	case in.Official >= 2:
		score += s.OfficialBonus
	case in.Official == 1:
		score += s.OfficialBonusSingle
	}
	if uniqueSources(in.Sources) >= s.GenericMinSources {
		score += s.GenericBonus
	}
	if in.Contradictions > 0 {
		score -= min(in.Contradictions*s.ContradictionPenalty, s.MaxPenalty)
	}
	return ClampConfidence(in.Base.Verdict, score)
}

func uniqueSources(urls []string) int {
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key := helpers.ComparableURL(u); key != "" {
			seen[key] = struct{}{}
		}
	}
	return len(seen)
}

// countOfficial counts distinct official sources among urls and references.
func countOfficial(reg *DomainRegistry, urls []string, refs []models.Reference) int {
	seen := make(map[string]struct{})
	for _, u := range urls {
		if reg.IsOfficial(u) {
			seen[helpers.ComparableURL(u)] = struct{}{}
		}
	}
	for _, r := range refs {
		if reg.IsOfficialReference(r) && r.URL != "" {
			seen[helpers.ComparableURL(r.URL)] = struct{}{}
		}
	}
	return len(seen)
}
