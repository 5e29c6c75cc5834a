package research

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/claimcheck/models"
)

const knowledgeSystem = `You are a meticulous fact-checker. Answer only with one JSON object, no prose.`

const evidenceShape = `Respond with JSON of this shape:
{
  "status": "TRUE | FACTUAL_ERROR | DECEPTIVE_LIE | MANIPULATIVE | PARTIALLY_TRUE | OUT_OF_CONTEXT | UNVERIFIABLE",
  "verdict": "one or two sentence explanation",
  "correction": "the accurate version of the statement, empty when TRUE",
  "country": "two-letter code of the country the statement concerns",
  "confidence_score": 0-100,
  "key_findings": ["short factual finding", "..."],
  "resources_agreed": [{"url": "", "title": "", "category": "", "country": "", "credibility": "high|medium|low", "key_finding": ""}],
  "resources_disagreed": [ same shape ],
  "expert_perspectives": [{"expert_name": "", "stance": "SUPPORTING|OPPOSING|NEUTRAL", "reasoning": "", "confidence_level": 0-100, "summary": "", "expertise_area": ""}]
}
Use UNVERIFIABLE when the available evidence cannot settle the statement.`

func describeRequest(req models.ResearchRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Statement: %s\n", req.Statement)
	if req.Source != "" {
		fmt.Fprintf(&b, "Speaker/source: %s\n", req.Source)
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.Context)
	}
	if req.StatementDate != nil {
		fmt.Fprintf(&b, "Statement date: %s\n", req.StatementDate.Format("2006-01-02"))
	}
	if req.Country != "" {
		fmt.Fprintf(&b, "Country: %s\n", req.Country)
	}
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	return b.String()
}

func knowledgePrompt(req models.ResearchRequest) string {
	return "Fact-check the following statement using what you know.\n\n" + describeRequest(req) + "\n" + evidenceShape
}

func groundedPrompt(req models.ResearchRequest) string {
	return "Search the web for current, authoritative evidence about the statement below and summarize what " +
		"the sources say, citing each source.\n\n" + describeRequest(req) + "\n" + evidenceShape
}

func documentPrompt(req models.ResearchRequest, documents string) string {
	return "Classify the documents below as supporting or contradicting the statement. For every document " +
		"that takes a position, add it to resources_agreed or resources_disagreed with its url, a category " +
		"(governance, mainstream, academic, fact_checking, medical, economic, legal, technology, international, " +
		"policy, other), the country it comes from and a credibility tier.\n\n" +
		describeRequest(req) + "\nDocuments:\n" + documents + "\n" + evidenceShape
}

// FallbackContext is the deterministic stand-in for live-search content that is missing or too short.
func FallbackContext(req models.ResearchRequest, reason string, now time.Time) string {
	var b strings.Builder
	b.WriteString("=== WEB RESEARCH FALLBACK ===\n")
	fmt.Fprintf(&b, "Statement: %s\n", req.Statement)
	fmt.Fprintf(&b, "Reason: %s\n", reason)
	b.WriteString("Note: Fact-checking based on knowledge-tier data only.\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", now.UTC().Format(time.RFC3339))
	return b.String()
}
