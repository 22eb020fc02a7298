package model

import "time"

// Citation points at one supporting document in the final answer.
type Citation struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// RankedCandidate pairs a candidate with its fusion score for trace display.
type RankedCandidate struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
	Reasons   []string  `json:"reasons"`
}

// AskResult is everything the answer assembler produces for one query:
// the guarded winner, citations, policy verdicts, and the per-provider
// diagnostics needed for an audit trace. It is discarded after rendering.
type AskResult struct {
	TraceID    string                     `json:"trace_id"`
	Query      string                     `json:"query"`
	Answer     string                     `json:"answer"`
	Citations  []Citation                 `json:"citations"`
	Freshness  time.Time                  `json:"freshness"`
	Confidence float64                    `json:"confidence"`
	Banner     string                     `json:"policy_banner,omitempty"`
	Conflict   bool                       `json:"conflict"`
	Redactions []string                   `json:"redactions,omitempty"`
	Candidates []RankedCandidate          `json:"candidates,omitempty"` // descending by score
	Outcomes   map[Source]ProviderOutcome `json:"outcomes,omitempty"`
	LatencyMS  int                        `json:"latency_ms"`
	Summary    *AnswerSummary             `json:"summary,omitempty"` // optional LLM layer, never affects ranking
}

// NoAnswer reports whether aggregation produced nothing citable.
func (r *AskResult) NoAnswer() bool {
	return len(r.Citations) == 0
}

// AnswerSummary is the optional LLM-generated elaboration of the answer.
// It is produced after policy, from redacted text only, and never feeds
// back into scoring.
type AnswerSummary struct {
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Text     string   `json:"text"`
	Warnings []string `json:"warnings,omitempty"`
}
