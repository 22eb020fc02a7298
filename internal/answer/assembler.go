package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/onesource/internal/connector"
	"github.com/ppiankov/onesource/internal/fusion"
	"github.com/ppiankov/onesource/internal/llm"
	"github.com/ppiankov/onesource/internal/model"
	"github.com/ppiankov/onesource/internal/policy"
	"github.com/ppiankov/onesource/internal/trace"
)

const maxCitations = 3

// Assembler is the thin layer over the core stages: it owns request-level
// concerns (trace id, latency, trace persistence) and turns the guarded
// winner plus top citations into the final response.
type Assembler struct {
	hub        *connector.Hub
	store      *trace.Store
	summarizer *llm.Summarizer // nil when disabled
	logger     zerolog.Logger
	limit      int
}

// NewAssembler wires the pipeline. summarizer may be nil.
func NewAssembler(hub *connector.Hub, store *trace.Store, summarizer *llm.Summarizer, logger zerolog.Logger, limit int) *Assembler {
	if limit <= 0 {
		limit = 5
	}
	return &Assembler{
		hub:        hub,
		store:      store,
		summarizer: summarizer,
		logger:     logger,
		limit:      limit,
	}
}

// Ask answers one query: fan-out, fusion, policy, assembly. Aggregation
// yielding nothing is not an error; it produces the no-answer response
// without ever invoking the ranker.
func (a *Assembler) Ask(ctx context.Context, userID, query string) (*model.AskResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	traceID := trace.NewTraceID()
	logger := a.logger.With().Str("trace_id", traceID).Logger()
	start := time.Now()

	candidates, outcomes := a.hub.Aggregate(ctx, userID, query, a.limit)
	if len(candidates) == 0 {
		result := a.noAnswer(traceID, query, outcomes, start)
		logger.Info().Str("route", "ask").Int("no_citation", 1).Msg("ask.complete")
		return result, nil
	}

	winner, trails, err := fusion.Rank(candidates, query)
	if err != nil {
		// Unreachable after the emptiness gate; a failure here is a
		// contract violation, not a runtime condition.
		return nil, fmt.Errorf("rank: %w", err)
	}

	sorted := fusion.SortByScore(candidates, trails)

	citations := buildCitations(sorted)

	// Policy mutates snippets in place; hand it pointers into the sorted
	// slice so citations and trace see the redacted text.
	rankedPtrs := make([]*model.Candidate, len(sorted))
	var winnerPtr *model.Candidate
	for i := range sorted {
		rankedPtrs[i] = &sorted[i]
		if sorted[i].DocID == winner.DocID {
			winnerPtr = &sorted[i]
		}
	}

	guarded := policy.Guard(winnerPtr, rankedPtrs)

	confidence := clamp01(trails[winnerPtr.DocID].Total)

	ranked := make([]model.RankedCandidate, len(sorted))
	for i := range sorted {
		t := trails[sorted[i].DocID]
		ranked[i] = model.RankedCandidate{
			Candidate: sorted[i],
			Score:     t.Total,
			Reasons:   t.Reasons,
		}
	}

	result := &model.AskResult{
		TraceID:    traceID,
		Query:      query,
		Answer:     answerText(guarded.Winner.Snippet),
		Citations:  citations,
		Freshness:  guarded.Winner.LastModified,
		Confidence: confidence,
		Banner:     guarded.Banner,
		Conflict:   guarded.Conflict,
		Redactions: guarded.Redactions,
		Candidates: ranked,
		Outcomes:   outcomes,
		LatencyMS:  int(time.Since(start).Milliseconds()),
	}

	// Optional LLM elaboration, from redacted text only. Failures warn,
	// never fail the ask, and never feed back into scoring.
	if a.summarizer != nil && a.summarizer.IsEnabled() {
		if summary, err := a.summarizer.Summarize(ctx, result); err != nil {
			logger.Warn().Err(err).Msg("answer summary failed")
		} else if summary != nil {
			result.Summary = summary
		}
	}

	a.saveTrace(result, trails)

	logger.Info().
		Str("route", "ask").
		Str("chosen_source", string(guarded.Winner.Source)).
		Float64("chosen_score", confidence).
		Bool("conflict", guarded.Conflict).
		Int("citations", len(citations)).
		Int("latency_ms", result.LatencyMS).
		Msg("ask.complete")

	return result, nil
}

// Trace returns the stored audit trace for a previous ask, or nil.
func (a *Assembler) Trace(id string) *trace.Trace {
	if a.store == nil {
		return nil
	}
	return a.store.Get(id)
}

// noAnswer builds the response for the empty-aggregation condition.
func (a *Assembler) noAnswer(traceID, query string, outcomes map[model.Source]model.ProviderOutcome, start time.Time) *model.AskResult {
	result := &model.AskResult{
		TraceID:    traceID,
		Query:      query,
		Answer:     "No authoritative answer found.",
		Freshness:  time.Now().UTC(),
		Confidence: 0,
		Banner:     "Insufficient citations to justify an answer.",
		Outcomes:   outcomes,
		LatencyMS:  int(time.Since(start).Milliseconds()),
	}
	if a.store != nil {
		a.store.Save(&trace.Trace{
			TraceID:  traceID,
			Query:    query,
			Outcomes: outcomes,
			Chosen:   trace.ChosenEntry{Explanations: []string{"no_citation_gate"}},
		})
	}
	return result
}

// buildCitations takes the top unique URLs in descending score order.
func buildCitations(sorted []model.Candidate) []model.Citation {
	citations := make([]model.Citation, 0, maxCitations)
	seen := make(map[string]bool)
	for i := range sorted {
		c := &sorted[i]
		if seen[c.URL] {
			continue
		}
		citations = append(citations, model.Citation{
			Label: capitalize(string(c.Source)),
			URL:   c.URL,
		})
		seen[c.URL] = true
		if len(citations) >= maxCitations {
			break
		}
	}
	return citations
}

// saveTrace records the full scoring rationale for later audit display.
func (a *Assembler) saveTrace(result *model.AskResult, trails map[string]*model.ScoreTrail) {
	if a.store == nil {
		return
	}
	entries := make([]trace.CandidateEntry, len(result.Candidates))
	for i, rc := range result.Candidates {
		entries[i] = trace.CandidateEntry{
			Source:  rc.Candidate.Source,
			URL:     rc.Candidate.URL,
			Score:   rc.Score,
			Reasons: rc.Reasons,
		}
	}

	var chosen trace.ChosenEntry
	if len(result.Candidates) > 0 {
		top := result.Candidates[0]
		chosen = trace.ChosenEntry{
			URL:          top.Candidate.URL,
			Score:        result.Confidence,
			Explanations: trails[top.Candidate.DocID].Reasons,
		}
	}

	a.store.Save(&trace.Trace{
		TraceID:    result.TraceID,
		Query:      result.Query,
		Outcomes:   result.Outcomes,
		Candidates: entries,
		Chosen:     chosen,
		Policy: trace.PolicyEntry{
			Redactions: result.Redactions,
			Conflict:   result.Conflict,
		},
	})
}

// answerText takes the first sentence of the winning snippet.
func answerText(snippet string) string {
	first, _, _ := strings.Cut(snippet, ".")
	return strings.TrimSpace(first) + "."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
