package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/onesource/internal/model"
)

// Summarizer elaborates the guarded answer into a short summary. It runs
// strictly after policy, sees only redacted text, and its output never
// feeds back into scoring or selection.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer from configuration. A nil provider
// (empty provider name) yields a disabled summarizer.
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured.
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// Summarize produces the optional answer summary for one ask result.
func (s *Summarizer) Summarize(ctx context.Context, result *model.AskResult) (*model.AnswerSummary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	allowed := make([]string, 0, len(result.Citations))
	for _, c := range result.Citations {
		allowed = append(allowed, c.URL)
	}

	resp, err := s.provider.Complete(ctx, CompleteRequest{
		System: "You summarize answers assembled from cited internal sources. Never add facts beyond the provided snippets.",
		Prompt: BuildPrompt(result, allowed),
	})
	if err != nil {
		return nil, err
	}

	summary := &model.AnswerSummary{
		Provider: s.provider.Name(),
		Model:    resp.Model,
		Text:     resp.Text,
	}

	// Strict evidence: any URL outside the citation allowlist is a leak.
	if s.config.StrictEvidence {
		for _, cited := range extractURLs(resp.Text) {
			if !contains(allowed, cited) {
				summary.Warnings = append(summary.Warnings,
					fmt.Sprintf("citation leak: %s not in allowlist", cited))
			}
		}
		if len(summary.Warnings) > 0 {
			return nil, fmt.Errorf("summary cited %d disallowed URL(s)", len(summary.Warnings))
		}
	}

	return summary, nil
}

// BuildPrompt constructs the summarization prompt with strict evidence mode
func BuildPrompt(result *model.AskResult, allowedURLs []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are elaborating an answer assembled from internal knowledge sources.

CRITICAL RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT infer, speculate, or cite external sources beyond this list.
3. Base every statement on the snippets below; if they are insufficient, say so.
4. Keep redaction markers exactly as they appear; never guess redacted content.

Question: %s
Selected answer: %s
`, joinURLs(allowedURLs), result.Query, result.Answer)

	if result.Banner != "" {
		fmt.Fprintf(&b, "Policy notice: %s\n", result.Banner)
	}

	b.WriteString("\nSupporting snippets:\n")
	for i, rc := range result.Candidates {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", rc.Candidate.Source, rc.Candidate.Title, rc.Candidate.Snippet)
	}

	b.WriteString("\nProvide a 2-3 sentence summary of the answer and its support.")
	return b.String()
}

// Helper functions

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No citation URLs available)"
	}
	var b strings.Builder
	for _, u := range urls {
		fmt.Fprintf(&b, "\n- %s", u)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s)]+`)

// extractURLs extracts all URLs from text, deduplicated
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
