package model

import "time"

// Source identifies one provider. The set is closed per build; new providers
// are enabled by configuration, not by callers inventing values.
type Source string

const (
	SourceSlack  Source = "slack"  // conversation-like
	SourceDrive  Source = "drive"  // file-store-like
	SourceGitHub Source = "github" // code-repository-like
)

// Candidate is one retrievable unit of evidence, normalized to the shape
// Fusion and Policy operate on. Identity is (Source, DocID); Source, DocID
// and URL are never mutated after the adapter produced them.
type Candidate struct {
	Source       Source         `json:"source"`
	DocID        string         `json:"doc_id"`        // unique within a source
	URL          string         `json:"url"`           // absolute; equal URLs across sources corroborate
	Title        string         `json:"title"`
	Snippet      string         `json:"snippet"`       // mutable during policy redaction
	LastModified time.Time      `json:"last_modified"` // adapters supply a best-effort value, never zero
	Owner        string         `json:"owner,omitempty"`
	Signals      map[string]any `json:"signals,omitempty"` // source-specific facts; unknown keys ignored
	ScoreHint    float64        `json:"score_hint,omitempty"` // adapter hint; Fusion recomputes
}

// Valid reports whether the candidate carries the required identity fields.
func (c *Candidate) Valid() bool {
	return c.Source != "" && c.DocID != "" && c.URL != ""
}

// SignalBool reads a boolean signal, absent or mis-typed keys are false.
func (c *Candidate) SignalBool(key string) bool {
	v, ok := c.Signals[key].(bool)
	return ok && v
}

// SignalString reads a string signal, absent or mis-typed keys are "".
func (c *Candidate) SignalString(key string) string {
	v, _ := c.Signals[key].(string)
	return v
}

// SignalInt reads a numeric signal, tolerating the int/float shapes JSON
// decoding produces. Absent or mis-typed keys are 0.
func (c *Candidate) SignalInt(key string) int {
	switch v := c.Signals[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// ProviderOutcome records per-provider diagnostics for one fan-out round.
type ProviderOutcome struct {
	ElapsedMS   int    `json:"ms"`
	Timeout     bool   `json:"timeout"`
	Error       string `json:"error,omitempty"` // error class, empty if none
	RateLimited bool   `json:"rate_limited"`
	Count       int    `json:"count"` // candidates contributed after validation
}

// ScoreTrail is the per-candidate score breakdown kept for audit display.
// Reasons is advisory text only; nothing downstream parses it.
type ScoreTrail struct {
	Freshness   float64  `json:"freshness"`
	Authority   float64  `json:"authority"`
	Specificity float64  `json:"specificity"`
	Consensus   float64  `json:"consensus"`
	Total       float64  `json:"total"`
	Reasons     []string `json:"reasons"`
}

// GuardResult is what the policy stage hands back: the winner after
// redaction, which candidates were touched, and the conflict verdict.
type GuardResult struct {
	Winner     *Candidate `json:"winner"`
	Redactions []string   `json:"redactions"` // doc ids whose snippet changed
	Conflict   bool       `json:"conflict"`
	Banner     string     `json:"banner,omitempty"` // empty when no conflict
}
