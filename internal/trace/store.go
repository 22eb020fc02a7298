package trace

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/onesource/internal/model"
)

// Trace is the audit record kept for one ask: who contributed, how each
// candidate scored, what was chosen, and what policy did about it.
type Trace struct {
	TraceID    string                                 `json:"trace_id"`
	Query      string                                 `json:"query"`
	Outcomes   map[model.Source]model.ProviderOutcome `json:"outcomes"`
	Candidates []CandidateEntry                       `json:"candidates"` // descending by score
	Chosen     ChosenEntry                            `json:"chosen"`
	Policy     PolicyEntry                            `json:"policy"`
	StoredAt   time.Time                              `json:"stored_at"`
}

// CandidateEntry is one scored candidate in the trace timeline.
type CandidateEntry struct {
	Source  model.Source `json:"source"`
	URL     string       `json:"url"`
	Score   float64      `json:"score"`
	Reasons []string     `json:"reasons"`
}

// ChosenEntry records the winner and why.
type ChosenEntry struct {
	URL          string   `json:"url"`
	Score        float64  `json:"score"`
	Explanations []string `json:"explanations"`
}

// PolicyEntry records what the guard touched.
type PolicyEntry struct {
	Redactions []string `json:"redactions"`
	Conflict   bool     `json:"conflict"`
}

// Store retains traces for a bounded time. Traces are per-request audit
// artifacts, not durable records; expiry is the cleanup policy.
type Store struct {
	cache *gocache.Cache
}

// NewStore creates a trace store with the given retention.
func NewStore(retention time.Duration) *Store {
	return &Store{cache: gocache.New(retention, retention)}
}

// Save retains a trace under its id.
func (s *Store) Save(t *Trace) {
	t.StoredAt = time.Now().UTC()
	s.cache.SetDefault(t.TraceID, t)
}

// Get returns the trace for id, or nil when expired or unknown.
func (s *Store) Get(id string) *Trace {
	if v, ok := s.cache.Get(id); ok {
		return v.(*Trace)
	}
	return nil
}

// NewTraceID creates a short, unique trace id for one request.
func NewTraceID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
