package connector

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/onesource/internal/model"
)

// Hub fans one query out to every registered adapter concurrently and
// merges the survivors. Failures, timeouts, and rate limits are isolated
// per provider: one slow or broken adapter never delays or fails the rest.
type Hub struct {
	registry *Registry
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewHub creates a hub over the given registry. perProviderTimeout bounds
// each adapter call independently; zero selects the 3s default.
func NewHub(registry *Registry, perProviderTimeout time.Duration, logger zerolog.Logger) *Hub {
	if perProviderTimeout <= 0 {
		perProviderTimeout = 3 * time.Second
	}
	return &Hub{
		registry: registry,
		timeout:  perProviderTimeout,
		logger:   logger,
	}
}

// slot is the per-adapter result cell. Each goroutine writes only its own
// slot, so the join is the single synchronization point and no lock is
// needed before the merge.
type slot struct {
	source     model.Source
	candidates []model.Candidate
	outcome    model.ProviderOutcome
}

// Aggregate runs every registered adapter concurrently, validates their
// output, and returns the merged candidate set plus per-provider
// diagnostics. The merged set is never truncated to limit; selection is
// Fusion's job. With zero registered adapters both returns are empty.
func (h *Hub) Aggregate(ctx context.Context, userID, query string, limit int) ([]model.Candidate, map[model.Source]model.ProviderOutcome) {
	adapters := h.registry.Adapters()
	outcomes := make(map[model.Source]model.ProviderOutcome, len(adapters))
	if len(adapters) == 0 {
		return nil, outcomes
	}

	slots := make([]slot, len(adapters))
	g, gctx := errgroup.WithContext(ctx)

	for i, a := range adapters {
		g.Go(func() error {
			slots[i] = h.callOne(gctx, a, userID, query, limit)
			return nil // provider failures never escalate
		})
	}
	_ = g.Wait()

	// Merge in registration order so overall candidate order is stable
	// from one identical run to the next.
	var merged []model.Candidate
	for _, s := range slots {
		outcomes[s.source] = s.outcome
		merged = append(merged, s.candidates...)
	}

	h.logSummary(query, outcomes)
	return merged, outcomes
}

type searchReply struct {
	candidates []model.Candidate
	err        error
}

// callOne runs a single adapter under its own timeout and error boundary.
// On expiry the pending call is abandoned; cancelling it never touches
// sibling adapters.
func (h *Hub) callOne(ctx context.Context, a Adapter, userID, query string, limit int) slot {
	s := slot{source: a.Source()}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	reply := make(chan searchReply, 1) // buffered: an abandoned call must not leak blocked
	go func() {
		candidates, err := a.Search(callCtx, userID, query, limit)
		reply <- searchReply{candidates, err}
	}()

	var raw []model.Candidate
	var err error
	select {
	case r := <-reply:
		raw, err = r.candidates, r.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}
	s.outcome.ElapsedMS = int(time.Since(start).Milliseconds())

	switch {
	case err == nil:
	case errors.Is(err, ErrRateLimited):
		s.outcome.RateLimited = true
		return s
	case errors.Is(err, context.DeadlineExceeded):
		s.outcome.Timeout = true
		return s
	default:
		s.outcome.Error = classifyError(err)
		return s
	}

	// Validate at the boundary: items missing identity fields are dropped
	// with a warning, never aborting the round. Adapter-internal order is
	// preserved for the survivors.
	for _, c := range raw {
		if !c.Valid() {
			h.logger.Warn().
				Str("provider", string(s.source)).
				Str("doc_id", c.DocID).
				Str("url", c.URL).
				Msg("candidate dropped: missing identity fields")
			continue
		}
		s.candidates = append(s.candidates, c)
	}
	s.outcome.Count = len(s.candidates)
	return s
}

// classifyError reduces an adapter error to a coarse class for diagnostics.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider_error"
	}
}

// logSummary emits the one-line-per-round diagnostic the audit trail keys on.
func (h *Hub) logSummary(query string, outcomes map[model.Source]model.ProviderOutcome) {
	ev := h.logger.Info()
	for source, o := range outcomes {
		ev = ev.Dict(string(source), zerolog.Dict().
			Int("ms", o.ElapsedMS).
			Bool("timeout", o.Timeout).
			Str("error", o.Error).
			Bool("rate_limited", o.RateLimited).
			Int("count", o.Count))
	}
	ev.Str("query", query).Msg("connectorhub.summary")
}
