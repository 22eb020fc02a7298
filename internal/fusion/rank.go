package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/onesource/internal/model"
)

// ErrNoCandidates is returned when Rank is called on an empty set. The
// caller must handle the empty-aggregation case before invoking Rank.
var ErrNoCandidates = errors.New("no candidates to rank")

// Component weights. Freshness dominates, authority second, specificity
// is a small nudge.
const (
	weightFreshness   = 0.5
	weightAuthority   = 0.4
	weightSpecificity = 0.2

	consensusBonus = 0.05
)

// trustedFolder is the file-store folder name that earns an authority bonus.
const trustedFolder = "Runbooks"

// timeNow is injectable for deterministic tests
var timeNow = time.Now

// freshnessScore maps document age to (0, 1]: same-instant 1.0, one week
// old 0.5, strictly decreasing in age.
func freshnessScore(lastModified time.Time) float64 {
	ageDays := timeNow().UTC().Sub(lastModified).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return 1.0 / (1.0 + ageDays/7.0)
}

// authorityScore derives a source-specific authority value from signals
// only. Unknown sources score zero; unknown signal keys are ignored.
func authorityScore(c *model.Candidate) float64 {
	switch c.Source {
	case model.SourceGitHub:
		base := 0.0
		hint := c.SignalString("path_hint")
		if strings.Contains(hint, "/docs") || strings.Contains(hint, "wiki") {
			base = 0.25
		}
		// Diminishing returns for approvals: up to +0.5
		apr := c.SignalInt("approved_pr")
		if apr < 0 {
			apr = 0
		}
		prBonus := math.Min(0.5, 0.2*math.Log10(1+float64(apr)))
		return base + prBonus
	case model.SourceDrive:
		score := 0.0
		if c.SignalString("owner_team") != "" || c.SignalBool("owner_team") {
			score += 0.25
		}
		if c.SignalString("folder") == trustedFolder {
			score += 0.15
		}
		return score
	case model.SourceSlack:
		score := 0.0
		if c.SignalBool("pinned") {
			score += 0.25
		}
		if c.SignalBool("accepted") {
			score += 0.2
		}
		if c.SignalBool("sme_author") {
			score += 0.1
		}
		return score
	default:
		return 0.0
	}
}

// specificityScore checks for the literal query in title and snippet.
// Both hits are independent and may fire together.
func specificityScore(c *model.Candidate, query string) float64 {
	q := strings.ToLower(query)
	score := 0.0
	if strings.Contains(strings.ToLower(c.Title), q) {
		score += 0.15
	}
	if strings.Contains(strings.ToLower(c.Snippet), q) {
		score += 0.05
	}
	return score
}

// scoreCandidate combines the three base components.
func scoreCandidate(c *model.Candidate, query string) (fresh, auth, spec, total float64) {
	fresh = freshnessScore(c.LastModified)
	auth = authorityScore(c)
	spec = specificityScore(c, query)
	total = weightFreshness*fresh + weightAuthority*auth + weightSpecificity*spec
	return fresh, auth, spec, total
}

// Rank scores every candidate, applies the cross-source consensus bonus,
// and selects the winner. Ties break toward the first-encountered
// candidate in the input order, so identical runs pick identical winners.
func Rank(candidates []model.Candidate, query string) (model.Candidate, map[string]*model.ScoreTrail, error) {
	if len(candidates) == 0 {
		return model.Candidate{}, nil, ErrNoCandidates
	}

	trails := make(map[string]*model.ScoreTrail, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		fresh, auth, spec, total := scoreCandidate(c, query)
		trails[c.DocID] = &model.ScoreTrail{
			Freshness:   fresh,
			Authority:   auth,
			Specificity: spec,
			Total:       total,
			Reasons: []string{
				fmt.Sprintf("fresh=%.2f", fresh),
				fmt.Sprintf("auth=%.2f", auth),
				fmt.Sprintf("spec=%.2f", spec),
			},
		}
	}

	// Consensus bump: candidates sharing a URL with at least one other
	// candidate (any source) each get the flat bonus exactly once.
	byURL := make(map[string][]string)
	for i := range candidates {
		c := &candidates[i]
		byURL[c.URL] = append(byURL[c.URL], c.DocID)
	}
	for _, ids := range byURL {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			t := trails[id]
			t.Consensus = consensusBonus
			t.Total += consensusBonus
			t.Reasons = append(t.Reasons, fmt.Sprintf("consensus=+%.2f", consensusBonus))
		}
	}

	winner := candidates[0]
	for _, c := range candidates[1:] {
		if trails[c.DocID].Total > trails[winner.DocID].Total {
			winner = c
		}
	}
	return winner, trails, nil
}

// SortByScore returns the candidates in descending score order. The sort
// is stable, preserving input order among equal scores.
func SortByScore(candidates []model.Candidate, trails map[string]*model.ScoreTrail) []model.Candidate {
	sorted := make([]model.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return trails[sorted[i].DocID].Total > trails[sorted[j].DocID].Total
	})
	return sorted
}
