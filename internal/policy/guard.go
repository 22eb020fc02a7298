package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/onesource/internal/model"
)

// RedactionMarker replaces every sensitive match. The marker itself never
// matches any pattern, so redaction is idempotent.
const RedactionMarker = "[REDACTED]"

// tokenPatterns are the sensitive-pattern rules, applied in order to every
// candidate snippet: cloud access keys, workspace bot tokens, bearer
// headers, and password assignments.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`xox[pbar]-[0-9A-Za-z-]+`),
	regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]+`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`),
}

// timeTokenRE matches a coarse time-of-day token ("3pm", "4 pm") used for
// the contradiction check.
var timeTokenRE = regexp.MustCompile(`(?i)\b(1[0-2]|[1-9])\s?pm\b`)

// Redact replaces every sensitive match in text with the redaction marker.
func Redact(text string) string {
	redacted := text
	for _, pat := range tokenPatterns {
		redacted = pat.ReplaceAllString(redacted, RedactionMarker)
	}
	return redacted
}

// extractTimeToken returns the first time-of-day token in text, lowercased,
// or "" when none is present.
func extractTimeToken(text string) string {
	return strings.ToLower(timeTokenRE.FindString(text))
}

// Guard redacts every candidate's snippet in place, then looks for a
// factual contradiction between the winner and the competing candidates.
// It never fails: zero redactions and no conflict is a valid result.
// ranked must be in descending score order so the highest-scoring
// disagreement wins.
func Guard(winner *model.Candidate, ranked []*model.Candidate) model.GuardResult {
	result := model.GuardResult{Winner: winner}

	// Redact all snippets the trace and citations will display.
	for _, c := range ranked {
		after := Redact(c.Snippet)
		if after != c.Snippet {
			result.Redactions = append(result.Redactions, c.DocID)
			c.Snippet = after
		}
	}

	contradictor := findContradictor(winner, ranked)
	if contradictor != nil {
		result.Conflict = true
		result.Banner = fmt.Sprintf("Sources conflict (%s vs %s). Chose %s (higher score).",
			winner.Source, contradictor.Source, winner.Source)
	}
	return result
}

// findContradictor locates the candidate whose time token disagrees with
// the winner's. When the winner has no token, any two distinct tokens in
// the set still count: the first disagreeing pair in descending score
// order yields the contradictor, preferring the non-winner of the pair.
func findContradictor(winner *model.Candidate, ranked []*model.Candidate) *model.Candidate {
	winnerTime := extractTimeToken(winner.Snippet)

	if winnerTime != "" {
		for _, c := range ranked {
			if c.DocID == winner.DocID {
				continue
			}
			if t := extractTimeToken(c.Snippet); t != "" && t != winnerTime {
				return c // highest-scoring disagreement wins
			}
		}
		return nil
	}

	var firstCand *model.Candidate
	firstToken := ""
	for _, c := range ranked {
		t := extractTimeToken(c.Snippet)
		if t == "" {
			continue
		}
		if firstToken == "" {
			firstToken, firstCand = t, c
			continue
		}
		if t != firstToken {
			if c.DocID != winner.DocID {
				return c
			}
			return firstCand
		}
	}
	return nil
}
