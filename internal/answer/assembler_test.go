package answer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/onesource/internal/connector"
	"github.com/ppiankov/onesource/internal/model"
	"github.com/ppiankov/onesource/internal/trace"
)

type stubAdapter struct {
	source     model.Source
	candidates []model.Candidate
	err        error
}

func (s *stubAdapter) Source() model.Source { return s.source }

func (s *stubAdapter) Search(ctx context.Context, userID, query string, limit int) ([]model.Candidate, error) {
	return s.candidates, s.err
}

func newTestAssembler(adapters ...connector.Adapter) *Assembler {
	registry := connector.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	hub := connector.NewHub(registry, time.Second, zerolog.Nop())
	return NewAssembler(hub, trace.NewStore(time.Minute), nil, zerolog.Nop(), 5)
}

// askFixture is one full round: a week-stale chat answer saying 4pm, a
// fresh team runbook saying 3pm, and a code doc leaking a credential.
func askFixture() []connector.Adapter {
	now := time.Now().UTC()
	return []connector.Adapter{
		&stubAdapter{source: model.SourceSlack, candidates: []model.Candidate{{
			Source:       model.SourceSlack,
			DocID:        "C123:1001.0001",
			URL:          "https://acme.slack.com/archives/C123/p10010001",
			Title:        "Slack thread",
			Snippet:      "✅ deploy window moved to 4pm",
			LastModified: now.Add(-10 * 24 * time.Hour),
			Signals:      map[string]any{"pinned": true, "accepted": true},
		}}},
		&stubAdapter{source: model.SourceDrive, candidates: []model.Candidate{{
			Source:       model.SourceDrive,
			DocID:        "runbook-42",
			URL:          "https://drive.example.com/d/runbook-42",
			Title:        "Deploy Window Policy",
			Snippet:      "The deploy window is Friday 3pm. Page the release captain first.",
			LastModified: now.Add(-24 * time.Hour),
			Signals:      map[string]any{"owner_team": true, "folder": "Runbooks"},
		}}},
		&stubAdapter{source: model.SourceGitHub, candidates: []model.Candidate{{
			Source:       model.SourceGitHub,
			DocID:        "acme/platform:docs/deploy.md",
			URL:          "https://github.com/acme/platform/blob/main/docs/deploy.md",
			Title:        "deploy.md",
			Snippet:      "Use creds AKIA1234567890ABCDEF for the deploy bot.",
			LastModified: now.Add(-5 * 24 * time.Hour),
			Signals:      map[string]any{"path_hint": "/docs", "approved_pr": 0},
		}}},
	}
}

func TestAssembler_Ask_FullPipeline(t *testing.T) {
	a := newTestAssembler(askFixture()...)

	result, err := a.Ask(context.Background(), "u1", "deploy window")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	// The fresh, team-owned runbook that names the query wins.
	if result.Answer != "The deploy window is Friday 3pm." {
		t.Errorf("Answer = %q", result.Answer)
	}

	// Conflict: winner says 3pm, the chat answer says 4pm.
	if !result.Conflict {
		t.Fatal("Expected a conflict between 3pm and 4pm sources")
	}
	want := "Sources conflict (drive vs slack). Chose drive (higher score)."
	if result.Banner != want {
		t.Errorf("Banner = %q, want %q", result.Banner, want)
	}

	// The leaked credential is redacted and recorded.
	if len(result.Redactions) != 1 || result.Redactions[0] != "acme/platform:docs/deploy.md" {
		t.Errorf("Redactions = %v", result.Redactions)
	}
	for _, rc := range result.Candidates {
		if strings.Contains(rc.Candidate.Snippet, "AKIA") {
			t.Errorf("Secret survived into the response: %q", rc.Candidate.Snippet)
		}
	}

	// Citations: top three unique URLs in score order, winner first.
	if len(result.Citations) != 3 {
		t.Fatalf("Expected 3 citations, got %d", len(result.Citations))
	}
	if result.Citations[0].URL != "https://drive.example.com/d/runbook-42" {
		t.Errorf("Top citation = %q", result.Citations[0].URL)
	}
	if result.Citations[0].Label != "Drive" {
		t.Errorf("Citation label = %q", result.Citations[0].Label)
	}

	// Candidates arrive in descending score order.
	for i := 1; i < len(result.Candidates); i++ {
		if result.Candidates[i].Score > result.Candidates[i-1].Score {
			t.Errorf("Candidates out of order at %d: %f > %f",
				i, result.Candidates[i].Score, result.Candidates[i-1].Score)
		}
	}

	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Errorf("Confidence out of range: %f", result.Confidence)
	}
	if result.Freshness.IsZero() {
		t.Error("Freshness must carry the winner's timestamp")
	}

	// Every provider reported an outcome.
	if len(result.Outcomes) != 3 {
		t.Errorf("Expected 3 provider outcomes, got %d", len(result.Outcomes))
	}

	// The audit trace is queryable and mirrors the decision.
	tr := a.Trace(result.TraceID)
	if tr == nil {
		t.Fatal("Expected a stored trace")
	}
	if tr.Chosen.URL != "https://drive.example.com/d/runbook-42" {
		t.Errorf("Trace chosen URL = %q", tr.Chosen.URL)
	}
	if !tr.Policy.Conflict {
		t.Error("Trace must record the conflict")
	}
	if len(tr.Candidates) != 3 {
		t.Errorf("Trace candidate count = %d", len(tr.Candidates))
	}
}

func TestAssembler_Ask_NoCandidates(t *testing.T) {
	a := newTestAssembler() // zero providers

	result, err := a.Ask(context.Background(), "u1", "deploy window")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if result.Answer != "No authoritative answer found." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Banner != "Insufficient citations to justify an answer." {
		t.Errorf("Banner = %q", result.Banner)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %f, want 0", result.Confidence)
	}
	if len(result.Citations) != 0 {
		t.Errorf("Expected no citations, got %v", result.Citations)
	}

	tr := a.Trace(result.TraceID)
	if tr == nil {
		t.Fatal("The no-answer path must still store a trace")
	}
	if len(tr.Chosen.Explanations) == 0 || tr.Chosen.Explanations[0] != "no_citation_gate" {
		t.Errorf("Trace explanations = %v", tr.Chosen.Explanations)
	}
}

func TestAssembler_Ask_EmptyQuery(t *testing.T) {
	a := newTestAssembler()

	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := a.Ask(context.Background(), "u1", q); err == nil {
			t.Errorf("Expected error for query %q", q)
		}
	}
}

func TestAssembler_Ask_BrokenProviderStillAnswers(t *testing.T) {
	adapters := askFixture()
	adapters[0] = &stubAdapter{source: model.SourceSlack, err: context.DeadlineExceeded}
	a := newTestAssembler(adapters...)

	result, err := a.Ask(context.Background(), "u1", "deploy window")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Answer == "No authoritative answer found." {
		t.Error("Healthy providers must still produce an answer")
	}
	if !result.Outcomes[model.SourceSlack].Timeout {
		t.Errorf("Expected timeout outcome for the broken provider: %+v", result.Outcomes[model.SourceSlack])
	}
}

func TestBuildCitations_UniqueAndCapped(t *testing.T) {
	shared := "https://drive.example.com/d/x"
	sorted := []model.Candidate{
		{Source: model.SourceDrive, DocID: "a", URL: shared},
		{Source: model.SourceSlack, DocID: "b", URL: shared}, // duplicate URL collapses
		{Source: model.SourceGitHub, DocID: "c", URL: "https://github.com/acme/1"},
		{Source: model.SourceGitHub, DocID: "d", URL: "https://github.com/acme/2"},
		{Source: model.SourceGitHub, DocID: "e", URL: "https://github.com/acme/3"},
	}

	citations := buildCitations(sorted)
	if len(citations) != 3 {
		t.Fatalf("Expected 3 citations, got %d", len(citations))
	}
	if citations[0].URL != shared || citations[1].URL != "https://github.com/acme/1" {
		t.Errorf("Unexpected citation order: %v", citations)
	}
}

func TestAnswerText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The window is 3pm. Page first.", "The window is 3pm."},
		{"No trailing period", "No trailing period."},
		{"  padded sentence.  more", "padded sentence."},
	}
	for _, tc := range cases {
		if got := answerText(tc.in); got != tc.want {
			t.Errorf("answerText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
