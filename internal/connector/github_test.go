package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/onesource/internal/cache"
	"github.com/ppiankov/onesource/internal/model"
)

func githubTestAdapter(baseURL string, store cache.Cache) *GitHubAdapter {
	return NewGitHubAdapter(
		model.GitHubConfig{Enabled: true, Org: "acme", BaseURL: baseURL},
		model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test-agent"},
		StaticTokenSource{model.SourceGitHub: "ghtok"},
		nil,
		store,
		time.Minute,
	)
}

func TestGitHubAdapter_BuildQuery(t *testing.T) {
	a := githubTestAdapter("https://api.github.com", nil)

	q := a.buildQuery("deploy window")
	for _, want := range []string{"deploy window", "in:file", "path:/docs", "filename:README.md", "org:acme"} {
		if !strings.Contains(q, want) {
			t.Errorf("Query %q missing %q", q, want)
		}
	}

	a.cfg.Org = ""
	a.cfg.Repos = []string{"acme/platform", "acme/infra"}
	q = a.buildQuery("x")
	if !strings.Contains(q, "repo:acme/platform") || !strings.Contains(q, "repo:acme/infra") {
		t.Errorf("Repo scope missing from %q", q)
	}

	a.cfg.Repos = nil
	if q := a.buildQuery("x"); q != "" {
		t.Errorf("Expected empty query without scope, got %q", q)
	}
}

const githubSearchBody = `{
  "items": [
    {
      "path": "docs/releases.md",
      "html_url": "https://github.com/acme/platform/blob/main/docs/releases.md",
      "repository": {
        "full_name": "acme/platform",
        "updated_at": "2026-08-26T12:00:00Z",
        "owner": {"login": "acme"}
      }
    },
    {
      "path": "src/deploy.go",
      "html_url": "https://github.com/acme/platform/blob/main/src/deploy.go",
      "repository": {
        "full_name": "acme/platform",
        "updated_at": "2026-08-26T12:00:00Z",
        "owner": {"login": "acme"}
      }
    }
  ]
}`

func TestGitHubAdapter_Search(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		if !strings.HasPrefix(r.URL.Path, "/search/code") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(githubSearchBody))
	}))
	defer srv.Close()

	a := githubTestAdapter(srv.URL, nil)
	out, err := a.Search(context.Background(), "u1", "deploy window", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotAuth != "token ghtok" {
		t.Errorf("Authorization = %q, want token scheme", gotAuth)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	if len(out) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(out))
	}

	doc := out[0]
	if doc.DocID != "acme/platform:docs/releases.md" {
		t.Errorf("DocID = %q", doc.DocID)
	}
	if doc.URL != "https://github.com/acme/platform/blob/main/docs/releases.md" {
		t.Errorf("URL = %q", doc.URL)
	}
	if doc.Owner != "acme" {
		t.Errorf("Owner = %q", doc.Owner)
	}
	if doc.SignalString("path_hint") != "/docs" {
		t.Errorf("Expected /docs hint for docs path, got %q", doc.SignalString("path_hint"))
	}
	if want := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC); !doc.LastModified.Equal(want) {
		t.Errorf("LastModified = %v, want %v", doc.LastModified, want)
	}
	if !doc.Valid() {
		t.Error("Candidate failed identity validation")
	}

	// The non-docs hit carries no path hint
	if out[1].SignalString("path_hint") != "" {
		t.Errorf("Expected empty hint for src path, got %q", out[1].SignalString("path_hint"))
	}
}

func TestGitHubAdapter_Search_RateLimited(t *testing.T) {
	cases := []struct {
		name   string
		status int
		header map[string]string
	}{
		{"secondary limit", http.StatusTooManyRequests, nil},
		{"primary limit exhausted", http.StatusForbidden, map[string]string{"X-RateLimit-Remaining": "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			a := githubTestAdapter(srv.URL, nil)
			_, err := a.Search(context.Background(), "u1", "q", 5)
			if err != ErrRateLimited {
				t.Errorf("Expected ErrRateLimited, got %v", err)
			}
		})
	}
}

func TestGitHubAdapter_Search_ForbiddenWithoutLimitHeaderIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := githubTestAdapter(srv.URL, nil)
	_, err := a.Search(context.Background(), "u1", "q", 5)
	if err == nil || err == ErrRateLimited {
		t.Errorf("Plain 403 must be a provider error, got %v", err)
	}
}

func TestGitHubAdapter_Search_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected without a credential")
	}))
	defer srv.Close()

	a := githubTestAdapter(srv.URL, nil)
	a.tokens = StaticTokenSource{}

	out, err := a.Search(context.Background(), "u1", "q", 5)
	if err != nil || out != nil {
		t.Errorf("Expected silent empty result, got %v, %v", out, err)
	}
}

func TestGitHubAdapter_Search_CacheHit(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(githubSearchBody))
	}))
	defer srv.Close()

	a := githubTestAdapter(srv.URL, cache.NewMemoryCache(time.Minute, time.Minute))

	first, err := a.Search(context.Background(), "u1", "deploy window", 5)
	if err != nil {
		t.Fatalf("First search failed: %v", err)
	}
	second, err := a.Search(context.Background(), "u1", "deploy window", 5)
	if err != nil {
		t.Fatalf("Second search failed: %v", err)
	}

	if requests != 1 {
		t.Errorf("Expected 1 upstream request, got %d", requests)
	}
	if len(first) != len(second) {
		t.Errorf("Cache changed the result: %d vs %d", len(first), len(second))
	}
}

func TestParseISOTime(t *testing.T) {
	got := parseISOTime("2026-08-26T12:00:00Z")
	if !got.Equal(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("parseISOTime = %v", got)
	}

	// Garbage and empty fall back to a recent, non-zero timestamp
	for _, in := range []string{"", "not-a-time"} {
		got := parseISOTime(in)
		if got.IsZero() {
			t.Errorf("parseISOTime(%q) returned the zero time", in)
		}
		if time.Since(got) > time.Minute {
			t.Errorf("parseISOTime(%q) fallback too old: %v", in, got)
		}
	}
}
