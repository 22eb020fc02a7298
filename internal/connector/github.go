package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/onesource/internal/cache"
	"github.com/ppiankov/onesource/internal/model"
)

// GitHubAdapter searches code in a scoped org or repo set. Results are
// biased toward docs paths and README files so the authority rule has
// something to work with.
type GitHubAdapter struct {
	cfg        model.GitHubConfig
	httpClient *http.Client
	userAgent  string
	tokens     TokenSource
	limiter    *Limiter
	store      cache.Cache
	cacheTTL   time.Duration
}

// NewGitHubAdapter creates the code-host adapter. store may be nil to
// disable result caching.
func NewGitHubAdapter(cfg model.GitHubConfig, httpCfg model.HTTPConfig, tokens TokenSource, limiter *Limiter, store cache.Cache, cacheTTL time.Duration) *GitHubAdapter {
	return &GitHubAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: httpCfg.Timeout},
		userAgent:  httpCfg.UserAgent,
		tokens:     tokens,
		limiter:    limiter,
		store:      store,
		cacheTTL:   cacheTTL,
	}
}

// Source returns the provider identifier
func (a *GitHubAdapter) Source() model.Source {
	return model.SourceGitHub
}

// buildQuery scopes the search to the configured org or repos to avoid
// public-index noise. An empty scope disables the adapter.
func (a *GitHubAdapter) buildQuery(userQuery string) string {
	parts := []string{}
	if q := strings.TrimSpace(userQuery); q != "" {
		parts = append(parts, q)
	}
	// doc-like bias
	parts = append(parts, "in:file", "path:/docs", "filename:README.md")

	switch {
	case a.cfg.Org != "":
		parts = append(parts, "org:"+a.cfg.Org)
	case len(a.cfg.Repos) > 0:
		for _, repo := range a.cfg.Repos {
			parts = append(parts, "repo:"+repo)
		}
	default:
		return ""
	}
	return strings.Join(parts, " ")
}

type githubSearchResponse struct {
	Items []struct {
		Path       string `json:"path"`
		HTMLURL    string `json:"html_url"`
		Repository struct {
			FullName  string `json:"full_name"`
			UpdatedAt string `json:"updated_at"`
			Owner     struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repository"`
	} `json:"items"`
}

// Search queries the code search API and normalizes the hits.
func (a *GitHubAdapter) Search(ctx context.Context, userID, query string, limit int) ([]model.Candidate, error) {
	token, err := a.tokens.Token(ctx, model.SourceGitHub, userID)
	if err != nil || token == "" {
		return nil, nil // no credential: contribute nothing
	}

	q := a.buildQuery(query)
	if q == "" {
		return nil, nil // not scoped: do nothing
	}

	if cached, ok := a.cachedCandidates(query); ok {
		return cached, nil
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, model.SourceGitHub); err != nil {
			return nil, err
		}
	}

	perPage := limit * 2
	if perPage < 1 {
		perPage = 1
	}
	if perPage > 50 {
		perPage = 50
	}

	endpoint := fmt.Sprintf("%s/search/code?q=%s&per_page=%d", a.cfg.BaseURL, url.QueryEscape(q), perPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github search: unexpected status %d", resp.StatusCode)
	}

	var payload githubSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]model.Candidate, 0, limit)
	for _, it := range payload.Items {
		repoFull := it.Repository.FullName
		path := it.Path

		title := it.HTMLURL
		if repoFull != "" && path != "" {
			title = repoFull + "/" + path
		}
		htmlURL := it.HTMLURL
		if htmlURL == "" && repoFull != "" && path != "" {
			htmlURL = fmt.Sprintf("https://github.com/%s/blob/main/%s", repoFull, path)
		}
		owner := it.Repository.Owner.Login
		if owner == "" && repoFull != "" {
			owner = strings.SplitN(repoFull, "/", 2)[0]
		}
		pathHint := ""
		if strings.Contains("/"+path, "/docs/") {
			pathHint = "/docs"
		}

		out = append(out, model.Candidate{
			Source:       model.SourceGitHub,
			DocID:        repoFull + ":" + path,
			URL:          htmlURL,
			Title:        title,
			Snippet:      truncate(title, 240),
			LastModified: parseISOTime(it.Repository.UpdatedAt),
			Owner:        owner,
			Signals: map[string]any{
				"path_hint":   pathHint,
				"approved_pr": 0, // optional enrichment later
			},
		})
		if len(out) >= limit {
			break
		}
	}

	a.cacheCandidates(query, out)
	return out, nil
}

func (a *GitHubAdapter) cachedCandidates(query string) ([]model.Candidate, bool) {
	if a.store == nil {
		return nil, false
	}
	raw, ok := a.store.Get(cache.Key(string(model.SourceGitHub), query))
	if !ok {
		return nil, false
	}
	var out []model.Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (a *GitHubAdapter) cacheCandidates(query string, out []model.Candidate) {
	if a.store == nil || len(out) == 0 {
		return
	}
	if raw, err := json.Marshal(out); err == nil {
		_ = a.store.Set(cache.Key(string(model.SourceGitHub), query), raw, a.cacheTTL)
	}
}

// parseISOTime parses an RFC3339 timestamp, falling back to now. The
// fallback lives here at the adapter boundary; LastModified is never zero
// inside the core.
func parseISOTime(ts string) time.Time {
	if ts == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

// truncate soft-trims a display string.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}
