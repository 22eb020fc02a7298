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

const driveFilesURL = "https://www.googleapis.com/drive/v3/files"

// DriveAdapter searches a single scoped folder in the file store. The
// trusted-folder name flows into signals so the authority rule can reward
// documents living there.
type DriveAdapter struct {
	cfg        model.DriveConfig
	baseURL    string
	httpClient *http.Client
	userAgent  string
	tokens     TokenSource
	limiter    *Limiter
	store      cache.Cache
	cacheTTL   time.Duration
}

// NewDriveAdapter creates the file-store adapter.
func NewDriveAdapter(cfg model.DriveConfig, httpCfg model.HTTPConfig, tokens TokenSource, limiter *Limiter, store cache.Cache, cacheTTL time.Duration) *DriveAdapter {
	return &DriveAdapter{
		cfg:        cfg,
		baseURL:    driveFilesURL,
		httpClient: &http.Client{Timeout: httpCfg.Timeout},
		userAgent:  httpCfg.UserAgent,
		tokens:     tokens,
		limiter:    limiter,
		store:      store,
		cacheTTL:   cacheTTL,
	}
}

// Source returns the provider identifier
func (a *DriveAdapter) Source() model.Source {
	return model.SourceDrive
}

type driveListResponse struct {
	Files []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		MimeType     string `json:"mimeType"`
		ModifiedTime string `json:"modifiedTime"`
		WebViewLink  string `json:"webViewLink"`
		Owners       []struct {
			EmailAddress string `json:"emailAddress"`
			DisplayName  string `json:"displayName"`
		} `json:"owners"`
	} `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// Search lists files in the scoped folder matching the query by name or
// full text, newest first.
func (a *DriveAdapter) Search(ctx context.Context, userID, query string, limit int) ([]model.Candidate, error) {
	token, err := a.tokens.Token(ctx, model.SourceDrive, userID)
	if err != nil || token == "" || a.cfg.FolderID == "" {
		return nil, nil
	}

	if cached, ok := a.cachedCandidates(query); ok {
		return cached, nil
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, model.SourceDrive); err != nil {
			return nil, err
		}
	}

	// Scope to the folder; minimal sanitize for the Drive query grammar.
	qParts := []string{fmt.Sprintf("'%s' in parents", a.cfg.FolderID), "trashed = false"}
	if query != "" {
		safe := strings.ReplaceAll(query, "'", " ")
		qParts = append(qParts, fmt.Sprintf("(name contains '%s' or fullText contains '%s')", safe, safe))
	}

	params := url.Values{}
	params.Set("q", strings.Join(qParts, " and "))
	params.Set("fields", "files(id,name,mimeType,modifiedTime,webViewLink,owners(emailAddress,displayName)),nextPageToken")
	params.Set("pageSize", "25")
	params.Set("orderBy", "modifiedTime desc")
	params.Set("supportsAllDrives", "true")
	params.Set("includeItemsFromAllDrives", "true")

	out := make([]model.Candidate, 0, limit)
	pageToken := ""
	for {
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", a.userAgent)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("drive list: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			return nil, ErrRateLimited
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			break
		}

		var payload driveListResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}

		for _, f := range payload.Files {
			owner := ""
			if len(f.Owners) > 0 {
				owner = f.Owners[0].EmailAddress
				if owner == "" {
					owner = f.Owners[0].DisplayName
				}
			}

			out = append(out, model.Candidate{
				Source:       model.SourceDrive,
				DocID:        f.ID,
				URL:          f.WebViewLink,
				Title:        f.Name,
				Snippet:      truncate(f.Name+" — "+f.MimeType, 240),
				LastModified: parseISOTime(f.ModifiedTime),
				Owner:        owner,
				Signals: map[string]any{
					"mime":   f.MimeType,
					"folder": a.cfg.TrustedFolder,
				},
			})
			if len(out) >= limit {
				a.cacheCandidates(query, out)
				return out, nil
			}
		}

		pageToken = payload.NextPageToken
		if pageToken == "" {
			break
		}
	}

	a.cacheCandidates(query, out)
	return out, nil
}

func (a *DriveAdapter) cachedCandidates(query string) ([]model.Candidate, bool) {
	if a.store == nil {
		return nil, false
	}
	raw, ok := a.store.Get(cache.Key(string(model.SourceDrive), query))
	if !ok {
		return nil, false
	}
	var out []model.Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (a *DriveAdapter) cacheCandidates(query string, out []model.Candidate) {
	if a.store == nil || len(out) == 0 {
		return
	}
	if raw, err := json.Marshal(out); err == nil {
		_ = a.store.Set(cache.Key(string(model.SourceDrive), query), raw, a.cacheTTL)
	}
}
