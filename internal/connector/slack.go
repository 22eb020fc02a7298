package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/onesource/internal/cache"
	"github.com/ppiankov/onesource/internal/model"
)

const slackAPIURL = "https://slack.com/api"

// SlackAdapter scans channel pins and recent history for accepted or
// pinned messages matching the query. Fast mode reads pins of a single
// channel only and falls back to the normal scan when it finds nothing.
type SlackAdapter struct {
	cfg        model.SlackConfig
	baseURL    string
	httpClient *http.Client
	userAgent  string
	tokens     TokenSource
	limiter    *Limiter
	store      cache.Cache
	cacheTTL   time.Duration
}

// NewSlackAdapter creates the conversation adapter.
func NewSlackAdapter(cfg model.SlackConfig, httpCfg model.HTTPConfig, tokens TokenSource, limiter *Limiter, store cache.Cache, cacheTTL time.Duration) *SlackAdapter {
	return &SlackAdapter{
		cfg:        cfg,
		baseURL:    slackAPIURL,
		httpClient: &http.Client{Timeout: httpCfg.Timeout},
		userAgent:  httpCfg.UserAgent,
		tokens:     tokens,
		limiter:    limiter,
		store:      store,
		cacheTTL:   cacheTTL,
	}
}

// Source returns the provider identifier
func (a *SlackAdapter) Source() model.Source {
	return model.SourceSlack
}

type slackMessage struct {
	Text string `json:"text"`
	TS   string `json:"ts"`
}

type slackResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Channels []struct {
		ID string `json:"id"`
	} `json:"channels"`
	Items []struct {
		Message slackMessage `json:"message"`
	} `json:"items"`
	Messages  []slackMessage `json:"messages"`
	Permalink string         `json:"permalink"`
}

// slackGet calls one Web API method and decodes the envelope. A
// "ratelimited" envelope surfaces as ErrRateLimited so the hub can tag
// the round.
func (a *SlackAdapter) slackGet(ctx context.Context, token, method string, params url.Values) (*slackResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}

	var payload slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("slack %s: decode: %w", method, err)
	}
	if payload.Error == "ratelimited" {
		return nil, ErrRateLimited
	}
	return &payload, nil
}

// preview builds a compact snippet: the first non-empty line, plus the
// next one when the first looks like a heading ending with a colon.
func preview(text string) string {
	clean := strings.ReplaceAll(text, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")

	var lines []string
	for _, ln := range strings.Split(strings.TrimSpace(clean), "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	first := lines[0]
	if strings.HasSuffix(first, ":") && len(lines) > 1 {
		return truncate(first+" "+lines[1], 240)
	}
	return truncate(first, 240)
}

// tsToTime converts a Slack message timestamp ("1712345678.000100").
func tsToTime(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Now().UTC()
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// Search scans the configured channels for pinned or accepted messages.
func (a *SlackAdapter) Search(ctx context.Context, userID, query string, limit int) ([]model.Candidate, error) {
	token, err := a.tokens.Token(ctx, model.SourceSlack, userID)
	if err != nil || token == "" {
		return nil, nil
	}

	if cached, ok := a.cachedCandidates(query); ok {
		return cached, nil
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, model.SourceSlack); err != nil {
			return nil, err
		}
	}

	channels := a.cfg.Channels

	// Fast path: pins of a single channel, falling back when empty.
	if a.cfg.Fast && len(channels) == 1 {
		cands, err := a.pinsFast(ctx, token, channels[0], query, limit)
		if err != nil {
			return nil, err
		}
		if len(cands) > 0 {
			a.cacheCandidates(query, cands)
			return cands, nil
		}
	}

	if len(channels) == 0 {
		res, err := a.slackGet(ctx, token, "conversations.list", url.Values{
			"limit": {"60"},
			"types": {"public_channel,private_channel"},
		})
		if err != nil {
			return nil, err
		}
		if !res.OK {
			return nil, fmt.Errorf("slack conversations.list: %s", res.Error)
		}
		for _, ch := range res.Channels {
			channels = append(channels, ch.ID)
		}
	}

	var matched []model.Candidate
	for _, cid := range channels {
		pinnedTS := map[string]bool{}
		if pins, err := a.slackGet(ctx, token, "pins.list", url.Values{"channel": {cid}}); err == nil && pins.OK {
			for _, it := range pins.Items {
				if it.Message.TS != "" {
					pinnedTS[it.Message.TS] = true
				}
			}
		} else if err != nil {
			return nil, err
		}

		hist, err := a.slackGet(ctx, token, "conversations.history", url.Values{"channel": {cid}, "limit": {"120"}})
		if err != nil {
			return nil, err
		}
		if !hist.OK {
			continue
		}

		for _, m := range hist.Messages {
			if m.Text == "" || m.TS == "" {
				continue
			}
			accepted := strings.Contains(m.Text, "✅")
			pinned := pinnedTS[m.TS]
			if !accepted && !pinned {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(m.Text), strings.ToLower(query)) {
				continue
			}

			cand, ok := a.normalize(ctx, token, cid, m, pinned, accepted)
			if !ok {
				continue
			}
			matched = append(matched, cand)
			if len(matched) >= limit {
				a.cacheCandidates(query, matched)
				return matched, nil
			}
		}
	}

	a.cacheCandidates(query, matched)
	return matched, nil
}

// pinsFast reads only the pins of one channel, preferring query matches.
func (a *SlackAdapter) pinsFast(ctx context.Context, token, cid, query string, limit int) ([]model.Candidate, error) {
	pins, err := a.slackGet(ctx, token, "pins.list", url.Values{"channel": {cid}})
	if err != nil {
		return nil, err
	}
	if !pins.OK {
		return nil, nil
	}

	var out, matched []model.Candidate
	for _, it := range pins.Items {
		m := it.Message
		if m.Text == "" || m.TS == "" {
			continue
		}
		cand, ok := a.normalize(ctx, token, cid, m, true, strings.Contains(m.Text, "✅"))
		if !ok {
			continue
		}
		if query != "" && strings.Contains(strings.ToLower(m.Text), strings.ToLower(query)) {
			matched = append(matched, cand)
			if len(matched) >= limit {
				return matched, nil
			}
		} else {
			out = append(out, cand)
		}
	}
	if len(matched) > 0 {
		return matched, nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// normalize resolves the permalink and builds the candidate.
func (a *SlackAdapter) normalize(ctx context.Context, token, cid string, m slackMessage, pinned, accepted bool) (model.Candidate, bool) {
	pl, err := a.slackGet(ctx, token, "chat.getPermalink", url.Values{"channel": {cid}, "message_ts": {m.TS}})
	if err != nil || !pl.OK || pl.Permalink == "" {
		return model.Candidate{}, false
	}
	return model.Candidate{
		Source:       model.SourceSlack,
		DocID:        cid + ":" + m.TS,
		URL:          pl.Permalink,
		Title:        "Slack thread",
		Snippet:      preview(m.Text),
		LastModified: tsToTime(m.TS),
		Owner:        "slack",
		Signals: map[string]any{
			"pinned":   pinned,
			"accepted": accepted,
		},
	}, true
}

func (a *SlackAdapter) cachedCandidates(query string) ([]model.Candidate, bool) {
	if a.store == nil {
		return nil, false
	}
	raw, ok := a.store.Get(cache.Key(string(model.SourceSlack), query))
	if !ok {
		return nil, false
	}
	var out []model.Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (a *SlackAdapter) cacheCandidates(query string, out []model.Candidate) {
	if a.store == nil || len(out) == 0 {
		return
	}
	if raw, err := json.Marshal(out); err == nil {
		_ = a.store.Set(cache.Key(string(model.SourceSlack), query), raw, a.cacheTTL)
	}
}
