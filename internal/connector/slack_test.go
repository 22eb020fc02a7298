package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/onesource/internal/model"
)

func slackTestAdapter(baseURL string, cfg model.SlackConfig) *SlackAdapter {
	a := NewSlackAdapter(
		cfg,
		model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test-agent"},
		StaticTokenSource{model.SourceSlack: "xoxb-test"},
		nil,
		nil,
		time.Minute,
	)
	a.baseURL = baseURL
	return a
}

// slackStub answers the Web API methods the adapter uses for one channel.
func slackStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pins.list":
			fmt.Fprint(w, `{"ok": true, "items": [{"message": {"text": "Deploy window: Friday 3pm", "ts": "1756100000.000100"}}]}`)
		case "/conversations.history":
			fmt.Fprint(w, `{"ok": true, "messages": [
				{"text": "Deploy window: Friday 3pm", "ts": "1756100000.000100"},
				{"text": "✅ deploy window moved to 4pm", "ts": "1756200000.000200"},
				{"text": "lunch anyone?", "ts": "1756300000.000300"}
			]}`)
		case "/chat.getPermalink":
			ts := r.URL.Query().Get("message_ts")
			fmt.Fprintf(w, `{"ok": true, "permalink": "https://acme.slack.com/archives/C123/p%s"}`, ts)
		default:
			t.Errorf("Unexpected Slack method %s", r.URL.Path)
		}
	}))
}

func TestSlackAdapter_Search(t *testing.T) {
	srv := slackStub(t)
	defer srv.Close()

	a := slackTestAdapter(srv.URL, model.SlackConfig{Enabled: true, Channels: []string{"C123"}})
	out, err := a.Search(context.Background(), "u1", "deploy window", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// The pinned message and the accepted message match; small talk does not.
	if len(out) != 2 {
		t.Fatalf("Expected 2 candidates, got %d: %v", len(out), out)
	}

	pinned := out[0]
	if pinned.DocID != "C123:1756100000.000100" {
		t.Errorf("DocID = %q", pinned.DocID)
	}
	if !pinned.SignalBool("pinned") {
		t.Error("Expected pinned signal on the pinned message")
	}
	if pinned.SignalBool("accepted") {
		t.Error("Pinned message is not accepted")
	}

	accepted := out[1]
	if !accepted.SignalBool("accepted") {
		t.Error("Expected accepted signal on the checkmarked message")
	}
	if accepted.URL == "" || !accepted.Valid() {
		t.Errorf("Candidate missing identity: %+v", accepted)
	}
}

func TestSlackAdapter_Search_RateLimitedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok": false, "error": "ratelimited"}`)
	}))
	defer srv.Close()

	a := slackTestAdapter(srv.URL, model.SlackConfig{Enabled: true, Channels: []string{"C123"}})
	_, err := a.Search(context.Background(), "u1", "q", 5)
	if err != ErrRateLimited {
		t.Errorf("Expected ErrRateLimited from envelope, got %v", err)
	}
}

func TestSlackAdapter_Search_RateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := slackTestAdapter(srv.URL, model.SlackConfig{Enabled: true, Channels: []string{"C123"}})
	_, err := a.Search(context.Background(), "u1", "q", 5)
	if err != ErrRateLimited {
		t.Errorf("Expected ErrRateLimited from HTTP 429, got %v", err)
	}
}

func TestSlackAdapter_FastPath(t *testing.T) {
	historyCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pins.list":
			fmt.Fprint(w, `{"ok": true, "items": [{"message": {"text": "deploy window is 3pm", "ts": "1756100000.000100"}}]}`)
		case "/chat.getPermalink":
			fmt.Fprint(w, `{"ok": true, "permalink": "https://acme.slack.com/archives/C123/p1"}`)
		case "/conversations.history":
			historyCalled = true
			fmt.Fprint(w, `{"ok": true, "messages": []}`)
		default:
			t.Errorf("Unexpected Slack method %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := slackTestAdapter(srv.URL, model.SlackConfig{Enabled: true, Fast: true, Channels: []string{"C123"}})
	out, err := a.Search(context.Background(), "u1", "deploy window", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 pinned candidate from the fast path, got %d", len(out))
	}
	if historyCalled {
		t.Error("Fast path with a pin hit must not scan history")
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single line", "Deploy window is Friday 3pm", "Deploy window is Friday 3pm"},
		{"first line only", "First line\nSecond line", "First line"},
		{"heading joins next line", "Deploy schedule:\nFridays at 3pm", "Deploy schedule: Fridays at 3pm"},
		{"blank lines skipped", "\n\n  actual content  \n", "actual content"},
		{"empty", "   \n  ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := preview(tc.in); got != tc.want {
				t.Errorf("preview(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTsToTime(t *testing.T) {
	got := tsToTime("1756100000.000100")
	if got.Unix() != 1756100000 {
		t.Errorf("tsToTime seconds = %d", got.Unix())
	}
	if tsToTime("garbage").IsZero() {
		t.Error("Expected non-zero fallback for bad timestamp")
	}
}
