package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/stepwise/internal/auth"
	"github.com/tjfontaine/stepwise/internal/config"
	"github.com/tjfontaine/stepwise/internal/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{RequestTimeout: time.Second},
		Telemetry: config.TelemetryConfig{ServiceName: "stepwise-test"},
		Storage:   config.StorageConfig{Type: "memory"},
		Users: []config.UserConfig{
			{ID: 5, Name: "ada", Tenant: "acme", APIKey: "sk-ada"},
			{ID: 6, Name: "bob", KeyHash: auth.HashAPIKey("sk-bob")},
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*httptest.Server, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	a, err := newApp(cfg, slog.New(slog.NewJSONHandler(buf, nil)))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { a.store.Close() })

	ts := httptest.NewServer(a.server.Router)
	t.Cleanup(ts.Close)
	return ts, buf
}

func get(t *testing.T, url string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestApp_Routes(t *testing.T) {
	ts, _ := newTestApp(t, testConfig())

	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{name: "index", path: "/", wantStatus: http.StatusOK, wantBody: "<!doctype html>"},
		{name: "index htmx fragment", path: "/", headers: map[string]string{"HX-Request": "true"}, wantStatus: http.StatusOK, wantBody: "Hello again"},
		{name: "health", path: "/healthz", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "me without key", path: "/api/me", wantStatus: http.StatusUnauthorized, wantBody: "missing Authorization header"},
		{name: "me with api key user", path: "/api/me", headers: map[string]string{"Authorization": "Bearer sk-ada"}, wantStatus: http.StatusOK, wantBody: `"name":"ada"`},
		{name: "me with key hash user", path: "/api/me", headers: map[string]string{"Authorization": "Bearer sk-bob"}, wantStatus: http.StatusOK, wantBody: `"name":"bob"`},
		{name: "poll ticks", path: "/poll?n=1", wantStatus: http.StatusOK, wantBody: "tick 2"},
		{name: "poll stops", path: "/poll?n=4", wantStatus: middleware.StatusStopPolling, wantBody: "done after 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path, tt.headers)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantBody)
			}
			if resp.Header.Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestApp_PollTrigger(t *testing.T) {
	ts, _ := newTestApp(t, testConfig())

	resp, _ := get(t, ts.URL+"/poll", nil)
	if got := resp.Header.Get("HX-Trigger"); got != `{"tick":1}` {
		t.Errorf("HX-Trigger = %q", got)
	}
}

func TestApp_Webhook(t *testing.T) {
	var calls atomic.Int32
	approver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var in middleware.WebhookInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Metadata.UserID == "6" {
			_, _ = io.WriteString(w, `{"action":"deny","deny_reason":"bob is suspended"}`)
			return
		}
		_, _ = io.WriteString(w, `{"action":"allow"}`)
	}))
	defer approver.Close()

	cfg := testConfig()
	cfg.Webhook = config.WebhookConfig{URL: approver.URL, Timeout: time.Second, OnError: "deny"}
	ts, _ := newTestApp(t, cfg)

	resp, _ := get(t, ts.URL+"/api/me", map[string]string{"Authorization": "Bearer sk-ada"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ada status = %d, want 200", resp.StatusCode)
	}
	resp, body := get(t, ts.URL+"/api/me", map[string]string{"Authorization": "Bearer sk-bob"})
	if resp.StatusCode != http.StatusForbidden || !strings.Contains(body, "bob is suspended") {
		t.Errorf("bob status = %d body = %s, want 403 with reason", resp.StatusCode, body)
	}

	// Unauthenticated requests never reach the approver
	get(t, ts.URL+"/api/me", nil)
	get(t, ts.URL+"/healthz", nil)
	if n := calls.Load(); n != 2 {
		t.Errorf("approver calls = %d, want 2", n)
	}
}

func TestApp_SQLite(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "data", "stepwise.db")},
	}
	ts, buf := newTestApp(t, cfg)

	resp, body := get(t, ts.URL+"/api/me", map[string]string{"Authorization": "sk-ada"})
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"tenant":"acme"`) {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}
	if !strings.Contains(buf.String(), `"user_id":"5"`) {
		t.Errorf("completion log has no user_id: %s", buf.String())
	}
}

func TestBasePipeline(t *testing.T) {
	base, err := basePipeline(time.Second)
	if err != nil {
		t.Fatalf("basePipeline() error = %v", err)
	}

	want := []string{
		"decorator:request_id",
		"interceptor:expose_request_id",
		"interceptor:logging",
		"interceptor:recover",
		"interceptor:tracing",
		"interceptor:timeout",
		"decorator:htmx",
	}
	got := base.Steps()
	if len(got) != len(want) {
		t.Fatalf("Steps() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Steps()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestApp_WebhookDenyPrivate(t *testing.T) {
	approver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("approver on loopback was reached")
	}))
	defer approver.Close()

	cfg := testConfig()
	cfg.Webhook = config.WebhookConfig{URL: approver.URL, Timeout: time.Second, OnError: "deny", DenyPrivate: true}
	ts, _ := newTestApp(t, cfg)

	resp, _ := get(t, ts.URL+"/api/me", map[string]string{"Authorization": "Bearer sk-ada"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}
