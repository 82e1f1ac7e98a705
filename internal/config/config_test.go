package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Server.RequestTimeout != 30*time.Second {
			t.Errorf("Load() request_timeout = %v, want 30s", cfg.Server.RequestTimeout)
		}
		if cfg.Storage.Type != "memory" {
			t.Errorf("Load() storage.type = %q, want memory", cfg.Storage.Type)
		}
		if cfg.Webhook.OnError != "deny" {
			t.Errorf("Load() webhook.on_error = %q, want deny", cfg.Webhook.OnError)
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("STEPWISE_SERVER__PORT", "9000")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
	})

	t.Run("file values", func(t *testing.T) {
		t.Setenv("USER_ONE_KEY", "secret-1")
		path := writeConfig(t, `
server:
  port: 7000
  request_timeout: 2s
telemetry:
  enabled: true
  service_name: test-svc
  sample_ratio: 0.5
storage:
  type: sqlite
  sqlite:
    path: /tmp/x.db
users:
  - id: 1
    name: one
    api_key: ${USER_ONE_KEY}
  - id: 2
    name: two
    key_hash: abc
webhook:
  url: http://approver.local/check
  on_error: allow
  deny_private: true
  headers:
    X-Token: static
`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 7000 || cfg.Server.RequestTimeout != 2*time.Second {
			t.Errorf("server = %+v", cfg.Server)
		}
		if !cfg.Telemetry.Enabled || cfg.Telemetry.ServiceName != "test-svc" || cfg.Telemetry.SampleRatio != 0.5 {
			t.Errorf("telemetry = %+v", cfg.Telemetry)
		}
		if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/x.db" {
			t.Errorf("storage = %+v", cfg.Storage)
		}
		if len(cfg.Users) != 2 {
			t.Fatalf("users = %d, want 2", len(cfg.Users))
		}
		if cfg.Users[0].APIKey != "secret-1" {
			t.Errorf("users[0].api_key = %q, want substituted value", cfg.Users[0].APIKey)
		}
		if cfg.Webhook.URL != "http://approver.local/check" || cfg.Webhook.OnError != "allow" || !cfg.Webhook.DenyPrivate {
			t.Errorf("webhook = %+v", cfg.Webhook)
		}
		if cfg.Webhook.Timeout != 5*time.Second {
			t.Errorf("webhook.timeout = %v, want default 5s", cfg.Webhook.Timeout)
		}
	})

	t.Run("invalid storage type", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  type: postgres\n")
		if _, err := Load(path); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("user without key", func(t *testing.T) {
		path := writeConfig(t, "users:\n  - id: 1\n    name: nokey\n")
		if _, err := Load(path); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
