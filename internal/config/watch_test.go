package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "server:\n  port: 9000\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	if err := Watch(ctx, path, nil, func(cfg *Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// An invalid file is skipped
	writeFile(t, path, "storage:\n  type: redis\n")
	writeFile(t, path, "server:\n  port: 9100\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Server.Port == 9100 {
				return
			}
		case <-deadline:
			t.Fatal("no reload with the new port")
		}
	}
}

func TestWatch_EmptyPath(t *testing.T) {
	if err := Watch(context.Background(), "", nil, func(*Config) {}); err == nil {
		t.Error("Watch() error = nil, want error")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
