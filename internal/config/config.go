package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. "__" separates levels,
// e.g. STEPWISE_SERVER__PORT.
const EnvPrefix = "STEPWISE_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Storage   StorageConfig   `koanf:"storage"`
	Users     []UserConfig    `koanf:"users"`
	Webhook   WebhookConfig   `koanf:"webhook"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
	Pretty      bool    `koanf:"pretty"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// UserConfig seeds the user store. Either APIKey (hashed at load time) or
// KeyHash must be set.
type UserConfig struct {
	ID          int64  `koanf:"id"`
	Name        string `koanf:"name"`
	Tenant      string `koanf:"tenant"`
	APIKey      string `koanf:"api_key"`
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

// WebhookConfig configures the external approval step. It is disabled when
// URL is empty.
type WebhookConfig struct {
	URL     string            `koanf:"url"`
	Timeout time.Duration     `koanf:"timeout"`
	OnError string            `koanf:"on_error"` // allow, deny
	Headers map[string]string `koanf:"headers"`
	// DenyPrivate refuses to connect to loopback and private addresses.
	DenyPrivate bool `koanf:"deny_private"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.port":             8080,
	"server.request_timeout":  "30s",
	"server.shutdown_timeout": "30s",
	"telemetry.service_name":  "stepwise",
	"storage.type":            "memory",
	"storage.sqlite.path":     "./data/stepwise.db",
	"webhook.timeout":         "5s",
	"webhook.on_error":        "deny",
}

// Load reads path (a missing file is not an error), then environment
// overrides, then fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	for i := range cfg.Users {
		cfg.Users[i].APIKey = substituteEnvVars(cfg.Users[i].APIKey)
	}
	for name, v := range cfg.Webhook.Headers {
		cfg.Webhook.Headers[name] = substituteEnvVars(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values koanf cannot check on its own.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("storage.type %q: must be memory or sqlite", c.Storage.Type)
	}
	switch c.Webhook.OnError {
	case "", "allow", "deny":
	default:
		return fmt.Errorf("webhook.on_error %q: must be allow or deny", c.Webhook.OnError)
	}
	seen := make(map[int64]bool, len(c.Users))
	for _, u := range c.Users {
		if u.APIKey == "" && u.KeyHash == "" {
			return fmt.Errorf("user %d: api_key or key_hash is required", u.ID)
		}
		if seen[u.ID] {
			return fmt.Errorf("user %d: duplicate id", u.ID)
		}
		seen[u.ID] = true
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
