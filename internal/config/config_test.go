package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.PreviewDebounce != 250*time.Millisecond {
		t.Errorf("expected default preview_debounce 250ms, got %s", cfg.PreviewDebounce)
	}
	if cfg.AuditRetention != 90*24*time.Hour {
		t.Errorf("expected default audit_retention 90 days, got %s", cfg.AuditRetention)
	}
	if cfg.Remote() {
		t.Error("default config should use the local store")
	}
	if cfg.DatabasePath() != ".popupstudio/popupstudio.db" {
		t.Errorf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.popupstudio.yml")

	original := DefaultConfig()
	original.APIURL = "https://tour.example.com"
	original.Port = 9000
	original.PreviewDebounce = 400 * time.Millisecond
	original.Breaker.Timeout = 45 * time.Second
	original.Export.Include = []string{"lobby_*", "floor2/**"}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.APIURL != original.APIURL {
		t.Errorf("api_url: got %q, want %q", loaded.APIURL, original.APIURL)
	}
	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.PreviewDebounce != original.PreviewDebounce {
		t.Errorf("preview_debounce: got %s, want %s", loaded.PreviewDebounce, original.PreviewDebounce)
	}
	if loaded.Breaker.Timeout != original.Breaker.Timeout {
		t.Errorf("breaker.timeout: got %s, want %s", loaded.Breaker.Timeout, original.Breaker.Timeout)
	}
	if len(loaded.Export.Include) != 2 || loaded.Export.Include[1] != "floor2/**" {
		t.Errorf("export.include: got %v", loaded.Export.Include)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("POPUPSTUDIO_API_URL", "http://remote:8080")
	t.Setenv("POPUPSTUDIO_BREAKER__FAILURE_THRESHOLD", "9")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.APIURL != "http://remote:8080" {
		t.Errorf("env override failed: got %q", loaded.APIURL)
	}
	if loaded.Breaker.FailureThreshold != 9 {
		t.Errorf("nested env override failed: got %d", loaded.Breaker.FailureThreshold)
	}
}

func TestSaveRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.yml")
	cfg := DefaultConfig()
	cfg.JWTSecret = "s3cret"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Errorf("config with secrets is group/world readable: %v", info.Mode().Perm())
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"bad url", func(c *Config) { c.APIURL = "not a url" }, "api_url"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"port range", func(c *Config) { c.Port = 70000 }, "port"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"breaker threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }, "breaker.failure_threshold"},
		{"rate window", func(c *Config) { c.RateLimit.Window = 0 }, "rate_limit.window"},
		{"negative retention", func(c *Config) { c.AuditRetention = -time.Hour }, "audit_retention"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateSecret()
	if len(a) != 64 || a == b {
		t.Errorf("secrets %q / %q", a, b)
	}
}

func TestPromptValidators(t *testing.T) {
	if validateURL("http://localhost:8080") != nil {
		t.Error("valid url rejected")
	}
	if validateURL("localhost") == nil {
		t.Error("bare host accepted")
	}
	if validatePort("8080") != nil || validatePort("99999") == nil || validatePort("abc") == nil {
		t.Error("port validation wrong")
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"lobby_*", []string{"lobby_*"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
