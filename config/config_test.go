package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative max depth",
			mutate: func(cfg *Config) {
				cfg.MaxDepth = -1
			},
			wantErr: "max depth",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.Delay = -time.Second
			},
			wantErr: "delay",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "empty user agent",
			mutate: func(cfg *Config) {
				cfg.UserAgent = ""
			},
			wantErr: "user agent",
		},
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "bad output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "sqlite without db path",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "sqlite"
				cfg.DBPath = ""
			},
			wantErr: "database path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scraper:
  base_url: https://docs.example.com
  max_depth: 2
  max_pages: 10
  timeout: 5
  delay: 0.5
database:
  sqlite_path: /tmp/test.db
output:
  format: jsonl
  file: out/pages.jsonl
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("apply file: %v", err)
	}

	if cfg.BaseURL != "https://docs.example.com" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.MaxDepth != 2 || cfg.MaxPages != 10 {
		t.Fatalf("limits = %d/%d, want 2/10", cfg.MaxDepth, cfg.MaxPages)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout)
	}
	if cfg.Delay != 500*time.Millisecond {
		t.Fatalf("delay = %v", cfg.Delay)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.OutputFormat != "jsonl" || cfg.OutputFile != "out/pages.jsonl" {
		t.Fatalf("output = %q/%q", cfg.OutputFormat, cfg.OutputFile)
	}
	// untouched fields keep defaults
	if cfg.UserAgent == "" || cfg.BatchSize != DefaultConfig().BatchSize {
		t.Fatalf("unrelated fields changed")
	}
}

func TestApplyFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
