package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk YAML layout. Durations are plain
// seconds so the file stays tool-agnostic; pointer fields distinguish
// "absent" from zero.
type fileConfig struct {
	Scraper struct {
		BaseURL   string   `yaml:"base_url"`
		MaxDepth  *int     `yaml:"max_depth"`
		MaxPages  *int     `yaml:"max_pages"`
		Timeout   *float64 `yaml:"timeout"`
		Delay     *float64 `yaml:"delay"`
		UserAgent string   `yaml:"user_agent"`
	} `yaml:"scraper"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Output struct {
		File   string `yaml:"file"`
		Format string `yaml:"format"`
	} `yaml:"output"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// ApplyFile overlays settings from a YAML file onto c. Fields absent
// from the file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	if fc.Scraper.BaseURL != "" {
		c.BaseURL = fc.Scraper.BaseURL
	}
	if fc.Scraper.MaxDepth != nil {
		c.MaxDepth = *fc.Scraper.MaxDepth
	}
	if fc.Scraper.MaxPages != nil {
		c.MaxPages = *fc.Scraper.MaxPages
	}
	if fc.Scraper.Timeout != nil {
		c.Timeout = time.Duration(*fc.Scraper.Timeout * float64(time.Second))
	}
	if fc.Scraper.Delay != nil {
		c.Delay = time.Duration(*fc.Scraper.Delay * float64(time.Second))
	}
	if fc.Scraper.UserAgent != "" {
		c.UserAgent = fc.Scraper.UserAgent
	}
	if fc.Database.SQLitePath != "" {
		c.DBPath = fc.Database.SQLitePath
	}
	if fc.Output.File != "" {
		c.OutputFile = fc.Output.File
	}
	if fc.Output.Format != "" {
		c.OutputFormat = fc.Output.Format
	}
	if fc.Metrics.Addr != "" {
		c.MetricsAddr = fc.Metrics.Addr
	}

	return nil
}
