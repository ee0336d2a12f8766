// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Job
	Keywords     []string `json:"keywords,omitempty"`      // Keywords to search and score against
	Priority     string   `json:"priority,omitempty"`      // low, normal, or high
	CaptureMedia bool     `json:"capture_media,omitempty"` // Capture screenshots at media-enabled stages
	RecordVideo  bool     `json:"record_video,omitempty"`  // Record a session video (reserved)

	// Target
	BaseURL string `json:"base_url,omitempty"` // Target site root, e.g. https://x.com

	// Storage
	MediaDir    string `json:"media_dir,omitempty"`    // Directory for captured screenshots
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for job results

	// Behavior
	APIKey   string `json:"api_key,omitempty"`  // Gemini API key for instruction interpretation
	Headless bool   `json:"headless,omitempty"` // Run the browser headless
	Verbose  bool   `json:"verbose,omitempty"`  // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Priority != "" && c.Priority != "low" && c.Priority != "normal" && c.Priority != "high" {
		return fmt.Errorf("config error: 'priority' must be low, normal, or high")
	}

	if c.RecordVideo && !c.CaptureMedia {
		return fmt.Errorf("config error: 'record_video' requires 'capture_media'")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if len(result.Keywords) == 0 {
		result.Keywords = defaults.Keywords
	}
	if result.Priority == "" {
		result.Priority = defaults.Priority
	}
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.MediaDir == "" {
		result.MediaDir = defaults.MediaDir
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
