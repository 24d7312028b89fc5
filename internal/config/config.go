// Package config holds all quizrunner configuration. The struct is built once
// at startup and passed by value into the components that need it; there is no
// ambient lookup after load.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Browser  BrowserConfig  `yaml:"browser"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Submit   SubmitConfig   `yaml:"submit"`
}

// ServerConfig configures the inbound acceptance endpoint.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"`
}

// PipelineConfig carries the wall-clock budget constants for one task.
type PipelineConfig struct {
	TaskBudgetMs   int `yaml:"task_budget_ms"`
	SafetyMarginMs int `yaml:"safety_margin_ms"`
	CleanupSlackMs int `yaml:"cleanup_slack_ms"`
}

// TaskBudget is the total wall-clock time allotted to one task.
func (c PipelineConfig) TaskBudget() time.Duration {
	if c.TaskBudgetMs == 0 {
		return 3 * time.Minute
	}
	return time.Duration(c.TaskBudgetMs) * time.Millisecond
}

// SafetyMargin is the minimum remaining time below which a task is abandoned
// before any stage runs.
func (c PipelineConfig) SafetyMargin() time.Duration {
	if c.SafetyMarginMs == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.SafetyMarginMs) * time.Millisecond
}

// CleanupSlack is reserved out of the remaining budget so teardown can finish
// after a pipeline timeout.
func (c PipelineConfig) CleanupSlack() time.Duration {
	if c.CleanupSlackMs == 0 {
		return time.Second
	}
	return time.Duration(c.CleanupSlackMs) * time.Millisecond
}

// BrowserConfig configures the page navigator.
type BrowserConfig struct {
	// Mode selects the navigator implementation: "headless" (rod/Chrome,
	// default) or "static" (plain HTTP fetch, no JS execution).
	Mode                string `yaml:"mode"`
	Bin                 string `yaml:"bin"` // optional Chrome binary path
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	SettleDelayMs       int    `yaml:"settle_delay_ms"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
}

// NavigationTimeout bounds a single page navigation, nested inside the task
// budget.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 45 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SettleDelay is waited after network idle so client-side rendering can finish
// before the DOM is read.
func (c BrowserConfig) SettleDelay() time.Duration {
	if c.SettleDelayMs == 0 {
		return 600 * time.Millisecond
	}
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// GetViewportWidth returns the viewport width.
func (c BrowserConfig) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

// GetViewportHeight returns the viewport height.
func (c BrowserConfig) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 800
	}
	return c.ViewportHeight
}

// IsStatic reports whether the static-fetch navigator is selected.
func (c BrowserConfig) IsStatic() bool {
	return c.Mode == "static"
}

// FetchConfig configures the resource fetcher.
type FetchConfig struct {
	TimeoutMs    int    `yaml:"timeout_ms"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	UserAgent    string `yaml:"user_agent"`
}

// Timeout bounds one resource download.
func (c FetchConfig) Timeout() time.Duration {
	if c.TimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BodyLimit caps how many resource bytes are read.
func (c FetchConfig) BodyLimit() int64 {
	if c.MaxBodyBytes == 0 {
		return 10 << 20 // 10MB
	}
	return c.MaxBodyBytes
}

// GetUserAgent returns the User-Agent header for outbound requests.
func (c FetchConfig) GetUserAgent() string {
	if c.UserAgent == "" {
		return "quizrunner/1.0"
	}
	return c.UserAgent
}

// SubmitConfig configures the answer submitter.
type SubmitConfig struct {
	DefaultEndpoint string `yaml:"default_endpoint"`
	TimeoutMs       int    `yaml:"timeout_ms"`
}

// Endpoint is the fallback submission endpoint when the instruction names none.
func (c SubmitConfig) Endpoint() string {
	if c.DefaultEndpoint == "" {
		return "https://quiz.example.com/submit"
	}
	return c.DefaultEndpoint
}

// Timeout bounds one submission POST.
func (c SubmitConfig) Timeout() time.Duration {
	if c.TimeoutMs == 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads a YAML config file and applies environment overrides.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments inject the shared secret and
// listen address without touching the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUIZRUNNER_SECRET"); v != "" {
		cfg.Server.Secret = v
	}
	if v := os.Getenv("QUIZRUNNER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("QUIZRUNNER_SUBMIT_ENDPOINT"); v != "" {
		cfg.Submit.DefaultEndpoint = v
	}
}
