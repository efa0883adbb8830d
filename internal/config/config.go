// Package config loads and resolves run configuration. Precedence is
// command-line flag, then environment, then config file, then built-in
// default; the file is optional and may be YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Lengi96/ai-qa-framework/internal/probe"
	"github.com/Lengi96/ai-qa-framework/internal/provider"
	"github.com/Lengi96/ai-qa-framework/internal/telemetry"
)

type HistoryConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	DSN  string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

type Config struct {
	Provider   provider.Config  `yaml:"provider" json:"provider"`
	BankPath   string           `yaml:"bank_path,omitempty" json:"bank_path,omitempty"`
	Categories []string         `yaml:"categories,omitempty" json:"categories,omitempty"`
	Workers    int              `yaml:"workers,omitempty" json:"workers,omitempty"`
	Strict     bool             `yaml:"strict,omitempty" json:"strict,omitempty"`
	Format     string           `yaml:"format,omitempty" json:"format,omitempty"`
	OutPath    string           `yaml:"out,omitempty" json:"out,omitempty"`
	History    HistoryConfig    `yaml:"history,omitempty" json:"history,omitempty"`
	Telemetry  telemetry.Config `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// Load reads a config file. An empty path returns a zero config so the
// env/flag layers can still fill it in. MaxRetries starts at -1 so an
// explicit 0 from any layer survives normalization.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Provider.MaxRetries = -1
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on top of file values. Env
// wins over the file; flags applied later win over env.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Provider.Provider = provider.ID(strings.ToLower(strings.TrimSpace(v)))
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("HISTORY_DSN"); v != "" {
		c.History.DSN = v
	}
}

func apiKeyFromEnv(name provider.ID) string {
	id, ok := provider.ParseID(string(name))
	if !ok {
		return ""
	}
	switch id {
	case provider.Anthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case provider.OpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case provider.Google:
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// Normalize fills defaults for anything no layer set. The API key
// resolves from the provider's env var here, after the flag layer has
// fixed the provider identity, so ANTHROPIC_API_KEY alone is enough
// for a default run and -provider openai picks up OPENAI_API_KEY.
func (c *Config) Normalize() {
	if c.Provider.Provider == "" {
		c.Provider.Provider = provider.Anthropic
	}
	if id, ok := provider.ParseID(string(c.Provider.Provider)); ok && c.Provider.Model == "" {
		c.Provider.Model = provider.DefaultModel(id)
	}
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = apiKeyFromEnv(c.Provider.Provider)
	}
	if c.Provider.MaxRetries < 0 {
		c.Provider.MaxRetries = 2
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "qa-probe"
	}
	if c.Telemetry.SampleRatio <= 0 {
		c.Telemetry.SampleRatio = 1.0
	}
}

// Validate checks the resolved config before any network call.
func (c *Config) Validate() error {
	if err := provider.ValidateConfig(c.Provider); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", c.Format)
	}
	for _, raw := range c.Categories {
		if _, ok := probe.ParseCategory(raw); !ok {
			return fmt.Errorf("unknown category %q", raw)
		}
	}
	if c.History.Path != "" && c.History.DSN != "" {
		return fmt.Errorf("history.path and history.dsn are mutually exclusive")
	}
	return nil
}

// WantedCategories parses the configured category filter.
func (c *Config) WantedCategories() []probe.Category {
	var out []probe.Category
	for _, raw := range c.Categories {
		if cat, ok := probe.ParseCategory(raw); ok {
			out = append(out, cat)
		}
	}
	return out
}
