// Package config holds all axe configuration from ~/.axe/config.json.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UserConfig is the single source of truth for configuration.
//
// Supported models by provider:
//   - gemini:    gemini-2.5-flash (default), gemini-2.5-pro, gemini-2.0-flash
//   - openai:    gpt-4o, gpt-4o-mini, o1, o1-mini
//   - anthropic: claude-sonnet-4-20250514, claude-3-5-haiku-latest
//   - groq, xai, deepseek, qwen, kimi, minimax: see provider.Catalog
type UserConfig struct {
	// Provider selection and model override.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// API keys per provider name. Environment variables of the form
	// AXE_<PROVIDER>_API_KEY take precedence at lookup time.
	Keys map[string]string `json:"keys,omitempty"`

	// Agent is the active agent variant name (see agents.yaml).
	Agent string `json:"agent,omitempty"`

	// Tools configuration.
	Tools ToolsConfig `json:"tools,omitempty"`

	// Turn configuration.
	Turn TurnConfig `json:"turn,omitempty"`

	// Logging configuration.
	Logging LoggingConfig `json:"logging,omitempty"`
}

// ToolsConfig controls the tool provider pool.
type ToolsConfig struct {
	// Strict fails the whole turn when any tool provider fails to start.
	// Default false: proceed with the providers that did start and surface
	// a warning to the user.
	Strict bool `json:"strict,omitempty"`

	// Disabled lists provider names that should not be started.
	Disabled []string `json:"disabled,omitempty"`

	// ShellTimeoutSeconds bounds one shell tool invocation (default 60).
	ShellTimeoutSeconds int `json:"shell_timeout_seconds,omitempty"`
}

// TurnConfig controls the conversation orchestrator.
type TurnConfig struct {
	// StepBudget caps model/tool alternation steps per turn (default 100).
	// A safety bound against infinite tool-call cycles, not a user setting.
	StepBudget int `json:"step_budget,omitempty"`

	// HistoryWindow is the trailing message window sent to the model
	// (default 50).
	HistoryWindow int `json:"history_window,omitempty"`

	// PersistPartialTurns persists a cancelled turn's partial buffer as an
	// assistant message. Default false: the buffer is discarded.
	PersistPartialTurns bool `json:"persist_partial_turns,omitempty"`
}

// LoggingConfig mirrors internal/logging settings.
type LoggingConfig struct {
	DebugMode bool   `json:"debug_mode,omitempty"`
	Level     string `json:"level,omitempty"`
}

// Defaults applied when fields are zero.
const (
	DefaultProvider      = "gemini"
	DefaultModel         = "gemini-2.5-flash"
	DefaultAgent         = "general"
	DefaultStepBudget    = 100
	DefaultHistoryWindow = 50
	DefaultShellTimeout  = 60
)

// Dir returns the axe config directory (~/.axe), creating nothing.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".axe"
	}
	return filepath.Join(home, ".axe")
}

// Path returns the config file path.
func Path() string { return filepath.Join(Dir(), "config.json") }

// LogsDir returns the log directory used by internal/logging.
func LogsDir() string { return filepath.Join(Dir(), "logs") }

// StorePath returns the SQLite database path.
func StorePath() string { return filepath.Join(Dir(), "axe.db") }

// AgentsPath returns the agent variant definitions path.
func AgentsPath() string { return filepath.Join(Dir(), "agents.yaml") }

// Load reads configuration from path. A missing file yields defaults.
func Load(path string) (*UserConfig, error) {
	cfg := &UserConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes configuration to path, creating the directory if needed.
func (c *UserConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *UserConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Agent == "" {
		c.Agent = DefaultAgent
	}
	if c.Keys == nil {
		c.Keys = make(map[string]string)
	}
	if c.Turn.StepBudget <= 0 {
		c.Turn.StepBudget = DefaultStepBudget
	}
	if c.Turn.HistoryWindow <= 0 {
		c.Turn.HistoryWindow = DefaultHistoryWindow
	}
	if c.Tools.ShellTimeoutSeconds <= 0 {
		c.Tools.ShellTimeoutSeconds = DefaultShellTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// APIKey returns the key for a provider. Environment variables override
// config file entries so keys never have to touch disk.
func (c *UserConfig) APIKey(provider string) string {
	env := "AXE_" + strings.ToUpper(provider) + "_API_KEY"
	if v := os.Getenv(env); v != "" {
		return v
	}
	// Conventional variables for the common providers.
	switch provider {
	case "gemini", "google":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			return v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			return v
		}
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			return v
		}
	case "groq":
		if v := os.Getenv("GROQ_API_KEY"); v != "" {
			return v
		}
	case "xai":
		if v := os.Getenv("XAI_API_KEY"); v != "" {
			return v
		}
	}
	return c.Keys[provider]
}

// SetProvider records the active provider and model and saves.
func (c *UserConfig) SetProvider(path, provider, model string) error {
	c.Provider = provider
	c.Model = model
	return c.Save(path)
}

// ToolDisabled reports whether a provider name is disabled in config.
func (c *UserConfig) ToolDisabled(name string) bool {
	for _, d := range c.Tools.Disabled {
		if d == name {
			return true
		}
	}
	return false
}
