package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config holds the process-wide settings, all immutable after startup.
type Config struct {
	Workspace       string  `env:"CREWCLAW_WORKSPACE"`
	APIKey          string  `env:"ANTHROPIC_API_KEY"`
	BaseURL         string  `env:"ANTHROPIC_BASE_URL"`
	Model           string  `env:"CREWCLAW_MODEL" envDefault:"claude-sonnet-4-5"`
	TaskListID      string  `env:"CREWCLAW_TASK_LIST"`
	AgentName       string  `env:"CREWCLAW_AGENT_NAME" envDefault:"lead"`
	ContextWindow   int     `env:"CREWCLAW_CONTEXT_WINDOW" envDefault:"200000"`
	MaxOutputTokens int     `env:"CREWCLAW_MAX_OUTPUT_TOKENS" envDefault:"16384"`
	RequestsPerMin  float64 `env:"CREWCLAW_REQUESTS_PER_MIN" envDefault:"60"`
	LogLevel        string  `env:"CREWCLAW_LOG_LEVEL" envDefault:"INFO"`
	LogFile         string  `env:"CREWCLAW_LOG_FILE"`
}

// Load reads the configuration from the environment and fills defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving workspace: %w", err)
		}
		cfg.Workspace = wd
	}
	abs, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}
	cfg.Workspace = abs

	return cfg, nil
}

// TasksDir returns the directory for the resolved task list.
// Resolution order: configured list id, then team name, then "default".
func (c *Config) TasksDir(teamName string) string {
	listID := c.TaskListID
	if listID == "" {
		listID = teamName
	}
	if listID == "" {
		listID = "default"
	}
	return filepath.Join(c.Workspace, ".tasks", listID)
}

// TranscriptsDir returns the directory for transcript archives and spills.
func (c *Config) TranscriptsDir() string {
	return filepath.Join(c.Workspace, ".transcripts")
}

// TaskOutputsDir returns the directory for background job output files.
func (c *Config) TaskOutputsDir() string {
	return filepath.Join(c.Workspace, ".task_outputs")
}

// TeamsDir returns the root directory for team state.
func (c *Config) TeamsDir() string {
	return filepath.Join(c.Workspace, ".teams")
}

// SkillsDir returns the directory scanned for SKILL.md files.
func (c *Config) SkillsDir() string {
	return filepath.Join(c.Workspace, "skills")
}
