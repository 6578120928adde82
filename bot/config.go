package bot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the bot-level configuration: the IRC components, the
// task schedule, and operational settings. Wiki connection settings come
// from the environment instead, so credentials stay out of the file.
type Config struct {
	Frontend IRCConfig     `yaml:"frontend"`
	Watcher  WatcherConfig `yaml:"watcher"`
	Tasks    TasksConfig   `yaml:"tasks"`
	Metrics  MetricsConfig `yaml:"metrics"`

	// WiktionaryAPIURL points the define command at a Wiktionary API
	// endpoint. Empty disables the command.
	WiktionaryAPIURL string `yaml:"wiktionary_api_url"`
}

// IRCConfig describes one IRC connection.
type IRCConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Server   string   `yaml:"server"` // host:port
	Nick     string   `yaml:"nick"`
	Ident    string   `yaml:"ident"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"use_tls"`
}

// WatcherConfig describes the recent-changes feed connection.
type WatcherConfig struct {
	IRCConfig `yaml:",inline"`

	// ReportChannel is a frontend channel where watched edits are
	// announced. Empty means watch silently.
	ReportChannel string `yaml:"report_channel"`
}

// TasksConfig holds the edit-summary template, the emergency shutoff
// settings, and the task schedule.
type TasksConfig struct {
	// Summary wraps task edit summaries; $1 is the task number, $2 the body.
	Summary string `yaml:"summary"`

	Shutoff ShutoffConfig `yaml:"shutoff"`

	Schedule []ScheduleEntry `yaml:"schedule"`
}

// ShutoffConfig points at the on-wiki emergency stop page.
type ShutoffConfig struct {
	// Page title; $1 is the bot's username, $2 the task number.
	Page string `yaml:"page"`
	// Disabled is the content meaning "keep running".
	Disabled string `yaml:"disabled"`
}

// ScheduleEntry runs one task on a cron schedule.
type ScheduleEntry struct {
	Task string            `yaml:"task"`
	Cron string            `yaml:"cron"`
	Args map[string]string `yaml:"args"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr to serve /metrics on (":9090"). Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Frontend.Nick == "" {
		c.Frontend.Nick = "wikibot"
	}
	if c.Frontend.Ident == "" {
		c.Frontend.Ident = c.Frontend.Nick
	}
	if c.Watcher.Nick == "" {
		c.Watcher.Nick = c.Frontend.Nick + "-watcher"
	}
	if c.Watcher.Ident == "" {
		c.Watcher.Ident = c.Watcher.Nick
	}
	if c.Tasks.Shutoff.Page != "" && c.Tasks.Shutoff.Disabled == "" {
		c.Tasks.Shutoff.Disabled = "run"
	}
}

func (c *Config) validate() error {
	if c.Frontend.Enabled && c.Frontend.Server == "" {
		return fmt.Errorf("frontend is enabled but has no server")
	}
	if c.Watcher.Enabled && c.Watcher.Server == "" {
		return fmt.Errorf("watcher is enabled but has no server")
	}
	for i, entry := range c.Tasks.Schedule {
		if entry.Task == "" {
			return fmt.Errorf("schedule entry %d has no task name", i)
		}
		if entry.Cron == "" {
			return fmt.Errorf("schedule entry %d (%s) has no cron expression", i, entry.Task)
		}
	}
	return nil
}
