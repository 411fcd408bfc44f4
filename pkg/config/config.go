// Package config loads vibebreak configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for vibebreak.
type Config struct {
	// Tracked application sets. Direct apps qualify on membership alone;
	// IDE and terminal apps additionally require the companion process
	// to show sustained CPU.
	DirectApps   []string `yaml:"direct_apps"`
	IDEApps      []string `yaml:"ide_apps"`
	TerminalApps []string `yaml:"terminal_apps"`

	// CompanionProcess is the name pattern of the AI tool process whose
	// CPU usage signals that it is working.
	CompanionProcess string `yaml:"companion_process"`

	// Detection thresholds.
	IdleThreshold     Duration `yaml:"idle_threshold"`
	GracePeriod       Duration `yaml:"grace_period"`
	WorkoutTrigger    Duration `yaml:"workout_trigger"`
	CPUThreshold      float64  `yaml:"cpu_threshold"`
	CPUSustain        Duration `yaml:"cpu_sustain"`
	CPUSampleInterval Duration `yaml:"cpu_sample_interval"`

	// Scheduling.
	PollInterval      Duration `yaml:"poll_interval"`
	IdleCheckInterval Duration `yaml:"idle_check_interval"`

	// Notification settings.
	Quiet      bool            `yaml:"quiet"`
	NtfyTopic  string          `yaml:"ntfy_topic"`
	NtfyServer string          `yaml:"ntfy_server"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`

	// Exercises suggested by workout prompts, cycled in order.
	Exercises []string `yaml:"exercises"`
}

// RateLimitConfig bounds how often workout prompts may be delivered.
type RateLimitConfig struct {
	Window      Duration `yaml:"window"`
	MaxMessages int      `yaml:"max_messages"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DirectApps: []string{"Claude", "ChatGPT"},
		IDEApps: []string{
			"Cursor", "Windsurf", "Zed", "Visual Studio Code",
			"WebStorm", "IntelliJ IDEA", "GoLand", "PyCharm", "Xcode",
		},
		TerminalApps: []string{
			"Terminal", "iTerm2", "Warp", "Ghostty", "Alacritty",
			"kitty", "WezTerm",
		},
		CompanionProcess:  "claude",
		IdleThreshold:     Duration{10 * time.Second},
		GracePeriod:       Duration{2 * time.Second},
		WorkoutTrigger:    Duration{30 * time.Second},
		CPUThreshold:      5.0,
		CPUSustain:        Duration{2 * time.Second},
		CPUSampleInterval: Duration{time.Second},
		PollInterval:      Duration{500 * time.Millisecond},
		IdleCheckInterval: Duration{500 * time.Millisecond},
		NtfyServer:        "https://ntfy.sh",
		RateLimit: RateLimitConfig{
			Window:      Duration{time.Minute},
			MaxMessages: 3,
		},
		Exercises: []string{
			"10 squats",
			"15 jumping jacks",
			"30 second plank",
			"10 desk push-ups",
			"neck rolls, 5 each way",
			"10 calf raises",
			"shoulder shrugs, 10 reps",
			"stand up and touch your toes",
		},
	}
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the config file location Load reads from. Useful for
// watching the file for changes.
func Path() string {
	return getConfigPath()
}

// getConfigPath returns the config file path.
func getConfigPath() string {
	if path := os.Getenv("VIBEBREAK_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vibebreak", "config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "vibebreak", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - the config path comes from trusted sources (env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration overrides from environment variables.
func loadFromEnv(cfg *Config) error {
	if topic := os.Getenv("VIBEBREAK_TOPIC"); topic != "" {
		cfg.NtfyTopic = topic
	}

	if server := os.Getenv("VIBEBREAK_SERVER"); server != "" {
		cfg.NtfyServer = server
	}

	if pattern := os.Getenv("VIBEBREAK_COMPANION_PROCESS"); pattern != "" {
		cfg.CompanionProcess = pattern
	}

	durations := []struct {
		env    string
		target *Duration
	}{
		{"VIBEBREAK_IDLE_THRESHOLD", &cfg.IdleThreshold},
		{"VIBEBREAK_GRACE_PERIOD", &cfg.GracePeriod},
		{"VIBEBREAK_WORKOUT_TRIGGER", &cfg.WorkoutTrigger},
		{"VIBEBREAK_POLL_INTERVAL", &cfg.PollInterval},
	}
	for _, d := range durations {
		raw := os.Getenv(d.env)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		d.target.Duration = parsed
	}

	if threshold := os.Getenv("VIBEBREAK_CPU_THRESHOLD"); threshold != "" {
		parsed, err := strconv.ParseFloat(threshold, 64)
		if err != nil {
			return fmt.Errorf("invalid VIBEBREAK_CPU_THRESHOLD: %w", err)
		}
		cfg.CPUThreshold = parsed
	}

	if quiet := os.Getenv("VIBEBREAK_QUIET"); quiet != "" {
		switch quiet {
		case "true", "1", "yes":
			cfg.Quiet = true
		case "false", "0", "no":
			cfg.Quiet = false
		default:
			return fmt.Errorf("invalid VIBEBREAK_QUIET value: %q (use true/false)", quiet)
		}
	}

	return nil
}

// Validate rejects configurations the monitor cannot run with.
func (c *Config) Validate() error {
	if c.IdleThreshold.Duration <= 0 {
		return fmt.Errorf("idle_threshold must be positive")
	}
	if c.GracePeriod.Duration < 0 {
		return fmt.Errorf("grace_period must not be negative")
	}
	if c.WorkoutTrigger.Duration <= 0 {
		return fmt.Errorf("workout_trigger must be positive")
	}
	if c.CPUThreshold <= 0 || c.CPUThreshold > 100 {
		return fmt.Errorf("cpu_threshold must be in (0, 100]")
	}
	if c.CPUSustain.Duration < 0 {
		return fmt.Errorf("cpu_sustain must not be negative")
	}
	if c.CPUSampleInterval.Duration <= 0 {
		return fmt.Errorf("cpu_sample_interval must be positive")
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.IdleCheckInterval.Duration <= 0 {
		return fmt.Errorf("idle_check_interval must be positive")
	}
	if c.CompanionProcess == "" {
		return fmt.Errorf("companion_process must not be empty")
	}
	if c.RateLimit.MaxMessages < 0 {
		return fmt.Errorf("rate_limit.max_messages must be non-negative")
	}
	if c.RateLimit.Window.Duration < 0 {
		return fmt.Errorf("rate_limit.window must be non-negative")
	}
	return nil
}
