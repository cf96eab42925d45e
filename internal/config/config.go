// Package config handles configuration loading for taskweave.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for taskweave.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Workforce WorkforceConfig `mapstructure:"workforce"`
	Trace     TraceConfig     `mapstructure:"trace"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	AWSBedrock bool   `mapstructure:"aws_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// WorkforceConfig holds supervisor and worker settings.
type WorkforceConfig struct {
	// Workers is the number of leaf workers staffed at startup.
	Workers int `mapstructure:"workers"`
	// MaxRecoveryAttempts bounds recovery generations per task lineage.
	MaxRecoveryAttempts int `mapstructure:"max_recovery_attempts"`
	// TaskTimeout bounds a single worker oracle call. Zero disables it.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// Policy selects the assignment policy: round_robin or random.
	Policy string `mapstructure:"policy"`
	// EventBuffer sizes the supervisor's event channel.
	EventBuffer int `mapstructure:"event_buffer"`
}

// TraceConfig holds run trace persistence settings.
type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	LogFile string `mapstructure:"log_file"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (TASKWEAVE_*, ANTHROPIC_API_KEY)
// 2. Project config (.taskweave.yaml in current directory or a parent)
// 3. User config (~/.config/taskweave/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TASKWEAVE")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "TASKWEAVE_MODEL")
	v.BindEnv("workforce.workers", "TASKWEAVE_WORKERS")
	v.BindEnv("debug.log_file", "TASKWEAVE_DEBUG_LOG")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.normalize()

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.normalize()

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.aws_bedrock", cfg.Anthropic.AWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("workforce.workers", cfg.Workforce.Workers)
	v.Set("workforce.max_recovery_attempts", cfg.Workforce.MaxRecoveryAttempts)
	v.Set("workforce.task_timeout", cfg.Workforce.TaskTimeout.String())
	v.Set("workforce.policy", cfg.Workforce.Policy)
	v.Set("workforce.event_buffer", cfg.Workforce.EventBuffer)
	v.Set("trace.enabled", cfg.Trace.Enabled)
	v.Set("trace.db_path", cfg.Trace.DBPath)
	v.Set("debug.log_file", cfg.Debug.LogFile)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.aws_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("workforce.workers", 2)
	v.SetDefault("workforce.max_recovery_attempts", 3)
	v.SetDefault("workforce.task_timeout", "5m")
	v.SetDefault("workforce.policy", "round_robin")
	v.SetDefault("workforce.event_buffer", 64)

	v.SetDefault("trace.enabled", true)
	v.SetDefault("trace.db_path", "")

	v.SetDefault("debug.log_file", "")
}

// normalize clamps out-of-range values to something workable.
func (cfg *Config) normalize() {
	if cfg.Workforce.Workers < 1 {
		cfg.Workforce.Workers = 1
	}
	if cfg.Workforce.MaxRecoveryAttempts < 0 {
		cfg.Workforce.MaxRecoveryAttempts = 0
	}
	if cfg.Workforce.TaskTimeout < 0 {
		cfg.Workforce.TaskTimeout = 0
	}
	if cfg.Workforce.EventBuffer < 0 {
		cfg.Workforce.EventBuffer = 0
	}
	switch cfg.Workforce.Policy {
	case "round_robin", "random":
	default:
		cfg.Workforce.Policy = "round_robin"
	}
	if cfg.Anthropic.MaxTokens <= 0 {
		cfg.Anthropic.MaxTokens = 4096
	}
}

// getUserConfigDir returns the XDG config directory for taskweave.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskweave")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskweave")
	}
	return filepath.Join(home, ".config", "taskweave")
}

// findProjectConfig searches for .taskweave.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".taskweave.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxTokens: 4096,
		},
		Workforce: WorkforceConfig{
			Workers:             2,
			MaxRecoveryAttempts: 3,
			TaskTimeout:         5 * time.Minute,
			Policy:              "round_robin",
			EventBuffer:         64,
		},
		Trace: TraceConfig{
			Enabled: true,
		},
	}
}
