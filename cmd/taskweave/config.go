package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskweave/taskweave/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify taskweave configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/taskweave/config.yaml
Project-specific overrides can be placed in .taskweave.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.aws_bedrock: %t\n", cfg.Anthropic.AWSBedrock)
	fmt.Printf("workforce.workers: %d\n", cfg.Workforce.Workers)
	fmt.Printf("workforce.max_recovery_attempts: %d\n", cfg.Workforce.MaxRecoveryAttempts)
	fmt.Printf("workforce.task_timeout: %s\n", cfg.Workforce.TaskTimeout)
	fmt.Printf("workforce.policy: %s\n", cfg.Workforce.Policy)
	fmt.Printf("trace.enabled: %t\n", cfg.Trace.Enabled)
	fmt.Printf("trace.db_path: %s\n", orDefault(cfg.Trace.DBPath, "(default)"))
	fmt.Printf("debug.log_file: %s\n", orDefault(cfg.Debug.LogFile, "(disabled)"))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.Itoa(cfg.Anthropic.MaxTokens), nil
	case "anthropic.aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.AWSBedrock), nil
	case "workforce.workers":
		return strconv.Itoa(cfg.Workforce.Workers), nil
	case "workforce.max_recovery_attempts":
		return strconv.Itoa(cfg.Workforce.MaxRecoveryAttempts), nil
	case "workforce.task_timeout":
		return cfg.Workforce.TaskTimeout.String(), nil
	case "workforce.policy":
		return cfg.Workforce.Policy, nil
	case "trace.enabled":
		return strconv.FormatBool(cfg.Trace.Enabled), nil
	case "trace.db_path":
		return cfg.Trace.DBPath, nil
	case "debug.log_file":
		return cfg.Debug.LogFile, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid max_tokens: %s", value)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Anthropic.AWSBedrock = b
	case "workforce.workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid worker count: %s", value)
		}
		cfg.Workforce.Workers = n
	case "workforce.max_recovery_attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid recovery attempts: %s", value)
		}
		cfg.Workforce.MaxRecoveryAttempts = n
	case "workforce.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Workforce.TaskTimeout = d
	case "workforce.policy":
		if value != "round_robin" && value != "random" {
			return fmt.Errorf("invalid policy: %s (want round_robin or random)", value)
		}
		cfg.Workforce.Policy = value
	case "trace.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Trace.Enabled = b
	case "trace.db_path":
		cfg.Trace.DBPath = value
	case "debug.log_file":
		cfg.Debug.LogFile = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
