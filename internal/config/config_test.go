package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Workforce.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workforce.Workers)
	}
	if cfg.Workforce.MaxRecoveryAttempts != 3 {
		t.Errorf("MaxRecoveryAttempts = %d, want 3", cfg.Workforce.MaxRecoveryAttempts)
	}
	if cfg.Workforce.Policy != "round_robin" {
		t.Errorf("Policy = %q, want round_robin", cfg.Workforce.Policy)
	}
	if cfg.Workforce.TaskTimeout != 5*time.Minute {
		t.Errorf("TaskTimeout = %v, want 5m", cfg.Workforce.TaskTimeout)
	}
	if !cfg.Trace.Enabled {
		t.Error("Trace.Enabled = false, want true")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
anthropic:
  model: claude-sonnet-4-20250514
workforce:
  workers: 4
  max_recovery_attempts: 1
  task_timeout: 30s
  policy: random
trace:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", cfg.Anthropic.Model)
	}
	if cfg.Workforce.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workforce.Workers)
	}
	if cfg.Workforce.MaxRecoveryAttempts != 1 {
		t.Errorf("MaxRecoveryAttempts = %d, want 1", cfg.Workforce.MaxRecoveryAttempts)
	}
	if cfg.Workforce.TaskTimeout != 30*time.Second {
		t.Errorf("TaskTimeout = %v, want 30s", cfg.Workforce.TaskTimeout)
	}
	if cfg.Workforce.Policy != "random" {
		t.Errorf("Policy = %q, want random", cfg.Workforce.Policy)
	}
	if cfg.Trace.Enabled {
		t.Error("Trace.Enabled = true, want false")
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("anthropic:\n  api_key: sk-ant-test\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Workforce.Workers != 2 {
		t.Errorf("Workers = %d, want default 2", cfg.Workforce.Workers)
	}
	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want default 4096", cfg.Anthropic.MaxTokens)
	}
}

func TestNormalizeClampsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
workforce:
  workers: 0
  max_recovery_attempts: -2
  policy: fastest_first
  event_buffer: -1
anthropic:
  max_tokens: -100
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Workforce.Workers != 1 {
		t.Errorf("Workers = %d, want clamped to 1", cfg.Workforce.Workers)
	}
	if cfg.Workforce.MaxRecoveryAttempts != 0 {
		t.Errorf("MaxRecoveryAttempts = %d, want clamped to 0", cfg.Workforce.MaxRecoveryAttempts)
	}
	if cfg.Workforce.Policy != "round_robin" {
		t.Errorf("Policy = %q, want fallback round_robin", cfg.Workforce.Policy)
	}
	if cfg.Workforce.EventBuffer != 0 {
		t.Errorf("EventBuffer = %d, want clamped to 0", cfg.Workforce.EventBuffer)
	}
	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want fallback 4096", cfg.Anthropic.MaxTokens)
	}
}

func TestExpandEnvInAPIKey(t *testing.T) {
	t.Setenv("TEST_TW_KEY", "sk-ant-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("anthropic:\n  api_key: ${TEST_TW_KEY}\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Anthropic.APIKey)
	}
}
