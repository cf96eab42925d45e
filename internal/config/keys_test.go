package config

import (
	"errors"
	"testing"
)

func TestGetAPIKeyPrefersEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env-key")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-config-key"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey() error = %v", err)
	}
	if key != "sk-ant-env-key" {
		t.Errorf("GetAPIKey() = %q, want env value", key)
	}
	if src := GetAPIKeySource(cfg); src != KeySourceEnv {
		t.Errorf("GetAPIKeySource() = %q, want %q", src, KeySourceEnv)
	}
}

func TestGetAPIKeyFromConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-config-key"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey() error = %v", err)
	}
	if key != "sk-ant-config-key" {
		t.Errorf("GetAPIKey() = %q, want config value", key)
	}
	if src := GetAPIKeySource(cfg); src != KeySourceConfig {
		t.Errorf("GetAPIKeySource() = %q, want %q", src, KeySourceConfig)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(Default()); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("GetAPIKey() error = %v, want ErrNoAPIKey", err)
	}
	if src := GetAPIKeySource(Default()); src != KeySourceNone {
		t.Errorf("GetAPIKeySource() = %q, want %q", src, KeySourceNone)
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "sk-ant-REDACTED", false},
		{"empty", "", true},
		{"wrong prefix", "sk-openai-abcdefghijklmnop", true},
		{"too short", "sk-ant-abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("MaskAPIKey(\"\") = %q", got)
	}
	if got := MaskAPIKey("sk-ant-short"); got != "***" {
		t.Errorf("MaskAPIKey(short) = %q", got)
	}
	if got := MaskAPIKey("sk-ant-api03-abcdefgh1234"); got != "sk-ant-...1234" {
		t.Errorf("MaskAPIKey(long) = %q", got)
	}
}
