package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		Paths: PathsConfig{
			Upload:   "data/upload",
			Sessions: "data/sessions",
		},
		Whisper: WhisperConfig{
			BinaryPath: "./whisperx",
		},
		LLM: LLMConfig{
			Provider: "google",
			APIKey:   "test-key",
		},
		Discord: DiscordConfig{
			WebhookURL: "https://discord.com/api/webhooks/1/abc",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing upload path",
			mutate:  func(c *Config) { c.Paths.Upload = "" },
			wantErr: true,
		},
		{
			name:    "missing whisper binary",
			mutate:  func(c *Config) { c.Whisper.BinaryPath = "" },
			wantErr: true,
		},
		{
			name:    "missing api key for cloud provider",
			mutate:  func(c *Config) { c.LLM.APIKey = "" },
			wantErr: true,
		},
		{
			name: "ollama needs no api key",
			mutate: func(c *Config) {
				c.LLM.Provider = "ollama"
				c.LLM.APIKey = ""
			},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.LLM.Provider = "mistral" },
			wantErr: true,
		},
		{
			name:    "missing webhook",
			mutate:  func(c *Config) { c.Discord.WebhookURL = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Poller.IntervalSeconds != 30 {
		t.Errorf("IntervalSeconds = %d, want 30", cfg.Poller.IntervalSeconds)
	}
	if cfg.Whisper.Model != "small" {
		t.Errorf("Whisper.Model = %q, want %q", cfg.Whisper.Model, "small")
	}
	if cfg.Whisper.VADMethod != "silero" {
		t.Errorf("VADMethod = %q, want %q", cfg.Whisper.VADMethod, "silero")
	}
	if cfg.Discord.MessageLimit != 2000 {
		t.Errorf("MessageLimit = %d, want 2000", cfg.Discord.MessageLimit)
	}
	if cfg.Database.Path != "data/questlog.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "data/questlog.db")
	}
}

func TestLoad(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	content := `
paths:
  upload: "data/upload"
  sessions: "data/sessions"

whisper:
  binary_path: "./whisperx"
  model: "large-v3"
  language: "en"

llm:
  provider: "anthropic"
  model: "claude-sonnet-4-5"
  api_key: "sk-test"
  input_cost: "3.00"
  output_cost: "15.00"

discord:
  webhook_url: "https://discord.com/api/webhooks/1/abc"

logging:
  level: "info"
`

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Whisper.Model != "large-v3" {
		t.Errorf("Whisper.Model = %q, want %q", cfg.Whisper.Model, "large-v3")
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "anthropic")
	}
	if cfg.LLM.InputCost != "3.00" {
		t.Errorf("LLM.InputCost = %q, want %q", cfg.LLM.InputCost, "3.00")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	if _, err := Load("nonexistent.yaml"); err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}
