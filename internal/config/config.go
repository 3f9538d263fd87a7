package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Poller   PollerConfig   `yaml:"poller"`
	Whisper  WhisperConfig  `yaml:"whisper"`
	LLM      LLMConfig      `yaml:"llm"`
	Discord  DiscordConfig  `yaml:"discord"`
	Database DatabaseConfig `yaml:"database"`
	Recap    RecapConfig    `yaml:"recap"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Scripts  []string       `yaml:"scripts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PathsConfig struct {
	Upload   string `yaml:"upload"`
	Sessions string `yaml:"sessions"`
	Archive  string `yaml:"archive"`
	Scripts  string `yaml:"scripts"`
}

type PollerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type WhisperConfig struct {
	BinaryPath  string  `yaml:"binary_path"`
	Model       string  `yaml:"model"`
	Threads     int     `yaml:"threads"`
	Language    string  `yaml:"language"`
	ComputeType string  `yaml:"compute_type"`
	BatchSize   int     `yaml:"batch_size"`
	BeamSize    int     `yaml:"beam_size"`
	ChunkSize   int     `yaml:"chunk_size"`
	VADMethod   string  `yaml:"vad_method"`
	VADOnset    float64 `yaml:"vad_onset"`
	VADOffset   float64 `yaml:"vad_offset"`
}

type LLMConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	OllamaURL  string `yaml:"ollama_url"`
	InputCost  string `yaml:"input_cost"`
	OutputCost string `yaml:"output_cost"`
	Prompt     string `yaml:"prompt"`
}

type DiscordConfig struct {
	WebhookURL   string `yaml:"webhook_url"`
	MessageLimit int    `yaml:"message_limit"`
	PauseMillis  int    `yaml:"pause_millis"`
}

type DatabaseConfig struct {
	Path       string `yaml:"path"`
	SpaceSaver bool   `yaml:"space_saver"`
}

type RecapConfig struct {
	ExportDocx bool `yaml:"export_docx"`
}

type CleanupConfig struct {
	ArchiveZip  bool `yaml:"archive_zip"`
	DeleteAudio bool `yaml:"delete_audio"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Paths.Upload == "" {
		return fmt.Errorf("paths.upload is required")
	}
	if c.Paths.Sessions == "" {
		return fmt.Errorf("paths.sessions is required")
	}
	if c.Whisper.BinaryPath == "" {
		return fmt.Errorf("whisper.binary_path is required")
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	switch c.LLM.Provider {
	case "google", "anthropic", "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider)
		}
	case "ollama":
		// self-hosted, no key needed
	default:
		return fmt.Errorf("llm.provider %q must be one of google, anthropic, openai, ollama", c.LLM.Provider)
	}
	if c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url is required")
	}

	if c.Paths.Archive == "" {
		c.Paths.Archive = "data/archive"
	}
	if c.Paths.Scripts == "" {
		c.Paths.Scripts = "data/scripts"
	}
	if c.Poller.IntervalSeconds == 0 {
		c.Poller.IntervalSeconds = 30
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "small"
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = "en"
	}
	if c.Whisper.ComputeType == "" {
		c.Whisper.ComputeType = "int8"
	}
	if c.Whisper.BatchSize == 0 {
		c.Whisper.BatchSize = 16
	}
	if c.Whisper.BeamSize == 0 {
		c.Whisper.BeamSize = 5
	}
	if c.Whisper.VADMethod == "" {
		c.Whisper.VADMethod = "silero"
	}
	if c.Whisper.VADOnset == 0 {
		c.Whisper.VADOnset = 0.5
	}
	if c.Whisper.VADOffset == 0 {
		c.Whisper.VADOffset = 0.363
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-flash"
	}
	if c.Discord.MessageLimit == 0 {
		c.Discord.MessageLimit = 2000
	}
	if c.Discord.PauseMillis == 0 {
		c.Discord.PauseMillis = 1000
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/questlog.db"
	}

	return nil
}
