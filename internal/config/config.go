package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration: a YAML file for tunables,
// environment variables for secrets.
type Config struct {
	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`

	OpenAI struct {
		APIKey       string `yaml:"api_key"`
		WhisperModel string `yaml:"whisper_model"`
		ChatModel    string `yaml:"chat_model"`
	} `yaml:"openai"`

	Storage struct {
		TempDir  string `yaml:"temp_dir"`
		Database string `yaml:"database"`
	} `yaml:"storage"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Limits struct {
		MaxRemoteSizeMB        int `yaml:"max_remote_size_mb"`
		TransferTimeoutSeconds int `yaml:"transfer_timeout_seconds"`
	} `yaml:"limits"`

	Drive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"drive"`

	Ops struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"ops"`

	Translation struct {
		Languages []string `yaml:"languages"`
	} `yaml:"translation"`
}

// Load reads the YAML file at path (a missing file just means defaults),
// applies environment overrides for secrets, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Secrets come from the environment when set, never the YAML file.
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.OpenAI.WhisperModel = "whisper-1"
	cfg.OpenAI.ChatModel = "gpt-4o-mini"
	cfg.Storage.TempDir = "downloads"
	cfg.Storage.Database = "data/sessions.db"
	cfg.Workers.Count = 4
	cfg.Cleanup.IntervalMinutes = 30
	cfg.Cleanup.MaxAgeHours = 2
	cfg.Limits.MaxRemoteSizeMB = 500
	cfg.Limits.TransferTimeoutSeconds = 600
	cfg.Drive.CredentialsFile = "credentials.json"
	cfg.Drive.TokenFile = "token.json"
	cfg.Drive.FolderName = "Transcripts"
	cfg.Ops.Host = "127.0.0.1"
	cfg.Ops.Port = 8090
	cfg.Translation.Languages = []string{"ru", "en", "hy"}
	return cfg
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required (BOT_TOKEN or telegram.token)")
	}
	if c.OpenAI.APIKey == "" {
		return errors.New("OpenAI API key is required (OPENAI_API_KEY or openai.api_key)")
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be positive, got %d", c.Workers.Count)
	}
	if c.Limits.MaxRemoteSizeMB <= 0 {
		return fmt.Errorf("limits.max_remote_size_mb must be positive, got %d", c.Limits.MaxRemoteSizeMB)
	}
	return nil
}
