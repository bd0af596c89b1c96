package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "tok")
	t.Setenv("OPENAI_API_KEY", "key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Storage.TempDir != "downloads" {
		t.Fatalf("TempDir = %q, want downloads", cfg.Storage.TempDir)
	}
	if cfg.Limits.MaxRemoteSizeMB != 500 {
		t.Fatalf("MaxRemoteSizeMB = %d, want 500", cfg.Limits.MaxRemoteSizeMB)
	}
	if got := cfg.Translation.Languages; len(got) != 3 || got[2] != "hy" {
		t.Fatalf("Languages = %v", got)
	}
}

func TestLoadFileValuesAndEnvOverride(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("OPENAI_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
telegram:
  token: file-token
storage:
  temp_dir: /tmp/scratch
workers:
  count: 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("Token = %q, env must override file", cfg.Telegram.Token)
	}
	if cfg.Storage.TempDir != "/tmp/scratch" {
		t.Fatalf("TempDir = %q", cfg.Storage.TempDir)
	}
	if cfg.Workers.Count != 2 {
		t.Fatalf("Workers.Count = %d", cfg.Workers.Count)
	}
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load succeeded without a telegram token")
	}
}
