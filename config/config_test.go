package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PEXELS_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.Width != 1080 || cfg.Video.Height != 1920 {
		t.Errorf("size = %dx%d, want 1080x1920", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.TrailingPad() != 800*time.Millisecond {
		t.Errorf("trailing pad = %v, want 800ms", cfg.TrailingPad())
	}
	if cfg.Upload.TitleMaxChars != 100 {
		t.Errorf("title max = %d, want 100", cfg.Upload.TitleMaxChars)
	}
}

func TestLoadOverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
video:
  width: 720
  height: 1280
assets:
  timeout: 5s
paths:
  output: out
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PEXELS_API_KEY", "secret")
	t.Setenv("TTS_COMMAND", "my-tts")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.Width != 720 || cfg.Video.Height != 1280 {
		t.Errorf("size = %dx%d, want 720x1280", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.Video.FPS != 24 {
		t.Errorf("fps = %d, want default 24", cfg.Video.FPS)
	}
	if cfg.Assets.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Assets.Timeout)
	}
	if cfg.Paths.Output != "out" || cfg.Paths.Assets != "assets_cache" {
		t.Errorf("paths = %+v", cfg.Paths)
	}
	if cfg.Assets.APIKey != "secret" || cfg.Audio.TTSCommand != "my-tts" {
		t.Errorf("env not applied: key=%q tts=%q", cfg.Assets.APIKey, cfg.Audio.TTSCommand)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Video.Width = 0 }},
		{"zero fps", func(c *Config) { c.Video.FPS = 0 }},
		{"negative pad", func(c *Config) { c.Video.TrailingPadSec = -1 }},
		{"zero key length", func(c *Config) { c.Assets.KeyMaxChars = 0 }},
		{"zero title length", func(c *Config) { c.Upload.TitleMaxChars = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.Assets = filepath.Join(root, "a")
	cfg.Paths.Output = filepath.Join(root, "o")
	cfg.Paths.Logs = filepath.Join(root, "l")
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{cfg.Paths.Assets, cfg.Paths.Output, cfg.Paths.Logs} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s not created", d)
		}
	}
}
