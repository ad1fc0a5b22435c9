package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Video    VideoConfig    `yaml:"video"`
	Assets   AssetsConfig   `yaml:"assets"`
	Audio    AudioConfig    `yaml:"audio"`
	Captions CaptionsConfig `yaml:"captions"`
	Upload   UploadConfig   `yaml:"upload"`
	Paths    PathsConfig    `yaml:"paths"`
}

type VideoConfig struct {
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	FPS              int     `yaml:"fps"`
	Codec            string  `yaml:"codec"`
	TrailingPadSec   float64 `yaml:"trailing_pad_sec"`
	PlaceholderColor string  `yaml:"placeholder_color"`
}

type AssetsConfig struct {
	SearchURL         string        `yaml:"search_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	KeyMaxChars       int           `yaml:"key_max_chars"`
	APIKey            string        `yaml:"-"`
}

type AudioConfig struct {
	Language   string `yaml:"language"`
	TTSCommand string `yaml:"tts_command"`
	Voice      string `yaml:"voice"`
}

type CaptionsConfig struct {
	MainFont      string `yaml:"main_font"`
	SubFont       string `yaml:"sub_font"`
	MainFontSize  int    `yaml:"main_font_size"`
	SubFontSize   int    `yaml:"sub_font_size"`
	SubscribeText string `yaml:"subscribe_text"`
}

type UploadConfig struct {
	Enabled             bool     `yaml:"enabled"`
	ClientSecrets       string   `yaml:"client_secrets"`
	TokenFile           string   `yaml:"token_file"`
	TitleMaxChars       int      `yaml:"title_max_chars"`
	DescriptionTemplate string   `yaml:"description_template"`
	Tags                []string `yaml:"tags"`
	CategoryID          string   `yaml:"category_id"`
	Visibility          string   `yaml:"visibility"`
	MadeForKids         bool     `yaml:"made_for_kids"`
	ChunkSizeMB         int      `yaml:"chunk_size_mb"`
}

type PathsConfig struct {
	Library string `yaml:"library"`
	Assets  string `yaml:"assets"`
	Output  string `yaml:"output"`
	Logs    string `yaml:"logs"`
	Temp    string `yaml:"temp"`
}

// Default returns the reference sizing and directory layout used when a key
// is missing from config.yaml.
func Default() *Config {
	return &Config{
		Video: VideoConfig{
			Width:            1080,
			Height:           1920,
			FPS:              24,
			Codec:            "libx264",
			TrailingPadSec:   0.8,
			PlaceholderColor: "#19192d",
		},
		Assets: AssetsConfig{
			SearchURL:         "https://api.pexels.com/videos/search",
			Timeout:           15 * time.Second,
			RequestsPerMinute: 60,
			KeyMaxChars:       20,
		},
		Audio: AudioConfig{
			Language: "en",
		},
		Captions: CaptionsConfig{
			MainFont:      "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
			SubFont:       "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			MainFontSize:  80,
			SubFontSize:   50,
			SubscribeText: "SUBSCRIBE TO TRENDWAVE",
		},
		Upload: UploadConfig{
			Enabled:             true,
			ClientSecrets:       "client_secrets.json",
			TokenFile:           "youtube_token.json",
			TitleMaxChars:       100,
			DescriptionTemplate: "{{.Title}}\n\nJoin TrendWave for daily mysteries and tech updates! #Shorts #Viral",
			Tags:                []string{"Shorts", "Viral", "TrendWave", "Mystery"},
			CategoryID:          "27",
			Visibility:          "public",
			ChunkSizeMB:         8,
		},
		Paths: PathsConfig{
			Library: "viral_library.json",
			Assets:  "assets_cache",
			Output:  "daily_outputs",
			Logs:    "logs",
			Temp:    os.TempDir(),
		},
	}
}

// Load reads config.yaml over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overlays secrets and per-machine overrides from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PEXELS_API_KEY"); v != "" {
		c.Assets.APIKey = v
	}
	if v := os.Getenv("TTS_COMMAND"); v != "" {
		c.Audio.TTSCommand = v
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Video.Width <= 0 || c.Video.Height <= 0:
		return fmt.Errorf("video size must be positive, got %dx%d", c.Video.Width, c.Video.Height)
	case c.Video.FPS <= 0:
		return fmt.Errorf("video fps must be positive, got %d", c.Video.FPS)
	case c.Video.TrailingPadSec < 0:
		return fmt.Errorf("video trailing_pad_sec must not be negative")
	case c.Assets.KeyMaxChars <= 0:
		return fmt.Errorf("assets key_max_chars must be positive")
	case c.Upload.TitleMaxChars <= 0:
		return fmt.Errorf("upload title_max_chars must be positive")
	}
	return nil
}

// EnsureDirs creates the cache, output and log directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.Assets, c.Paths.Output, c.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// TrailingPad is the silence kept after narration so a segment does not cut
// its audio off abruptly.
func (c *Config) TrailingPad() time.Duration {
	return time.Duration(c.Video.TrailingPadSec * float64(time.Second))
}
