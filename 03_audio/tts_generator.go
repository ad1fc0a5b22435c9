package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"trendwave-pipeline/config"
)

// ErrNoEngine is returned when neither TTS_COMMAND nor a known engine is available
var ErrNoEngine = errors.New("no TTS engine found: set TTS_COMMAND or install edge-tts / gtts-cli")

// Synthesizer turns narration text into an audio file
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, outFile string) error
}

// Prober measures media duration
type Prober interface {
	Duration(ctx context.Context, file string) (time.Duration, error)
}

// Generator synthesizes narration by shelling out to a TTS command.
// Set TTS_COMMAND (or audio.tts_command) to a binary that accepts
//
//	--text "..." --output path/to/file.mp3
//
// If nothing is configured it falls back to edge-tts, then gtts-cli.
type Generator struct {
	cfg      *config.Config
	lookPath func(string) (string, error)
}

// New creates a new Generator
func New(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg, lookPath: exec.LookPath}
}

// Synthesize writes narration audio for text to outFile
func (g *Generator) Synthesize(ctx context.Context, text, lang, outFile string) error {
	engine, err := g.engine(lang)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, engine[0], g.args(engine, text, lang, outFile)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tts %s: %w", engine[0], err)
	}
	return nil
}

// engine resolves the command to run; the first element is the executable.
// edge-tts is only picked as a fallback when it has a voice for lang.
func (g *Generator) engine(lang string) ([]string, error) {
	if c := strings.TrimSpace(g.cfg.Audio.TTSCommand); c != "" {
		if strings.HasSuffix(c, ".py") {
			return []string{"python3", c}, nil
		}
		return []string{c}, nil
	}
	for _, name := range []string{"edge-tts", "gtts-cli"} {
		if name == "edge-tts" && VoiceFor(lang, g.cfg.Audio.Voice) == "" {
			continue
		}
		if _, err := g.lookPath(name); err == nil {
			log.Printf("[audio] Using %s as TTS engine (fallback)", name)
			return []string{name}, nil
		}
	}
	return nil, ErrNoEngine
}

func (g *Generator) args(engine []string, text, lang, outFile string) []string {
	switch engine[0] {
	case "edge-tts":
		voice := VoiceFor(lang, g.cfg.Audio.Voice)
		if voice == "" {
			voice = g.cfg.Audio.Voice
			if voice == "" {
				voice = edgeVoices["en"]
			}
			log.Printf("[audio] ⚠️  No edge-tts voice known for %q, using %s", lang, voice)
		}
		return []string{"--voice", voice, "--text", text, "--write-media", outFile}
	case "gtts-cli":
		return []string{"--lang", lang, "--output", outFile, text}
	}
	return append(engine[1:], "--text", text, "--lang", lang, "--output", outFile)
}

// edgeVoices is the edge-tts voice used for a language when audio.voice speaks another one
var edgeVoices = map[string]string{
	"en": "en-US-GuyNeural",
	"fr": "fr-FR-HenriNeural",
	"de": "de-DE-ConradNeural",
	"es": "es-ES-AlvaroNeural",
	"it": "it-IT-DiegoNeural",
	"pt": "pt-BR-AntonioNeural",
	"nl": "nl-NL-MaartenNeural",
	"hi": "hi-IN-MadhurNeural",
	"ja": "ja-JP-KeitaNeural",
	"ko": "ko-KR-InJoonNeural",
	"zh": "zh-CN-YunxiNeural",
}

// VoiceFor returns the edge-tts voice for lang: the configured voice when its
// locale speaks lang, otherwise the built-in voice for lang, or "" if none.
func VoiceFor(lang, configured string) string {
	base := langBase(lang)
	if base == "" {
		base = "en"
	}
	if configured != "" && langBase(configured) == base {
		return configured
	}
	return edgeVoices[base]
}

// langBase reduces "en-US", "en_GB" or "en-US-GuyNeural" to "en"
func langBase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	return s
}

// FFProbe measures durations with ffprobe
type FFProbe struct{}

// Duration returns the container duration of file
func (FFProbe) Duration(ctx context.Context, file string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", file, err)
	}
	return ParseSeconds(string(out))
}

// ParseSeconds converts ffprobe's decimal seconds into a Duration
func ParseSeconds(s string) (time.Duration, error) {
	var sec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &sec); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(s), err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("negative duration %f", sec)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// Narrate synthesizes text into outFile and measures the result
func Narrate(ctx context.Context, s Synthesizer, p Prober, text, lang, outFile string) (time.Duration, error) {
	if err := s.Synthesize(ctx, text, lang, outFile); err != nil {
		return 0, err
	}
	dur, err := p.Duration(ctx, outFile)
	if err != nil {
		return 0, fmt.Errorf("measure narration: %w", err)
	}
	log.Printf("[audio] %.2fs → %s", dur.Seconds(), outFile)
	return dur, nil
}
