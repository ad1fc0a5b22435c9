package audio

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"trendwave-pipeline/config"
)

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"2.500000\n", 2500 * time.Millisecond, false},
		{"  10 ", 10 * time.Second, false},
		{"N/A", 0, true},
		{"", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSeconds(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeconds(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSeconds(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func generatorWith(cmd string, onPath ...string) *Generator {
	cfg := config.Default()
	cfg.Audio.TTSCommand = cmd
	g := New(cfg)
	g.lookPath = func(name string) (string, error) {
		for _, p := range onPath {
			if p == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	return g
}

func TestEngineSelection(t *testing.T) {
	tests := []struct {
		name  string
		g     *Generator
		lang  string
		want  []string
		noEng bool
	}{
		{"configured", generatorWith("my-tts", "edge-tts"), "en", []string{"my-tts"}, false},
		{"python script", generatorWith("tts.py"), "en", []string{"python3", "tts.py"}, false},
		{"edge fallback", generatorWith("", "edge-tts", "gtts-cli"), "en", []string{"edge-tts"}, false},
		{"edge speaks fr", generatorWith("", "edge-tts", "gtts-cli"), "fr", []string{"edge-tts"}, false},
		{"no edge voice for lang", generatorWith("", "edge-tts", "gtts-cli"), "sw", []string{"gtts-cli"}, false},
		{"gtts fallback", generatorWith("", "gtts-cli"), "en", []string{"gtts-cli"}, false},
		{"nothing", generatorWith(""), "en", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.g.engine(tt.lang)
			if tt.noEng {
				if !errors.Is(err, ErrNoEngine) {
					t.Fatalf("err = %v, want ErrNoEngine", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("engine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	g := generatorWith("")
	got := g.args([]string{"gtts-cli"}, "Hello world", "en", "/tmp/v.mp3")
	want := []string{"--lang", "en", "--output", "/tmp/v.mp3", "Hello world"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("gtts args = %v", got)
	}
	got = g.args([]string{"python3", "tts.py"}, "Hi", "en", "o.mp3")
	want = []string{"tts.py", "--text", "Hi", "--lang", "en", "--output", "o.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("script args = %v", got)
	}
	got = g.args([]string{"edge-tts"}, "Hi", "en", "o.mp3")
	if got[1] != "en-US-GuyNeural" {
		t.Errorf("edge voice = %v", got)
	}

	g.cfg.Audio.Voice = "en-GB-RyanNeural"
	got = g.args([]string{"edge-tts"}, "Bonjour", "fr", "o.mp3")
	want = []string{"--voice", "fr-FR-HenriNeural", "--text", "Bonjour", "--write-media", "o.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("edge args for fr = %v", got)
	}
	got = g.args([]string{"edge-tts"}, "Hello", "en-GB", "o.mp3")
	if got[1] != "en-GB-RyanNeural" {
		t.Errorf("configured voice dropped for matching locale: %v", got)
	}
}

func TestVoiceFor(t *testing.T) {
	tests := []struct {
		lang, configured, want string
	}{
		{"en", "", "en-US-GuyNeural"},
		{"", "", "en-US-GuyNeural"},
		{"fr", "", "fr-FR-HenriNeural"},
		{"fr", "en-US-GuyNeural", "fr-FR-HenriNeural"},
		{"fr-CA", "fr-CA-AntoineNeural", "fr-CA-AntoineNeural"},
		{"de_DE", "", "de-DE-ConradNeural"},
		{"sw", "en-US-GuyNeural", ""},
	}
	for _, tt := range tests {
		if got := VoiceFor(tt.lang, tt.configured); got != tt.want {
			t.Errorf("VoiceFor(%q, %q) = %q, want %q", tt.lang, tt.configured, got, tt.want)
		}
	}
}

type stubSynth struct{ err error }

func (s stubSynth) Synthesize(context.Context, string, string, string) error { return s.err }

type stubProbe struct {
	d   time.Duration
	err error
}

func (s stubProbe) Duration(context.Context, string) (time.Duration, error) { return s.d, s.err }

func TestNarrate(t *testing.T) {
	ctx := context.Background()
	d, err := Narrate(ctx, stubSynth{}, stubProbe{d: 3 * time.Second}, "hi", "en", "x.mp3")
	if err != nil || d != 3*time.Second {
		t.Errorf("Narrate = %v, %v", d, err)
	}
	if _, err := Narrate(ctx, stubSynth{err: errors.New("boom")}, stubProbe{}, "hi", "en", "x.mp3"); err == nil {
		t.Error("expected synth error")
	}
	if _, err := Narrate(ctx, stubSynth{}, stubProbe{err: errors.New("probe")}, "hi", "en", "x.mp3"); err == nil {
		t.Error("expected probe error")
	}
}
