package render

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"trendwave-pipeline/02_assets"
	"trendwave-pipeline/03_audio"
	"trendwave-pipeline/04_captions"
	"trendwave-pipeline/config"
	"trendwave-pipeline/types"
)

// AssetSource resolves a search keyword to a local clip
type AssetSource interface {
	Fetch(ctx context.Context, keyword string) assets.Result
}

// Assembler turns one scene into a captioned, narrated segment file
type Assembler struct {
	cfg        *config.Config
	assets     AssetSource
	synth      audio.Synthesizer
	probe      audio.Prober
	compositor *captions.Compositor
	encoder    Encoder
}

// NewAssembler creates a new scene Assembler
func NewAssembler(cfg *config.Config, src AssetSource, synth audio.Synthesizer, probe audio.Prober, comp *captions.Compositor, enc Encoder) *Assembler {
	return &Assembler{
		cfg:        cfg,
		assets:     src,
		synth:      synth,
		probe:      probe,
		compositor: comp,
		encoder:    enc,
	}
}

// Assemble narrates, sources and captions scene number index. Narration or
// encoding failures are returned; a missing clip is not an error.
func (a *Assembler) Assemble(ctx context.Context, scene types.Scene, index int, isFinal bool, workDir string) (*types.Segment, error) {
	seg := &types.Segment{
		Index:     index,
		Text:      scene.Text,
		Search:    scene.Search,
		IsFinal:   isFinal,
		AudioFile: filepath.Join(workDir, fmt.Sprintf("voice_%d.mp3", index)),
		File:      filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", index)),
	}

	dur, err := audio.Narrate(ctx, a.synth, a.probe, scene.Text, a.cfg.Audio.Language, seg.AudioFile)
	if err != nil {
		return nil, fmt.Errorf("scene %d narration: %w", index, err)
	}
	seg.AudioDuration = dur
	seg.Duration = dur + a.cfg.TrailingPad()

	if res := a.assets.Fetch(ctx, scene.Search); res.Found() {
		seg.VisualFile = res.Path
	} else {
		seg.Placeholder = true
	}

	overlay := a.compositor.Overlay(scene.Text, isFinal)
	job := SegmentJob{
		VisualFile: seg.VisualFile,
		AudioFile:  seg.AudioFile,
		Duration:   seg.Duration,
		Overlay:    overlay,
		OutFile:    seg.File,
	}
	if err := a.encoder.EncodeSegment(ctx, job); err != nil {
		return nil, fmt.Errorf("scene %d encode: %w", index, err)
	}

	visual := seg.VisualFile
	if seg.Placeholder {
		visual = "placeholder"
	}
	log.Printf("[render] Scene %d: %.2fs (%s, final=%v) → %s", index, seg.Duration.Seconds(), visual, isFinal, seg.File)
	return seg, nil
}
