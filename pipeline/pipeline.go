package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trendwave-pipeline/01_topics"
	"trendwave-pipeline/02_assets"
	"trendwave-pipeline/03_audio"
	"trendwave-pipeline/04_captions"
	"trendwave-pipeline/05_render"
	"trendwave-pipeline/06_metadata"
	"trendwave-pipeline/07_upload"
	"trendwave-pipeline/config"
	"trendwave-pipeline/types"

	"github.com/google/uuid"
)

// SceneAssembler builds one segment file per scene
type SceneAssembler interface {
	Assemble(ctx context.Context, scene types.Scene, index int, isFinal bool, workDir string) (*types.Segment, error)
}

// Concatenator joins segments into the final artifact
type Concatenator interface {
	Run(ctx context.Context, segments []*types.Segment, outFile string) (time.Duration, error)
}

// Uploader publishes an artifact
type Uploader interface {
	Upload(ctx context.Context, videoFile string, meta *types.UploadMetadata) (*upload.Result, error)
}

// Stages are the collaborators a Driver runs. A nil Uploader disables uploads.
type Stages struct {
	Topics    *topics.Source
	Assembler SceneAssembler
	Renderer  Concatenator
	Metadata  *metadata.Generator
	Uploader  Uploader
	Confirmer Confirmer
}

// DefaultStages wires the ffmpeg, TTS, Pexels and YouTube backed stages
func DefaultStages(cfg *config.Config, confirm Confirmer) (Stages, error) {
	meta, err := metadata.New(cfg)
	if err != nil {
		return Stages{}, err
	}
	comp := captions.New(cfg)
	if comp.UsingFallback() {
		log.Println("[captions] ⚠️  Using the built-in bitmap font")
	}
	enc := render.NewFFmpeg(cfg)
	st := Stages{
		Topics:    topics.New(cfg),
		Assembler: render.NewAssembler(cfg, assets.New(cfg), audio.New(cfg), audio.FFProbe{}, comp, enc),
		Renderer:  render.New(cfg, enc),
		Metadata:  meta,
		Confirmer: confirm,
	}
	if cfg.Upload.Enabled {
		st.Uploader = upload.New(cfg)
	}
	return st, nil
}

// Report summarises one pipeline run
type Report struct {
	RunID  string
	Topics []*types.TopicRun
}

// Driver runs the daily pipeline over today's topics
type Driver struct {
	cfg *config.Config
	st  Stages
	now func() time.Time
}

// New creates a new Driver
func New(cfg *config.Config, st Stages) *Driver {
	return &Driver{cfg: cfg, st: st, now: time.Now}
}

// Run produces an artifact for every topic dated on today. The first error
// aborts the run; artifacts already written stay on disk.
func (d *Driver) Run(ctx context.Context, today time.Time) (*Report, error) {
	report := &Report{RunID: uuid.NewString()[:8]}
	log.Printf("🎬 TrendWave pipeline starting — Run ID: %s (%s)", report.RunID, today.Format(topics.DateLayout))

	selected, err := d.st.Topics.Today(today)
	if err != nil {
		return report, fmt.Errorf("select topics: %w", err)
	}
	if len(selected) == 0 {
		log.Printf("No topics for today (%s)", today.Format(topics.DateLayout))
		return report, nil
	}

	for _, dir := range []string{d.cfg.Paths.Output, d.cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return report, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	for i, topic := range selected {
		log.Printf("\n━━━ TOPIC %d/%d: %s ━━━", i+1, len(selected), topic.Title)
		if len(topic.Scenes) == 0 {
			log.Printf("⚠️  %q has no scenes, skipping", topic.Title)
			continue
		}
		run := &types.TopicRun{
			RunID:     report.RunID,
			Topic:     topic.Title,
			StartedAt: d.now().UTC().Format(time.RFC3339),
		}
		report.Topics = append(report.Topics, run)

		err := d.runTopic(ctx, today, topic, run)
		run.CompletedAt = d.now().UTC().Format(time.RFC3339)
		if err != nil {
			run.Error = err.Error()
		}
		d.saveState(run)
		if err != nil {
			return report, fmt.Errorf("topic %q: %w", topic.Title, err)
		}
	}

	log.Printf("✅ Pipeline complete — %d topic(s)", len(report.Topics))
	return report, nil
}

func (d *Driver) runTopic(ctx context.Context, today time.Time, topic types.Topic, run *types.TopicRun) error {
	workDir, err := os.MkdirTemp(d.cfg.Paths.Temp, "trendwave-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Printf("Warning: could not remove %s: %v", workDir, err)
		}
	}()

	last := len(topic.Scenes) - 1
	for i, scene := range topic.Scenes {
		seg, err := d.st.Assembler.Assemble(ctx, scene, i, i == last, workDir)
		if err != nil {
			return err
		}
		run.Segments = append(run.Segments, seg)
	}

	artifact := filepath.Join(d.cfg.Paths.Output, topics.ArtifactName(today, topic.Title))
	total, err := d.st.Renderer.Run(ctx, run.Segments, artifact)
	if err != nil {
		return err
	}
	run.Artifact = artifact
	run.DurationSec = total.Seconds()

	if d.st.Uploader == nil || d.st.Confirmer == nil {
		run.UploadSkipped = true
		return nil
	}
	ok, err := d.st.Confirmer.Confirm(ctx, artifact)
	if err != nil {
		return fmt.Errorf("confirm upload: %w", err)
	}
	if !ok {
		log.Printf("[upload] Skipped %s", artifact)
		run.UploadSkipped = true
		return nil
	}

	meta, err := d.st.Metadata.Run(topic)
	if err != nil {
		return err
	}
	run.Metadata = meta

	res, err := d.st.Uploader.Upload(ctx, artifact, meta)
	if err != nil {
		return err
	}
	run.YouTubeID = res.ID
	run.YouTubeURL = res.URL

	if _, err := upload.LogUpload(res, artifact, d.cfg.Paths.Logs, meta); err != nil {
		log.Printf("Warning: could not write upload log: %v", err)
	}
	return nil
}

func (d *Driver) saveState(run *types.TopicRun) {
	name := fmt.Sprintf("run_%s_%s.json", run.RunID, strings.ToLower(topics.SanitizeTitle(run.Topic)))
	saveJSON(filepath.Join(d.cfg.Paths.Logs, name), run)
}

func saveJSON(path string, v interface{}) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("Warning: could not create %s: %v", filepath.Dir(path), err)
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Warning: could not marshal JSON for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: could not save %s: %v", path, err)
	}
}
