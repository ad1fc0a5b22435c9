package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"trendwave-pipeline/04_captions"
	"trendwave-pipeline/config"
	"trendwave-pipeline/types"

	"golang.org/x/sync/errgroup"
)

// SegmentJob describes one segment encode
type SegmentJob struct {
	VisualFile string // empty selects the solid placeholder
	AudioFile  string
	Duration   time.Duration
	Overlay    *captions.Overlay
	OutFile    string
}

// Encoder is the video encode/compose collaborator
type Encoder interface {
	EncodeSegment(ctx context.Context, job SegmentJob) error
	Concat(ctx context.Context, files []string, outFile string) error
}

// Renderer joins a topic's segments into the final artifact
type Renderer struct {
	cfg     *config.Config
	encoder Encoder
}

// New creates a new Renderer
func New(cfg *config.Config, enc Encoder) *Renderer {
	return &Renderer{cfg: cfg, encoder: enc}
}

// Run concatenates segments in order into outFile and returns the total duration
func (r *Renderer) Run(ctx context.Context, segments []*types.Segment, outFile string) (time.Duration, error) {
	if len(segments) == 0 {
		return 0, fmt.Errorf("no segments to concatenate")
	}
	files := make([]string, len(segments))
	var total time.Duration
	for i, s := range segments {
		files[i] = s.File
		total += s.Duration
	}

	log.Printf("[render] Concatenating %d segment(s) → %s", len(files), outFile)
	if err := r.encoder.Concat(ctx, files, outFile); err != nil {
		return 0, fmt.Errorf("concatenate segments: %w", err)
	}
	log.Printf("[render] ✅ Final video ready: %s (%.1fs)", outFile, total.Seconds())
	return total, nil
}

// FFmpeg encodes segments by piping decoded frames through the caption
// compositor and back into a second ffmpeg process.
type FFmpeg struct {
	cfg *config.Config
}

// NewFFmpeg creates a new ffmpeg-backed Encoder
func NewFFmpeg(cfg *config.Config) *FFmpeg {
	return &FFmpeg{cfg: cfg}
}

// FrameCount is the number of frames needed to cover d at fps
func FrameCount(d time.Duration, fps int) int {
	return int(math.Ceil(d.Seconds() * float64(fps)))
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// decodeArgs produces raw RGBA frames at the target size on stdout. Clips are
// scaled to the frame height, center-cropped when wider, padded when narrower
// and looped when shorter than the segment.
func (f *FFmpeg) decodeArgs(job SegmentJob) []string {
	v := f.cfg.Video
	frames := strconv.Itoa(FrameCount(job.Duration, v.FPS))
	args := []string{"-hide_banner", "-loglevel", "error"}
	if job.VisualFile == "" {
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", v.PlaceholderColor, v.Width, v.Height, v.FPS),
		)
	} else {
		filter := fmt.Sprintf(
			"scale=-2:%d,crop=w='min(iw,%d)':h=%d,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1,fps=%d",
			v.Height, v.Width, v.Height, v.Width, v.Height, v.FPS,
		)
		args = append(args,
			"-stream_loop", "-1",
			"-i", job.VisualFile,
			"-an",
			"-vf", filter,
		)
	}
	return append(args,
		"-frames:v", frames,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

// encodeArgs reads raw frames from stdin and muxes them with the narration,
// padded with silence and cut to the segment duration.
func (f *FFmpeg) encodeArgs(job SegmentJob) []string {
	v := f.cfg.Video
	return []string{"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", v.Width, v.Height),
		"-r", strconv.Itoa(v.FPS),
		"-i", "pipe:0",
		"-i", job.AudioFile,
		"-map", "0:v",
		"-map", "1:a",
		"-af", "apad",
		"-t", seconds(job.Duration),
		"-c:v", v.Codec,
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		job.OutFile,
	}
}

// EncodeSegment renders one captioned segment. The decoder, frame pump and
// encoder run together; the first failure cancels the other two.
func (f *FFmpeg) EncodeSegment(ctx context.Context, job SegmentJob) error {
	g, gctx := errgroup.WithContext(ctx)

	dec := exec.CommandContext(gctx, "ffmpeg", f.decodeArgs(job)...)
	dec.Stderr = os.Stderr
	frames, err := dec.StdoutPipe()
	if err != nil {
		return err
	}

	enc := exec.CommandContext(gctx, "ffmpeg", f.encodeArgs(job)...)
	enc.Stderr = os.Stderr
	sink, err := enc.StdinPipe()
	if err != nil {
		return err
	}

	if err := dec.Start(); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}
	if err := enc.Start(); err != nil {
		_ = dec.Process.Kill()
		_ = dec.Wait()
		return fmt.Errorf("start encoder: %w", err)
	}

	var n int
	g.Go(func() error {
		buf := image.NewRGBA(image.Rect(0, 0, f.cfg.Video.Width, f.cfg.Video.Height))
		var err error
		n, err = Pump(frames, sink, buf, FrameCount(job.Duration, f.cfg.Video.FPS), job.Overlay)
		sink.Close()
		if err != nil {
			return fmt.Errorf("frame pump after %d frame(s): %w", n, err)
		}
		_, _ = io.Copy(io.Discard, frames)
		return nil
	})
	g.Go(func() error {
		if err := enc.Wait(); err != nil {
			return fmt.Errorf("ffmpeg encode: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if decErr := dec.Wait(); err == nil && decErr != nil {
		err = fmt.Errorf("ffmpeg decode: %w", decErr)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("decoder produced no frames for %s", job.VisualFile)
	}
	return nil
}

// Pump copies up to max raw RGBA frames from r to w, burning the overlay into
// each one. A short final read ends the stream; fewer than max frames is
// logged because the video then runs shorter than its audio.
func Pump(r io.Reader, w io.Writer, buf *image.RGBA, max int, o *captions.Overlay) (int, error) {
	n := 0
	for ; n < max; n++ {
		if _, err := io.ReadFull(r, buf.Pix); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				partial := ""
				if errors.Is(err, io.ErrUnexpectedEOF) {
					partial = ", trailing partial frame dropped"
				}
				log.Printf("[render] ⚠️  Decoder ended after %d of %d frame(s)%s", n, max, partial)
				return n, nil
			}
			return n, err
		}
		captions.Burn(buf, o)
		if _, err := w.Write(buf.Pix); err != nil {
			return n, err
		}
	}
	return n, nil
}

// concatArgs composes all segments onto the common frame and joins them in order
func (f *FFmpeg) concatArgs(files []string, outFile string) []string {
	v := f.cfg.Video
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	var filters, pads []string
	for i, file := range files {
		args = append(args, "-i", file)
		filters = append(filters,
			fmt.Sprintf("[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d[v%d]",
				i, v.Width, v.Height, v.Width, v.Height, v.FPS, i),
			fmt.Sprintf("[%d:a]aresample=44100[a%d]", i, i),
		)
		pads = append(pads, fmt.Sprintf("[v%d][a%d]", i, i))
	}
	graph := strings.Join(filters, ";") + ";" +
		strings.Join(pads, "") + fmt.Sprintf("concat=n=%d:v=1:a=1[v][a]", len(files))

	return append(args,
		"-filter_complex", graph,
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", v.Codec,
		"-r", strconv.Itoa(v.FPS),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		outFile,
	)
}

// Concat joins segment files into outFile
func (f *FFmpeg) Concat(ctx context.Context, files []string, outFile string) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to concatenate")
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", f.concatArgs(files, outFile)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}
