package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Static errors for media operations.
var (
	// ErrNoVideoStream is returned when a container carries no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// probeOutput mirrors the ffprobe JSON fields we consume.
type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe extracts duration, frame rate, and resolution using ffprobe.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (ProbeResult, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return ProbeResult{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	return buildProbeResult(out)
}

// buildProbeResult maps raw ffprobe output to a ProbeResult.
func buildProbeResult(out probeOutput) (ProbeResult, error) {
	result := ProbeResult{}

	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return ProbeResult{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
		}
		result.Duration = d
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		result.Width = s.Width
		result.Height = s.Height
		result.FPS = parseFrameRate(s.AvgFrameRate)
		return result, nil
	}

	return ProbeResult{}, ErrNoVideoStream
}

// parseFrameRate parses an ffprobe rate fraction such as "30000/1001".
// Returns 0 for missing or malformed rates.
func parseFrameRate(rate string) float64 {
	if rate == "" || rate == "0/0" {
		return 0
	}
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		f, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return 0
		}
		return f
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Thumbnail extracts a single frame at the given offset and writes a
// bounded JPEG thumbnail, applying the same brightness/contrast
// arithmetic as video enhancement so previews match.
func (p *FFmpegProcessor) Thumbnail(ctx context.Context, videoPath string, atSeconds float64, outPath string, opts ThumbnailOpts) error {
	frame, err := os.CreateTemp("", "snipx-frame-*.png")
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	framePath := frame.Name()
	_ = frame.Close()
	defer func() { _ = os.Remove(framePath) }()

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", atSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		framePath,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return err
	}

	img, err := imaging.Open(framePath)
	if err != nil {
		return fmt.Errorf("open extracted frame: %w", err)
	}

	if opts.MaxWidth > 0 && opts.MaxHeight > 0 {
		img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	}
	img = AdjustPixels(img, opts.Brightness, opts.Contrast)

	quality := opts.Quality
	if quality <= 0 {
		quality = 85
	}
	if err := imaging.Save(img, outPath, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}
	return nil
}

// ExtractAudio writes the audio track as mono 16 kHz WAV, the input
// format expected by transcription.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		outPath,
	}
	return p.runFFmpeg(ctx, args)
}

// Enhance re-encodes the video with a lutrgb filter that applies the
// per-pixel brightness and contrast arithmetic. Stabilization modes
// other than "none" are accepted but currently have no effect.
func (p *FFmpegProcessor) Enhance(ctx context.Context, in, out string, opts EnhanceOpts) error {
	args := []string{
		"-y",
		"-i", in,
		"-vf", LUTFilter(opts.Brightness, opts.Contrast),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		out,
	}
	return p.runFFmpeg(ctx, args)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
