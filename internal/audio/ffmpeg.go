package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrNothingToKeep is returned when silence cutting would remove the
// entire video.
var ErrNothingToKeep = errors.New("silence cutting removed all content")

// FFmpegEditor implements Editor using the ffmpeg CLI.
type FFmpegEditor struct {
	ffmpegPath string
}

// NewFFmpegEditor creates a new FFmpegEditor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegEditor(ffmpegPath string) *FFmpegEditor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegEditor{ffmpegPath: ffmpegPath}
}

// Compile-time check that FFmpegEditor implements Editor.
var _ Editor = (*FFmpegEditor)(nil)

// silenceInterval represents a detected silence interval in the audio.
type silenceInterval struct {
	start float64
	end   float64
}

// segment is a kept time range of the source file.
type segment struct {
	start float64
	end   float64
}

// CutSilence detects silent intervals, extracts the voiced segments of
// the full container, and concatenates them into output. Cutting the
// container keeps the video track in sync with the trimmed audio.
func (e *FFmpegEditor) CutSilence(ctx context.Context, input, output string, opts SilenceOpts) error {
	if _, err := os.Stat(input); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", input)
	}

	duration, err := e.getDuration(ctx, input)
	if err != nil {
		return fmt.Errorf("get duration: %w", err)
	}

	silences, err := e.detectSilences(ctx, input, opts)
	if err != nil {
		return fmt.Errorf("detect silences: %w", err)
	}

	segments := voicedSegments(silences, duration)
	if len(segments) == 0 {
		return ErrNothingToKeep
	}

	// Nothing silent: a plain stream copy is enough.
	if len(segments) == 1 && segments[0].start == 0 && segments[0].end >= duration {
		return e.streamCopy(ctx, input, output)
	}

	return e.extractAndConcat(ctx, input, output, segments)
}

// Enhance applies the filter chain selected by kind. The video track is
// copied; only the audio is re-encoded.
func (e *FFmpegEditor) Enhance(ctx context.Context, input, output string, kind EnhancementType) error {
	args := []string{
		"-y",
		"-i", input,
		"-af", enhancementFilter(kind),
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		output,
	}
	return e.runFFmpeg(ctx, args)
}

// enhancementFilter maps an enhancement type to an ffmpeg filter chain.
// loudnorm normalizes loudness, acompressor compresses dynamic range,
// and the highpass removes low frequency noise below 80 Hz.
func enhancementFilter(kind EnhancementType) string {
	switch kind {
	case EnhancementClear:
		return "loudnorm,highpass=f=80"
	case EnhancementMusic:
		return "loudnorm,acompressor"
	default: // full
		return "loudnorm,acompressor,highpass=f=80"
	}
}

// getDuration returns the duration of a media file in seconds.
func (e *FFmpegEditor) getDuration(ctx context.Context, inputPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-i", inputPath,
		"-hide_banner",
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg writes duration info to stderr and exits non-zero with a
	// null muxer, so the run error is ignored.
	_ = cmd.Run()

	output := stderr.String()
	re := regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	matches := re.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, fmt.Errorf("could not parse duration from ffmpeg output: %s", output)
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	ms, _ := strconv.ParseFloat(matches[4], 64)

	msDivisor := 1.0
	for i := 0; i < len(matches[4]); i++ {
		msDivisor *= 10
	}

	return hours*3600 + minutes*60 + seconds + ms/msDivisor, nil
}

// detectSilences uses ffmpeg silencedetect to find silence intervals.
func (e *FFmpegEditor) detectSilences(ctx context.Context, inputPath string, opts SilenceOpts) ([]silenceInterval, error) {
	filter := fmt.Sprintf("silencedetect=noise=%ddB:d=%f",
		int(opts.ThreshDB),
		float64(opts.MinSilenceMs)/1000.0,
	)

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-i", inputPath,
		"-af", filter,
		"-f", "null",
		"-hide_banner",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// silencedetect output goes to stderr; exit status is irrelevant here.
	_ = cmd.Run()

	return parseSilenceOutput(stderr.String())
}

// parseSilenceOutput parses ffmpeg silencedetect output.
func parseSilenceOutput(output string) ([]silenceInterval, error) {
	var intervals []silenceInterval

	startRe := regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	endRe := regexp.MustCompile(`silence_end:\s*([\d.]+)`)

	lines := strings.Split(output, "\n")
	var currentStart float64
	hasStart := false

	for _, line := range lines {
		if startMatch := startRe.FindStringSubmatch(line); len(startMatch) > 1 {
			val, err := strconv.ParseFloat(startMatch[1], 64)
			if err != nil {
				continue
			}
			currentStart = val
			hasStart = true
		}

		if endMatch := endRe.FindStringSubmatch(line); len(endMatch) > 1 && hasStart {
			val, err := strconv.ParseFloat(endMatch[1], 64)
			if err != nil {
				continue
			}
			intervals = append(intervals, silenceInterval{
				start: currentStart,
				end:   val,
			})
			hasStart = false
		}
	}

	return intervals, nil
}

// voicedSegments computes the complement of the silence intervals over
// [0, duration]. Intervals are assumed sorted by start time, as emitted
// by silencedetect. Segments shorter than 100ms are dropped.
func voicedSegments(silences []silenceInterval, duration float64) []segment {
	const minSegment = 0.1

	var segments []segment
	cursor := 0.0
	for _, s := range silences {
		if s.start-cursor >= minSegment {
			segments = append(segments, segment{start: cursor, end: s.start})
		}
		if s.end > cursor {
			cursor = s.end
		}
	}
	if duration-cursor >= minSegment {
		segments = append(segments, segment{start: cursor, end: duration})
	}
	return segments
}

// extractAndConcat extracts each voiced segment and joins them with the
// concat demuxer.
func (e *FFmpegEditor) extractAndConcat(ctx context.Context, input, output string, segments []segment) error {
	tempDir, err := os.MkdirTemp("", "snipx-cut-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	ext := filepath.Ext(output)
	if ext == "" {
		ext = ".mp4"
	}

	var parts []string
	for i, seg := range segments {
		partPath := filepath.Join(tempDir, fmt.Sprintf("part_%03d%s", i, ext))
		if err := e.extractSegment(ctx, input, partPath, seg.start, seg.end-seg.start); err != nil {
			return fmt.Errorf("extract segment %d: %w", i, err)
		}
		parts = append(parts, partPath)
	}

	listFile, err := createConcatList(parts)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	return e.runFFmpeg(ctx, args)
}

// extractSegment extracts a portion of the input to a new file.
func (e *FFmpegEditor) extractSegment(ctx context.Context, inputPath, outputPath string, start, duration float64) error {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", inputPath,
		"-c", "copy",
		outputPath,
	}
	return e.runFFmpeg(ctx, args)
}

// streamCopy copies the input container without re-encoding.
func (e *FFmpegEditor) streamCopy(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-i", src,
		"-c", "copy",
		dst,
	}
	return e.runFFmpeg(ctx, args)
}

// createConcatList creates a temporary file listing the parts in the
// format required by ffmpeg's concat demuxer.
func createConcatList(paths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *FFmpegEditor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}
	return nil
}
