// Package media provides video probing, thumbnail extraction, and
// pixel-level enhancement capabilities.
package media

import "context"

// ProbeResult holds the properties extracted from a media container.
type ProbeResult struct {
	// Duration is the media length in seconds.
	Duration float64
	// FPS is the average frame rate of the video stream.
	FPS float64
	// Width and Height are the video frame dimensions in pixels.
	Width  int
	Height int
}

// ThumbnailOpts configures thumbnail generation.
type ThumbnailOpts struct {
	// MaxWidth and MaxHeight bound the thumbnail size; the frame is
	// downscaled to fit while preserving aspect ratio.
	MaxWidth  int
	MaxHeight int
	// Brightness and Contrast are percentages (100 = unchanged) applied
	// to the thumbnail so previews match the enhanced video.
	Brightness int
	Contrast   int
	// Quality is the JPEG quality (1-100).
	Quality int
}

// DefaultThumbnailOpts returns the default thumbnail settings.
func DefaultThumbnailOpts() ThumbnailOpts {
	return ThumbnailOpts{
		MaxWidth:   640,
		MaxHeight:  360,
		Brightness: 100,
		Contrast:   100,
		Quality:    85,
	}
}

// EnhanceOpts configures pixel-level video enhancement.
// Brightness is a multiplicative scale in percent; contrast is applied
// around the 128 midpoint in percent. 100 means unchanged for both.
type EnhanceOpts struct {
	Brightness int
	Contrast   int
	// Stabilization selects the stabilization mode. Only "none" and
	// "basic" are recognized; "basic" is currently a no-op placeholder.
	Stabilization string
}

// Processor defines the interface for video probing and processing.
// Implementations use ffmpeg/ffprobe or similar tools.
type Processor interface {
	// Probe extracts duration, frame rate, and resolution from a media file.
	Probe(ctx context.Context, path string) (ProbeResult, error)

	// Thumbnail extracts a single frame at the given offset and writes a
	// bounded JPEG thumbnail to outPath.
	Thumbnail(ctx context.Context, videoPath string, atSeconds float64, outPath string, opts ThumbnailOpts) error

	// ExtractAudio writes the audio track as mono 16 kHz WAV to outPath.
	ExtractAudio(ctx context.Context, videoPath, outPath string) error

	// Enhance re-encodes the video applying the pixel-level brightness and
	// contrast arithmetic to every frame.
	Enhance(ctx context.Context, in, out string, opts EnhanceOpts) error
}
