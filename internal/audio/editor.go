// Package audio provides silence cutting and audio enhancement for
// uploaded videos.
package audio

import (
	"context"
)

// EnhancementType selects the audio enhancement filter chain.
type EnhancementType string

const (
	// EnhancementClear favors speech clarity.
	EnhancementClear EnhancementType = "clear"
	// EnhancementMusic favors music dynamics.
	EnhancementMusic EnhancementType = "music"
	// EnhancementFull applies the complete chain.
	EnhancementFull EnhancementType = "full"
)

// SilenceOpts configures silence detection for cutting.
type SilenceOpts struct {
	// MinSilenceMs is the minimum silence duration in milliseconds
	// for an interval to be removed.
	// Default: 500 milliseconds.
	MinSilenceMs int

	// ThreshDB is the volume threshold in dBFS below which audio is
	// considered silence.
	// Default: -40 dBFS.
	ThreshDB float64
}

// DefaultSilenceOpts returns the default silence cutting options.
func DefaultSilenceOpts() SilenceOpts {
	return SilenceOpts{
		MinSilenceMs: 500,
		ThreshDB:     -40,
	}
}

// Editor defines the interface for audio-level processing of a video file.
type Editor interface {
	// CutSilence removes silent intervals from the input and writes the
	// trimmed result to output. Both video and audio tracks are cut so
	// the streams stay in sync.
	CutSilence(ctx context.Context, input, output string, opts SilenceOpts) error

	// Enhance applies the audio enhancement chain selected by kind,
	// re-encoding the audio track and copying the video track.
	Enhance(ctx context.Context, input, output string, kind EnhancementType) error
}
