// Package transcribe defines the transcription and summarization
// capabilities the video service depends on. Real speech-to-text and
// summarization models live behind these interfaces; the bundled
// implementations simulate them with fixture data.
package transcribe

import (
	"context"

	"github.com/snipx/snipx-api/internal/subtitle"
)

// Transcriber converts an audio file into timed subtitle segments.
type Transcriber interface {
	// Transcribe produces subtitle segments for the audio at audioPath.
	// duration is the source video duration in seconds; implementations
	// may use it to align segment timing with the video.
	Transcribe(ctx context.Context, audioPath string, duration float64) ([]subtitle.Segment, error)
}

// Summarizer condenses a transcript into a short plain-text summary.
type Summarizer interface {
	// Summarize returns a summary of the given transcript text.
	Summarize(ctx context.Context, text string) (string, error)
}
