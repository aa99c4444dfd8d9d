package transcribe

import (
	"context"
	"strings"

	"github.com/snipx/snipx-api/internal/subtitle"
)

// MaxTimeScale caps how far the canned script timing is stretched to
// cover a longer video.
const MaxTimeScale = 2.0

// scriptSegment is one cue of the canned narration script.
type scriptSegment struct {
	start float64
	end   float64
	text  string
}

// defaultScript is the canned narration used in place of a real
// speech-to-text model. It spans 20 seconds.
var defaultScript = []scriptSegment{
	{0, 4, "Welcome to this video."},
	{4, 8, "Today we walk through the main ideas step by step."},
	{8, 12, "Each section builds on the previous one."},
	{12, 16, "Pay attention to the examples along the way."},
	{16, 20, "Thanks for watching, and see you in the next one."},
}

// Compile-time check that ScriptTranscriber implements Transcriber.
var _ Transcriber = (*ScriptTranscriber)(nil)

// ScriptTranscriber simulates speech recognition with a fixed-language
// canned script. When the video is longer than the script, segment
// timestamps are scaled proportionally, capped at MaxTimeScale.
type ScriptTranscriber struct {
	language string
	script   []scriptSegment
}

// NewScriptTranscriber creates a transcriber backed by the default script.
func NewScriptTranscriber() *ScriptTranscriber {
	return &ScriptTranscriber{
		language: "en",
		script:   defaultScript,
	}
}

// Language returns the language tag of the produced segments.
func (t *ScriptTranscriber) Language() string {
	return t.language
}

// ScriptLength returns the unscaled script duration in seconds.
func (t *ScriptTranscriber) ScriptLength() float64 {
	if len(t.script) == 0 {
		return 0
	}
	return t.script[len(t.script)-1].end
}

// TimeScale returns the factor applied to script timestamps for a video
// of the given duration. Durations at or below the script length map to
// 1.0; longer videos scale proportionally up to MaxTimeScale.
func (t *ScriptTranscriber) TimeScale(duration float64) float64 {
	length := t.ScriptLength()
	if length <= 0 || duration <= length {
		return 1.0
	}
	scale := duration / length
	if scale > MaxTimeScale {
		return MaxTimeScale
	}
	return scale
}

// Transcribe returns the canned script as subtitle segments, time-scaled
// to the video duration. The audio file content is ignored.
func (t *ScriptTranscriber) Transcribe(_ context.Context, _ string, duration float64) ([]subtitle.Segment, error) {
	scale := t.TimeScale(duration)

	segments := make([]subtitle.Segment, 0, len(t.script))
	for i, s := range t.script {
		segments = append(segments, subtitle.Segment{
			Index: i + 1,
			Start: s.start * scale,
			End:   s.end * scale,
			Text:  s.text,
		})
	}
	return segments, nil
}

// Text joins segment texts into a single transcript string.
func Text(segments []subtitle.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}
