// Package subtitle provides subtitle segment types and writers for the
// line-based SRT format and the structured JSON document format.
package subtitle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Segment is a single timed subtitle cue.
type Segment struct {
	// Index is the 1-based position of the segment.
	Index int `json:"index"`
	// Start is the cue start time in seconds.
	Start float64 `json:"start"`
	// End is the cue end time in seconds.
	End float64 `json:"end"`
	// Text is the cue content.
	Text string `json:"text"`
}

// Duration returns the cue length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Document is the structured subtitle format attached to a record
// alongside the SRT file.
type Document struct {
	// Language is the BCP 47 language tag of the segments.
	Language string `json:"language"`
	// VideoID references the record the subtitles belong to.
	VideoID string `json:"video_id"`
	// GeneratedAt is when the document was produced.
	GeneratedAt time.Time `json:"generated_at"`
	// Segments are the timed cues in order.
	Segments []Segment `json:"segments"`
}

// FormatTimestamp renders seconds as an SRT timestamp (HH:MM:SS,mmm).
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// WriteSRT writes segments in SubRip format.
func WriteSRT(w io.Writer, segments []Segment) error {
	for i, seg := range segments {
		idx := seg.Index
		if idx == 0 {
			idx = i + 1
		}
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			idx,
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End),
			strings.TrimSpace(seg.Text),
		)
		if err != nil {
			return fmt.Errorf("write srt segment %d: %w", idx, err)
		}
	}
	return nil
}

// SaveSRT writes segments to an SRT file at path.
func SaveSRT(path string, segments []Segment) error {
	f, err := os.Create(path) // #nosec G304 - path is built by trusted internal code
	if err != nil {
		return fmt.Errorf("create srt file: %w", err)
	}
	if err := WriteSRT(f, segments); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// SaveDocument writes the structured subtitle document to path as JSON.
func SaveDocument(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subtitle document: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write subtitle document: %w", err)
	}
	return nil
}
