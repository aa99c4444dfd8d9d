// Package video provides the Video aggregate for managing uploaded videos and
// their processing lifecycle. It includes the Video entity with state machine
// transitions, the processing options chosen at invocation time, and
// repository interfaces for persistence.
package video

import (
	"errors"
	"sync"
	"time"

	"github.com/snipx/snipx-api/internal/audio"
	"github.com/snipx/snipx-api/internal/video/id"
)

// Status represents the current processing state of a Video.
type Status string

const (
	// StatusPending indicates the video has been uploaded but not processed.
	StatusPending Status = "pending"
	// StatusProcessing indicates a processing run is in progress.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the last processing run finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the last processing run encountered a fatal error.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// Completed and failed records may be re-processed, so both terminal
// states transition back to processing.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusProcessing},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// OutputKind identifies a derived artifact attached to a video record.
type OutputKind string

const (
	// OutputProcessedVideo is the re-encoded or trimmed video file.
	OutputProcessedVideo OutputKind = "processed_video"
	// OutputThumbnail is the extracted thumbnail image.
	OutputThumbnail OutputKind = "thumbnail"
	// OutputSubtitles is the line-based subtitle file (SRT).
	OutputSubtitles OutputKind = "subtitles"
	// OutputSubtitlesJSON is the structured subtitle document.
	OutputSubtitlesJSON OutputKind = "subtitles_json"
	// OutputSummary is the plain-text summary.
	OutputSummary OutputKind = "summary"
)

// EnhancementType selects the audio enhancement filter chain.
type EnhancementType = audio.EnhancementType

const (
	// EnhancementClear favors speech clarity.
	EnhancementClear = audio.EnhancementClear
	// EnhancementMusic favors music dynamics.
	EnhancementMusic = audio.EnhancementMusic
	// EnhancementFull applies the complete chain.
	EnhancementFull = audio.EnhancementFull
)

// Options are the processing options chosen at invocation time.
// Brightness and Contrast are percentages where 100 means unchanged.
type Options struct {
	// CutSilence removes silent intervals from the video.
	CutSilence bool
	// EnhanceAudio applies the audio enhancement filter chain.
	EnhanceAudio bool
	// AudioEnhancement selects the enhancement chain. Defaults to "full".
	AudioEnhancement EnhancementType
	// GenerateThumbnail extracts a thumbnail from the middle of the video.
	GenerateThumbnail bool
	// GenerateSubtitles produces SRT and structured subtitle documents.
	GenerateSubtitles bool
	// Summarize produces a plain-text summary of the transcript.
	Summarize bool
	// Stabilization selects the stabilization mode ("none" or "basic").
	Stabilization string
	// Brightness is a multiplicative scale in percent (100 = unchanged).
	Brightness int
	// Contrast is applied around the 128 midpoint, in percent (100 = unchanged).
	Contrast int
}

// DefaultOptions returns Options with neutral enhancement values.
func DefaultOptions() Options {
	return Options{
		AudioEnhancement: EnhancementFull,
		Stabilization:    "none",
		Brightness:       100,
		Contrast:         100,
	}
}

// WantsEnhancement reports whether any pixel-level enhancement is requested.
func (o Options) WantsEnhancement() bool {
	return (o.Stabilization != "" && o.Stabilization != "none") ||
		(o.Brightness != 0 && o.Brightness != 100) ||
		(o.Contrast != 0 && o.Contrast != 100)
}

// Metadata holds the probed properties of an uploaded video.
// A failed probe degrades to format-only metadata.
type Metadata struct {
	// Duration is the video length in seconds.
	Duration float64
	// FPS is the average frame rate.
	FPS float64
	// Resolution is the frame size as "WIDTHxHEIGHT".
	Resolution string
	// Format is the container format derived from the filename extension.
	Format string
}

// Video represents an uploaded video record and its processing state.
type Video struct {
	mu sync.RWMutex

	// ID is the unique identifier for this record.
	ID string
	// OwnerID references the user who uploaded the video.
	OwnerID string
	// Filename is the sanitized original filename.
	Filename string
	// Path is the location of the source file in storage.
	Path string
	// Size is the source file size in bytes.
	Size int64
	// Metadata holds the probed video properties.
	Metadata Metadata
	// Status is the current processing state.
	Status Status
	// Options are the processing options of the current or last run.
	Options Options
	// Outputs maps artifact kinds to filesystem paths.
	Outputs map[OutputKind]string
	// MirrorURLs maps artifact kinds to S3 URLs when mirroring is enabled.
	MirrorURLs map[OutputKind]string
	// Error contains the captured message if the last run failed.
	Error string
	// CreatedAt is when the record was created.
	CreatedAt time.Time
	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time
	// ProcessStartedAt is when the last processing run started.
	ProcessStartedAt time.Time
	// ProcessEndedAt is when the last processing run finished.
	ProcessEndedAt time.Time
}

// New creates a new Video record with a generated ID and pending status.
func New(ownerID, filename, path string, size int64) *Video {
	now := time.Now()
	return &Video{
		ID:        id.Generate(),
		OwnerID:   ownerID,
		Filename:  filename,
		Path:      path,
		Size:      size,
		Status:    StatusPending,
		Outputs:   make(map[OutputKind]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Video record with the specified ID.
// Useful for testing or when the ID needs to be externally generated.
func NewWithID(videoID, ownerID, filename, path string, size int64) *Video {
	v := New(ownerID, filename, path, size)
	v.ID = videoID
	return v
}

// TransitionTo attempts to change the record status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (v *Video) TransitionTo(status Status) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !canTransition(v.Status, status) {
		return ErrInvalidTransition
	}

	v.Status = status
	v.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusProcessing:
		v.ProcessStartedAt = v.UpdatedAt
		v.ProcessEndedAt = time.Time{}
		v.Error = ""
	case StatusCompleted, StatusFailed:
		v.ProcessEndedAt = v.UpdatedAt
	}

	return nil
}

// StartProcessing transitions the record to processing and stores the
// options chosen for this run.
func (v *Video) StartProcessing(opts Options) error {
	if err := v.TransitionTo(StatusProcessing); err != nil {
		return err
	}
	v.mu.Lock()
	v.Options = opts
	v.mu.Unlock()
	return nil
}

// Complete transitions the record to completed.
func (v *Video) Complete() error {
	return v.TransitionTo(StatusCompleted)
}

// Fail transitions the record to failed with the captured error message.
func (v *Video) Fail(errMsg string) error {
	v.mu.Lock()
	v.Error = errMsg
	v.mu.Unlock()
	return v.TransitionTo(StatusFailed)
}

// GetStatus returns the current record status (thread-safe).
func (v *Video) GetStatus() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.Status
}

// SetMetadata stores the probed metadata.
func (v *Video) SetMetadata(md Metadata) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Metadata = md
	v.UpdatedAt = time.Now()
}

// SetOutput records a derived artifact path in the output map.
func (v *Video) SetOutput(kind OutputKind, path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Outputs == nil {
		v.Outputs = make(map[OutputKind]string)
	}
	v.Outputs[kind] = path
	v.UpdatedAt = time.Now()
}

// SetMirrorURL records the S3 URL of a mirrored artifact.
func (v *Video) SetMirrorURL(kind OutputKind, url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.MirrorURLs == nil {
		v.MirrorURLs = make(map[OutputKind]string)
	}
	v.MirrorURLs[kind] = url
	v.UpdatedAt = time.Now()
}

// Output returns the recorded path for an artifact kind, if present.
func (v *Video) Output(kind OutputKind) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	path, ok := v.Outputs[kind]
	return path, ok
}

// OutputPaths returns every derived artifact path on the record.
func (v *Video) OutputPaths() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	paths := make([]string, 0, len(v.Outputs))
	for _, p := range v.Outputs {
		paths = append(paths, p)
	}
	return paths
}

// IsTerminal returns true if the record is in a terminal state.
func (v *Video) IsTerminal() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.Status == StatusCompleted || v.Status == StatusFailed
}

// OwnedBy reports whether the record belongs to the given user.
func (v *Video) OwnedBy(ownerID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.OwnerID == ownerID
}

// Clone creates a deep copy of the record for safe reads.
func (v *Video) Clone() *Video {
	v.mu.RLock()
	defer v.mu.RUnlock()

	outputs := make(map[OutputKind]string, len(v.Outputs))
	for k, p := range v.Outputs {
		outputs[k] = p
	}
	var mirrors map[OutputKind]string
	if v.MirrorURLs != nil {
		mirrors = make(map[OutputKind]string, len(v.MirrorURLs))
		for k, u := range v.MirrorURLs {
			mirrors[k] = u
		}
	}

	return &Video{
		ID:               v.ID,
		OwnerID:          v.OwnerID,
		Filename:         v.Filename,
		Path:             v.Path,
		Size:             v.Size,
		Metadata:         v.Metadata,
		Status:           v.Status,
		Options:          v.Options,
		Outputs:          outputs,
		MirrorURLs:       mirrors,
		Error:            v.Error,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
		ProcessStartedAt: v.ProcessStartedAt,
		ProcessEndedAt:   v.ProcessEndedAt,
	}
}
