// Package server provides the HTTP server for the SnipX API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/snipx/snipx-api/internal/video"
)

// OptionsPayload is the JSON shape of processing options.
type OptionsPayload struct {
	// CutSilence removes silent intervals from the video.
	CutSilence bool `json:"cut_silence"`
	// EnhanceAudio applies the audio enhancement filter chain.
	EnhanceAudio bool `json:"enhance_audio"`
	// AudioEnhancementType selects the enhancement chain.
	AudioEnhancementType string `json:"audio_enhancement_type" validate:"omitempty,oneof=clear music full"`
	// GenerateThumbnail extracts a thumbnail image.
	GenerateThumbnail bool `json:"generate_thumbnail"`
	// GenerateSubtitles produces subtitle artifacts.
	GenerateSubtitles bool `json:"generate_subtitles"`
	// Summarize produces a plain-text summary.
	Summarize bool `json:"summarize"`
	// Stabilization selects the stabilization mode.
	Stabilization string `json:"stabilization" validate:"omitempty,oneof=none basic"`
	// Brightness is a multiplicative scale in percent (100 = unchanged).
	Brightness int `json:"brightness" validate:"omitempty,min=10,max=300"`
	// Contrast is a midpoint scale in percent (100 = unchanged).
	Contrast int `json:"contrast" validate:"omitempty,min=10,max=300"`
}

// toOptions maps the payload onto domain options.
func (p OptionsPayload) toOptions() video.Options {
	opts := video.DefaultOptions()
	opts.CutSilence = p.CutSilence
	opts.EnhanceAudio = p.EnhanceAudio
	if p.AudioEnhancementType != "" {
		opts.AudioEnhancement = video.EnhancementType(p.AudioEnhancementType)
	}
	opts.GenerateThumbnail = p.GenerateThumbnail
	opts.GenerateSubtitles = p.GenerateSubtitles
	opts.Summarize = p.Summarize
	if p.Stabilization != "" {
		opts.Stabilization = p.Stabilization
	}
	if p.Brightness != 0 {
		opts.Brightness = p.Brightness
	}
	if p.Contrast != 0 {
		opts.Contrast = p.Contrast
	}
	return opts
}

// ProcessRequest is the HTTP request body for processing a video.
type ProcessRequest struct {
	Options OptionsPayload `json:"options"`
}

// UploadResponse is the HTTP response after a successful upload.
type UploadResponse struct {
	// ID is the unique identifier for the created record.
	ID string `json:"id"`
	// Status is the initial record status.
	Status string `json:"status"`
}

// MetadataPayload is the JSON shape of probed video metadata.
type MetadataPayload struct {
	Duration   float64 `json:"duration"`
	FPS        float64 `json:"fps"`
	Resolution string  `json:"resolution"`
	Format     string  `json:"format"`
}

// VideoResponse is the HTTP representation of a video record.
type VideoResponse struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	Filename   string            `json:"filename"`
	Size       int64             `json:"size"`
	Status     string            `json:"status"`
	Metadata   MetadataPayload   `json:"metadata"`
	Outputs    map[string]string `json:"outputs"`
	MirrorURLs map[string]string `json:"mirror_urls,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// newVideoResponse maps a record to its HTTP representation.
func newVideoResponse(v *video.Video) VideoResponse {
	outputs := make(map[string]string, len(v.Outputs))
	for kind, path := range v.Outputs {
		outputs[string(kind)] = path
	}
	var mirrors map[string]string
	if len(v.MirrorURLs) > 0 {
		mirrors = make(map[string]string, len(v.MirrorURLs))
		for kind, url := range v.MirrorURLs {
			mirrors[string(kind)] = url
		}
	}
	return VideoResponse{
		ID:       v.ID,
		OwnerID:  v.OwnerID,
		Filename: v.Filename,
		Size:     v.Size,
		Status:   string(v.Status),
		Metadata: MetadataPayload{
			Duration:   v.Metadata.Duration,
			FPS:        v.Metadata.FPS,
			Resolution: v.Metadata.Resolution,
			Format:     v.Metadata.Format,
		},
		Outputs:    outputs,
		MirrorURLs: mirrors,
		Error:      v.Error,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
