// Package video provides the Service use case for orchestrating uploaded
// video processing. The service coordinates storage, media probing, audio
// editing, transcription, and summarization to produce derived artifacts.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/snipx/snipx-api/internal/audio"
	"github.com/snipx/snipx-api/internal/media"
	"github.com/snipx/snipx-api/internal/storage"
	"github.com/snipx/snipx-api/internal/subtitle"
	"github.com/snipx/snipx-api/internal/transcribe"
)

// Static errors for upload validation.
var (
	// ErrNoFile is returned when no upload content is provided.
	ErrNoFile = errors.New("no file provided")
	// ErrInvalidVideo is returned when an upload is not a video file.
	ErrInvalidVideo = errors.New("invalid video file")
)

// validExtensions is the fallback allow-list used when content sniffing
// cannot identify the file.
var validExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
	".wmv": true,
	".flv": true,
}

// Step names a single processing sub-operation.
type Step string

const (
	// StepCutSilence removes silent intervals from the video.
	StepCutSilence Step = "cut_silence"
	// StepEnhanceAudio applies the audio enhancement filter chain.
	StepEnhanceAudio Step = "enhance_audio"
	// StepThumbnail extracts a thumbnail image.
	StepThumbnail Step = "thumbnail"
	// StepSubtitles generates SRT and structured subtitle documents.
	StepSubtitles Step = "subtitles"
	// StepSummarize produces a plain-text summary of the transcript.
	StepSummarize Step = "summarize"
	// StepEnhanceVideo applies pixel-level brightness/contrast enhancement.
	StepEnhanceVideo Step = "enhance_video"
)

// stepOrder is the fixed execution order of sub-operations.
var stepOrder = []Step{
	StepCutSilence,
	StepEnhanceAudio,
	StepThumbnail,
	StepSubtitles,
	StepSummarize,
	StepEnhanceVideo,
}

// StepResult is the outcome of one sub-operation. A step either produces
// artifacts, is skipped with a reason, or fails with an error; the
// orchestrator aggregates results and applies the fatality policy.
type StepResult struct {
	// Step is the sub-operation name.
	Step Step
	// Outputs maps artifact kinds to the paths the step produced.
	Outputs map[OutputKind]string
	// Skipped holds the reason when the step did not run.
	Skipped string
	// Err is the failure, if any.
	Err error
}

// Service orchestrates video uploads and processing runs.
// Transcription and summarization are optional capabilities; steps that
// depend on an absent capability are skipped.
type Service struct {
	repo        Repository
	store       storage.Store
	processor   media.Processor
	editor      audio.Editor
	transcriber transcribe.Transcriber
	summarizer  transcribe.Summarizer
	logger      *slog.Logger

	silenceOpts audio.SilenceOpts
	fatalSteps  map[Step]bool
	language    string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTranscriber provides the transcription capability.
func WithTranscriber(t transcribe.Transcriber) ServiceOption {
	return func(s *Service) { s.transcriber = t }
}

// WithSummarizer provides the summarization capability.
func WithSummarizer(sum transcribe.Summarizer) ServiceOption {
	return func(s *Service) { s.summarizer = sum }
}

// WithSilenceOpts overrides the silence cutting options.
func WithSilenceOpts(opts audio.SilenceOpts) ServiceOption {
	return func(s *Service) { s.silenceOpts = opts }
}

// WithFatalSteps marks the named steps as fatal: their failure fails the
// whole run. Every other step is best-effort.
func WithFatalSteps(names []string) ServiceOption {
	return func(s *Service) {
		for _, n := range names {
			s.fatalSteps[Step(strings.TrimSpace(n))] = true
		}
	}
}

// WithSubtitleLanguage sets the language tag recorded on subtitle documents.
func WithSubtitleLanguage(lang string) ServiceOption {
	return func(s *Service) { s.language = lang }
}

// NewService creates a video Service.
func NewService(repo Repository, store storage.Store, processor media.Processor, editor audio.Editor, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:        repo,
		store:       store,
		processor:   processor,
		editor:      editor,
		logger:      logger,
		silenceOpts: audio.DefaultSilenceOpts(),
		fatalSteps:  make(map[Step]bool),
		language:    "en",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasTranscription reports whether the transcription capability is present.
func (s *Service) HasTranscription() bool { return s.transcriber != nil }

// HasSummarization reports whether the summarization capability is present.
func (s *Service) HasSummarization() bool { return s.summarizer != nil }

// Save validates and stores an uploaded video, probes its metadata, and
// persists the record. An invalid upload leaves no residual file.
func (s *Service) Save(ctx context.Context, ownerID, filename string, data io.Reader) (*Video, error) {
	if filename == "" || data == nil {
		return nil, ErrNoFile
	}

	path, size, err := s.store.SaveUpload(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	if !isValidVideo(path) {
		if rmErr := s.store.Remove(ctx, path); rmErr != nil {
			s.logger.Warn("failed to remove rejected upload",
				slog.String("path", path),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidVideo, filename)
	}

	v := New(ownerID, storage.SanitizeFilename(filename), path, size)
	v.SetMetadata(s.probeMetadata(ctx, v))

	if err := s.repo.Save(ctx, v); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}

	s.logger.Info("video uploaded",
		slog.String("video_id", v.ID),
		slog.String("owner_id", ownerID),
		slog.String("filename", v.Filename),
		slog.Int64("size", size),
		slog.Float64("duration", v.Metadata.Duration),
	)
	return v, nil
}

// isValidVideo checks the stored file by content sniffing, falling back
// to the extension allow-list when sniffing fails.
func isValidVideo(path string) bool {
	mime, err := mimetype.DetectFile(path)
	if err == nil {
		return strings.HasPrefix(mime.String(), "video/")
	}
	return validExtensions[strings.ToLower(filepath.Ext(path))]
}

// probeMetadata extracts metadata best-effort. A failed probe degrades
// to format-only metadata.
func (s *Service) probeMetadata(ctx context.Context, v *Video) Metadata {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(v.Filename)), ".")

	probe, err := s.processor.Probe(ctx, v.Path)
	if err != nil {
		s.logger.Warn("metadata probe failed",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
		return Metadata{Format: format}
	}

	return Metadata{
		Duration:   probe.Duration,
		FPS:        probe.FPS,
		Resolution: fmt.Sprintf("%dx%d", probe.Width, probe.Height),
		Format:     format,
	}
}

// Get retrieves a record by ID.
func (s *Service) Get(ctx context.Context, id string) (*Video, error) {
	return s.repo.FindByID(ctx, id)
}

// ListByOwner returns every record belonging to the given owner.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*Video, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

// Process runs the requested sub-operations in a fixed order:
// silence-cut, audio-enhance, thumbnail, subtitles, summarize,
// pixel-enhance. Failures in best-effort steps are logged and skipped;
// a failure in a step configured as fatal fails the whole run. The
// record is persisted unconditionally in a final step, so no run leaves
// the status stuck at processing.
func (s *Service) Process(ctx context.Context, id string, opts Options) (*Video, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if opts.AudioEnhancement == "" {
		opts.AudioEnhancement = EnhancementFull
	}

	if err := v.StartProcessing(opts); err != nil {
		return nil, fmt.Errorf("start processing: %w", err)
	}
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}

	// The record is saved regardless of how the run ends.
	defer func() {
		if saveErr := s.repo.Save(context.WithoutCancel(ctx), v); saveErr != nil {
			s.logger.Error("failed to persist record after processing",
				slog.String("video_id", v.ID),
				slog.String("error", saveErr.Error()),
			)
		}
	}()

	var fatalErr error
	for _, step := range stepOrder {
		if !s.stepRequested(step, opts) {
			continue
		}

		res := s.runStep(ctx, step, v, opts)
		switch {
		case res.Err != nil:
			s.logger.Warn("processing step failed",
				slog.String("video_id", v.ID),
				slog.String("step", string(step)),
				slog.String("error", res.Err.Error()),
			)
			if s.fatalSteps[step] {
				fatalErr = fmt.Errorf("step %s: %w", step, res.Err)
			}
		case res.Skipped != "":
			s.logger.Info("processing step skipped",
				slog.String("video_id", v.ID),
				slog.String("step", string(step)),
				slog.String("reason", res.Skipped),
			)
		default:
			for kind, path := range res.Outputs {
				v.SetOutput(kind, path)
			}
		}

		if fatalErr != nil {
			break
		}
	}

	if fatalErr != nil {
		if err := v.Fail(fatalErr.Error()); err != nil {
			s.logger.Error("failed to mark record failed",
				slog.String("video_id", v.ID),
				slog.String("error", err.Error()),
			)
		}
		return v, fatalErr
	}

	if err := v.Complete(); err != nil {
		return v, fmt.Errorf("complete record: %w", err)
	}
	s.mirrorArtifacts(ctx, v)

	s.logger.Info("processing completed",
		slog.String("video_id", v.ID),
		slog.Int("outputs", len(v.OutputPaths())),
	)
	return v, nil
}

// stepRequested reports whether the options enable a step.
func (s *Service) stepRequested(step Step, opts Options) bool {
	switch step {
	case StepCutSilence:
		return opts.CutSilence
	case StepEnhanceAudio:
		return opts.EnhanceAudio
	case StepThumbnail:
		return opts.GenerateThumbnail
	case StepSubtitles:
		return opts.GenerateSubtitles
	case StepSummarize:
		return opts.Summarize
	case StepEnhanceVideo:
		return opts.WantsEnhancement()
	default:
		return false
	}
}

// runStep dispatches a single sub-operation.
func (s *Service) runStep(ctx context.Context, step Step, v *Video, opts Options) StepResult {
	switch step {
	case StepCutSilence:
		return s.runCutSilence(ctx, v)
	case StepEnhanceAudio:
		return s.runEnhanceAudio(ctx, v, opts)
	case StepThumbnail:
		return s.runThumbnail(ctx, v, opts)
	case StepSubtitles:
		return s.runSubtitles(ctx, v)
	case StepSummarize:
		return s.runSummarize(ctx, v)
	case StepEnhanceVideo:
		return s.runEnhanceVideo(ctx, v, opts)
	default:
		return StepResult{Step: step, Skipped: "unknown step"}
	}
}

// currentSource returns the most recent processed video if one exists,
// so enhancement steps compose instead of each starting from the source.
func currentSource(v *Video) string {
	if path, ok := v.Output(OutputProcessedVideo); ok {
		return path
	}
	return v.Path
}

// derivedPath builds a sibling path for a derived artifact.
// ext keeps the source extension when empty.
func derivedPath(src, suffix, ext string) string {
	srcExt := filepath.Ext(src)
	if ext == "" {
		ext = srcExt
	}
	return strings.TrimSuffix(src, srcExt) + suffix + ext
}

func (s *Service) runCutSilence(ctx context.Context, v *Video) StepResult {
	out := derivedPath(v.Path, "_processed", "")
	if err := s.editor.CutSilence(ctx, currentSource(v), out, s.silenceOpts); err != nil {
		return StepResult{Step: StepCutSilence, Err: err}
	}
	return StepResult{Step: StepCutSilence, Outputs: map[OutputKind]string{OutputProcessedVideo: out}}
}

func (s *Service) runEnhanceAudio(ctx context.Context, v *Video, opts Options) StepResult {
	out := derivedPath(v.Path, "_enhanced_audio", "")
	if err := s.editor.Enhance(ctx, currentSource(v), out, opts.AudioEnhancement); err != nil {
		return StepResult{Step: StepEnhanceAudio, Err: err}
	}
	return StepResult{Step: StepEnhanceAudio, Outputs: map[OutputKind]string{OutputProcessedVideo: out}}
}

func (s *Service) runThumbnail(ctx context.Context, v *Video, opts Options) StepResult {
	out := derivedPath(v.Path, "_thumb", ".jpg")
	thumbOpts := media.DefaultThumbnailOpts()
	if opts.WantsEnhancement() {
		// Previews match the enhanced video.
		thumbOpts.Brightness = opts.Brightness
		thumbOpts.Contrast = opts.Contrast
	}
	if err := s.processor.Thumbnail(ctx, v.Path, v.Metadata.Duration/2, out, thumbOpts); err != nil {
		return StepResult{Step: StepThumbnail, Err: err}
	}
	return StepResult{Step: StepThumbnail, Outputs: map[OutputKind]string{OutputThumbnail: out}}
}

func (s *Service) runSubtitles(ctx context.Context, v *Video) StepResult {
	if s.transcriber == nil {
		return StepResult{Step: StepSubtitles, Skipped: "transcription not available"}
	}

	segments, err := s.transcript(ctx, v)
	if err != nil {
		return StepResult{Step: StepSubtitles, Err: err}
	}

	srtPath := derivedPath(v.Path, "", ".srt")
	if err := subtitle.SaveSRT(srtPath, segments); err != nil {
		return StepResult{Step: StepSubtitles, Err: err}
	}

	docPath := derivedPath(v.Path, "_subtitles", ".json")
	doc := subtitle.Document{
		Language: s.language,
		VideoID:  v.ID,
		Segments: segments,
	}
	doc.GeneratedAt = v.UpdatedAt
	if err := subtitle.SaveDocument(docPath, doc); err != nil {
		return StepResult{Step: StepSubtitles, Err: err}
	}

	return StepResult{Step: StepSubtitles, Outputs: map[OutputKind]string{
		OutputSubtitles:     srtPath,
		OutputSubtitlesJSON: docPath,
	}}
}

func (s *Service) runSummarize(ctx context.Context, v *Video) StepResult {
	if s.transcriber == nil || s.summarizer == nil {
		return StepResult{Step: StepSummarize, Skipped: "summarization not available"}
	}

	segments, err := s.transcript(ctx, v)
	if err != nil {
		return StepResult{Step: StepSummarize, Err: err}
	}

	summary, err := s.summarizer.Summarize(ctx, transcribe.Text(segments))
	if err != nil {
		return StepResult{Step: StepSummarize, Err: err}
	}

	out := derivedPath(v.Path, "_summary", ".txt")
	if err := writeTextFile(out, summary); err != nil {
		return StepResult{Step: StepSummarize, Err: err}
	}
	return StepResult{Step: StepSummarize, Outputs: map[OutputKind]string{OutputSummary: out}}
}

func (s *Service) runEnhanceVideo(ctx context.Context, v *Video, opts Options) StepResult {
	out := derivedPath(v.Path, "_enhanced", ".mp4")
	enhOpts := media.EnhanceOpts{
		Brightness:    opts.Brightness,
		Contrast:      opts.Contrast,
		Stabilization: opts.Stabilization,
	}
	if err := s.processor.Enhance(ctx, currentSource(v), out, enhOpts); err != nil {
		return StepResult{Step: StepEnhanceVideo, Err: err}
	}
	return StepResult{Step: StepEnhanceVideo, Outputs: map[OutputKind]string{OutputProcessedVideo: out}}
}

// writeTextFile writes a plain-text artifact.
func writeTextFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		return fmt.Errorf("write text file: %w", err)
	}
	return nil
}

// transcript extracts the audio track and transcribes it.
// The intermediate WAV file is removed afterwards.
func (s *Service) transcript(ctx context.Context, v *Video) ([]subtitle.Segment, error) {
	wavPath := derivedPath(v.Path, "_audio", ".wav")
	if err := s.processor.ExtractAudio(ctx, v.Path, wavPath); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	defer func() {
		if err := s.store.Remove(ctx, wavPath); err != nil {
			s.logger.Warn("failed to remove intermediate audio",
				slog.String("path", wavPath),
				slog.String("error", err.Error()),
			)
		}
	}()

	segments, err := s.transcriber.Transcribe(ctx, wavPath, v.Metadata.Duration)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return segments, nil
}

// mirrorArtifacts uploads derived artifacts to S3 when configured.
// Mirroring is best-effort and never fails a run.
func (s *Service) mirrorArtifacts(ctx context.Context, v *Video) {
	for kind, path := range v.Clone().Outputs {
		key := fmt.Sprintf("%s/%s", v.ID, filepath.Base(path))
		url, err := s.store.MirrorArtifact(ctx, key, path)
		if err != nil {
			if errors.Is(err, storage.ErrS3NotConfigured) {
				return
			}
			s.logger.Warn("artifact mirroring failed",
				slog.String("video_id", v.ID),
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		v.SetMirrorURL(kind, url)
	}
}

// Delete removes a record and every file it references. The ownership
// check happens before any filesystem mutation.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !v.OwnedBy(ownerID) {
		return ErrUnauthorized
	}

	files := append(v.OutputPaths(), v.Path)
	if err := s.store.RemoveAll(ctx, files); err != nil {
		return fmt.Errorf("remove files: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("video deleted",
		slog.String("video_id", id),
		slog.String("owner_id", ownerID),
		slog.Int("files_removed", len(files)),
	)
	return nil
}
