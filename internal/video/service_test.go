package video

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/snipx/snipx-api/internal/audio"
	"github.com/snipx/snipx-api/internal/media"
	"github.com/snipx/snipx-api/internal/storage"
	"github.com/snipx/snipx-api/internal/transcribe"
)

// mockStore implements storage.Store for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveUpload(ctx context.Context, filename string, data io.Reader) (string, int64, error) {
	args := m.Called(ctx, filename, data)
	return args.String(0), args.Get(1).(int64), args.Error(2)
}

func (m *mockStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStore) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *mockStore) RemoveAll(ctx context.Context, paths []string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

func (m *mockStore) MirrorArtifact(ctx context.Context, key, path string) (string, error) {
	args := m.Called(ctx, key, path)
	return args.String(0), args.Error(1)
}

// mockProcessor implements media.Processor for testing.
type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Probe(ctx context.Context, path string) (media.ProbeResult, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(media.ProbeResult), args.Error(1)
}

func (m *mockProcessor) Thumbnail(ctx context.Context, videoPath string, atSeconds float64, outPath string, opts media.ThumbnailOpts) error {
	args := m.Called(ctx, videoPath, atSeconds, outPath, opts)
	return args.Error(0)
}

func (m *mockProcessor) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	args := m.Called(ctx, videoPath, outPath)
	return args.Error(0)
}

func (m *mockProcessor) Enhance(ctx context.Context, in, out string, opts media.EnhanceOpts) error {
	args := m.Called(ctx, in, out, opts)
	return args.Error(0)
}

// mockEditor implements audio.Editor for testing.
type mockEditor struct {
	mock.Mock
}

func (m *mockEditor) CutSilence(ctx context.Context, input, output string, opts audio.SilenceOpts) error {
	args := m.Called(ctx, input, output, opts)
	return args.Error(0)
}

func (m *mockEditor) Enhance(ctx context.Context, input, output string, kind EnhancementType) error {
	args := m.Called(ctx, input, output, kind)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *MemoryRepository, *mockStore, *mockProcessor, *mockEditor) {
	t.Helper()
	repo := NewMemoryRepository()
	store := &mockStore{}
	processor := &mockProcessor{}
	editor := &mockEditor{}
	svc := NewService(repo, store, processor, editor, testLogger(), opts...)
	return svc, repo, store, processor, editor
}

// writeMP4Header writes a file starting with an MP4 ftyp box so content
// sniffing identifies it as video.
func writeMP4Header(t *testing.T, path string) {
	t.Helper()
	header := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom")...)
	header = append(header, make([]byte, 32)...)
	require.NoError(t, os.WriteFile(path, header, 0o600))
}

func TestSave_NoFile(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Save(context.Background(), "user-1", "", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Save(context.Background(), "user-1", "clip.mp4", nil)
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestSave_RejectsNonVideo(t *testing.T) {
	svc, repo, store, _, _ := newTestService(t)

	path := filepath.Join(t.TempDir(), "notes.mp4")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a video"), 0o600))

	store.On("SaveUpload", mock.Anything, "notes.mp4", mock.Anything).Return(path, int64(23), nil)
	store.On("Remove", mock.Anything, path).Return(nil)

	_, err := svc.Save(context.Background(), "user-1", "notes.mp4", strings.NewReader("plain text"))
	assert.ErrorIs(t, err, ErrInvalidVideo)

	// The rejected upload leaves no record behind.
	videos, _ := repo.FindByOwner(context.Background(), "user-1")
	assert.Empty(t, videos)
	store.AssertCalled(t, "Remove", mock.Anything, path)
}

func TestSave_Success(t *testing.T) {
	svc, repo, store, processor, _ := newTestService(t)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	writeMP4Header(t, path)

	store.On("SaveUpload", mock.Anything, "clip.mp4", mock.Anything).Return(path, int64(44), nil)
	processor.On("Probe", mock.Anything, path).Return(media.ProbeResult{
		Duration: 12.5,
		FPS:      30,
		Width:    1280,
		Height:   720,
	}, nil)

	v, err := svc.Save(context.Background(), "user-1", "clip.mp4", strings.NewReader("data"))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, v.Status)
	assert.Equal(t, "user-1", v.OwnerID)
	assert.Equal(t, 12.5, v.Metadata.Duration)
	assert.Equal(t, "1280x720", v.Metadata.Resolution)
	assert.Equal(t, "mp4", v.Metadata.Format)

	saved, err := repo.FindByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, saved.ID)
}

func TestSave_ProbeFailureDegrades(t *testing.T) {
	svc, _, store, processor, _ := newTestService(t)

	path := filepath.Join(t.TempDir(), "clip.mov")
	writeMP4Header(t, path)

	store.On("SaveUpload", mock.Anything, "clip.mov", mock.Anything).Return(path, int64(44), nil)
	processor.On("Probe", mock.Anything, path).Return(media.ProbeResult{}, errors.New("ffprobe not found"))

	v, err := svc.Save(context.Background(), "user-1", "clip.mov", strings.NewReader("data"))
	require.NoError(t, err)

	assert.Equal(t, "mov", v.Metadata.Format)
	assert.Zero(t, v.Metadata.Duration)
	assert.Empty(t, v.Metadata.Resolution)
}

func seedVideo(t *testing.T, repo *MemoryRepository, dir string) *Video {
	t.Helper()
	path := filepath.Join(dir, "clip.mp4")
	writeMP4Header(t, path)
	v := NewWithID("vid-test", "user-1", "clip.mp4", path, 44)
	v.Metadata = Metadata{Duration: 30, FPS: 30, Resolution: "1280x720", Format: "mp4"}
	require.NoError(t, repo.Save(context.Background(), v))
	return v
}

func TestProcess_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Process(context.Background(), "missing", Options{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcess_AlreadyProcessing(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())
	v.Status = StatusProcessing
	require.NoError(t, repo.Save(context.Background(), v))

	_, err := svc.Process(context.Background(), v.ID, Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProcess_ThumbnailOnly(t *testing.T) {
	svc, repo, store, processor, _ := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())

	wantOut := strings.TrimSuffix(v.Path, ".mp4") + "_thumb.jpg"
	processor.On("Thumbnail", mock.Anything, v.Path, 15.0, wantOut, mock.Anything).Return(nil)
	store.On("MirrorArtifact", mock.Anything, mock.Anything, mock.Anything).Return("", storage.ErrS3NotConfigured)

	got, err := svc.Process(context.Background(), v.ID, Options{GenerateThumbnail: true})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, got.Status)
	thumb, ok := got.Output(OutputThumbnail)
	require.True(t, ok)
	assert.Equal(t, wantOut, thumb)

	// The final state is persisted.
	saved, err := repo.FindByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, saved.Status)
	assert.False(t, saved.ProcessEndedAt.IsZero())
}

func TestProcess_BestEffortStepFailureContinues(t *testing.T) {
	svc, repo, store, processor, editor := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())

	processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("frame extraction failed"))
	editor.On("CutSilence", mock.Anything, v.Path, mock.Anything, mock.Anything).Return(nil)
	store.On("MirrorArtifact", mock.Anything, mock.Anything, mock.Anything).Return("", storage.ErrS3NotConfigured)

	got, err := svc.Process(context.Background(), v.ID, Options{CutSilence: true, GenerateThumbnail: true})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, got.Status)
	_, ok := got.Output(OutputThumbnail)
	assert.False(t, ok, "failed step should not record an output")
	_, ok = got.Output(OutputProcessedVideo)
	assert.True(t, ok, "surviving step should record its output")
}

func TestProcess_FatalStepFailsRun(t *testing.T) {
	svc, repo, _, processor, _ := newTestService(t, WithFatalSteps([]string{"thumbnail"}))
	v := seedVideo(t, repo, t.TempDir())

	processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("frame extraction failed"))

	got, err := svc.Process(context.Background(), v.ID, Options{GenerateThumbnail: true})
	require.Error(t, err)
	require.NotNil(t, got)

	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "frame extraction failed")

	saved, findErr := repo.FindByID(context.Background(), v.ID)
	require.NoError(t, findErr)
	assert.Equal(t, StatusFailed, saved.Status)
}

func TestProcess_EnhancementStepsChain(t *testing.T) {
	svc, repo, store, processor, editor := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())

	cutOut := strings.TrimSuffix(v.Path, ".mp4") + "_processed.mp4"
	audioOut := strings.TrimSuffix(v.Path, ".mp4") + "_enhanced_audio.mp4"
	videoOut := strings.TrimSuffix(v.Path, ".mp4") + "_enhanced.mp4"

	editor.On("CutSilence", mock.Anything, v.Path, cutOut, mock.Anything).Return(nil)
	// Each later step consumes the previous step's output.
	editor.On("Enhance", mock.Anything, cutOut, audioOut, EnhancementFull).Return(nil)
	processor.On("Enhance", mock.Anything, audioOut, videoOut, media.EnhanceOpts{
		Brightness: 150,
		Contrast:   100,
	}).Return(nil)
	store.On("MirrorArtifact", mock.Anything, mock.Anything, mock.Anything).Return("", storage.ErrS3NotConfigured)

	got, err := svc.Process(context.Background(), v.ID, Options{
		CutSilence:   true,
		EnhanceAudio: true,
		Brightness:   150,
		Contrast:     100,
	})
	require.NoError(t, err)

	processed, ok := got.Output(OutputProcessedVideo)
	require.True(t, ok)
	assert.Equal(t, videoOut, processed)
	editor.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestProcess_SubtitlesAndSummary(t *testing.T) {
	transcriber := transcribe.NewScriptTranscriber()
	svc, repo, store, processor, _ := newTestService(t,
		WithTranscriber(transcriber),
		WithSummarizer(transcribe.NewLeadSummarizer(0)),
		WithSubtitleLanguage(transcriber.Language()),
	)
	v := seedVideo(t, repo, t.TempDir())

	wavPath := strings.TrimSuffix(v.Path, ".mp4") + "_audio.wav"
	processor.On("ExtractAudio", mock.Anything, v.Path, wavPath).Return(nil)
	store.On("Remove", mock.Anything, wavPath).Return(nil)
	store.On("MirrorArtifact", mock.Anything, mock.Anything, mock.Anything).Return("", storage.ErrS3NotConfigured)

	got, err := svc.Process(context.Background(), v.ID, Options{
		GenerateSubtitles: true,
		Summarize:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	srtPath, ok := got.Output(OutputSubtitles)
	require.True(t, ok)
	content, err := os.ReadFile(srtPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-->")

	jsonPath, ok := got.Output(OutputSubtitlesJSON)
	require.True(t, ok)
	doc, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), got.ID)

	summaryPath, ok := got.Output(OutputSummary)
	require.True(t, ok)
	summary, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.NotEmpty(t, summary)

	store.AssertCalled(t, "Remove", mock.Anything, wavPath)
}

func TestProcess_SkipsSubtitlesWithoutTranscriber(t *testing.T) {
	svc, repo, store, _, _ := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())

	store.On("MirrorArtifact", mock.Anything, mock.Anything, mock.Anything).Return("", storage.ErrS3NotConfigured)

	got, err := svc.Process(context.Background(), v.ID, Options{
		GenerateSubtitles: true,
		Summarize:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, got.Status)
	_, ok := got.Output(OutputSubtitles)
	assert.False(t, ok)
	_, ok = got.Output(OutputSummary)
	assert.False(t, ok)
}

func TestProcess_MirrorsArtifacts(t *testing.T) {
	svc, repo, store, processor, _ := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())

	processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("MirrorArtifact", mock.Anything, mock.Anything, mock.Anything).
		Return("https://bucket.s3.eu-west-1.amazonaws.com/vid-test/clip_thumb.jpg", nil)

	got, err := svc.Process(context.Background(), v.ID, Options{GenerateThumbnail: true})
	require.NoError(t, err)

	assert.Equal(t,
		"https://bucket.s3.eu-west-1.amazonaws.com/vid-test/clip_thumb.jpg",
		got.MirrorURLs[OutputThumbnail])
}

func TestDelete_RemovesRecordAndFiles(t *testing.T) {
	svc, repo, store, _, _ := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())
	v.SetOutput(OutputThumbnail, v.Path+"_thumb.jpg")
	require.NoError(t, repo.Save(context.Background(), v))

	store.On("RemoveAll", mock.Anything, mock.MatchedBy(func(paths []string) bool {
		return len(paths) == 2
	})).Return(nil)

	err := svc.Delete(context.Background(), v.ID, "user-1")
	require.NoError(t, err)

	_, err = repo.FindByID(context.Background(), v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	store.AssertExpectations(t)
}

func TestDelete_NonOwnerLeavesFilesAlone(t *testing.T) {
	svc, repo, store, _, _ := newTestService(t)
	v := seedVideo(t, repo, t.TempDir())

	err := svc.Delete(context.Background(), v.ID, "user-2")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Record still present, nothing removed from storage.
	_, findErr := repo.FindByID(context.Background(), v.ID)
	assert.NoError(t, findErr)
	store.AssertNotCalled(t, "RemoveAll", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	err := svc.Delete(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
