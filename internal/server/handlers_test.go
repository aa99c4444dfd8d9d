package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/snipx/snipx-api/internal/audio"
	"github.com/snipx/snipx-api/internal/auth"
	"github.com/snipx/snipx-api/internal/media"
	"github.com/snipx/snipx-api/internal/storage"
	"github.com/snipx/snipx-api/internal/video"
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

func (m *mockEditor) Enhance(ctx context.Context, input, output string, kind video.EnhancementType) error {
	args := m.Called(ctx, input, output, kind)
	return args.Error(0)
}

type testEnv struct {
	handlers  *Handlers
	router    http.Handler
	authMgr   *auth.Manager
	repo      *video.MemoryRepository
	store     *mockStore
	processor *mockProcessor
	editor    *mockEditor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := video.NewMemoryRepository()
	store := &mockStore{}
	processor := &mockProcessor{}
	editor := &mockEditor{}

	svc := video.NewService(repo, store, processor, editor, logger)
	authMgr := auth.NewManager("test-secret", "snipx", time.Hour)
	handlers := NewHandlers(svc, logger)
	router := NewRouter(handlers, authMgr, logger, DefaultConfig())

	return &testEnv{
		handlers:  handlers,
		router:    router,
		authMgr:   authMgr,
		repo:      repo,
		store:     store,
		processor: processor,
		editor:    editor,
	}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.authMgr.IssueToken(userID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) seedVideo(t *testing.T, ownerID string) *video.Video {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	header := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom")...)
	require.NoError(t, os.WriteFile(path, append(header, make([]byte, 32)...), 0o600))

	v := video.NewWithID("vid-test", ownerID, "clip.mp4", path, 44)
	v.Metadata = video.Metadata{Duration: 30, FPS: 30, Resolution: "1280x720", Format: "mp4"}
	require.NoError(t, e.repo.Save(context.Background(), v))
	return v
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestUpload_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/videos", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "MISSING_AUTH", resp.Code)
}

func TestUpload_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/videos", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpload_Success(t *testing.T) {
	env := newTestEnv(t)

	savedPath := filepath.Join(t.TempDir(), "clip.mp4")
	header := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom")...)
	content := append(header, make([]byte, 32)...)
	require.NoError(t, os.WriteFile(savedPath, content, 0o600))

	env.store.On("SaveUpload", mock.Anything, "clip.mp4", mock.Anything).Return(savedPath, int64(44), nil)
	env.processor.On("Probe", mock.Anything, savedPath).Return(media.ProbeResult{
		Duration: 12, FPS: 25, Width: 640, Height: 480,
	}, nil)

	body, contentType := multipartBody(t, "video", "clip.mp4", content)
	req := httptest.NewRequest(http.MethodPost, "/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestUpload_MissingFileField(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, "wrong_field", "clip.mp4", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "MISSING_FILE", resp.Code)
}

func TestUpload_RejectsInvalidVideo(t *testing.T) {
	env := newTestEnv(t)

	savedPath := filepath.Join(t.TempDir(), "notes.mp4")
	require.NoError(t, os.WriteFile(savedPath, []byte("just some text"), 0o600))

	env.store.On("SaveUpload", mock.Anything, "notes.mp4", mock.Anything).Return(savedPath, int64(14), nil)
	env.store.On("Remove", mock.Anything, savedPath).Return(nil)

	body, contentType := multipartBody(t, "video", "notes.mp4", []byte("just some text"))
	req := httptest.NewRequest(http.MethodPost, "/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_VIDEO", resp.Code)
}

func TestProcess_Success(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	env.processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	env.store.On("MirrorArtifact", mock.Anything, mock.Anything, mock.Anything).Return("", storage.ErrS3NotConfigured)

	body, _ := json.Marshal(ProcessRequest{Options: OptionsPayload{GenerateThumbnail: true}})
	req := httptest.NewRequest(http.MethodPost, "/videos/"+v.ID+"/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Contains(t, resp.Outputs, "thumbnail")
}

func TestProcess_ValidationError(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	body, _ := json.Marshal(ProcessRequest{Options: OptionsPayload{Brightness: 500}})
	req := httptest.NewRequest(http.MethodPost, "/videos/"+v.ID+"/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestProcess_NotFound(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(ProcessRequest{})
	req := httptest.NewRequest(http.MethodPost, "/videos/missing/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcess_FatalFailureReturnsRecord(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := video.NewMemoryRepository()
	store := &mockStore{}
	processor := &mockProcessor{}
	editor := &mockEditor{}
	svc := video.NewService(repo, store, processor, editor, logger,
		video.WithFatalSteps([]string{"thumbnail"}))
	authMgr := auth.NewManager("test-secret", "snipx", time.Hour)
	router := NewRouter(NewHandlers(svc, logger), authMgr, logger, DefaultConfig())

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	v := video.NewWithID("vid-test", "user-1", "clip.mp4", path, 1)
	require.NoError(t, repo.Save(context.Background(), v))

	processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("boom"))

	token, err := authMgr.IssueToken("user-1")
	require.NoError(t, err)

	body, _ := json.Marshal(ProcessRequest{Options: OptionsPayload{GenerateThumbnail: true}})
	req := httptest.NewRequest(http.MethodPost, "/videos/vid-test/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "failed", resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func TestGetVideo(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/videos/"+v.ID, nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, v.ID, resp.ID)
	assert.Equal(t, "1280x720", resp.Metadata.Resolution)
}

func TestGetVideo_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/videos/missing", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListVideos_OnlyOwn(t *testing.T) {
	env := newTestEnv(t)
	env.seedVideo(t, "user-1")

	other := video.NewWithID("vid-other", "user-2", "other.mp4", "/tmp/other.mp4", 0)
	require.NoError(t, env.repo.Save(context.Background(), other))

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "vid-test", resp[0].ID)
}

func TestDeleteVideo(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	env.store.On("RemoveAll", mock.Anything, mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/videos/"+v.ID, nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := env.repo.FindByID(context.Background(), v.ID)
	assert.ErrorIs(t, err, video.ErrNotFound)
}

func TestDeleteVideo_NotOwner(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/videos/"+v.ID, nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-2"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env.store.AssertNotCalled(t, "RemoveAll", mock.Anything, mock.Anything)

	// Record survives.
	_, err := env.repo.FindByID(context.Background(), v.ID)
	assert.NoError(t, err)
}

func TestDownload_ServesProcessedVideo(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	processed := filepath.Join(filepath.Dir(v.Path), "clip_processed.mp4")
	require.NoError(t, os.WriteFile(processed, []byte("processed content"), 0o600))
	v.SetOutput(video.OutputProcessedVideo, processed)
	require.NoError(t, env.repo.Save(context.Background(), v))

	req := httptest.NewRequest(http.MethodGet, "/videos/"+v.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "enhanced_clip.mp4")
	assert.Equal(t, "processed content", rec.Body.String())
}

func TestDownload_FallsBackToSource(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/videos/"+v.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDownload_NotOwner(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVideo(t, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/videos/"+v.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-2"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
