package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// unsafeChars matches every character that is stripped from uploaded
// filenames before they touch the filesystem.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces a client-supplied filename to a safe basename.
// Path separators and special characters are removed; an empty result
// falls back to "upload".
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// LocalStore implements the Store interface using local disk.
// It stores uploads in a configurable directory and does not support
// S3 operations unless wrapped with S3Store.
type LocalStore struct {
	uploadDir string
}

// NewLocalStore creates a new LocalStore instance.
// If uploadDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if uploadDir == "" {
		uploadDir = filepath.Join(os.TempDir(), "snipx", "uploads")
	}

	if err := os.MkdirAll(uploadDir, 0750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &LocalStore{uploadDir: uploadDir}, nil
}

// UploadDir returns the upload directory path.
func (s *LocalStore) UploadDir() string {
	return s.uploadDir
}

// SaveUpload persists an uploaded file under a sanitized, unique filename.
func (s *LocalStore) SaveUpload(ctx context.Context, filename string, data io.Reader) (string, int64, error) {
	select {
	case <-ctx.Done():
		return "", 0, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	safe := SanitizeFilename(filename)
	ext := filepath.Ext(safe)
	base := strings.TrimSuffix(safe, ext)

	f, err := os.CreateTemp(s.uploadDir, base+"_*"+ext)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	path := f.Name()
	size, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("close upload file: %w", err)
	}

	return path, size, nil
}

// Open reads a stored file.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path comes from stored records, not user input
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *LocalStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored file %s: %w", path, err)
	}
	return nil
}

// RemoveAll deletes the given files, continuing past individual failures
// and returning the first error encountered.
func (s *LocalStore) RemoveAll(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := s.Remove(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MirrorArtifact is not supported by LocalStore and returns ErrS3NotConfigured.
func (s *LocalStore) MirrorArtifact(_ context.Context, _, _ string) (string, error) {
	return "", ErrS3NotConfigured
}

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)
