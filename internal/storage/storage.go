// Package storage provides file storage for uploaded videos and their
// derived artifacts. It defines the Store interface (port) and
// implementations for local disk with optional S3 mirroring.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Store defines the interface for media file storage.
// Uploaded sources and derived artifacts are addressed by filesystem path.
type Store interface {
	// SaveUpload persists an uploaded file under a sanitized, unique
	// filename and returns its path.
	SaveUpload(ctx context.Context, filename string, data io.Reader) (path string, size int64, err error)

	// Open reads a stored file. The caller is responsible for closing
	// the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes a stored file. Missing files are not an error.
	Remove(ctx context.Context, path string) error

	// RemoveAll deletes the given files, continuing past individual
	// failures and returning the first error encountered.
	RemoveAll(ctx context.Context, paths []string) error

	// MirrorArtifact uploads a derived artifact to S3 and returns its URL.
	// Returns ErrS3NotConfigured when S3 is not configured.
	MirrorArtifact(ctx context.Context, key, path string) (url string, err error)
}
