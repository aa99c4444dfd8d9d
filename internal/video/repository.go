package video

import (
	"context"
	"errors"
)

// Static errors for video record access.
var (
	// ErrNotFound is returned when a record cannot be found by ID.
	ErrNotFound = errors.New("video not found")
	// ErrUnauthorized is returned when a caller acts on a record it does not own.
	ErrUnauthorized = errors.New("unauthorized")
)

// Repository defines the interface for video record persistence.
// It acts as a port in the hexagonal architecture pattern; the document
// store behind it is an external collaborator.
type Repository interface {
	// Save persists a record to the storage.
	// If the record already exists, it is updated.
	Save(ctx context.Context, v *Video) error

	// FindByID retrieves a record by its unique identifier.
	// Returns ErrNotFound if the record does not exist.
	FindByID(ctx context.Context, id string) (*Video, error)

	// FindByOwner returns every record belonging to the given owner.
	FindByOwner(ctx context.Context, ownerID string) ([]*Video, error)

	// Delete removes a record from storage.
	// Returns ErrNotFound if the record does not exist.
	Delete(ctx context.Context, id string) error
}
