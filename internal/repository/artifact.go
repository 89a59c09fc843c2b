package repository

import (
	"context"

	"contractapi/internal/model"
)

// ArtifactRepository persists metadata of stored binaries (signed PDFs, master documents).
// Persistence only; no business rules.
type ArtifactRepository interface {
	// Create inserts a new artifact record and returns the stored row.
	Create(ctx context.Context, a *model.Artifact) (*model.Artifact, error)

	// FindByID returns an artifact by its ID, or an apperr.ErrNotFound wrap.
	FindByID(ctx context.Context, id string) (*model.Artifact, error)

	// Delete removes an artifact by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
