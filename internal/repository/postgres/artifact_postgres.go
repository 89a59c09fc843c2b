package postgres

import (
	"context"
	"database/sql"

	"contractapi/internal/model"
	"contractapi/internal/repository"
)

// ArtifactPostgres is a PostgreSQL implementation of repository.ArtifactRepository.
type ArtifactPostgres struct {
	db *sql.DB
}

// NewArtifactPostgres creates a new ArtifactPostgres repository.
func NewArtifactPostgres(db *sql.DB) *ArtifactPostgres {
	return &ArtifactPostgres{db: db}
}

var _ repository.ArtifactRepository = (*ArtifactPostgres)(nil)

const artifactColumns = `id, filename, storage_path, size, content_type, created_at`

// Create inserts a new artifact row and returns the stored record.
func (r *ArtifactPostgres) Create(ctx context.Context, a *model.Artifact) (*model.Artifact, error) {
	const q = `
		INSERT INTO artifacts (id, filename, storage_path, size, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + artifactColumns
	row := r.db.QueryRowContext(ctx, q,
		a.ID,
		a.Filename,
		a.StoragePath,
		a.Size,
		a.ContentType,
		a.CreatedAt,
	)
	out, err := scanArtifact(row)
	if err != nil {
		return nil, mapError(err, "artifact", a.ID)
	}
	return out, nil
}

// FindByID fetches a single artifact by its ID.
func (r *ArtifactPostgres) FindByID(ctx context.Context, id string) (*model.Artifact, error) {
	const q = `SELECT ` + artifactColumns + ` FROM artifacts WHERE id = $1`
	out, err := scanArtifact(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError(err, "artifact", id)
	}
	return out, nil
}

// Delete removes an artifact by ID. It does not return an error if the row does not exist.
func (r *ArtifactPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM artifacts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func scanArtifact(s rowScanner) (*model.Artifact, error) {
	var a model.Artifact
	if err := s.Scan(
		&a.ID,
		&a.Filename,
		&a.StoragePath,
		&a.Size,
		&a.ContentType,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
