package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"contractapi/internal/apperr"
	"contractapi/internal/model"
	"contractapi/internal/repository"
	"contractapi/internal/storage"
)

var (
	ErrIDRequired = apperr.Validation("id is required")
	ErrReaderNil  = apperr.Validation("reader is nil")
)

// ArtifactService stores binaries (signed contracts, master documents) and
// their metadata as one unit.
type ArtifactService interface {
	// Save uploads the content to object storage, saves metadata to DB, and rolls back storage if DB save fails.
	// filename is used only to extract the extension; the stored name is UUID + extension.
	Save(ctx context.Context, r io.Reader, filename, contentType string, size int64) (*model.Artifact, error)

	// Get returns artifact metadata by ID.
	Get(ctx context.Context, id string) (*model.Artifact, error)

	// Read returns the artifact content.
	Read(ctx context.Context, id string) ([]byte, error)

	// Delete removes an artifact from both storage and repository.
	Delete(ctx context.Context, id string) error

	// PresignURL returns a time-limited download URL.
	PresignURL(ctx context.Context, id string, expiry time.Duration) (string, error)
}

type artifactService struct {
	store storage.Storage
	repo  repository.ArtifactRepository
	now   func() time.Time
}

// NewArtifactService constructs a new ArtifactService.
func NewArtifactService(store storage.Storage, repo repository.ArtifactRepository) ArtifactService {
	return &artifactService{store: store, repo: repo, now: time.Now}
}

func (s *artifactService) Save(ctx context.Context, r io.Reader, filename, contentType string, size int64) (*model.Artifact, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	id := uuid.NewString()
	genName := id + filepath.Ext(filename)
	key := filepath.ToSlash(filepath.Join("artifacts", genName))

	objInfo, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	a := &model.Artifact{
		ID:          id,
		Filename:    genName,
		StoragePath: objInfo.Key,
		Size:        objInfo.Size,
		ContentType: objInfo.ContentType,
		CreatedAt:   s.now().UTC(),
	}
	stored, err := s.repo.Create(ctx, a)
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *artifactService) Get(ctx context.Context, id string) (*model.Artifact, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	return s.repo.FindByID(ctx, id)
}

func (s *artifactService) Read(ctx context.Context, id string) ([]byte, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, _, err := s.store.Get(ctx, a.StoragePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if a.Size > 0 {
		buf.Grow(int(a.Size))
	}
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read %s: %w", a.StoragePath, err)
	}
	return buf.Bytes(), nil
}

// Delete removes the object first; if that fails the row stays so the object is not orphaned.
func (s *artifactService) Delete(ctx context.Context, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, a.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.repo.Delete(ctx, id)
}

func (s *artifactService) PresignURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, a.StoragePath, expiry)
}
