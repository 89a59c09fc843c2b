package model

import "time"

// Artifact is a stored binary (signed contract PDF, master document, ...).
// This is a pure domain model with no database-specific dependencies or tags.
// The bytes live in object storage under StoragePath; this record is the metadata.
type Artifact struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
