package repository

import (
	"context"

	"contractapi/internal/model"
)

// AuditRepository appends audit entries. Entries are never updated.
type AuditRepository interface {
	Insert(ctx context.Context, e *model.AuditEntry) error
}
