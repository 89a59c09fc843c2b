package repository

import (
	"context"

	"contractapi/internal/model"
)

// TemplateRepository reads contract templates. Template authoring lives elsewhere.
type TemplateRepository interface {
	FindByID(ctx context.Context, id string) (*model.Template, error)
	ListActive(ctx context.Context) ([]model.Template, error)
}
