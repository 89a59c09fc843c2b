package postgres

import (
	"context"
	"database/sql"

	"github.com/volatiletech/null/v8"

	"contractapi/internal/model"
	"contractapi/internal/repository"
)

// TemplatePostgres reads contract_templates.
type TemplatePostgres struct {
	db *sql.DB
}

func NewTemplatePostgres(db *sql.DB) *TemplatePostgres {
	return &TemplatePostgres{db: db}
}

var _ repository.TemplateRepository = (*TemplatePostgres)(nil)

const templateColumns = `id, name, variables, content, master_document_id, requires_approval, is_active, created_at`

func (r *TemplatePostgres) FindByID(ctx context.Context, id string) (*model.Template, error) {
	const q = `SELECT ` + templateColumns + ` FROM contract_templates WHERE id = $1`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError(err, "template", id)
	}
	return t, nil
}

// ListActive returns active templates ordered by name.
func (r *TemplatePostgres) ListActive(ctx context.Context) ([]model.Template, error) {
	const q = `SELECT ` + templateColumns + ` FROM contract_templates WHERE is_active ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanTemplate(s rowScanner) (*model.Template, error) {
	var (
		t      model.Template
		vars   []byte
		master null.String
	)
	if err := s.Scan(
		&t.ID,
		&t.Name,
		&vars,
		&t.Content,
		&master,
		&t.RequiresApproval,
		&t.IsActive,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(vars, &t.Variables); err != nil {
		return nil, err
	}
	t.MasterDocumentID = master.String
	return &t, nil
}
