package postgres

import (
	"context"
	"database/sql"

	"contractapi/internal/model"
	"contractapi/internal/repository"
)

// AuditPostgres appends rows to audit_logs.
type AuditPostgres struct {
	db *sql.DB
}

func NewAuditPostgres(db *sql.DB) *AuditPostgres {
	return &AuditPostgres{db: db}
}

var _ repository.AuditRepository = (*AuditPostgres)(nil)

func (r *AuditPostgres) Insert(ctx context.Context, e *model.AuditEntry) error {
	const q = `
		INSERT INTO audit_logs (user_id, action, resource_id, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	details, err := jsonArg(e.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		optString(e.ActorID),
		e.Action,
		optString(e.ResourceID),
		details,
		optString(e.Origin),
		optString(e.UserAgent),
		e.CreatedAt,
	)
	return err
}
