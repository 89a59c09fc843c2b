// Package migration applies the versioned schema at startup.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Version int
	Name    string
	SQL     string
}

// steps is append-only. Applied versions are recorded in schema_migrations
// and never re-run; change the schema by adding a step.
var steps = []migrationStep{
	{
		Version: 1,
		Name:    "create_extension_uuid_ossp",
		SQL:     `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Version: 2,
		Name:    "create_table_artifacts",
		SQL: `CREATE TABLE IF NOT EXISTS artifacts (
  id           UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  filename     TEXT        NOT NULL,
  storage_path TEXT        NOT NULL UNIQUE,
  size         BIGINT      NOT NULL CHECK (size >= 0),
  content_type TEXT        NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Version: 3,
		Name:    "create_table_contract_templates",
		SQL: `CREATE TABLE IF NOT EXISTS contract_templates (
  id                 UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  name               TEXT        NOT NULL,
  variables          JSONB       NOT NULL DEFAULT '[]'::jsonb,
  content            TEXT        NOT NULL,
  master_document_id UUID        REFERENCES artifacts (id),
  requires_approval  BOOLEAN     NOT NULL DEFAULT true,
  is_active          BOOLEAN     NOT NULL DEFAULT true,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Version: 4,
		Name:    "create_table_contracts",
		SQL: `CREATE TABLE IF NOT EXISTS contracts (
  id                     UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  template_id            UUID        NOT NULL REFERENCES contract_templates (id),
  creator_id             TEXT        NOT NULL,
  reviewer_id            TEXT,
  client_name            TEXT        NOT NULL,
  variable_values        JSONB       NOT NULL DEFAULT '{}'::jsonb,
  status                 TEXT        NOT NULL CHECK (status IN ('DRAFT', 'PENDING_APPROVAL', 'PENDING_SIGNATURE', 'REJECTED', 'SIGNED', 'CANCELLED')),
  signing_token          TEXT        UNIQUE,
  short_link_code        TEXT        UNIQUE,
  verification_code_hash TEXT,
  rejection_reason       TEXT,
  signature_artifact_id  UUID        REFERENCES artifacts (id),
  signature_image        TEXT,
  created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
  signed_at              TIMESTAMPTZ
);`,
	},
	{
		Version: 5,
		Name:    "create_index_contracts_creator_status",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_contracts_creator_status ON contracts (creator_id, status, created_at DESC);`,
	},
	{
		Version: 6,
		Name:    "create_table_audit_logs",
		SQL: `CREATE TABLE IF NOT EXISTS audit_logs (
  id          BIGSERIAL   PRIMARY KEY,
  user_id     TEXT,
  action      TEXT        NOT NULL,
  resource_id TEXT,
  details     JSONB,
  ip_address  TEXT,
  user_agent  TEXT,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Version: 7,
		Name:    "create_index_audit_logs_resource",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs (resource_id, created_at);`,
	},
}

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
  version    INTEGER     PRIMARY KEY,
  name       TEXT        NOT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// EnsureMigrated applies every step newer than the recorded schema version.
// Each step runs in its own transaction together with its version row.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"))
	log.Info("db_migration_check", zap.String("status", "starting"))

	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		log.Error("db_migration_failed", zap.Error(err))
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		log.Error("db_migration_failed", zap.Error(err))
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	applied := 0
	for _, step := range steps {
		if step.Version <= current {
			continue
		}
		stepStart := time.Now()
		if err := apply(ctx, db, step); err != nil {
			log.Error("db_migration_failed",
				zap.String("migration_step", step.Name),
				zap.Int("version", step.Version),
				zap.Duration("step_duration", time.Since(stepStart)),
				zap.Error(err),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		applied++
		log.Info("db_migration_step",
			zap.String("migration_step", step.Name),
			zap.Int("version", step.Version),
			zap.Duration("step_duration", time.Since(stepStart)),
		)
	}

	log.Info("db_migration_success",
		zap.Int("from_version", current),
		zap.Int("applied", applied),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func apply(ctx context.Context, db *sql.DB, step migrationStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, step.Version, step.Name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
