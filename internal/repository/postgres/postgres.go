// Package postgres implements the repository interfaces on database/sql with
// the pgx driver. Queries are parameterized and carry no business logic.
package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/volatiletech/null/v8"

	"contractapi/internal/apperr"
	"contractapi/internal/repository"
)

const uniqueViolation = "23505"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// mapError translates driver errors into repository/apperr sentinels.
func mapError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s %s: %w", resource, pgErr.ConstraintName, repository.ErrDuplicate)
	}
	return err
}

func jsonArg(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func optString(s string) null.String {
	return null.NewString(s, s != "")
}
