package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"contractapi/internal/model"
	"contractapi/internal/repository"
)

// ContractPostgres is a PostgreSQL implementation of repository.ContractRepository.
// Status changes are single UPDATE ... WHERE status = $expected statements, so
// two racing transitions cannot both succeed.
type ContractPostgres struct {
	db *sql.DB
}

// NewContractPostgres creates a new ContractPostgres repository.
func NewContractPostgres(db *sql.DB) *ContractPostgres {
	return &ContractPostgres{db: db}
}

var _ repository.ContractRepository = (*ContractPostgres)(nil)

const contractColumns = `id, template_id, creator_id, reviewer_id, client_name, variable_values, status,
	signing_token, short_link_code, verification_code_hash, rejection_reason, signature_artifact_id,
	signature_image, created_at, updated_at, signed_at`

// Create inserts a contract. Unique violations on token or short code map to repository.ErrDuplicate.
func (r *ContractPostgres) Create(ctx context.Context, c *model.Contract) (*model.Contract, error) {
	const q = `
		INSERT INTO contracts (id, template_id, creator_id, reviewer_id, client_name, variable_values, status,
			signing_token, short_link_code, verification_code_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + contractColumns
	values, err := jsonArg(nonNilValues(c.VariableValues))
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.TemplateID,
		c.CreatorID,
		optString(c.ReviewerID),
		c.ClientName,
		values,
		string(c.Status),
		optString(c.SigningToken),
		optString(c.ShortLinkCode),
		optString(c.VerificationCodeHash),
		c.CreatedAt,
		c.UpdatedAt,
	)
	out, err := scanContract(row)
	if err != nil {
		return nil, mapError(err, "contract", c.ID)
	}
	return out, nil
}

func (r *ContractPostgres) FindByID(ctx context.Context, id string) (*model.Contract, error) {
	return r.findBy(ctx, "id", id)
}

func (r *ContractPostgres) FindByToken(ctx context.Context, token string) (*model.Contract, error) {
	return r.findBy(ctx, "signing_token", token)
}

func (r *ContractPostgres) FindByShortCode(ctx context.Context, code string) (*model.Contract, error) {
	return r.findBy(ctx, "short_link_code", code)
}

// findBy only ever receives one of the fixed column names above.
func (r *ContractPostgres) findBy(ctx context.Context, column, value string) (*model.Contract, error) {
	q := `SELECT ` + contractColumns + ` FROM contracts WHERE ` + column + ` = $1`
	c, err := scanContract(r.db.QueryRowContext(ctx, q, value))
	if err != nil {
		return nil, mapError(err, "contract", value)
	}
	return c, nil
}

// List returns contracts newest first using LIMIT/OFFSET pagination and a total count.
func (r *ContractPostgres) List(ctx context.Context, f repository.ContractFilter) (*repository.PageResult[model.Contract], error) {
	const where = ` WHERE ($1 = '' OR creator_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`+where, f.CreatorID, string(f.Status)).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts`+where+` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		f.CreatorID, string(f.Status), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Contract]{Items: items, Total: total}, nil
}

func (r *ContractPostgres) TokenExists(ctx context.Context, token string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM contracts WHERE signing_token = $1)`, token)
}

func (r *ContractPostgres) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM contracts WHERE short_link_code = $1)`, code)
}

func (r *ContractPostgres) exists(ctx context.Context, q, arg string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// UpdateVariableValues replaces the stored values if the contract is still in expected.
func (r *ContractPostgres) UpdateVariableValues(ctx context.Context, id string, expected model.ContractStatus, values map[string]any) (*model.Contract, error) {
	const q = `
		UPDATE contracts
		SET variable_values = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + contractColumns
	v, err := jsonArg(nonNilValues(values))
	if err != nil {
		return nil, err
	}
	return r.casUpdate(ctx, q, id, string(expected), v)
}

// UpdateStatus moves the contract from -> to and applies patch in the same statement.
func (r *ContractPostgres) UpdateStatus(ctx context.Context, id string, from, to model.ContractStatus, patch repository.StatusPatch) (*model.Contract, error) {
	const q = `
		UPDATE contracts SET
			status = $3,
			signing_token = COALESCE($4, signing_token),
			short_link_code = COALESCE($5, short_link_code),
			verification_code_hash = COALESCE($6, verification_code_hash),
			rejection_reason = CASE WHEN $7 THEN NULL ELSE COALESCE($8, rejection_reason) END,
			reviewer_id = COALESCE($9, reviewer_id),
			variable_values = COALESCE($10::jsonb, variable_values),
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + contractColumns
	values, err := jsonArg(patch.VariableValues)
	if err != nil {
		return nil, err
	}
	return r.casUpdate(ctx, q, id, string(from),
		string(to),
		null.StringFromPtr(patch.SigningToken),
		null.StringFromPtr(patch.ShortLinkCode),
		null.StringFromPtr(patch.VerificationCodeHash),
		patch.ClearRejection,
		null.StringFromPtr(patch.RejectionReason),
		null.StringFromPtr(patch.ReviewerID),
		values,
	)
}

// AttachSignatureArtifact completes signing: PENDING_SIGNATURE -> SIGNED with the final values.
func (r *ContractPostgres) AttachSignatureArtifact(ctx context.Context, id, artifactID string, values map[string]any, signatureImage string, signedAt time.Time) (*model.Contract, error) {
	const q = `
		UPDATE contracts SET
			status = $3,
			signature_artifact_id = $4,
			variable_values = $5,
			signature_image = $6,
			signed_at = $7,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + contractColumns
	v, err := jsonArg(nonNilValues(values))
	if err != nil {
		return nil, err
	}
	return r.casUpdate(ctx, q, id, string(model.StatusPendingSignature),
		string(model.StatusSigned), artifactID, v, optString(signatureImage), signedAt)
}

func (r *ContractPostgres) casUpdate(ctx context.Context, q, id, expected string, args ...any) (*model.Contract, error) {
	c, err := scanContract(r.db.QueryRowContext(ctx, q, append([]any{id, expected}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrStaleStatus
	}
	if err != nil {
		return nil, mapError(err, "contract", id)
	}
	return c, nil
}

func scanContract(s rowScanner) (*model.Contract, error) {
	var (
		c                            model.Contract
		values                       []byte
		status                       string
		reviewer, token, short, hash null.String
		rejection, artifact, sigImg  null.String
		signedAt                     null.Time
	)
	if err := s.Scan(
		&c.ID,
		&c.TemplateID,
		&c.CreatorID,
		&reviewer,
		&c.ClientName,
		&values,
		&status,
		&token,
		&short,
		&hash,
		&rejection,
		&artifact,
		&sigImg,
		&c.CreatedAt,
		&c.UpdatedAt,
		&signedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(values, &c.VariableValues); err != nil {
		return nil, err
	}
	if c.VariableValues == nil {
		c.VariableValues = map[string]any{}
	}
	c.Status = model.ContractStatus(status)
	c.ReviewerID = reviewer.String
	c.SigningToken = token.String
	c.ShortLinkCode = short.String
	c.VerificationCodeHash = hash.String
	c.RejectionReason = rejection.Ptr()
	c.SignatureArtifactID = artifact.Ptr()
	c.SignatureImage = sigImg.String
	c.SignedAt = signedAt.Ptr()
	return &c, nil
}

func nonNilValues(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
