package repository

import (
	"context"
	"time"

	"contractapi/internal/model"
)

// StatusPatch carries the columns written together with a status transition.
// Nil fields are left unchanged.
type StatusPatch struct {
	SigningToken         *string
	ShortLinkCode        *string
	VerificationCodeHash *string
	RejectionReason      *string
	ClearRejection       bool
	ReviewerID           *string
	VariableValues       map[string]any
}

// ContractFilter narrows List. Empty fields match everything.
type ContractFilter struct {
	CreatorID string
	Status    model.ContractStatus
	PageQuery
}

// ContractRepository persists contracts. Every mutating call is a
// compare-and-set on the current status and returns ErrStaleStatus when the
// row moved on in the meantime.
type ContractRepository interface {
	Create(ctx context.Context, c *model.Contract) (*model.Contract, error)
	FindByID(ctx context.Context, id string) (*model.Contract, error)
	FindByToken(ctx context.Context, token string) (*model.Contract, error)
	FindByShortCode(ctx context.Context, code string) (*model.Contract, error)
	List(ctx context.Context, f ContractFilter) (*PageResult[model.Contract], error)

	TokenExists(ctx context.Context, token string) (bool, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)

	UpdateVariableValues(ctx context.Context, id string, expected model.ContractStatus, values map[string]any) (*model.Contract, error)
	UpdateStatus(ctx context.Context, id string, from, to model.ContractStatus, patch StatusPatch) (*model.Contract, error)
	// AttachSignatureArtifact moves PENDING_SIGNATURE to SIGNED and stores the final values.
	AttachSignatureArtifact(ctx context.Context, id, artifactID string, values map[string]any, signatureImage string, signedAt time.Time) (*model.Contract, error)
}
