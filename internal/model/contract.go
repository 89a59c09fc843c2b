package model

import "time"

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	StatusDraft            ContractStatus = "DRAFT"
	StatusPendingApproval  ContractStatus = "PENDING_APPROVAL"
	StatusPendingSignature ContractStatus = "PENDING_SIGNATURE"
	StatusRejected         ContractStatus = "REJECTED"
	StatusSigned           ContractStatus = "SIGNED"
	StatusCancelled        ContractStatus = "CANCELLED"
)

// Contract is a template instance routed through approval and signing.
//
// SigningToken, ShortLinkCode and VerificationCodeHash are empty until the
// contract enters PENDING_SIGNATURE for the first time; once set they never change.
type Contract struct {
	ID                   string         `json:"id"`
	TemplateID           string         `json:"template_id"`
	CreatorID            string         `json:"creator_id"`
	ReviewerID           string         `json:"reviewer_id,omitempty"`
	ClientName           string         `json:"client_name"`
	VariableValues       map[string]any `json:"variable_values"`
	Status               ContractStatus `json:"status"`
	SigningToken         string         `json:"signing_token,omitempty"`
	ShortLinkCode        string         `json:"short_link_code,omitempty"`
	VerificationCodeHash string         `json:"-"`
	RejectionReason      *string        `json:"rejection_reason,omitempty"`
	SignatureArtifactID  *string        `json:"signature_artifact_id,omitempty"`
	// SignatureImage is the customer's signature data URL, kept for previews of signed contracts.
	SignatureImage       string         `json:"-"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	SignedAt             *time.Time     `json:"signed_at,omitempty"`
}
