package model

import "time"

// Audit actions emitted by the core.
const (
	AuditContractCreated     = "CONTRACT_CREATED"
	AuditContractIssued      = "CONTRACT_ISSUED"
	AuditContractApproved    = "CONTRACT_APPROVED"
	AuditContractRejected    = "CONTRACT_REJECTED"
	AuditContractResubmitted = "CONTRACT_RESUBMITTED"
	AuditContractUpdated     = "CONTRACT_UPDATED"
	AuditContractCancelled   = "CONTRACT_CANCELLED"
	AuditVerifySuccess       = "VERIFY_SUCCESS"
	AuditVerifyFailed        = "VERIFY_FAILED"
	AuditVerifyInPerson      = "VERIFY_IN_PERSON"
	AuditSignContract        = "SIGN_CONTRACT"
)

// AuditEntry is an immutable record of a security-relevant action.
// ActorID is empty for unauthenticated actors (customers on the signing page).
type AuditEntry struct {
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	Origin     string         `json:"origin,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
