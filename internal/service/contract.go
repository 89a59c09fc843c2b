package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"contractapi/internal/apperr"
	"contractapi/internal/lifecycle"
	"contractapi/internal/metrics"
	"contractapi/internal/model"
	"contractapi/internal/render"
	"contractapi/internal/repository"
	"contractapi/internal/secret"
)

// maxIssueAttempts bounds retries when a freshly generated token or short
// code loses a uniqueness race on commit.
const maxIssueAttempts = 3

// Actor is the caller of a staff operation. Authentication happens upstream;
// the core only compares ids.
type Actor struct {
	ID        string
	Origin    string
	UserAgent string
}

// Auditor records audit entries. Implementations never fail the caller.
type Auditor interface {
	Record(ctx context.Context, e model.AuditEntry)
}

// RenderSettings are the deployment-wide rendering options.
type RenderSettings struct {
	Locale               string
	SignaturePlaceholder string
}

type CreateContractInput struct {
	TemplateID string         `json:"template_id"`
	ClientName string         `json:"client_name"`
	Values     map[string]any `json:"variable_values"`
	// AsDraft keeps a contract that needs no approval in DRAFT until it is issued.
	AsDraft bool `json:"as_draft"`
}

// IssuedContract is returned by calls that may issue signing material.
// VerificationCode is the plaintext one-time code; it is only ever present in
// the response of the call that generated it.
type IssuedContract struct {
	Contract         *model.Contract `json:"contract"`
	VerificationCode string          `json:"verification_code,omitempty"`
}

type ContractListFilter struct {
	CreatorID string
	Status    model.ContractStatus
	Limit     int
	Offset    int
}

// ContractListResult is the service-level DTO for paginated contracts.
type ContractListResult struct {
	Items []model.Contract `json:"data"`
	Total int              `json:"total"`
}

// ContractService drives the staff side of the contract lifecycle.
type ContractService interface {
	ListTemplates(ctx context.Context) ([]model.Template, error)

	Create(ctx context.Context, actor Actor, in CreateContractInput) (*IssuedContract, error)
	Get(ctx context.Context, id string) (*model.Contract, error)
	List(ctx context.Context, f ContractListFilter) (*ContractListResult, error)

	// Issue moves a DRAFT to PENDING_SIGNATURE. Creator only.
	Issue(ctx context.Context, actor Actor, id string) (*IssuedContract, error)
	Approve(ctx context.Context, actor Actor, id string) (*IssuedContract, error)
	Reject(ctx context.Context, actor Actor, id, reason string) (*model.Contract, error)
	// Resubmit merges edited values into a REJECTED contract and sends it back for approval. Creator only.
	Resubmit(ctx context.Context, actor Actor, id string, values map[string]any) (*model.Contract, error)
	// UpdateFields edits values before signing. Creator only.
	UpdateFields(ctx context.Context, actor Actor, id string, values map[string]any) (*model.Contract, error)
	// Cancel is allowed from DRAFT and PENDING_SIGNATURE. Creator only.
	Cancel(ctx context.Context, actor Actor, id string) (*model.Contract, error)

	// Preview renders the locked document as staff see it.
	Preview(ctx context.Context, id string) (string, error)
}

type contractService struct {
	contracts repository.ContractRepository
	templates repository.TemplateRepository
	audit     Auditor
	metrics   *metrics.Metrics
	settings  RenderSettings
	now       func() time.Time

	newMaterial func(ctx context.Context) (*secret.Material, error)
}

// NewContractService constructs a new ContractService. m may be nil.
func NewContractService(contracts repository.ContractRepository, templates repository.TemplateRepository, audit Auditor, m *metrics.Metrics, settings RenderSettings) ContractService {
	s := &contractService{
		contracts: contracts,
		templates: templates,
		audit:     audit,
		metrics:   m,
		settings:  settings,
		now:       time.Now,
	}
	s.newMaterial = s.generateMaterial
	return s
}

func (s *contractService) generateMaterial(ctx context.Context) (*secret.Material, error) {
	return secret.NewMaterial(
		func(v string) (bool, error) { return s.contracts.TokenExists(ctx, v) },
		func(v string) (bool, error) { return s.contracts.ShortCodeExists(ctx, v) },
	)
}

func (s *contractService) ListTemplates(ctx context.Context) ([]model.Template, error) {
	return s.templates.ListActive(ctx)
}

func (s *contractService) Create(ctx context.Context, actor Actor, in CreateContractInput) (*IssuedContract, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized("actor is required")
	}
	in.ClientName = strings.TrimSpace(in.ClientName)
	if in.ClientName == "" {
		return nil, apperr.Validation("client name is required")
	}
	if in.TemplateID == "" {
		return nil, apperr.Validation("template id is required")
	}

	tpl, err := s.templates.FindByID(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsActive {
		return nil, apperr.Validation("template %s is not active", tpl.ID)
	}

	now := s.now().UTC()
	c := &model.Contract{
		ID:             uuid.NewString(),
		TemplateID:     tpl.ID,
		CreatorID:      actor.ID,
		ClientName:     in.ClientName,
		VariableValues: render.Normalize(in.Values, tpl.Variables),
		Status:         lifecycle.InitialStatus(tpl.RequiresApproval, in.AsDraft),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var (
		created *model.Contract
		code    string
	)
	for attempt := 1; ; attempt++ {
		if c.Status == model.StatusPendingSignature {
			m, err := s.newMaterial(ctx)
			if err != nil {
				return nil, fmt.Errorf("issue signing material: %w", err)
			}
			c.SigningToken, c.ShortLinkCode, c.VerificationCodeHash = m.Token, m.ShortCode, m.CodeHash
			code = m.Code
		}
		created, err = s.contracts.Create(ctx, c)
		if errors.Is(err, repository.ErrDuplicate) && c.Status == model.StatusPendingSignature && attempt < maxIssueAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	s.metrics.Transition("", created.Status)
	s.record(ctx, actor, model.AuditContractCreated, created.ID, map[string]any{
		"template_id": tpl.ID,
		"status":      string(created.Status),
	})
	return &IssuedContract{Contract: created, VerificationCode: code}, nil
}

func (s *contractService) Get(ctx context.Context, id string) (*model.Contract, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	return s.contracts.FindByID(ctx, id)
}

func (s *contractService) List(ctx context.Context, f ContractListFilter) (*ContractListResult, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	res, err := s.contracts.List(ctx, repository.ContractFilter{
		CreatorID: f.CreatorID,
		Status:    f.Status,
		PageQuery: repository.PageQuery{Limit: f.Limit, Offset: f.Offset},
	})
	if err != nil {
		return nil, err
	}
	return &ContractListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *contractService) Issue(ctx context.Context, actor Actor, id string) (*IssuedContract, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	out, err := s.issue(ctx, c, lifecycle.EventIssue, repository.StatusPatch{})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, model.AuditContractIssued, c.ID, nil)
	return out, nil
}

func (s *contractService) Approve(ctx context.Context, actor Actor, id string) (*IssuedContract, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized("reviewer is required")
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.issue(ctx, c, lifecycle.EventApprove, repository.StatusPatch{ReviewerID: &actor.ID})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, model.AuditContractApproved, c.ID, nil)
	return out, nil
}

func (s *contractService) Reject(ctx context.Context, actor Actor, id, reason string) (*model.Contract, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized("reviewer is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.transition(ctx, c, lifecycle.EventReject, repository.StatusPatch{
		RejectionReason: &reason,
		ReviewerID:      &actor.ID,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, model.AuditContractRejected, c.ID, map[string]any{"reason": reason})
	return out, nil
}

func (s *contractService) Resubmit(ctx context.Context, actor Actor, id string, values map[string]any) (*model.Contract, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.FindByID(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	out, err := s.transition(ctx, c, lifecycle.EventResubmit, repository.StatusPatch{
		ClearRejection: true,
		VariableValues: render.Merge(c.VariableValues, values, tpl.Variables),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, model.AuditContractResubmitted, c.ID, map[string]any{"fields": sortedKeys(values)})
	return out, nil
}

func (s *contractService) UpdateFields(ctx context.Context, actor Actor, id string, values map[string]any) (*model.Contract, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.Editable(c.Status) {
		return nil, &apperr.StateConflictError{ContractID: c.ID, Current: string(c.Status), Required: lifecycle.EditableStatuses()}
	}
	tpl, err := s.templates.FindByID(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	out, err := s.contracts.UpdateVariableValues(ctx, c.ID, c.Status, render.Merge(c.VariableValues, values, tpl.Variables))
	if errors.Is(err, repository.ErrStaleStatus) {
		return nil, s.conflict(ctx, c.ID, lifecycle.EditableStatuses())
	}
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, model.AuditContractUpdated, c.ID, map[string]any{"fields": sortedKeys(values)})
	return out, nil
}

func (s *contractService) Cancel(ctx context.Context, actor Actor, id string) (*model.Contract, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	out, err := s.transition(ctx, c, lifecycle.EventCancel, repository.StatusPatch{})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, model.AuditContractCancelled, c.ID, map[string]any{"from": string(c.Status)})
	return out, nil
}

func (s *contractService) Preview(ctx context.Context, id string) (string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	tpl, err := s.templates.FindByID(ctx, c.TemplateID)
	if err != nil {
		return "", err
	}
	return render.Final(tpl.Content, c.VariableValues, tpl.Variables, render.Options{
		WrapBold:             true,
		SignatureImage:       c.SignatureImage,
		SignaturePlaceholder: s.settings.SignaturePlaceholder,
		Locale:               s.settings.Locale,
	}), nil
}

// owned loads id and checks that actor created it.
func (s *contractService) owned(ctx context.Context, actor Actor, id string) (*model.Contract, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized("actor is required")
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != actor.ID {
		return nil, apperr.Unauthorized("only the creator may modify this contract")
	}
	return c, nil
}

// issue applies ev with fresh signing material, regenerating it when the
// commit reports a uniqueness violation.
func (s *contractService) issue(ctx context.Context, c *model.Contract, ev lifecycle.Event, patch repository.StatusPatch) (*IssuedContract, error) {
	if _, err := lifecycle.Next(c, ev); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		m, err := s.newMaterial(ctx)
		if err != nil {
			return nil, fmt.Errorf("issue signing material: %w", err)
		}
		p := patch
		p.SigningToken, p.ShortLinkCode, p.VerificationCodeHash = &m.Token, &m.ShortCode, &m.CodeHash

		out, err := s.transition(ctx, c, ev, p)
		if errors.Is(err, repository.ErrDuplicate) && attempt < maxIssueAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &IssuedContract{Contract: out, VerificationCode: m.Code}, nil
	}
}

// transition applies ev to c as a compare-and-set on c.Status. Losing the
// race is reported as a StateConflictError with the status found on re-read.
func (s *contractService) transition(ctx context.Context, c *model.Contract, ev lifecycle.Event, patch repository.StatusPatch) (*model.Contract, error) {
	to, err := lifecycle.Next(c, ev)
	if err != nil {
		return nil, err
	}
	out, err := s.contracts.UpdateStatus(ctx, c.ID, c.Status, to, patch)
	if errors.Is(err, repository.ErrStaleStatus) {
		return nil, s.conflict(ctx, c.ID, []string{string(c.Status)})
	}
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(c.Status, to)
	return out, nil
}

func (s *contractService) conflict(ctx context.Context, id string, required []string) error {
	current := "UNKNOWN"
	if c, err := s.contracts.FindByID(ctx, id); err == nil {
		current = string(c.Status)
	}
	return &apperr.StateConflictError{ContractID: id, Current: current, Required: required}
}

func (s *contractService) record(ctx context.Context, actor Actor, action, resourceID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     action,
		ResourceID: resourceID,
		Details:    details,
		Origin:     actor.Origin,
		UserAgent:  actor.UserAgent,
	})
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
