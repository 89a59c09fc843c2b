package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"contractapi/internal/apperr"
	"contractapi/internal/imaging"
	"contractapi/internal/lifecycle"
	"contractapi/internal/logger"
	"contractapi/internal/metrics"
	"contractapi/internal/model"
	"contractapi/internal/pipeline"
	"contractapi/internal/render"
	"contractapi/internal/repository"
	"contractapi/internal/verification"
)

// DocumentAssembler produces the signed PDF.
type DocumentAssembler interface {
	Assemble(ctx context.Context, in pipeline.Input) ([]byte, error)
}

// SigningSettings are the signing workflow options.
type SigningSettings struct {
	RenderSettings
	PipelineTimeout time.Duration
	PresignExpiry   time.Duration
}

// SigningView is what the customer signing page shows.
type SigningView struct {
	ContractID string               `json:"contract_id"`
	ClientName string               `json:"client_name"`
	Status     model.ContractStatus `json:"status"`
	Verified   bool                 `json:"verified"`
	// CanSign is true when the session is verified and the contract awaits a signature.
	CanSign bool   `json:"can_sign"`
	Content string `json:"content"`
}

// SubmitInput is the customer's signing form.
type SubmitInput struct {
	Values         map[string]any `json:"customer_variables"`
	AgreeTerms     bool           `json:"agree_terms"`
	SignatureImage string         `json:"signature_data"`
}

// SigningService drives the customer side: verification, the interactive
// form and signature submission.
type SigningService interface {
	// ResolveShortCode maps a short link code to its signing token.
	ResolveShortCode(ctx context.Context, code string) (string, error)
	View(ctx context.Context, vc verification.Context) (*SigningView, error)
	Verify(ctx context.Context, vc verification.Context, code string) (*SigningView, error)
	// VerifyInPerson marks the session verified by a staff member present with the customer.
	VerifyInPerson(ctx context.Context, actor Actor, vc verification.Context) (*SigningView, error)
	Submit(ctx context.Context, vc verification.Context, in SubmitInput) (*model.Contract, error)
	// DocumentURL returns a download link for the signed document.
	DocumentURL(ctx context.Context, token string) (string, error)
}

type signingService struct {
	contracts repository.ContractRepository
	templates repository.TemplateRepository
	artifacts ArtifactService
	gate      *verification.Gate
	assembler DocumentAssembler
	audit     Auditor
	metrics   *metrics.Metrics
	log       *zap.Logger
	settings  SigningSettings
	now       func() time.Time
}

// NewSigningService constructs a new SigningService. m may be nil.
func NewSigningService(
	contracts repository.ContractRepository,
	templates repository.TemplateRepository,
	artifacts ArtifactService,
	gate *verification.Gate,
	assembler DocumentAssembler,
	audit Auditor,
	m *metrics.Metrics,
	log *zap.Logger,
	settings SigningSettings,
) SigningService {
	return &signingService{
		contracts: contracts,
		templates: templates,
		artifacts: artifacts,
		gate:      gate,
		assembler: assembler,
		audit:     audit,
		metrics:   m,
		log:       log,
		settings:  settings,
		now:       time.Now,
	}
}

func (s *signingService) ResolveShortCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", apperr.Validation("short code is required")
	}
	c, err := s.contracts.FindByShortCode(ctx, code)
	if err != nil {
		return "", err
	}
	return c.SigningToken, nil
}

func (s *signingService) View(ctx context.Context, vc verification.Context) (*SigningView, error) {
	c, err := s.contracts.FindByToken(ctx, vc.Token)
	if err != nil {
		return nil, err
	}
	rec, err := s.gate.Lookup(ctx, vc)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c, rec != nil)
}

func (s *signingService) view(ctx context.Context, c *model.Contract, verified bool) (*SigningView, error) {
	tpl, err := s.templates.FindByID(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	v := &SigningView{
		ContractID: c.ID,
		ClientName: c.ClientName,
		Status:     c.Status,
		Verified:   verified,
		CanSign:    verified && lifecycle.Signable(c.Status),
	}
	if v.CanSign {
		v.Content = render.Interactive(tpl.Content, c.VariableValues, tpl.Variables, s.settings.Locale, s.settings.SignaturePlaceholder)
	} else {
		v.Content = render.Final(tpl.Content, c.VariableValues, tpl.Variables, render.Options{
			WrapBold:             true,
			SignatureImage:       c.SignatureImage,
			SignaturePlaceholder: s.settings.SignaturePlaceholder,
			Locale:               s.settings.Locale,
		})
	}
	return v, nil
}

func (s *signingService) Verify(ctx context.Context, vc verification.Context, code string) (*SigningView, error) {
	res, err := s.gate.RequestVerification(ctx, vc, code)
	if errors.Is(err, apperr.ErrVerificationFailed) {
		s.metrics.Verification(verification.MethodCode, false)
		resourceID := ""
		if c, findErr := s.contracts.FindByToken(ctx, vc.Token); findErr == nil {
			resourceID = c.ID
		}
		s.customerAudit(ctx, vc, model.AuditVerifyFailed, resourceID, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !res.AlreadyVerified {
		s.metrics.Verification(verification.MethodCode, true)
		s.customerAudit(ctx, vc, model.AuditVerifySuccess, res.Contract.ID, nil)
	}
	return s.view(ctx, res.Contract, true)
}

func (s *signingService) VerifyInPerson(ctx context.Context, actor Actor, vc verification.Context) (*SigningView, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized("staff id is required for in-person verification")
	}
	c, err := s.contracts.FindByToken(ctx, vc.Token)
	if err != nil {
		return nil, err
	}
	if !lifecycle.Signable(c.Status) {
		return nil, &apperr.StateConflictError{ContractID: c.ID, Current: string(c.Status), Required: []string{string(model.StatusPendingSignature)}}
	}
	if _, err := s.gate.MarkInPerson(ctx, vc, actor.ID); err != nil {
		return nil, err
	}
	s.metrics.Verification(verification.MethodInPerson, true)
	s.record(ctx, actor, model.AuditVerifyInPerson, c.ID, map[string]any{"session": vc.SessionID})
	return s.view(ctx, c, true)
}

func (s *signingService) Submit(ctx context.Context, vc verification.Context, in SubmitInput) (*model.Contract, error) {
	log := logger.WithContext(ctx, s.log)

	rec, err := s.gate.Lookup(ctx, vc)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("session is not verified: %w", apperr.ErrVerificationFailed)
	}
	c, err := s.contracts.FindByToken(ctx, vc.Token)
	if err != nil {
		return nil, err
	}
	if !lifecycle.Signable(c.Status) {
		return nil, &apperr.StateConflictError{ContractID: c.ID, Current: string(c.Status), Required: []string{string(model.StatusPendingSignature)}}
	}
	if !in.AgreeTerms {
		return nil, apperr.Validation("the personal data terms must be accepted")
	}
	if !imaging.LooksLikeDataURL(in.SignatureImage) {
		return nil, apperr.Validation("a signature image is required")
	}

	tpl, err := s.templates.FindByID(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	values := render.Merge(c.VariableValues, s.customerValues(log, in.Values, tpl.Variables), tpl.Variables)
	signedAt := s.now().UTC()

	pctx, cancel := context.WithTimeout(ctx, s.settings.PipelineTimeout)
	defer cancel()
	start := time.Now()
	doc, err := s.assembler.Assemble(pctx, pipeline.Input{
		Contract:       c,
		Template:       tpl,
		Values:         values,
		SignatureImage: in.SignatureImage,
		SignerName:     c.ClientName,
		SignedAt:       signedAt,
		OriginIP:       vc.Origin,
		Verification:   verificationLabel(rec),
	})
	s.metrics.Pipeline(time.Since(start), err)
	if err != nil {
		log.Error("signing_pipeline_failed", zap.String("contract_id", c.ID), zap.Error(err))
		return nil, err
	}

	art, err := s.artifacts.Save(ctx, bytes.NewReader(doc), "contract-"+c.ID+".pdf", "application/pdf", int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("save signed document: %w", err)
	}

	signed, err := s.contracts.AttachSignatureArtifact(ctx, c.ID, art.ID, values, in.SignatureImage, signedAt)
	if err != nil {
		if delErr := s.artifacts.Delete(ctx, art.ID); delErr != nil {
			log.Error("signed_document_rollback_failed", zap.String("artifact_id", art.ID), zap.Error(delErr))
		}
		if errors.Is(err, repository.ErrStaleStatus) {
			current := "UNKNOWN"
			if now, findErr := s.contracts.FindByID(ctx, c.ID); findErr == nil {
				current = string(now.Status)
			}
			return nil, &apperr.StateConflictError{ContractID: c.ID, Current: current, Required: []string{string(model.StatusPendingSignature)}}
		}
		return nil, err
	}

	if err := s.gate.Clear(ctx, vc); err != nil {
		log.Warn("verification_clear_failed", zap.String("contract_id", c.ID), zap.Error(err))
	}
	s.metrics.Transition(model.StatusPendingSignature, model.StatusSigned)
	s.customerAudit(ctx, vc, model.AuditSignContract, c.ID, map[string]any{
		"client_name": c.ClientName,
		"artifact_id": art.ID,
		"method":      rec.Method,
	})
	return signed, nil
}

// customerValues keeps only customer-fillable keys and recompresses images.
// An image that fails to recompress is kept as submitted.
func (s *signingService) customerValues(log *zap.Logger, submitted map[string]any, defs []model.VariableDefinition) map[string]any {
	fillable := render.FillableKeys(defs)
	out := make(map[string]any, len(submitted))
	for k, v := range submitted {
		d, ok := fillable[k]
		if !ok {
			continue
		}
		if str, isStr := v.(string); isStr && d.Type == model.VariableImage && imaging.LooksLikeDataURL(str) {
			compressed, err := imaging.CompressDataURL(str)
			if err != nil {
				log.Warn("customer_image_compress_failed", zap.String("key", k), zap.Error(err))
			} else {
				v = compressed
			}
		}
		out[k] = v
	}
	return out
}

func (s *signingService) DocumentURL(ctx context.Context, token string) (string, error) {
	c, err := s.contracts.FindByToken(ctx, token)
	if err != nil {
		return "", err
	}
	if c.Status != model.StatusSigned || c.SignatureArtifactID == nil {
		return "", &apperr.StateConflictError{ContractID: c.ID, Current: string(c.Status), Required: []string{string(model.StatusSigned)}}
	}
	return s.artifacts.PresignURL(ctx, *c.SignatureArtifactID, s.settings.PresignExpiry)
}

func verificationLabel(rec *verification.Record) string {
	if rec.Method == verification.MethodInPerson {
		return fmt.Sprintf("in-person (staff %s)", rec.StaffID)
	}
	return "code " + rec.Code
}

func (s *signingService) customerAudit(ctx context.Context, vc verification.Context, action, resourceID string, details map[string]any) {
	s.record(ctx, Actor{Origin: vc.Origin, UserAgent: vc.UserAgent}, action, resourceID, details)
}

func (s *signingService) record(ctx context.Context, actor Actor, action, resourceID string, details map[string]any) {
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
