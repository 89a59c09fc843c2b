// Package pipeline assembles the signed contract PDF.
//
// Steps run in a fixed order; the first failure aborts with an
// *apperr.PipelineError naming the step. Nothing is persisted here.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"contractapi/internal/apperr"
	"contractapi/internal/credential"
	"contractapi/internal/imaging"
	"contractapi/internal/logger"
	"contractapi/internal/model"
	"contractapi/internal/pdf"
	"contractapi/internal/render"
)

// Step names reported in PipelineError.
const (
	StepRender    = "render"
	StepConvert   = "convert"
	StepMerge     = "merge"
	StepOverlay   = "overlay"
	StepAuditPage = "audit_page"
	StepSign      = "sign"
)

// MasterSource reads a master document by artifact id.
type MasterSource interface {
	Read(ctx context.Context, artifactID string) ([]byte, error)
}

// Options are the deployment settings of the pipeline.
type Options struct {
	Locale               string
	SignaturePlaceholder string
	SignatureWidth       int
	FontPath             string
	Reason               string
	Location             string
	ContactInfo          string
}

// Input is everything one assembly needs.
type Input struct {
	Contract       *model.Contract
	Template       *model.Template
	Values         map[string]any
	SignatureImage string
	SignerName     string
	SignedAt       time.Time
	OriginIP       string
	// Verification describes how the signer was verified, printed on the audit page.
	Verification string
}

type Assembler struct {
	renderer pdf.MarkupRenderer
	masters  MasterSource
	creds    credential.Provider
	opts     Options
	log      *zap.Logger
	tracer   trace.Tracer
}

func NewAssembler(renderer pdf.MarkupRenderer, masters MasterSource, creds credential.Provider, opts Options, log *zap.Logger) *Assembler {
	if creds == nil {
		creds = credential.None{}
	}
	return &Assembler{
		renderer: renderer,
		masters:  masters,
		creds:    creds,
		opts:     opts,
		log:      log,
		tracer:   otel.Tracer("contractapi/internal/pipeline"),
	}
}

// Assemble produces the final document bytes for in.
func (a *Assembler) Assemble(ctx context.Context, in Input) ([]byte, error) {
	if in.Contract == nil || in.Template == nil {
		return nil, apperr.Validation("contract and template are required")
	}
	if in.Contract.Status != model.StatusPendingSignature {
		return nil, &apperr.StateConflictError{
			ContractID: in.Contract.ID,
			Current:    string(in.Contract.Status),
			Required:   []string{string(model.StatusPendingSignature)},
		}
	}

	ctx, span := a.tracer.Start(ctx, "pipeline.Assemble",
		trace.WithAttributes(attribute.String("contract.id", in.Contract.ID)))
	defer span.End()

	var (
		markup string
		doc    []byte
	)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StepRender, func(ctx context.Context) error {
			if keys := render.Undeclared(in.Template.Content, in.Template.Variables, a.opts.SignaturePlaceholder); len(keys) > 0 {
				logger.WithContext(ctx, a.log).Warn("pipeline_undeclared_placeholders",
					zap.String("contract_id", in.Contract.ID),
					zap.Strings("keys", keys),
				)
			}
			body := render.Final(in.Template.Content, in.Values, in.Template.Variables, render.Options{
				WrapBold:             true,
				OmitSignature:        true,
				SignaturePlaceholder: a.opts.SignaturePlaceholder,
				Locale:               a.opts.Locale,
			})
			markup = pdf.HTMLDocument(in.Template.Name, body)
			return nil
		}},
		{StepConvert, func(ctx context.Context) error {
			var err error
			doc, err = a.renderer.Render(ctx, markup)
			return err
		}},
		{StepMerge, func(ctx context.Context) error {
			if in.Template.MasterDocumentID == "" {
				return nil
			}
			if a.masters == nil {
				return apperr.DependencyUnavailable("master document", errors.New("no master source configured"))
			}
			master, err := a.masters.Read(ctx, in.Template.MasterDocumentID)
			if err != nil {
				return apperr.DependencyUnavailable("master document", err)
			}
			doc, err = pdf.Merge(master, doc)
			return err
		}},
		{StepOverlay, func(context.Context) error {
			if in.SignatureImage == "" {
				return apperr.Validation("signature image is required")
			}
			stamp, err := imaging.SignaturePNG(in.SignatureImage, a.opts.SignatureWidth)
			if err != nil {
				return err
			}
			doc, err = pdf.StampLastPage(doc, stamp)
			return err
		}},
		{StepAuditPage, func(context.Context) error {
			page, err := pdf.AuditPage(pdf.AuditRecord{
				ContractID:   in.Contract.ID,
				Token:        in.Contract.SigningToken,
				SignerName:   in.SignerName,
				SignedAt:     in.SignedAt,
				OriginIP:     in.OriginIP,
				Verification: in.Verification,
			}, a.opts.FontPath)
			if err != nil {
				return err
			}
			doc, err = pdf.Merge(doc, page)
			return err
		}},
		{StepSign, func(ctx context.Context) error {
			cred, err := a.creds.Credential(ctx)
			if err != nil {
				return err
			}
			if cred == nil {
				logger.WithContext(ctx, a.log).Warn("pipeline_unsigned_output",
					zap.String("contract_id", in.Contract.ID),
					zap.String("reason", "no signing credential configured"),
				)
				return nil
			}
			doc, err = pdf.Sign(doc, cred, pdf.SignatureInfo{
				Name:        in.SignerName,
				Reason:      a.opts.Reason,
				Location:    a.opts.Location,
				ContactInfo: a.opts.ContactInfo,
				Date:        in.SignedAt,
			})
			if err != nil {
				return err
			}
			_, err = pdf.Verify(doc)
			return err
		}},
	}

	for _, s := range steps {
		if err := a.run(ctx, s.name, s.fn); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	return doc, nil
}

func (a *Assembler) run(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &apperr.PipelineError{Step: name, Err: err}
	}
	ctx, span := a.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &apperr.PipelineError{Step: name, Err: err}
	}
	return nil
}
