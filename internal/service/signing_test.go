package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"contractapi/internal/apperr"
	"contractapi/internal/model"
	"contractapi/internal/pipeline"
	"contractapi/internal/repository"
	repoMocks "contractapi/internal/repository/mocks"
	"contractapi/internal/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAssembler struct {
	got pipeline.Input
	out []byte
	err error
}

func (f *fakeAssembler) Assemble(_ context.Context, in pipeline.Input) ([]byte, error) {
	f.got = in
	return f.out, f.err
}

type fakeArtifacts struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newFakeArtifacts() *fakeArtifacts { return &fakeArtifacts{saved: map[string][]byte{}} }

func (f *fakeArtifacts) Save(_ context.Context, r io.Reader, filename, contentType string, size int64) (*model.Artifact, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved["art-1"] = data
	return &model.Artifact{ID: "art-1", Filename: filename, ContentType: contentType, Size: size}, nil
}

func (f *fakeArtifacts) Get(context.Context, string) (*model.Artifact, error) { return nil, nil }

func (f *fakeArtifacts) Read(_ context.Context, id string) ([]byte, error) { return f.saved[id], nil }

func (f *fakeArtifacts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.saved, id)
	return nil
}

func (f *fakeArtifacts) PresignURL(_ context.Context, id string, _ time.Duration) (string, error) {
	return "https://files.example/" + id, nil
}

func signatureDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

type signingFixture struct {
	svc       *signingService
	contracts *repoMocks.MockContractRepository
	templates *repoMocks.MockTemplateRepository
	store     *verification.MemoryStore
	artifacts *fakeArtifacts
	assembler *fakeAssembler
	auditor   *recordingAuditor
	pending   *model.Contract
	vc        verification.Context
}

func newSigningFixture(t *testing.T) *signingFixture {
	t.Helper()
	f := &signingFixture{
		contracts: new(repoMocks.MockContractRepository),
		templates: new(repoMocks.MockTemplateRepository),
		store:     verification.NewMemoryStore(0),
		artifacts: newFakeArtifacts(),
		assembler: &fakeAssembler{out: []byte("%PDF-1.7 signed")},
		auditor:   &recordingAuditor{},
		pending: &model.Contract{
			ID:                   "c-1",
			TemplateID:           "tpl-1",
			ClientName:           "Jane",
			Status:               model.StatusPendingSignature,
			SigningToken:         "tok",
			VerificationCodeHash: "unused",
			VariableValues:       map[string]any{"name": "Jane", "price": float64(100)},
		},
		vc: verification.Context{SessionID: "sess", Token: "tok", Origin: "203.0.113.9", UserAgent: "phone"},
	}
	gate := verification.NewGate(f.contracts, f.store)
	f.svc = NewSigningService(f.contracts, f.templates, f.artifacts, gate, f.assembler, f.auditor, nil, zap.NewNop(), SigningSettings{
		RenderSettings:  RenderSettings{Locale: "en"},
		PipelineTimeout: time.Second,
		PresignExpiry:   time.Minute,
	}).(*signingService)
	f.svc.now = func() time.Time { return fixed }
	return f
}

func (f *signingFixture) verify(t *testing.T, rec verification.Record) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), f.vc.Key(), rec))
}

func TestSigningService_View(t *testing.T) {
	ctx := context.Background()

	t.Run("unverified session sees the read-only document", func(t *testing.T) {
		f := newSigningFixture(t)
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)

		v, err := f.svc.View(ctx, f.vc)

		require.NoError(t, err)
		assert.False(t, v.Verified)
		assert.False(t, v.CanSign)
		assert.NotContains(t, v.Content, "<input")
		assert.Contains(t, v.Content, "<strong>Jane</strong>")
	})

	t.Run("verified session gets the form", func(t *testing.T) {
		f := newSigningFixture(t)
		f.verify(t, verification.Record{Method: verification.MethodCode, Code: "123456"})
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)

		v, err := f.svc.View(ctx, f.vc)

		require.NoError(t, err)
		assert.True(t, v.CanSign)
		assert.Contains(t, v.Content, `name="customer_variables[passport]"`)
		assert.Contains(t, v.Content, `<span class="prefilled-value">Jane</span>`)
	})

	t.Run("signed contract stays read-only even when verified", func(t *testing.T) {
		f := newSigningFixture(t)
		f.verify(t, verification.Record{Method: verification.MethodCode})
		signed := *f.pending
		signed.Status = model.StatusSigned
		f.contracts.On("FindByToken", ctx, "tok").Return(&signed, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)

		v, err := f.svc.View(ctx, f.vc)

		require.NoError(t, err)
		assert.True(t, v.Verified)
		assert.False(t, v.CanSign)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newSigningFixture(t)
		f.contracts.On("FindByToken", ctx, "tok").Return(nil, apperr.NotFound("contract", "tok"))

		_, err := f.svc.View(ctx, f.vc)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestSigningService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code is audited", func(t *testing.T) {
		f := newSigningFixture(t)
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)

		_, err := f.svc.Verify(ctx, f.vc, "000000")

		assert.ErrorIs(t, err, apperr.ErrVerificationFailed)
		assert.Equal(t, []string{model.AuditVerifyFailed}, f.auditor.actions())
		assert.Equal(t, "c-1", f.auditor.entries[0].ResourceID)
		assert.Equal(t, "203.0.113.9", f.auditor.entries[0].Origin)
	})

	t.Run("already verified session short-circuits", func(t *testing.T) {
		f := newSigningFixture(t)
		f.verify(t, verification.Record{Method: verification.MethodCode, Code: "123456"})
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)

		v, err := f.svc.Verify(ctx, f.vc, "")

		require.NoError(t, err)
		assert.True(t, v.CanSign)
		assert.Empty(t, f.auditor.actions())
	})
}

func TestSigningService_VerifyInPerson(t *testing.T) {
	ctx := context.Background()

	t.Run("marks the session", func(t *testing.T) {
		f := newSigningFixture(t)
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)

		v, err := f.svc.VerifyInPerson(ctx, staff, f.vc)

		require.NoError(t, err)
		assert.True(t, v.CanSign)
		rec, err := f.store.Get(ctx, f.vc.Key())
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, verification.MethodInPerson, rec.Method)
		assert.Equal(t, "staff-1", rec.StaffID)
		assert.Equal(t, []string{model.AuditVerifyInPerson}, f.auditor.actions())
	})

	t.Run("requires staff", func(t *testing.T) {
		f := newSigningFixture(t)
		_, err := f.svc.VerifyInPerson(ctx, Actor{}, f.vc)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("cancelled contract", func(t *testing.T) {
		f := newSigningFixture(t)
		cancelled := *f.pending
		cancelled.Status = model.StatusCancelled
		f.contracts.On("FindByToken", ctx, "tok").Return(&cancelled, nil)

		_, err := f.svc.VerifyInPerson(ctx, staff, f.vc)

		assert.ErrorIs(t, err, apperr.ErrStateConflict)
	})
}

func TestSigningService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("signs and stores the document", func(t *testing.T) {
		f := newSigningFixture(t)
		sig := signatureDataURL(t)
		f.verify(t, verification.Record{Method: verification.MethodCode, Code: "123456"})
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)
		f.contracts.On("AttachSignatureArtifact", ctx, "c-1", "art-1",
			mock.MatchedBy(func(v map[string]any) bool {
				_, injected := v["price"].(string)
				return v["passport"] == "E123" && v["name"] == "Jane" && !injected
			}), sig, fixed).
			Return(&model.Contract{ID: "c-1", Status: model.StatusSigned}, nil)

		got, err := f.svc.Submit(ctx, f.vc, SubmitInput{
			Values:         map[string]any{"passport": "E123", "price": "1"},
			AgreeTerms:     true,
			SignatureImage: sig,
		})

		require.NoError(t, err)
		assert.Equal(t, model.StatusSigned, got.Status)
		assert.Equal(t, []byte("%PDF-1.7 signed"), f.artifacts.saved["art-1"])
		assert.Equal(t, "code 123456", f.assembler.got.Verification)
		assert.Equal(t, "Jane", f.assembler.got.SignerName)
		assert.Equal(t, "203.0.113.9", f.assembler.got.OriginIP)
		assert.Equal(t, []string{model.AuditSignContract}, f.auditor.actions())

		rec, err := f.store.Get(ctx, f.vc.Key())
		require.NoError(t, err)
		assert.Nil(t, rec, "verified state is cleared after signing")
	})

	t.Run("unverified session", func(t *testing.T) {
		f := newSigningFixture(t)
		_, err := f.svc.Submit(ctx, f.vc, SubmitInput{AgreeTerms: true, SignatureImage: signatureDataURL(t)})
		assert.ErrorIs(t, err, apperr.ErrVerificationFailed)
		f.contracts.AssertNotCalled(t, "FindByToken", mock.Anything, mock.Anything)
	})

	t.Run("terms not accepted", func(t *testing.T) {
		f := newSigningFixture(t)
		f.verify(t, verification.Record{Method: verification.MethodCode})
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)

		_, err := f.svc.Submit(ctx, f.vc, SubmitInput{SignatureImage: signatureDataURL(t)})

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("missing signature", func(t *testing.T) {
		f := newSigningFixture(t)
		f.verify(t, verification.Record{Method: verification.MethodCode})
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)

		_, err := f.svc.Submit(ctx, f.vc, SubmitInput{AgreeTerms: true})

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("already signed", func(t *testing.T) {
		f := newSigningFixture(t)
		f.verify(t, verification.Record{Method: verification.MethodCode})
		signed := *f.pending
		signed.Status = model.StatusSigned
		f.contracts.On("FindByToken", ctx, "tok").Return(&signed, nil)

		_, err := f.svc.Submit(ctx, f.vc, SubmitInput{AgreeTerms: true, SignatureImage: signatureDataURL(t)})

		assert.ErrorIs(t, err, apperr.ErrStateConflict)
	})

	t.Run("pipeline failure leaves the contract untouched", func(t *testing.T) {
		f := newSigningFixture(t)
		f.assembler.err = &apperr.PipelineError{Step: pipeline.StepSign, Err: errors.New("bad key")}
		f.verify(t, verification.Record{Method: verification.MethodInPerson, StaffID: "staff-1"})
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)

		_, err := f.svc.Submit(ctx, f.vc, SubmitInput{AgreeTerms: true, SignatureImage: signatureDataURL(t)})

		assert.ErrorIs(t, err, apperr.ErrPipeline)
		assert.Equal(t, "in-person (staff staff-1)", f.assembler.got.Verification)
		assert.Empty(t, f.artifacts.saved)
		f.contracts.AssertNotCalled(t, "AttachSignatureArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.auditor.actions())
	})

	t.Run("concurrent signing rolls back the artifact", func(t *testing.T) {
		f := newSigningFixture(t)
		f.verify(t, verification.Record{Method: verification.MethodCode})
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)
		f.templates.On("FindByID", ctx, "tpl-1").Return(tplDef, nil)
		f.contracts.On("AttachSignatureArtifact", ctx, "c-1", "art-1", mock.Anything, mock.Anything, fixed).
			Return(nil, repository.ErrStaleStatus)
		signed := *f.pending
		signed.Status = model.StatusSigned
		f.contracts.On("FindByID", ctx, "c-1").Return(&signed, nil)

		_, err := f.svc.Submit(ctx, f.vc, SubmitInput{AgreeTerms: true, SignatureImage: signatureDataURL(t)})

		var conflict *apperr.StateConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "SIGNED", conflict.Current)
		assert.Equal(t, []string{"art-1"}, f.artifacts.deleted)
	})
}

func TestSigningService_ResolveShortCode(t *testing.T) {
	ctx := context.Background()
	f := newSigningFixture(t)
	f.contracts.On("FindByShortCode", ctx, "abc123").Return(f.pending, nil)

	token, err := f.svc.ResolveShortCode(ctx, "abc123")

	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	_, err = f.svc.ResolveShortCode(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSigningService_DocumentURL(t *testing.T) {
	ctx := context.Background()

	t.Run("signed", func(t *testing.T) {
		f := newSigningFixture(t)
		art := "art-9"
		signed := *f.pending
		signed.Status = model.StatusSigned
		signed.SignatureArtifactID = &art
		f.contracts.On("FindByToken", ctx, "tok").Return(&signed, nil)

		u, err := f.svc.DocumentURL(ctx, "tok")

		require.NoError(t, err)
		assert.Equal(t, "https://files.example/art-9", u)
	})

	t.Run("not signed yet", func(t *testing.T) {
		f := newSigningFixture(t)
		f.contracts.On("FindByToken", ctx, "tok").Return(f.pending, nil)

		_, err := f.svc.DocumentURL(ctx, "tok")

		assert.ErrorIs(t, err, apperr.ErrStateConflict)
	})
}
