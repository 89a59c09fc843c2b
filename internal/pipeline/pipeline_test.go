package pipeline

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"contractapi/internal/apperr"
	"contractapi/internal/credential"
	"contractapi/internal/model"
	"contractapi/internal/pdf"
)

type recordingRenderer struct {
	inner  pdf.MarkupRenderer
	markup string
	err    error
}

func (r *recordingRenderer) Render(ctx context.Context, markup string) ([]byte, error) {
	r.markup = markup
	if r.err != nil {
		return nil, r.err
	}
	return r.inner.Render(ctx, markup)
}

type masterMap map[string][]byte

func (m masterMap) Read(_ context.Context, id string) ([]byte, error) {
	b, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("artifact", id)
	}
	return b, nil
}

func signatureDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 300, 100))
	for x := 10; x < 290; x++ {
		img.Set(x, 50, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fixture(t *testing.T) Input {
	t.Helper()
	return Input{
		Contract: &model.Contract{
			ID:           "c-1",
			Status:       model.StatusPendingSignature,
			SigningToken: "4f2a",
		},
		Template: &model.Template{
			Name:    "Tour Agreement",
			Content: "<p>Client {{client}} agrees.</p><p>{{簽署欄位}}</p>",
			Variables: []model.VariableDefinition{
				{Key: "client", Label: "Client", Type: model.VariableText},
			},
		},
		Values:         map[string]any{"client": "Jane"},
		SignatureImage: signatureDataURL(t),
		SignerName:     "Jane",
		SignedAt:       time.Date(2026, 4, 2, 3, 4, 5, 0, time.UTC),
		OriginIP:       "198.51.100.4",
		Verification:   "code 123456",
	}
}

func testCredential(t *testing.T) *credential.Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "Agency"},
		NotBefore:    time.Now().Add(-24 * time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &credential.Credential{Certificate: cert, Signer: key}
}

// pageContents returns the decoded content stream of every page of doc.
func pageContents(t *testing.T, doc []byte) []string {
	t.Helper()
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	conf.Cmd = pdfmodel.EXTRACTCONTENT
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(doc), conf)
	require.NoError(t, err)
	out := make([]string, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		r, err := pdfcpu.ExtractPageContent(ctx, i)
		require.NoError(t, err)
		require.NotNil(t, r)
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		out = append(out, string(b))
	}
	return out
}

func options() Options {
	return Options{Locale: "zh-TW", SignatureWidth: 180, Reason: "Contract signed by customer"}
}

func TestAssemble_UnsignedWithoutCredential(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rr := &recordingRenderer{inner: pdf.NewFpdfRenderer("")}
	a := NewAssembler(rr, masterMap{}, nil, options(), zap.New(core))

	out, err := a.Assemble(context.Background(), fixture(t))
	require.NoError(t, err)

	assert.Contains(t, rr.markup, "<strong>Jane</strong>")
	assert.NotContains(t, rr.markup, "{{簽署欄位}}")
	assert.NotContains(t, rr.markup, "data:image/png")

	n, err := pdf.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "content page plus audit page")
	assert.NotContains(t, string(out), "/ByteRange")
	assert.Equal(t, 1, logs.FilterMessage("pipeline_unsigned_output").Len())
}

func TestAssemble_MasterFirstAndSigned(t *testing.T) {
	master, err := pdf.NewFpdfRenderer("").Render(context.Background(), "<p>master terms</p>")
	require.NoError(t, err)

	in := fixture(t)
	in.Template.MasterDocumentID = "m-1"
	cred := testCredential(t)
	a := NewAssembler(pdf.NewFpdfRenderer(""), masterMap{"m-1": master},
		credential.Static{Cred: cred}, options(), zap.NewNop())

	out, err := a.Assemble(context.Background(), in)
	require.NoError(t, err)

	signer, err := pdf.Verify(out)
	require.NoError(t, err)
	assert.True(t, signer.Equal(cred.Certificate))

	pages := pageContents(t, out)
	require.Len(t, pages, 3)
	assert.Contains(t, pages[0], "master terms")
	assert.Contains(t, pages[1], "Jane")
	assert.Contains(t, pages[1], "/Watermark")
	assert.NotContains(t, pages[0], "/Watermark")
	assert.Contains(t, pages[2], "4f2a")
	assert.Contains(t, pages[2], "2026-04-02T03:04:05Z")
	assert.Contains(t, pages[2], "198.51.100.4")
	assert.Contains(t, pages[2], "code 123456")
}

func TestAssemble_SameInputSamePages(t *testing.T) {
	a := NewAssembler(pdf.NewFpdfRenderer(""), masterMap{}, nil, options(), zap.NewNop())

	first, err := a.Assemble(context.Background(), fixture(t))
	require.NoError(t, err)
	second, err := a.Assemble(context.Background(), fixture(t))
	require.NoError(t, err)

	firstPages := pageContents(t, first)
	secondPages := pageContents(t, second)
	require.Len(t, firstPages, 2)
	assert.Equal(t, firstPages, secondPages)
}

func TestAssemble_WarnsOnUndeclaredPlaceholders(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rr := &recordingRenderer{inner: pdf.NewFpdfRenderer("")}
	a := NewAssembler(rr, masterMap{}, nil, options(), zap.New(core))

	in := fixture(t)
	in.Template.Content += "<p>Flight {{flight_no}}</p>"
	_, err := a.Assemble(context.Background(), in)
	require.NoError(t, err)

	assert.Contains(t, rr.markup, "{{flight_no}}")
	entries := logs.FilterMessage("pipeline_undeclared_placeholders").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"flight_no"}, entries[0].ContextMap()["keys"])
}

func TestAssemble_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		mutate   func(in *Input)
		renderer pdf.MarkupRenderer
		creds    credential.Provider
		ctx      func() context.Context
		wantStep string
		wantIs   error
	}{
		{
			name:     "renderer failure",
			renderer: &recordingRenderer{err: boom},
			wantStep: StepConvert,
			wantIs:   boom,
		},
		{
			name:     "declared master missing",
			mutate:   func(in *Input) { in.Template.MasterDocumentID = "gone" },
			wantStep: StepMerge,
			wantIs:   apperr.ErrDependencyUnavailable,
		},
		{
			name:     "signature missing",
			mutate:   func(in *Input) { in.SignatureImage = "" },
			wantStep: StepOverlay,
			wantIs:   apperr.ErrValidation,
		},
		{
			name:     "signature not an image",
			mutate:   func(in *Input) { in.SignatureImage = "data:image/png;base64,AAAA" },
			wantStep: StepOverlay,
		},
		{
			name:     "broken credential",
			creds:    brokenProvider{},
			wantStep: StepSign,
			wantIs:   apperr.ErrDependencyUnavailable,
		},
		{
			name: "cancelled before start",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantStep: StepRender,
			wantIs:   context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fixture(t)
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			renderer := tt.renderer
			if renderer == nil {
				renderer = pdf.NewFpdfRenderer("")
			}
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}

			a := NewAssembler(renderer, masterMap{}, tt.creds, options(), zap.NewNop())
			out, err := a.Assemble(ctx, in)

			assert.Nil(t, out)
			var pe *apperr.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantStep, pe.Step)
			assert.ErrorIs(t, err, apperr.ErrPipeline)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestAssemble_RequiresPendingSignature(t *testing.T) {
	in := fixture(t)
	in.Contract.Status = model.StatusSigned

	a := NewAssembler(pdf.NewFpdfRenderer(""), nil, nil, options(), zap.NewNop())
	_, err := a.Assemble(context.Background(), in)

	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.NotErrorIs(t, err, apperr.ErrPipeline)
}

type brokenProvider struct{}

func (brokenProvider) Credential(context.Context) (*credential.Credential, error) {
	return nil, apperr.DependencyUnavailable("signing credential", errors.New("bad password"))
}
