// Package pdf turns contract markup into PDF and post-processes the result:
// merging with a master document, stamping the signature, appending the
// audit page and embedding a digital signature.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// MarkupRenderer converts an HTML document to PDF bytes.
type MarkupRenderer interface {
	Render(ctx context.Context, markup string) ([]byte, error)
}

// signatureStamp places the signature at the bottom right of the page, unscaled
// (the image is already sized by the caller).
const signatureStamp = "pos:br, off:-48 64, scalefactor:1 abs, rot:0"

var configDirOnce sync.Once

func newConfiguration() *model.Configuration {
	configDirOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	// The signer appends an incremental update; keep a classic xref table for it.
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// PageCount returns the number of pages in doc.
func PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

// Merge concatenates docs in the given order.
func Merge(docs ...[]byte) ([]byte, error) {
	switch len(docs) {
	case 0:
		return nil, errors.New("merge: no documents")
	case 1:
		return docs[0], nil
	}
	rs := make([]io.ReadSeeker, 0, len(docs))
	for _, d := range docs {
		rs = append(rs, bytes.NewReader(d))
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(rs, &buf, false, newConfiguration()); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return buf.Bytes(), nil
}

// StampLastPage overlays img (PNG or JPEG) onto the last page of doc.
func StampLastPage(doc, img []byte) ([]byte, error) {
	n, err := PageCount(doc)
	if err != nil {
		return nil, err
	}
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(img), signatureStamp, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("stamp: %w", err)
	}
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(doc), &buf, []string{strconv.Itoa(n)}, wm, newConfiguration()); err != nil {
		return nil, fmt.Errorf("stamp: %w", err)
	}
	return buf.Bytes(), nil
}

const shell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Noto Sans CJK TC", "Noto Sans", sans-serif; font-size: 12pt; line-height: 1.6; margin: 0; }
img { max-width: 100%%; }
table { border-collapse: collapse; width: 100%%; }
td, th { border: 1px solid #999; padding: 4px; }
</style>
</head>
<body>
%s
</body>
</html>`

// HTMLDocument wraps rendered contract markup in a printable page.
func HTMLDocument(title, body string) string {
	return fmt.Sprintf(shell, html.EscapeString(title), body)
}
