package pdf

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	coreFamily = "Helvetica"
	fontFamily = "body"
	bodySize   = 11
	lineHeight = 6
)

// document is an A4 fpdf page set with either the configured TTF or the
// Helvetica core font. Core fonts only cover cp1252; CJK text needs a TTF.
type document struct {
	pdf    *fpdf.Fpdf
	family string
	tr     func(string) string
}

// newDocument fails when the configured font cannot be loaded; fpdf would
// otherwise panic on the first text write.
func newDocument(fontPath string) (*document, error) {
	p := fpdf.New("P", "mm", "A4", "")
	p.SetMargins(20, 20, 20)
	p.SetAutoPageBreak(true, 20)
	p.SetCatalogSort(true)

	d := &document{pdf: p, family: coreFamily, tr: p.UnicodeTranslatorFromDescriptor("")}
	if fontPath != "" {
		p.AddUTF8Font(fontFamily, "", fontPath)
		p.AddUTF8Font(fontFamily, "B", fontPath)
		if err := p.Error(); err != nil {
			return nil, fmt.Errorf("load font %s: %w", fontPath, err)
		}
		d.family = fontFamily
		d.tr = func(s string) string { return s }
	}
	p.SetFont(d.family, "", bodySize)
	if err := p.Error(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *document) setFont(style string, size float64) {
	d.pdf.SetFont(d.family, style, size)
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
