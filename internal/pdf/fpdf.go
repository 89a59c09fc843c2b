package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"contractapi/internal/imaging"
)

// pxToMM converts CSS pixels (96 dpi) to millimetres.
const pxToMM = 25.4 / 96

const maxImageWidthMM = 80

// FpdfRenderer draws markup in-process. It understands block structure,
// bold runs, line breaks and data URL images; styling is ignored.
type FpdfRenderer struct {
	fontPath string
}

func NewFpdfRenderer(fontPath string) *FpdfRenderer {
	return &FpdfRenderer{fontPath: fontPath}
}

var _ MarkupRenderer = (*FpdfRenderer)(nil)

func (r *FpdfRenderer) Render(ctx context.Context, markup string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	doc, err := newDocument(r.fontPath)
	if err != nil {
		return nil, err
	}
	doc.pdf.AddPage()
	w := &flowWriter{doc: doc, lineStart: true}
	w.walk(root)
	if w.err != nil {
		return nil, w.err
	}
	if err := doc.pdf.Error(); err != nil {
		return nil, err
	}
	return doc.bytes()
}

type flowWriter struct {
	doc       *document
	bold      int
	lineStart bool
	images    int
	err       error
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Table: true,
	atom.Tr: true, atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.Blockquote: true, atom.Hr: true,
}

var headingSize = map[atom.Atom]float64{
	atom.H1: 16, atom.H2: 14, atom.H3: 13, atom.H4: 12,
}

func (w *flowWriter) walk(n *html.Node) {
	if w.err != nil || w.doc.pdf.Err() {
		return
	}
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Title:
			return
		case atom.Br:
			w.doc.pdf.Ln(lineHeight)
			w.lineStart = true
			return
		case atom.Img:
			w.image(n)
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	size, heading := headingSize[n.DataAtom]
	bold := heading || n.DataAtom == atom.Strong || n.DataAtom == atom.B || n.DataAtom == atom.Th

	if block {
		w.breakLine()
	}
	if n.DataAtom == atom.Li {
		w.text("- ")
	}
	if bold {
		w.bold++
	}
	if heading {
		w.doc.setFont("B", size)
	} else if bold {
		w.applyFont()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}

	if bold {
		w.bold--
		w.applyFont()
	}
	if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
		w.text("  ")
	}
	if block {
		w.breakLine()
	}
}

func (w *flowWriter) applyFont() {
	style := ""
	if w.bold > 0 {
		style = "B"
	}
	w.doc.setFont(style, bodySize)
}

func (w *flowWriter) text(s string) {
	s = collapseSpace(s)
	if w.lineStart {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return
	}
	w.doc.pdf.Write(lineHeight, w.doc.tr(s))
	w.lineStart = false
}

func (w *flowWriter) breakLine() {
	if !w.lineStart {
		w.doc.pdf.Ln(lineHeight)
		w.lineStart = true
	}
}

// image draws data URL images on their own line. Anything else is skipped.
func (w *flowWriter) image(n *html.Node) {
	src := attr(n, "src")
	if !imaging.LooksLikeDataURL(src) {
		return
	}
	img, err := imaging.Decode(src)
	if err != nil {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		w.err = err
		return
	}

	w.images++
	name := fmt.Sprintf("img%d", w.images)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	w.doc.pdf.RegisterImageOptionsReader(name, opts, &buf)

	width := float64(img.Bounds().Dx()) * pxToMM
	if width > maxImageWidthMM {
		width = maxImageWidthMM
	}
	w.breakLine()
	w.doc.pdf.ImageOptions(name, -1, -1, width, 0, true, opts, 0, "")
	w.lineStart = true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapseSpace folds whitespace runs into a single space the way HTML does.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}
