// Package render substitutes variable values into contract markup.
//
// Final produces the locked document used for staff preview and the PDF,
// Interactive produces the customer form shown during signing, and Normalize
// turns raw form input into typed values. All functions are pure.
package render

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"contractapi/internal/imaging"
	"contractapi/internal/model"
)

// DefaultSignaturePlaceholder marks where the signature image goes.
const DefaultSignaturePlaceholder = "簽署欄位"

// FieldPrefix is the form name prefix of customer inputs: customer_variables[key].
const FieldPrefix = "customer_variables"

// Options tunes Final.
type Options struct {
	WrapBold bool
	// SignatureImage is a data URL; empty leaves the signature placeholder untouched.
	SignatureImage       string
	SignaturePlaceholder string
	// OmitSignature blanks the signature placeholder; the PDF pipeline overlays the image instead.
	OmitSignature bool
	Locale        string
}

func (o Options) placeholder() string {
	if o.SignaturePlaceholder == "" {
		return DefaultSignaturePlaceholder
	}
	return o.SignaturePlaceholder
}

// Final renders markup with values for display or print.
// Undeclared placeholders are kept as-is. A signature image replaces the
// signature placeholder, or is appended when the markup has none.
func Final(markup string, values map[string]any, defs []model.VariableDefinition, opts Options) string {
	r := newResolver(values, defs, opts.Locale)
	sig := opts.placeholder()

	var b strings.Builder
	b.Grow(len(markup))
	placed := false
	for _, seg := range tokenize(markup) {
		if !seg.isKey {
			b.WriteString(seg.text)
			continue
		}
		if seg.key == sig && !r.declared(seg.key) {
			switch {
			case opts.OmitSignature:
			case opts.SignatureImage != "":
				b.WriteString(signatureTag(opts.SignatureImage))
				placed = true
			default:
				b.WriteString(seg.text)
			}
			continue
		}
		v, ok := r.display(seg.key)
		if !ok {
			b.WriteString(seg.text)
			continue
		}
		if opts.WrapBold {
			v = bold(v)
		}
		b.WriteString(v)
	}

	if !placed && !opts.OmitSignature && opts.SignatureImage != "" {
		fmt.Fprintf(&b, "\n\n<div>%s：%s</div>", html.EscapeString(sig), signatureTag(opts.SignatureImage))
	}
	return b.String()
}

// Interactive renders the customer form. Customer-fillable fields become inputs
// named customer_variables[key], blank until a value exists. Other declared
// fields render as read-only prefilled text.
func Interactive(markup string, values map[string]any, defs []model.VariableDefinition, locale, signaturePlaceholder string) string {
	r := newResolver(values, defs, locale)
	if signaturePlaceholder == "" {
		signaturePlaceholder = DefaultSignaturePlaceholder
	}

	var b strings.Builder
	b.Grow(len(markup))
	for _, seg := range tokenize(markup) {
		if !seg.isKey {
			b.WriteString(seg.text)
			continue
		}
		if seg.key == signaturePlaceholder && !r.declared(seg.key) {
			fmt.Fprintf(&b, `<span class="signature-slot">%s</span>`, html.EscapeString(signaturePlaceholder))
			continue
		}
		if d, ok := r.defs[seg.key]; ok && d.IsCustomerFillable {
			b.WriteString(r.input(d))
			continue
		}
		v, ok := r.display(seg.key)
		if !ok {
			b.WriteString(seg.text)
			continue
		}
		fmt.Fprintf(&b, `<span class="prefilled-value">%s</span>`, v)
	}
	return b.String()
}

// Undeclared returns the placeholder keys of markup that no definition
// resolves, in order of first use. Final and Interactive leave them verbatim.
func Undeclared(markup string, defs []model.VariableDefinition, signaturePlaceholder string) []string {
	if signaturePlaceholder == "" {
		signaturePlaceholder = DefaultSignaturePlaceholder
	}
	r := newResolver(nil, defs, "")
	var out []string
	for _, key := range Placeholders(markup) {
		if key == signaturePlaceholder || r.declared(key) {
			continue
		}
		if base, found := strings.CutSuffix(key, UpperSuffix); found && r.declared(base) {
			continue
		}
		out = append(out, key)
	}
	return out
}

type resolver struct {
	values map[string]any
	defs   map[string]model.VariableDefinition
	locale string
}

func newResolver(values map[string]any, defs []model.VariableDefinition, locale string) *resolver {
	m := make(map[string]model.VariableDefinition, len(defs))
	for _, d := range defs {
		if d.Key != "" {
			m[d.Key] = d
		}
	}
	return &resolver{values: values, defs: m, locale: locale}
}

func (r *resolver) declared(key string) bool {
	_, ok := r.defs[key]
	return ok
}

// display resolves key to markup. ok is false for undeclared keys.
func (r *resolver) display(key string) (string, bool) {
	if d, ok := r.defs[key]; ok {
		return r.format(d, r.values[key]), true
	}
	if base, found := strings.CutSuffix(key, UpperSuffix); found && r.declared(base) {
		words, _ := AmountInWords(r.values[base], r.locale)
		return html.EscapeString(words), true
	}
	return "", false
}

func (r *resolver) format(d model.VariableDefinition, v any) string {
	switch d.Type {
	case model.VariableCheckbox:
		return html.EscapeString(checkboxLabel(Truthy(v), r.locale))
	case model.VariableBoolean:
		return html.EscapeString(booleanLabel(Truthy(v), r.locale))
	case model.VariableImage:
		s, _ := v.(string)
		if !ValidImage(s) {
			return ""
		}
		return fmt.Sprintf(`<img src="%s" style="max-height: 200px; max-width: 100%%;" />`, html.EscapeString(strings.TrimSpace(s)))
	case model.VariableTextarea:
		return strings.ReplaceAll(html.EscapeString(scalar(v)), "\n", "<br>")
	}
	return html.EscapeString(scalar(v))
}

func (r *resolver) input(d model.VariableDefinition) string {
	name := html.EscapeString(FieldPrefix + "[" + d.Key + "]")
	label := html.EscapeString(d.Label)
	v := r.values[d.Key]

	switch d.Type {
	case model.VariableCheckbox, model.VariableBoolean:
		checked := ""
		if Truthy(v) {
			checked = " checked"
		}
		return fmt.Sprintf(`<input type="checkbox" class="customer-input" name="%s" value="on" aria-label="%s"%s />`, name, label, checked)
	case model.VariableImage:
		return fmt.Sprintf(`<input type="file" class="customer-input" name="%s" accept="image/*" aria-label="%s" />`, name, label)
	case model.VariableTextarea:
		return fmt.Sprintf(`<textarea class="customer-input" name="%s" placeholder="%s">%s</textarea>`, name, label, html.EscapeString(scalar(v)))
	}

	kind := "text"
	switch d.Type {
	case model.VariableNumber:
		kind = "number"
	case model.VariableDate:
		kind = "date"
	}
	return fmt.Sprintf(`<input type="%s" class="customer-input" name="%s" value="%s" placeholder="%s" />`, kind, name, html.EscapeString(scalar(v)), label)
}

// ValidImage reports whether s is a decodable embedded image payload.
func ValidImage(s string) bool {
	if !imaging.LooksLikeDataURL(s) {
		return false
	}
	_, err := imaging.ParseDataURL(s)
	return err == nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, scalar(e))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	}
	return fmt.Sprint(v)
}

func bold(v string) string {
	if v == "" || strings.HasPrefix(strings.TrimSpace(v), "<") {
		return v
	}
	return "<strong>" + v + "</strong>"
}

func signatureTag(src string) string {
	return fmt.Sprintf(`<div class="mt-2"><img src="%s" alt="signature" style="max-height: 220px;"></div>`, html.EscapeString(strings.TrimSpace(src)))
}

func checkboxLabel(checked bool, locale string) string {
	switch {
	case isEnglish(locale) && checked:
		return CheckedLabelEN
	case isEnglish(locale):
		return UncheckedLabelEN
	case checked:
		return CheckedLabelZH
	}
	return UncheckedLabelZH
}

func booleanLabel(v bool, locale string) string {
	switch {
	case isEnglish(locale) && v:
		return "Yes"
	case isEnglish(locale):
		return "No"
	case v:
		return "是"
	}
	return "否"
}
