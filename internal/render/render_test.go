package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractapi/internal/model"
)

const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

var tourDefs = []model.VariableDefinition{
	{Key: "name", Label: "Traveler", Type: model.VariableText},
	{Key: "price", Label: "Price", Type: model.VariableNumber},
	{Key: "insured", Label: "Insurance", Type: model.VariableCheckbox},
	{Key: "passport", Label: "Passport", Type: model.VariableImage, IsCustomerFillable: true},
	{Key: "phone", Label: "Phone", Type: model.VariableText, IsCustomerFillable: true},
	{Key: "note", Label: "Note", Type: model.VariableTextarea},
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		keys   []string
		joined string
	}{
		{name: "plain", markup: "no placeholders", joined: "no placeholders"},
		{name: "whitespace inside delimiters", markup: "a {{  name }} b", keys: []string{"name"}, joined: "a {{  name }} b"},
		{name: "nested keeps outer braces literal", markup: "{{ {{name}} }}", keys: []string{"name"}, joined: "{{ {{name}} }}"},
		{name: "unterminated", markup: "x {{name", joined: "x {{name"},
		{name: "html inside is not a key", markup: "{{<b>}} {{a}}", keys: []string{"a"}, joined: "{{<b>}} {{a}}"},
		{name: "empty key", markup: "{{ }}", joined: "{{ }}"},
		{name: "unicode key", markup: "{{簽署欄位}}", keys: []string{"簽署欄位"}, joined: "{{簽署欄位}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := tokenize(tt.markup)
			var keys []string
			var b strings.Builder
			for _, s := range segs {
				if s.isKey {
					keys = append(keys, s.key)
				}
				b.WriteString(s.text)
			}
			assert.Equal(t, tt.keys, keys)
			assert.Equal(t, tt.joined, b.String(), "segments must reassemble the source")
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"name", "price_upper", "price"}, Placeholders("{{name}} {{price_upper}} {{ price }} {{name}}"))
}

func TestFinal(t *testing.T) {
	values := map[string]any{
		"name":     "Alice <Chen>",
		"price":    "12,345",
		"insured":  "on",
		"passport": tinyPNG,
		"note":     "line1\nline2",
	}

	tests := []struct {
		name   string
		markup string
		opts   Options
		want   string
	}{
		{
			name:   "text is escaped",
			markup: "Traveler: {{ name }}",
			want:   "Traveler: Alice &lt;Chen&gt;",
		},
		{
			name:   "bold wraps text values",
			markup: "{{name}}",
			opts:   Options{WrapBold: true},
			want:   "<strong>Alice &lt;Chen&gt;</strong>",
		},
		{
			name:   "checkbox label",
			markup: "{{insured}}",
			want:   CheckedLabelZH,
		},
		{
			name:   "english checkbox label",
			markup: "{{insured}}",
			opts:   Options{Locale: "en"},
			want:   CheckedLabelEN,
		},
		{
			name:   "image tag is not bolded",
			markup: "{{passport}}",
			opts:   Options{WrapBold: true},
			want:   `<img src="` + tinyPNG + `" style="max-height: 200px; max-width: 100%;" />`,
		},
		{
			name:   "amount in words",
			markup: "{{price_upper}}",
			want:   "壹萬貳仟參佰肆拾伍元整",
		},
		{
			name:   "undeclared placeholder is kept",
			markup: "{{unknown}} {{ other }}",
			want:   "{{unknown}} {{ other }}",
		},
		{
			name:   "textarea keeps line breaks",
			markup: "{{note}}",
			want:   "line1<br>line2",
		},
		{
			name:   "signature replaces placeholder",
			markup: "A {{簽署欄位}} B",
			opts:   Options{SignatureImage: tinyPNG},
			want:   `A <div class="mt-2"><img src="` + tinyPNG + `" alt="signature" style="max-height: 220px;"></div> B`,
		},
		{
			name:   "omitted signature blanks placeholder",
			markup: "A {{簽署欄位}} B",
			opts:   Options{SignatureImage: tinyPNG, OmitSignature: true},
			want:   "A  B",
		},
		{
			name:   "no signature leaves placeholder",
			markup: "A {{簽署欄位}}",
			want:   "A {{簽署欄位}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Final(tt.markup, values, tourDefs, tt.opts))
		})
	}
}

func TestFinal_SignatureAppendedWhenNoPlaceholder(t *testing.T) {
	out := Final("<p>body</p>", nil, nil, Options{SignatureImage: tinyPNG})
	assert.True(t, strings.HasPrefix(out, "<p>body</p>\n\n<div>簽署欄位："))
	assert.Contains(t, out, `<img src="`+tinyPNG+`"`)
}

func TestFinal_ZeroDeclarationsUnchanged(t *testing.T) {
	markup := "<p>{{name}} {{price_upper}}</p>"
	assert.Equal(t, markup, Final(markup, map[string]any{"name": "x", "price": 1}, nil, Options{WrapBold: true}))
}

func TestFinal_CheckboxTruthyTokensRenderIdentically(t *testing.T) {
	defs := []model.VariableDefinition{{Key: "c", Type: model.VariableCheckbox}}
	var outputs []string
	for _, v := range []any{true, "true", "on", "1", float64(1), "yes", CheckedLabelZH} {
		outputs = append(outputs, Final("{{c}}", map[string]any{"c": v}, defs, Options{}))
	}
	for _, o := range outputs {
		assert.Equal(t, CheckedLabelZH, o)
	}
	assert.Equal(t, UncheckedLabelZH, Final("{{c}}", map[string]any{"c": "no"}, defs, Options{}))
	assert.Equal(t, UncheckedLabelZH, Final("{{c}}", nil, defs, Options{}))
}

func TestFinal_UpperEmptyWhenNotNumeric(t *testing.T) {
	defs := []model.VariableDefinition{{Key: "price", Type: model.VariableText}}
	assert.Equal(t, "[]", Final("[{{price_upper}}]", map[string]any{"price": "abc"}, defs, Options{WrapBold: true}))
	assert.Equal(t, "[]", Final("[{{price_upper}}]", map[string]any{}, defs, Options{}))
}

func TestFinal_InvalidImageIsEmptied(t *testing.T) {
	defs := []model.VariableDefinition{{Key: "img", Type: model.VariableImage}}
	assert.Equal(t, "", Final("{{img}}", map[string]any{"img": "https://evil.example/x.png"}, defs, Options{}))
	assert.Equal(t, "", Final("{{img}}", map[string]any{"img": "data:image/png;base64,@@"}, defs, Options{}))
}

func TestFinal_ArraysAndNumbers(t *testing.T) {
	defs := []model.VariableDefinition{
		{Key: "cities", Type: model.VariableText},
		{Key: "pax", Type: model.VariableNumber},
	}
	out := Final("{{cities}}|{{pax}}", map[string]any{"cities": []any{"Tokyo", "Osaka"}, "pax": float64(1000000)}, defs, Options{})
	assert.Equal(t, "Tokyo, Osaka|1000000", out)
}

func TestFinal_Deterministic(t *testing.T) {
	markup := "{{name}} {{price}} {{price_upper}} {{insured}}"
	values := map[string]any{"name": "Bob", "price": 99.5, "insured": false}
	first := Final(markup, values, tourDefs, Options{WrapBold: true})
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Final(markup, values, tourDefs, Options{WrapBold: true}))
	}
}

func TestInteractive(t *testing.T) {
	markup := "{{name}} / {{phone}} / {{passport}} / {{insured}} / {{unknown}} / {{簽署欄位}}"

	t.Run("unfilled customer fields are blank", func(t *testing.T) {
		out := Interactive(markup, map[string]any{"name": "Alice"}, tourDefs, "zh-TW", "")

		assert.Contains(t, out, `<span class="prefilled-value">Alice</span>`)
		assert.Contains(t, out, `name="customer_variables[phone]" value=""`)
		assert.Contains(t, out, `<input type="file" class="customer-input" name="customer_variables[passport]"`)
		assert.Contains(t, out, `<span class="prefilled-value">未勾選</span>`)
		assert.Contains(t, out, "{{unknown}}")
		assert.Contains(t, out, `<span class="signature-slot">簽署欄位</span>`)
	})

	t.Run("fillable values never leak as static text", func(t *testing.T) {
		out := Interactive("{{phone}}", map[string]any{"phone": "0912"}, tourDefs, "zh-TW", "")
		assert.NotContains(t, out, "prefilled-value")
		assert.Contains(t, out, `value="0912"`)
	})

	t.Run("prefilled values are escaped", func(t *testing.T) {
		out := Interactive("{{name}}", map[string]any{"name": `"><script>`}, tourDefs, "zh-TW", "")
		assert.NotContains(t, out, "<script>")
	})
}

func TestUndeclared(t *testing.T) {
	defs := []model.VariableDefinition{
		{Key: "name", Type: model.VariableText},
		{Key: "price", Type: model.VariableNumber},
	}
	markup := "{{name}} {{price_upper}} {{flight_no}} {{簽署欄位}} {{flight_no}} {{name_upper}} {{hotel}}"

	assert.Equal(t, []string{"flight_no", "hotel"}, Undeclared(markup, defs, ""))
	assert.Equal(t, []string{"flight_no", "簽署欄位", "hotel"}, Undeclared(markup, defs, "sign_here"))
	assert.Empty(t, Undeclared("<p>no placeholders</p>", defs, ""))
}
