package render

import (
	"strings"

	"contractapi/internal/model"
)

// Localized checkbox labels. Both count as truthy input in every locale.
const (
	CheckedLabelZH   = "已勾選"
	UncheckedLabelZH = "未勾選"
	CheckedLabelEN   = "Checked"
	UncheckedLabelEN = "Unchecked"
)

// Truthy reports whether v is one of the accepted "checked" tokens.
// Slices (multi-valued form fields) are truthy when any element is.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.TrimSpace(t) {
		case "true", "on", "1", "yes", CheckedLabelZH, CheckedLabelEN:
			return true
		}
	case float64:
		return t == 1
	case int:
		return t == 1
	case int64:
		return t == 1
	case []any:
		for _, e := range t {
			if Truthy(e) {
				return true
			}
		}
	case []string:
		for _, e := range t {
			if Truthy(e) {
				return true
			}
		}
	}
	return false
}

// Normalize maps raw input through the declarations: checkbox and boolean
// collapse to bool, strings are trimmed, absent declared keys become "" (false
// for checkboxes), non-string images are dropped. Undeclared keys pass through.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw map[string]any, defs []model.VariableDefinition) map[string]any {
	out := make(map[string]any, len(raw)+len(defs))
	declared := make(map[string]bool, len(defs))

	for _, d := range defs {
		if d.Key == "" {
			continue
		}
		declared[d.Key] = true
		v := raw[d.Key]

		switch d.Type {
		case model.VariableCheckbox, model.VariableBoolean:
			out[d.Key] = Truthy(v)
		case model.VariableImage:
			s, ok := v.(string)
			if !ok {
				out[d.Key] = ""
				continue
			}
			out[d.Key] = strings.TrimSpace(s)
		default:
			switch t := v.(type) {
			case string:
				out[d.Key] = strings.TrimSpace(t)
			case nil:
				out[d.Key] = ""
			default:
				out[d.Key] = t
			}
		}
	}

	for k, v := range raw {
		if !declared[k] {
			out[k] = v
		}
	}
	return out
}

// Merge overlays submitted on stored (submitted wins per key) and normalizes the result.
func Merge(stored, submitted map[string]any, defs []model.VariableDefinition) map[string]any {
	combined := make(map[string]any, len(stored)+len(submitted))
	for k, v := range stored {
		combined[k] = v
	}
	for k, v := range submitted {
		combined[k] = v
	}
	return Normalize(combined, defs)
}

// FillableKeys returns the customer-fillable declarations keyed by name.
func FillableKeys(defs []model.VariableDefinition) map[string]model.VariableDefinition {
	out := map[string]model.VariableDefinition{}
	for _, d := range defs {
		if d.IsCustomerFillable {
			out[d.Key] = d
		}
	}
	return out
}
