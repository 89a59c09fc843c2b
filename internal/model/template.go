package model

import "time"

// VariableType is the declared type of a template variable.
type VariableType string

const (
	VariableText     VariableType = "text"
	VariableNumber   VariableType = "number"
	VariableDate     VariableType = "date"
	VariableTextarea VariableType = "textarea"
	VariableCheckbox VariableType = "checkbox"
	VariableBoolean  VariableType = "boolean"
	VariableImage    VariableType = "image"
)

// VariableDefinition declares a substitutable slot of a template.
type VariableDefinition struct {
	Key                string       `json:"key"`
	Label              string       `json:"label"`
	Type               VariableType `json:"type"`
	IsCustomerFillable bool         `json:"isCustomerFillable"`
}

// Template is reusable contract markup with its ordered variable declarations.
type Template struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Variables        []VariableDefinition `json:"variables"`
	Content          string               `json:"content"`
	MasterDocumentID string               `json:"master_document_id,omitempty"`
	RequiresApproval bool                 `json:"requires_approval"`
	IsActive         bool                 `json:"is_active"`
	CreatedAt        time.Time            `json:"created_at"`
}

// Variable returns the declaration for key, if any.
func (t *Template) Variable(key string) (VariableDefinition, bool) {
	for _, v := range t.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return VariableDefinition{}, false
}
