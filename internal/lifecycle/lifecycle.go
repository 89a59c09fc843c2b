// Package lifecycle holds the contract transition table. It is pure: the
// service layer applies the resulting status with a compare-and-set on the store.
package lifecycle

import (
	"contractapi/internal/apperr"
	"contractapi/internal/model"
)

// Event is a lifecycle trigger.
type Event string

const (
	EventIssue           Event = "issue"
	EventApprove         Event = "approve"
	EventReject          Event = "reject"
	EventResubmit        Event = "resubmit"
	EventCancel          Event = "cancel"
	EventCompleteSigning Event = "complete_signing"
)

type edge struct {
	from  model.ContractStatus
	event Event
}

var transitions = map[edge]model.ContractStatus{
	{model.StatusDraft, EventIssue}:                      model.StatusPendingSignature,
	{model.StatusPendingApproval, EventApprove}:          model.StatusPendingSignature,
	{model.StatusPendingApproval, EventReject}:           model.StatusRejected,
	{model.StatusRejected, EventResubmit}:                model.StatusPendingApproval,
	{model.StatusDraft, EventCancel}:                     model.StatusCancelled,
	{model.StatusPendingSignature, EventCancel}:          model.StatusCancelled,
	{model.StatusPendingSignature, EventCompleteSigning}: model.StatusSigned,
}

// Events lists every event in a stable order.
func Events() []Event {
	return []Event{EventIssue, EventApprove, EventReject, EventResubmit, EventCancel, EventCompleteSigning}
}

// Statuses lists every status in a stable order.
func Statuses() []model.ContractStatus {
	return []model.ContractStatus{
		model.StatusDraft,
		model.StatusPendingApproval,
		model.StatusPendingSignature,
		model.StatusRejected,
		model.StatusSigned,
		model.StatusCancelled,
	}
}

// Next returns the target status of ev applied to c, or a StateConflictError.
func Next(c *model.Contract, ev Event) (model.ContractStatus, error) {
	if to, ok := transitions[edge{c.Status, ev}]; ok {
		return to, nil
	}
	return "", &apperr.StateConflictError{
		ContractID: c.ID,
		Current:    string(c.Status),
		Required:   requiredFor(ev),
	}
}

// InitialStatus picks the creation status for a contract of the given template.
func InitialStatus(requiresApproval, asDraft bool) model.ContractStatus {
	switch {
	case requiresApproval:
		return model.StatusPendingApproval
	case asDraft:
		return model.StatusDraft
	default:
		return model.StatusPendingSignature
	}
}

// Editable reports whether variable values may still be edited in status s.
func Editable(s model.ContractStatus) bool {
	switch s {
	case model.StatusDraft, model.StatusPendingApproval, model.StatusPendingSignature:
		return true
	}
	return false
}

// EditableStatuses lists the statuses accepted by Editable, for error reporting.
func EditableStatuses() []string {
	return []string{string(model.StatusDraft), string(model.StatusPendingApproval), string(model.StatusPendingSignature)}
}

// Signable reports whether a customer may sign in status s.
func Signable(s model.ContractStatus) bool { return s == model.StatusPendingSignature }

func requiredFor(ev Event) []string {
	var out []string
	for _, s := range Statuses() {
		if _, ok := transitions[edge{s, ev}]; ok {
			out = append(out, string(s))
		}
	}
	return out
}
