// Package verification gates access to a contract's signable content behind
// its one-time code. Verified state is scoped to (session, token) and lives in
// an injectable Store, never in the contract row.
package verification

import (
	"context"
	"fmt"
	"time"

	"contractapi/internal/apperr"
	"contractapi/internal/model"
	"contractapi/internal/secret"
)

// Verification methods recorded in Record.Method.
const (
	MethodCode     = "code"
	MethodInPerson = "in_person"
)

// Context identifies the caller of a gate operation. SessionID and Token
// key the verified state; Origin and UserAgent are informational.
type Context struct {
	SessionID string
	Token     string
	Origin    string
	UserAgent string
}

// Key returns the store key of the context.
func (c Context) Key() Key { return Key{SessionID: c.SessionID, Token: c.Token} }

// Key addresses one verified state.
type Key struct {
	SessionID string
	Token     string
}

func (k Key) String() string { return "verify:" + k.SessionID + ":" + k.Token }

// Record is the verified state of a session for a token. Code is kept only
// for the audit page of the document signed within the same session.
type Record struct {
	VerifiedAt time.Time `json:"verified_at"`
	Method     string    `json:"method"`
	Code       string    `json:"code,omitempty"`
	StaffID    string    `json:"staff_id,omitempty"`
}

// Store persists verified state. Get returns nil, nil when nothing is stored.
type Store interface {
	Get(ctx context.Context, key Key) (*Record, error)
	Put(ctx context.Context, key Key, rec Record) error
	Delete(ctx context.Context, key Key) error
}

// ContractFinder is the subset of the contract store the gate needs.
type ContractFinder interface {
	FindByToken(ctx context.Context, token string) (*model.Contract, error)
}

// Result reports the outcome of RequestVerification.
type Result struct {
	Contract        *model.Contract
	AlreadyVerified bool
}

// Gate checks one-time codes and tracks verified sessions.
type Gate struct {
	contracts ContractFinder
	store     Store
	now       func() time.Time
}

func NewGate(contracts ContractFinder, store Store) *Gate {
	return &Gate{contracts: contracts, store: store, now: time.Now}
}

// RequestVerification compares code against the contract's stored hash and
// marks the session verified on success. A session that is already verified
// short-circuits without looking at code.
func (g *Gate) RequestVerification(ctx context.Context, vc Context, code string) (*Result, error) {
	if vc.SessionID == "" {
		return nil, apperr.Validation("session id is required")
	}
	c, err := g.contracts.FindByToken(ctx, vc.Token)
	if err != nil {
		return nil, err
	}

	rec, err := g.store.Get(ctx, vc.Key())
	if err != nil {
		return nil, apperr.DependencyUnavailable("verification store", err)
	}
	if rec != nil {
		return &Result{Contract: c, AlreadyVerified: true}, nil
	}

	if c.VerificationCodeHash == "" {
		return nil, fmt.Errorf("contract %s has no verification code: %w", c.ID, apperr.ErrVerificationFailed)
	}
	if !secret.CompareCode(code, c.VerificationCodeHash) {
		return nil, fmt.Errorf("wrong code for contract %s: %w", c.ID, apperr.ErrVerificationFailed)
	}

	if err := g.store.Put(ctx, vc.Key(), Record{VerifiedAt: g.now().UTC(), Method: MethodCode, Code: code}); err != nil {
		return nil, apperr.DependencyUnavailable("verification store", err)
	}
	return &Result{Contract: c}, nil
}

// MarkInPerson verifies the session on behalf of a staff member who checked
// the customer's identity face to face.
func (g *Gate) MarkInPerson(ctx context.Context, vc Context, staffID string) (*model.Contract, error) {
	if vc.SessionID == "" {
		return nil, apperr.Validation("session id is required")
	}
	if staffID == "" {
		return nil, apperr.Unauthorized("staff id is required for in-person verification")
	}
	c, err := g.contracts.FindByToken(ctx, vc.Token)
	if err != nil {
		return nil, err
	}
	rec := Record{VerifiedAt: g.now().UTC(), Method: MethodInPerson, StaffID: staffID}
	if err := g.store.Put(ctx, vc.Key(), rec); err != nil {
		return nil, apperr.DependencyUnavailable("verification store", err)
	}
	return c, nil
}

// Lookup returns the session's record, or nil when unverified.
func (g *Gate) Lookup(ctx context.Context, vc Context) (*Record, error) {
	if vc.SessionID == "" {
		return nil, nil
	}
	rec, err := g.store.Get(ctx, vc.Key())
	if err != nil {
		return nil, apperr.DependencyUnavailable("verification store", err)
	}
	return rec, nil
}

// Clear forgets the session's verified state, after signing completes.
func (g *Gate) Clear(ctx context.Context, vc Context) error {
	return g.store.Delete(ctx, vc.Key())
}
