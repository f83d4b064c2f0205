// Package ledger implements the single-use token ledger for password
// reset and contact verification tokens: opaque random tokens delivered
// once to the caller, persisted only as SHA-256 hashes, consumed exactly
// once, with any outstanding token invalidated on reissue.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/authrbac/internal"
	"github.com/taskforge/authrbac/token"
)

var (
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("single-use token invalid")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("single-use token expired")
	// ErrTokenUsed is an exported constant or variable used by the authentication engine.
	ErrTokenUsed = errors.New("single-use token already used")
)

// Purpose defines a public type used by authrbac APIs.
//
// Purpose instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Purpose uint8

const (
	// PurposeReset is an exported constant or variable used by the authentication engine.
	PurposeReset Purpose = iota + 1
	// PurposeVerification is an exported constant or variable used by the authentication engine.
	PurposeVerification
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p Purpose) String() string {
	switch p {
	case PurposeReset:
		return "reset"
	case PurposeVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Record defines a public type used by authrbac APIs.
//
// Record instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Record struct {
	ID         string
	IdentityID string
	TokenHash  string
	Purpose    Purpose
	ExpiresAt  time.Time
	Used       bool
}

// Store defines a public type used by authrbac APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store interface {
	CreateSingleUseToken(ctx context.Context, rec Record) error
	// FindSingleUseToken returns (nil, nil) when no record matches.
	// The hash alone identifies the record; the owning identity comes
	// back on it.
	FindSingleUseToken(ctx context.Context, purpose Purpose, tokenHash string) (*Record, error)
	MarkSingleUseTokenUsed(ctx context.Context, rec Record) error
	InvalidateUnusedSingleUseTokens(ctx context.Context, identityID string, purpose Purpose) error
}

// Ledger defines a public type used by authrbac APIs.
//
// Ledger instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Ledger struct {
	store Store
	now   func() time.Time
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(store Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

// Issue describes the issue operation and its observable behavior.
//
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (l *Ledger) Issue(ctx context.Context, identityID string, purpose Purpose, ttl time.Duration) (string, error) {
	raw, err := internal.NewOpaqueToken()
	if err != nil {
		return "", err
	}

	if err := l.store.InvalidateUnusedSingleUseTokens(ctx, identityID, purpose); err != nil {
		return "", err
	}

	rec := Record{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		TokenHash:  token.HashOpaque(raw),
		Purpose:    purpose,
		ExpiresAt:  l.now().Add(ttl),
	}
	if err := l.store.CreateSingleUseToken(ctx, rec); err != nil {
		return "", err
	}
	return raw, nil
}

// Consume resolves the raw token to its record, marks it used, and
// returns the owning identity. Exactly one Consume per issued token
// can succeed.
func (l *Ledger) Consume(ctx context.Context, raw string, purpose Purpose) (string, error) {
	rec, err := l.store.FindSingleUseToken(ctx, purpose, token.HashOpaque(raw))
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrTokenInvalid
	}
	if rec.Used {
		return "", ErrTokenUsed
	}
	if !l.now().Before(rec.ExpiresAt) {
		return "", ErrTokenExpired
	}
	if err := l.store.MarkSingleUseTokenUsed(ctx, *rec); err != nil {
		return "", err
	}
	return rec.IdentityID, nil
}
