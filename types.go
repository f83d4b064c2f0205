package authrbac

import (
	"context"
	"time"

	"github.com/taskforge/authrbac/ledger"
	"github.com/taskforge/authrbac/permission"
)

// IdentityRecord defines a public type used by authrbac APIs.
//
// IdentityRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IdentityRecord struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Active    bool
	Verified  bool
	CreatedAt time.Time
}

// ContactRecord defines a public type used by authrbac APIs.
//
// ContactRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ContactRecord struct {
	ID            string
	IdentityID    string
	ContactTypeID string
	TypeName      string
	Value         string
	Primary       bool
	Active        bool
}

// ContactTypeRecord defines a public type used by authrbac APIs.
//
// ContactTypeRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ContactTypeRecord struct {
	ID   string
	Name string
}

// RefreshRecord defines a public type used by authrbac APIs.
//
// RefreshRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshRecord struct {
	ID         string
	IdentityID string
	TokenHash  string
	ExpiresAt  time.Time
}

// CreateIdentityInput defines a public type used by authrbac APIs.
//
// CreateIdentityInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CreateIdentityInput struct {
	Username  string
	FirstName string
	LastName  string
}

// CreateContactInput defines a public type used by authrbac APIs.
//
// CreateContactInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CreateContactInput struct {
	IdentityID    string
	ContactTypeID string
	Value         string
	Primary       bool
}

// IdentityStore is the persistence interface that callers must
// implement (or take from stores/postgres, stores/memory) to integrate
// the engine with their identity database. Lookup methods that can
// legitimately miss return (nil, nil) rather than an error.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, in CreateIdentityInput) (IdentityRecord, error)
	// GetIdentity returns ErrUserNotFound when no identity matches.
	GetIdentity(ctx context.Context, identityID string) (IdentityRecord, error)
	FindIdentityByUsername(ctx context.Context, username string) (*IdentityRecord, error)
	// FindIdentityByContact matches active contacts of the named
	// contact type carrying the value.
	FindIdentityByContact(ctx context.Context, value, contactTypeName string) (*IdentityRecord, error)
	MarkIdentityVerified(ctx context.Context, identityID string) error

	CreateContact(ctx context.Context, in CreateContactInput) (ContactRecord, error)
	FindContactByValue(ctx context.Context, value string) (*ContactRecord, error)
	ListContacts(ctx context.Context, identityID string) ([]ContactRecord, error)
	FindContactType(ctx context.Context, name string) (*ContactTypeRecord, error)

	// AppendCredential adds to the append-only credential history; the
	// newest entry is the verifying credential.
	AppendCredential(ctx context.Context, identityID, passwordHash string) error
	// LatestCredential returns ErrAccountSetupIncomplete when the
	// identity has no credential history.
	LatestCredential(ctx context.Context, identityID string) (string, error)
	ListCredentials(ctx context.Context, identityID string) ([]string, error)

	FindRoleByName(ctx context.Context, name string) (*permission.Role, error)
	AssignRole(ctx context.Context, identityID, roleID string) error
}

// TokenStore persists hashed refresh records and the single-use token
// ledger. Raw token material never reaches a TokenStore.
type TokenStore interface {
	CreateRefreshRecord(ctx context.Context, rec RefreshRecord) error
	// ConsumeRefreshRecord deletes the matching active unexpired record
	// and reports whether this caller removed it. Strictly-once: two
	// concurrent consumers observe at most one true.
	ConsumeRefreshRecord(ctx context.Context, identityID, tokenHash string) (bool, error)
	DeactivateRefreshRecords(ctx context.Context, identityID string) error

	ledger.Store
}

// TxRunner runs a function inside one storage transaction. Store calls
// made with the ctx passed to fn join the transaction; returning an
// error rolls back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx is the TxRunner for backends without transactions; fn runs
// directly on the ambient context.
type NoTx struct{}

// WithinTx describes the withintx operation and its observable behavior.
//
// WithinTx may return an error when input validation, dependency calls, or security checks fail.
// WithinTx does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Mailer delivers single-use tokens out of band. Delivery failures are
// swallowed by the forgot-password flow and logged, never surfaced.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetToken string) error
	SendVerification(ctx context.Context, contact, verificationToken string) error
}

// NoOpMailer defines a public type used by authrbac APIs.
//
// NoOpMailer instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NoOpMailer struct{}

// SendPasswordReset describes the sendpasswordreset operation and its observable behavior.
//
// SendPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpMailer) SendPasswordReset(context.Context, string, string) error { return nil }

// SendVerification describes the sendverification operation and its observable behavior.
//
// SendVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpMailer) SendVerification(context.Context, string, string) error { return nil }

// Logic defines a public type used by authrbac APIs.
//
// Logic instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Logic uint8

const (
	// LogicAnd is an exported constant or variable used by the authentication engine.
	LogicAnd Logic = iota
	// LogicOr is an exported constant or variable used by the authentication engine.
	LogicOr
)

// ContactSnapshot defines a public type used by authrbac APIs.
//
// ContactSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ContactSnapshot struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Value   string `json:"value"`
	Primary bool   `json:"isPrimary"`
}

// IdentitySnapshot defines a public type used by authrbac APIs.
//
// IdentitySnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IdentitySnapshot struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Active    bool              `json:"isActive"`
	Verified  bool              `json:"isVerified"`
	Contacts  []ContactSnapshot `json:"contacts,omitempty"`
	Roles     []string          `json:"roles,omitempty"`
}

// RegisterContact defines a public type used by authrbac APIs.
//
// RegisterContact instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterContact struct {
	Type    string
	Value   string
	Primary bool
}

// RegisterInput defines a public type used by authrbac APIs.
//
// RegisterInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Contacts  []RegisterContact
}

// RegisterResult defines a public type used by authrbac APIs.
//
// RegisterResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterResult struct {
	User IdentitySnapshot
}

// LoginResult defines a public type used by authrbac APIs.
//
// LoginResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginResult struct {
	User         IdentitySnapshot
	AccessToken  string
	RefreshToken string
	Roles        []string
	Permissions  []string
}

// RefreshResult defines a public type used by authrbac APIs.
//
// RefreshResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// ForgotPasswordResult defines a public type used by authrbac APIs.
//
// ForgotPasswordResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ForgotPasswordResult struct {
	// Message is identical whether or not the contact exists.
	Message string
}

// Principal defines a public type used by authrbac APIs.
//
// Principal instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Principal struct {
	IdentityID  string
	Username    string
	Roles       []string
	Permissions permission.Set
}
