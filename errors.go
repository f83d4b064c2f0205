package authrbac

import (
	"errors"

	"github.com/taskforge/authrbac/ledger"
	"github.com/taskforge/authrbac/password"
	"github.com/taskforge/authrbac/token"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountInactive is an exported constant or variable used by the authentication engine.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountSetupIncomplete is an exported constant or variable used by the authentication engine.
	ErrAccountSetupIncomplete = errors.New("account has no credential configured")
	// ErrUsernameTaken is an exported constant or variable used by the authentication engine.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrContactExists is an exported constant or variable used by the authentication engine.
	ErrContactExists = errors.New("contact already registered")
	// ErrContactInvalid is an exported constant or variable used by the authentication engine.
	ErrContactInvalid = errors.New("invalid contact value")
	// ErrContactTypeUnknown is an exported constant or variable used by the authentication engine.
	ErrContactTypeUnknown = errors.New("unknown contact type")
	// ErrContactNotFound is an exported constant or variable used by the authentication engine.
	ErrContactNotFound = errors.New("contact not found")
	// ErrPrimaryContactMissing is an exported constant or variable used by the authentication engine.
	ErrPrimaryContactMissing = errors.New("no primary contact for identifier")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("new password must differ from previous passwords")
	// ErrRoleNotFound is an exported constant or variable used by the authentication engine.
	ErrRoleNotFound = errors.New("role not found")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrForgotRateLimited is an exported constant or variable used by the authentication engine.
	ErrForgotRateLimited = errors.New("password reset requests rate limited")
	// ErrPermissionDenied is an exported constant or variable used by the authentication engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBackendUnavailable is an exported constant or variable used by the authentication engine.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Leaf-package sentinels re-exported so callers branch on one error
// surface without importing the sub-packages.
var (
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = token.ErrInvalid
	// ErrTokenWrongType is an exported constant or variable used by the authentication engine.
	ErrTokenWrongType = token.ErrInvalidType
	// ErrSingleUseTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrSingleUseTokenInvalid = ledger.ErrTokenInvalid
	// ErrSingleUseTokenExpired is an exported constant or variable used by the authentication engine.
	ErrSingleUseTokenExpired = ledger.ErrTokenExpired
	// ErrSingleUseTokenUsed is an exported constant or variable used by the authentication engine.
	ErrSingleUseTokenUsed = ledger.ErrTokenUsed
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = password.ErrPolicy
)
