package password

import (
	"errors"
	"strings"
	"unicode"
)

// ErrPolicy is an exported constant or variable used by the authentication engine.
var ErrPolicy = errors.New("password does not meet the strength policy")

// Policy defines a public type used by authrbac APIs.
//
// Policy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy describes the defaultpolicy operation and its observable behavior.
//
// DefaultPolicy does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// PolicyError defines a public type used by authrbac APIs.
//
// PolicyError instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password policy: " + strings.Join(e.Violations, "; ")
}

// Is reports ErrPolicy so callers can branch with errors.Is without
// inspecting the violation list.
func (e *PolicyError) Is(target error) bool {
	return target == ErrPolicy
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p Policy) Validate(password string) error {
	var violations []string

	if len(password) < p.MinLength {
		violations = append(violations, "too short")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		violations = append(violations, "missing uppercase letter")
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, "missing lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "missing digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "missing special character")
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
