package permission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is an exported constant or variable used by the authentication engine.
var ErrMalformed = errors.New("malformed permission string")

// Action defines a public type used by authrbac APIs.
//
// Action instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Action uint8

const (
	actionUnknown Action = iota
	// ActionCreate is an exported constant or variable used by the authentication engine.
	ActionCreate
	// ActionRead is an exported constant or variable used by the authentication engine.
	ActionRead
	// ActionUpdate is an exported constant or variable used by the authentication engine.
	ActionUpdate
	// ActionDelete is an exported constant or variable used by the authentication engine.
	ActionDelete
	// ActionAssign is an exported constant or variable used by the authentication engine.
	ActionAssign
	// ActionRevoke is an exported constant or variable used by the authentication engine.
	ActionRevoke
	// ActionManage is an exported constant or variable used by the authentication engine.
	ActionManage
	// ActionRegister is an exported constant or variable used by the authentication engine.
	ActionRegister
	// ActionLogin is an exported constant or variable used by the authentication engine.
	ActionLogin
	// ActionLogout is an exported constant or variable used by the authentication engine.
	ActionLogout
	// ActionRefresh is an exported constant or variable used by the authentication engine.
	ActionRefresh
	// ActionResetPassword is an exported constant or variable used by the authentication engine.
	ActionResetPassword
	// ActionChangePassword is an exported constant or variable used by the authentication engine.
	ActionChangePassword
	// ActionVerifyContact is an exported constant or variable used by the authentication engine.
	ActionVerifyContact
)

var actionNames = map[Action]string{
	ActionCreate:         "create",
	ActionRead:           "read",
	ActionUpdate:         "update",
	ActionDelete:         "delete",
	ActionAssign:         "assign",
	ActionRevoke:         "revoke",
	ActionManage:         "manage",
	ActionRegister:       "register",
	ActionLogin:          "login",
	ActionLogout:         "logout",
	ActionRefresh:        "refresh",
	ActionResetPassword:  "reset-password",
	ActionChangePassword: "change-password",
	ActionVerifyContact:  "verify-contact",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		m[name] = a
	}
	return m
}()

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAction describes the parseaction operation and its observable behavior.
//
// ParseAction does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseAction(s string) (Action, bool) {
	a, ok := actionsByName[s]
	return a, ok
}

// Permission defines a public type used by authrbac APIs.
//
// Permission instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Permission struct {
	Resource string
	Action   Action
}

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p Permission) String() string {
	return p.Resource + ":" + p.Action.String()
}

// Parse describes the parse operation and its observable behavior.
//
// Parse may return an error when input validation, dependency calls, or security checks fail.
// Parse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Parse(s string) (Permission, error) {
	resource, actionName, found := strings.Cut(s, ":")
	if !found || resource == "" || actionName == "" {
		return Permission{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	action, ok := ParseAction(actionName)
	if !ok {
		return Permission{}, fmt.Errorf("%w: unknown action in %q", ErrMalformed, s)
	}
	return Permission{Resource: resource, Action: action}, nil
}

// MustParse describes the mustparse operation and its observable behavior.
//
// MustParse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func MustParse(s string) Permission {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}
