package permission

import "sort"

// Set defines a public type used by authrbac APIs.
//
// Set instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Set struct {
	grants map[Permission]struct{}
}

// NewSet describes the newset operation and its observable behavior.
//
// NewSet does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewSet(perms ...Permission) Set {
	grants := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		grants[p] = struct{}{}
	}
	return Set{grants: grants}
}

// Has describes the has operation and its observable behavior.
//
// Has does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Set) Has(required Permission) bool {
	if _, ok := s.grants[required]; ok {
		return true
	}
	// manage on the resource satisfies any action on it, checked here
	// so stored sets never contain synthesized grants.
	if required.Action != ActionManage {
		_, ok := s.grants[Permission{Resource: required.Resource, Action: ActionManage}]
		return ok
	}
	return false
}

// HasAll describes the hasall operation and its observable behavior.
//
// HasAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Set) HasAll(required []Permission) bool {
	for _, p := range required {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// HasAny describes the hasany operation and its observable behavior.
//
// HasAny does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Set) HasAny(required []Permission) bool {
	if len(required) == 0 {
		return true
	}
	for _, p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Len describes the len operation and its observable behavior.
//
// Len does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Set) Len() int {
	return len(s.grants)
}

// Strings describes the strings operation and its observable behavior.
//
// Strings does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s.grants))
	for p := range s.grants {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}
