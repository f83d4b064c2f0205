package permission

import "context"

// Role defines a public type used by authrbac APIs.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role struct {
	ID   string
	Name string
}

// RoleSource defines a public type used by authrbac APIs.
//
// RoleSource instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RoleSource interface {
	FindActiveRolesForIdentity(ctx context.Context, identityID string) ([]Role, error)
	FindActivePermissionsForRoles(ctx context.Context, roleIDs []string) ([]Permission, error)
}

// Resolution defines a public type used by authrbac APIs.
//
// Resolution instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Resolution struct {
	Roles       []Role
	Permissions []Permission
}

// Set describes the set operation and its observable behavior.
//
// Set does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r Resolution) Set() Set {
	return NewSet(r.Permissions...)
}

// RoleNames describes the rolenames operation and its observable behavior.
//
// RoleNames does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r Resolution) RoleNames() []string {
	out := make([]string, len(r.Roles))
	for i, role := range r.Roles {
		out[i] = role.Name
	}
	return out
}

// PermissionStrings describes the permissionstrings operation and its observable behavior.
//
// PermissionStrings does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r Resolution) PermissionStrings() []string {
	out := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		out[i] = p.String()
	}
	return out
}

// Aggregator defines a public type used by authrbac APIs.
//
// Aggregator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Aggregator struct {
	source RoleSource
}

// NewAggregator describes the newaggregator operation and its observable behavior.
//
// NewAggregator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewAggregator(source RoleSource) *Aggregator {
	return &Aggregator{source: source}
}

// ResolveRoles describes the resolveroles operation and its observable behavior.
//
// ResolveRoles may return an error when input validation, dependency calls, or security checks fail.
// ResolveRoles does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Aggregator) ResolveRoles(ctx context.Context, identityID string) ([]Role, error) {
	return a.source.FindActiveRolesForIdentity(ctx, identityID)
}

// Resolve describes the resolve operation and its observable behavior.
//
// Resolve may return an error when input validation, dependency calls, or security checks fail.
// Resolve does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Aggregator) Resolve(ctx context.Context, identityID string) (Resolution, error) {
	roles, err := a.source.FindActiveRolesForIdentity(ctx, identityID)
	if err != nil {
		return Resolution{}, err
	}
	if len(roles) == 0 {
		return Resolution{}, nil
	}

	roleIDs := make([]string, len(roles))
	for i, role := range roles {
		roleIDs[i] = role.ID
	}

	perms, err := a.source.FindActivePermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return Resolution{}, err
	}

	seen := make(map[Permission]struct{}, len(perms))
	deduped := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		deduped = append(deduped, p)
	}

	return Resolution{Roles: roles, Permissions: deduped}, nil
}
