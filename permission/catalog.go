package permission

const (
	// ResourceUsers is an exported constant or variable used by the authentication engine.
	ResourceUsers = "users"
	// ResourceRoles is an exported constant or variable used by the authentication engine.
	ResourceRoles = "roles"
	// ResourcePermissions is an exported constant or variable used by the authentication engine.
	ResourcePermissions = "permissions"
	// ResourceContacts is an exported constant or variable used by the authentication engine.
	ResourceContacts = "contacts"
	// ResourceUserRoles is an exported constant or variable used by the authentication engine.
	ResourceUserRoles = "user_roles"
	// ResourceRolePermissions is an exported constant or variable used by the authentication engine.
	ResourceRolePermissions = "role_permissions"
	// ResourceAuth is an exported constant or variable used by the authentication engine.
	ResourceAuth = "auth"
)

var crudActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}

var catalog = func() []Permission {
	var out []Permission
	for _, resource := range []string{ResourceUsers, ResourceRoles, ResourcePermissions, ResourceContacts} {
		for _, action := range crudActions {
			out = append(out, Permission{Resource: resource, Action: action})
		}
	}
	for _, resource := range []string{ResourceUserRoles, ResourceRolePermissions} {
		for _, action := range []Action{ActionAssign, ActionRevoke, ActionRead, ActionManage} {
			out = append(out, Permission{Resource: resource, Action: action})
		}
	}
	for _, action := range []Action{
		ActionRegister, ActionLogin, ActionLogout, ActionRefresh,
		ActionResetPassword, ActionChangePassword, ActionVerifyContact, ActionManage,
	} {
		out = append(out, Permission{Resource: ResourceAuth, Action: action})
	}
	return out
}()

var catalogIndex = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(catalog))
	for _, p := range catalog {
		m[p] = struct{}{}
	}
	return m
}()

// AllPermissions describes the allpermissions operation and its observable behavior.
//
// AllPermissions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func AllPermissions() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// InCatalog describes the incatalog operation and its observable behavior.
//
// InCatalog does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func InCatalog(p Permission) bool {
	_, ok := catalogIndex[p]
	return ok
}
