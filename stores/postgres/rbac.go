package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taskforge/authrbac/permission"
)

// FindRoleByName describes the findrolebyname operation and its observable behavior.
//
// FindRoleByName may return an error when input validation, dependency calls, or security checks fail.
// FindRoleByName does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindRoleByName(ctx context.Context, name string) (*permission.Role, error) {
	var role permission.Role
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, name FROM roles WHERE is_active AND LOWER(name) = LOWER($1)`, name,
	).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// AssignRole describes the assignrole operation and its observable behavior.
//
// AssignRole may return an error when input validation, dependency calls, or security checks fail.
// AssignRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) AssignRole(ctx context.Context, identityID, roleID string) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		identityID, roleID,
	)
	return err
}

// UnassignRole removes one role assignment.
func (s *Store) UnassignRole(ctx context.Context, identityID, roleID string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		identityID, roleID,
	)
	return err
}

// FindActiveRolesForIdentity describes the findactiverolesforidentity operation and its observable behavior.
//
// FindActiveRolesForIdentity may return an error when input validation, dependency calls, or security checks fail.
// FindActiveRolesForIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindActiveRolesForIdentity(ctx context.Context, identityID string) ([]permission.Role, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT r.id, r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE r.is_active AND ur.user_id = $1
		ORDER BY r.name`,
		identityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Role
	for rows.Next() {
		var role permission.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// FindActivePermissionsForRoles describes the findactivepermissionsforroles operation and its observable behavior.
//
// FindActivePermissionsForRoles may return an error when input validation, dependency calls, or security checks fail.
// FindActivePermissionsForRoles does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindActivePermissionsForRoles(ctx context.Context, roleIDs []string) ([]permission.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT p.resource, p.action
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE p.is_active AND rp.role_id = ANY($1)`,
		roleIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Permission
	for rows.Next() {
		var resource, action string
		if err := rows.Scan(&resource, &action); err != nil {
			return nil, err
		}
		p, err := permission.Parse(resource + ":" + action)
		if err != nil {
			return nil, fmt.Errorf("stored permission %s:%s: %w", resource, action, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
