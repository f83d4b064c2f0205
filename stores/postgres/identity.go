package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskforge/authrbac"
)

const uniqueViolation = "23505"

// mapConstraintError translates unique violations into the engine's
// sentinel errors.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return authrbac.ErrUsernameTaken
	case strings.Contains(pgErr.ConstraintName, "contact"):
		return authrbac.ErrContactExists
	default:
		return err
	}
}

// CreateIdentity describes the createidentity operation and its observable behavior.
//
// CreateIdentity may return an error when input validation, dependency calls, or security checks fail.
// CreateIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateIdentity(ctx context.Context, in authrbac.CreateIdentityInput) (authrbac.IdentityRecord, error) {
	rec := authrbac.IdentityRecord{
		ID:        uuid.NewString(),
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Active:    true,
	}
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO users (id, username, first_name, last_name, is_active, is_verified)
		VALUES ($1, $2, $3, $4, TRUE, FALSE)
		RETURNING created_at`,
		rec.ID, rec.Username, rec.FirstName, rec.LastName,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return authrbac.IdentityRecord{}, mapConstraintError(err)
	}
	return rec, nil
}

// GetIdentity describes the getidentity operation and its observable behavior.
//
// GetIdentity may return an error when input validation, dependency calls, or security checks fail.
// GetIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetIdentity(ctx context.Context, identityID string) (authrbac.IdentityRecord, error) {
	var rec authrbac.IdentityRecord
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, is_active, is_verified, created_at
		FROM users WHERE id = $1`,
		identityID,
	).Scan(&rec.ID, &rec.Username, &rec.FirstName, &rec.LastName, &rec.Active, &rec.Verified, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authrbac.IdentityRecord{}, authrbac.ErrUserNotFound
	}
	if err != nil {
		return authrbac.IdentityRecord{}, err
	}
	return rec, nil
}

// FindIdentityByUsername describes the findidentitybyusername operation and its observable behavior.
//
// FindIdentityByUsername may return an error when input validation, dependency calls, or security checks fail.
// FindIdentityByUsername does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindIdentityByUsername(ctx context.Context, username string) (*authrbac.IdentityRecord, error) {
	var rec authrbac.IdentityRecord
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, is_active, is_verified, created_at
		FROM users WHERE LOWER(username) = LOWER($1)`,
		username,
	).Scan(&rec.ID, &rec.Username, &rec.FirstName, &rec.LastName, &rec.Active, &rec.Verified, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindIdentityByContact describes the findidentitybycontact operation and its observable behavior.
//
// FindIdentityByContact may return an error when input validation, dependency calls, or security checks fail.
// FindIdentityByContact does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindIdentityByContact(ctx context.Context, value, contactTypeName string) (*authrbac.IdentityRecord, error) {
	var rec authrbac.IdentityRecord
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT u.id, u.username, u.first_name, u.last_name, u.is_active, u.is_verified, u.created_at
		FROM users u
		JOIN user_contacts uc ON uc.user_id = u.id
		JOIN contact_types ct ON ct.id = uc.contact_type_id
		WHERE uc.is_active AND LOWER(uc.value) = LOWER($1) AND ct.name = $2`,
		value, strings.ToLower(contactTypeName),
	).Scan(&rec.ID, &rec.Username, &rec.FirstName, &rec.LastName, &rec.Active, &rec.Verified, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkIdentityVerified describes the markidentityverified operation and its observable behavior.
//
// MarkIdentityVerified may return an error when input validation, dependency calls, or security checks fail.
// MarkIdentityVerified does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) MarkIdentityVerified(ctx context.Context, identityID string) error {
	result, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE WHERE id = $1`, identityID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return authrbac.ErrUserNotFound
	}
	return nil
}

// CreateContact describes the createcontact operation and its observable behavior.
//
// CreateContact may return an error when input validation, dependency calls, or security checks fail.
// CreateContact does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateContact(ctx context.Context, in authrbac.CreateContactInput) (authrbac.ContactRecord, error) {
	rec := authrbac.ContactRecord{
		ID:            uuid.NewString(),
		IdentityID:    in.IdentityID,
		ContactTypeID: in.ContactTypeID,
		Value:         in.Value,
		Primary:       in.Primary,
		Active:        true,
	}
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO user_contacts (id, user_id, contact_type_id, value, is_primary, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING (SELECT name FROM contact_types WHERE id = $3)`,
		rec.ID, rec.IdentityID, rec.ContactTypeID, rec.Value, rec.Primary,
	).Scan(&rec.TypeName)
	if err != nil {
		return authrbac.ContactRecord{}, mapConstraintError(err)
	}
	return rec, nil
}

// FindContactByValue describes the findcontactbyvalue operation and its observable behavior.
//
// FindContactByValue may return an error when input validation, dependency calls, or security checks fail.
// FindContactByValue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindContactByValue(ctx context.Context, value string) (*authrbac.ContactRecord, error) {
	var rec authrbac.ContactRecord
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT uc.id, uc.user_id, uc.contact_type_id, ct.name, uc.value, uc.is_primary, uc.is_active
		FROM user_contacts uc
		JOIN contact_types ct ON ct.id = uc.contact_type_id
		WHERE uc.is_active AND LOWER(uc.value) = LOWER($1)`,
		value,
	).Scan(&rec.ID, &rec.IdentityID, &rec.ContactTypeID, &rec.TypeName, &rec.Value, &rec.Primary, &rec.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListContacts describes the listcontacts operation and its observable behavior.
//
// ListContacts may return an error when input validation, dependency calls, or security checks fail.
// ListContacts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ListContacts(ctx context.Context, identityID string) ([]authrbac.ContactRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT uc.id, uc.user_id, uc.contact_type_id, ct.name, uc.value, uc.is_primary, uc.is_active
		FROM user_contacts uc
		JOIN contact_types ct ON ct.id = uc.contact_type_id
		WHERE uc.user_id = $1
		ORDER BY uc.is_primary DESC, ct.name`,
		identityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authrbac.ContactRecord
	for rows.Next() {
		var rec authrbac.ContactRecord
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &rec.ContactTypeID, &rec.TypeName, &rec.Value, &rec.Primary, &rec.Active); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FindContactType describes the findcontacttype operation and its observable behavior.
//
// FindContactType may return an error when input validation, dependency calls, or security checks fail.
// FindContactType does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindContactType(ctx context.Context, name string) (*authrbac.ContactTypeRecord, error) {
	var rec authrbac.ContactTypeRecord
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, name FROM contact_types WHERE name = $1`, strings.ToLower(name),
	).Scan(&rec.ID, &rec.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendCredential describes the appendcredential operation and its observable behavior.
//
// AppendCredential may return an error when input validation, dependency calls, or security checks fail.
// AppendCredential does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) AppendCredential(ctx context.Context, identityID, passwordHash string) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO user_passwords (id, user_id, password_hash)
		VALUES ($1, $2, $3)`,
		uuid.NewString(), identityID, passwordHash,
	)
	return err
}

// LatestCredential describes the latestcredential operation and its observable behavior.
//
// LatestCredential may return an error when input validation, dependency calls, or security checks fail.
// LatestCredential does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) LatestCredential(ctx context.Context, identityID string) (string, error) {
	var hash string
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT password_hash FROM user_passwords
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		identityID,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", authrbac.ErrAccountSetupIncomplete
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// ListCredentials describes the listcredentials operation and its observable behavior.
//
// ListCredentials may return an error when input validation, dependency calls, or security checks fail.
// ListCredentials does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ListCredentials(ctx context.Context, identityID string) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT password_hash FROM user_passwords
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`,
		identityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}
