// Package memory implements every engine store interface over plain
// maps. It backs the package tests and the runnable examples; it is not
// a production store.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/authrbac"
	"github.com/taskforge/authrbac/ledger"
	"github.com/taskforge/authrbac/permission"
)

type state struct {
	identities    map[string]authrbac.IdentityRecord
	contacts      map[string]authrbac.ContactRecord
	contactTypes  map[string]authrbac.ContactTypeRecord // keyed by lowercase name
	credentials   map[string][]string                   // identity ID -> hashes, oldest first
	roles         map[string]permission.Role            // keyed by role ID
	rolePerms     map[string][]permission.Permission    // role ID -> grants
	identityRoles map[string][]string                   // identity ID -> role IDs
	refresh       map[string]authrbac.RefreshRecord     // identity ID + ":" + token hash
	singleUse     map[string]ledger.Record              // keyed by record ID
}

func newState() *state {
	return &state{
		identities:    make(map[string]authrbac.IdentityRecord),
		contacts:      make(map[string]authrbac.ContactRecord),
		contactTypes:  make(map[string]authrbac.ContactTypeRecord),
		credentials:   make(map[string][]string),
		roles:         make(map[string]permission.Role),
		rolePerms:     make(map[string][]permission.Permission),
		identityRoles: make(map[string][]string),
		refresh:       make(map[string]authrbac.RefreshRecord),
		singleUse:     make(map[string]ledger.Record),
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.identities {
		out.identities[k] = v
	}
	for k, v := range s.contacts {
		out.contacts[k] = v
	}
	for k, v := range s.contactTypes {
		out.contactTypes[k] = v
	}
	for k, v := range s.credentials {
		out.credentials[k] = append([]string(nil), v...)
	}
	for k, v := range s.roles {
		out.roles[k] = v
	}
	for k, v := range s.rolePerms {
		out.rolePerms[k] = append([]permission.Permission(nil), v...)
	}
	for k, v := range s.identityRoles {
		out.identityRoles[k] = append([]string(nil), v...)
	}
	for k, v := range s.refresh {
		out.refresh[k] = v
	}
	for k, v := range s.singleUse {
		out.singleUse[k] = v
	}
	return out
}

// Store defines a public type used by authrbac APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state
	now  func() time.Time
}

// New creates an empty store with the standard contact types seeded.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock is New with an injected clock. Test hook.
func NewWithClock(now func() time.Time) *Store {
	s := &Store{st: newState(), now: now}
	for _, name := range []string{"primary email", "primary mobile", "email", "mobile"} {
		s.AddContactType(name)
	}
	return s
}

/*
====================================
SEED HELPERS
====================================
*/

// AddContactType describes the addcontacttype operation and its observable behavior.
//
// AddContactType does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) AddContactType(name string) authrbac.ContactTypeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := authrbac.ContactTypeRecord{ID: uuid.NewString(), Name: strings.ToLower(name)}
	s.st.contactTypes[rec.Name] = rec
	return rec
}

// AddRole describes the addrole operation and its observable behavior.
//
// AddRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) AddRole(name string, grants ...permission.Permission) permission.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := permission.Role{ID: uuid.NewString(), Name: name}
	s.st.roles[role.ID] = role
	s.st.rolePerms[role.ID] = append([]permission.Permission(nil), grants...)
	return role
}

// GrantRolePermissions appends grants to an existing role.
func (s *Store) GrantRolePermissions(roleID string, grants ...permission.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.rolePerms[roleID] = append(s.st.rolePerms[roleID], grants...)
}

// RevokeRolePermissions removes the given grants from a role.
func (s *Store) RevokeRolePermissions(roleID string, grants ...permission.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[permission.Permission]struct{}, len(grants))
	for _, g := range grants {
		drop[g] = struct{}{}
	}
	kept := s.st.rolePerms[roleID][:0]
	for _, g := range s.st.rolePerms[roleID] {
		if _, ok := drop[g]; !ok {
			kept = append(kept, g)
		}
	}
	s.st.rolePerms[roleID] = kept
}

// SetIdentityActive flips the identity's active flag.
func (s *Store) SetIdentityActive(identityID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.st.identities[identityID]; ok {
		rec.Active = active
		s.st.identities[identityID] = rec
	}
}

/*
====================================
TRANSACTIONS
====================================
*/

// WithinTx serializes transactions and restores a pre-transaction
// snapshot when fn fails, mirroring rollback semantics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

/*
====================================
IDENTITY STORE
====================================
*/

// CreateIdentity describes the createidentity operation and its observable behavior.
//
// CreateIdentity may return an error when input validation, dependency calls, or security checks fail.
// CreateIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateIdentity(_ context.Context, in authrbac.CreateIdentityInput) (authrbac.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := authrbac.IdentityRecord{
		ID:        uuid.NewString(),
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Active:    true,
		CreatedAt: s.now(),
	}
	s.st.identities[rec.ID] = rec
	return rec, nil
}

// GetIdentity describes the getidentity operation and its observable behavior.
//
// GetIdentity may return an error when input validation, dependency calls, or security checks fail.
// GetIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetIdentity(_ context.Context, identityID string) (authrbac.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.identities[identityID]
	if !ok {
		return authrbac.IdentityRecord{}, authrbac.ErrUserNotFound
	}
	return rec, nil
}

// FindIdentityByUsername describes the findidentitybyusername operation and its observable behavior.
//
// FindIdentityByUsername may return an error when input validation, dependency calls, or security checks fail.
// FindIdentityByUsername does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindIdentityByUsername(_ context.Context, username string) (*authrbac.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.st.identities {
		if strings.EqualFold(rec.Username, username) {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

// FindIdentityByContact describes the findidentitybycontact operation and its observable behavior.
//
// FindIdentityByContact may return an error when input validation, dependency calls, or security checks fail.
// FindIdentityByContact does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindIdentityByContact(_ context.Context, value, contactTypeName string) (*authrbac.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := strings.ToLower(contactTypeName)
	for _, contact := range s.st.contacts {
		if !contact.Active || contact.TypeName != name || !strings.EqualFold(contact.Value, value) {
			continue
		}
		if rec, ok := s.st.identities[contact.IdentityID]; ok {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

// MarkIdentityVerified describes the markidentityverified operation and its observable behavior.
//
// MarkIdentityVerified may return an error when input validation, dependency calls, or security checks fail.
// MarkIdentityVerified does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) MarkIdentityVerified(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.identities[identityID]
	if !ok {
		return authrbac.ErrUserNotFound
	}
	rec.Verified = true
	s.st.identities[identityID] = rec
	return nil
}

// CreateContact describes the createcontact operation and its observable behavior.
//
// CreateContact may return an error when input validation, dependency calls, or security checks fail.
// CreateContact does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateContact(_ context.Context, in authrbac.CreateContactInput) (authrbac.ContactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	typeName := ""
	for _, ct := range s.st.contactTypes {
		if ct.ID == in.ContactTypeID {
			typeName = ct.Name
			break
		}
	}
	rec := authrbac.ContactRecord{
		ID:            uuid.NewString(),
		IdentityID:    in.IdentityID,
		ContactTypeID: in.ContactTypeID,
		TypeName:      typeName,
		Value:         in.Value,
		Primary:       in.Primary,
		Active:        true,
	}
	s.st.contacts[rec.ID] = rec
	return rec, nil
}

// FindContactByValue describes the findcontactbyvalue operation and its observable behavior.
//
// FindContactByValue may return an error when input validation, dependency calls, or security checks fail.
// FindContactByValue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindContactByValue(_ context.Context, value string) (*authrbac.ContactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.st.contacts {
		if contact.Active && strings.EqualFold(contact.Value, value) {
			out := contact
			return &out, nil
		}
	}
	return nil, nil
}

// ListContacts describes the listcontacts operation and its observable behavior.
//
// ListContacts may return an error when input validation, dependency calls, or security checks fail.
// ListContacts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ListContacts(_ context.Context, identityID string) ([]authrbac.ContactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []authrbac.ContactRecord
	for _, contact := range s.st.contacts {
		if contact.IdentityID == identityID {
			out = append(out, contact)
		}
	}
	return out, nil
}

// FindContactType describes the findcontacttype operation and its observable behavior.
//
// FindContactType may return an error when input validation, dependency calls, or security checks fail.
// FindContactType does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindContactType(_ context.Context, name string) (*authrbac.ContactTypeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.contactTypes[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

// AppendCredential describes the appendcredential operation and its observable behavior.
//
// AppendCredential may return an error when input validation, dependency calls, or security checks fail.
// AppendCredential does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) AppendCredential(_ context.Context, identityID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.credentials[identityID] = append(s.st.credentials[identityID], passwordHash)
	return nil
}

// LatestCredential describes the latestcredential operation and its observable behavior.
//
// LatestCredential may return an error when input validation, dependency calls, or security checks fail.
// LatestCredential does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) LatestCredential(_ context.Context, identityID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.st.credentials[identityID]
	if len(history) == 0 {
		return "", authrbac.ErrAccountSetupIncomplete
	}
	return history[len(history)-1], nil
}

// ListCredentials describes the listcredentials operation and its observable behavior.
//
// ListCredentials may return an error when input validation, dependency calls, or security checks fail.
// ListCredentials does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ListCredentials(_ context.Context, identityID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.st.credentials[identityID]...), nil
}

// FindRoleByName describes the findrolebyname operation and its observable behavior.
//
// FindRoleByName may return an error when input validation, dependency calls, or security checks fail.
// FindRoleByName does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindRoleByName(_ context.Context, name string) (*permission.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.st.roles {
		if strings.EqualFold(role.Name, name) {
			out := role
			return &out, nil
		}
	}
	return nil, nil
}

// AssignRole describes the assignrole operation and its observable behavior.
//
// AssignRole may return an error when input validation, dependency calls, or security checks fail.
// AssignRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) AssignRole(_ context.Context, identityID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.identityRoles[identityID] {
		if existing == roleID {
			return nil
		}
	}
	s.st.identityRoles[identityID] = append(s.st.identityRoles[identityID], roleID)
	return nil
}

// UnassignRole removes one role from an identity.
func (s *Store) UnassignRole(identityID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.st.identityRoles[identityID][:0]
	for _, existing := range s.st.identityRoles[identityID] {
		if existing != roleID {
			kept = append(kept, existing)
		}
	}
	s.st.identityRoles[identityID] = kept
}

/*
====================================
ROLE SOURCE
====================================
*/

// FindActiveRolesForIdentity describes the findactiverolesforidentity operation and its observable behavior.
//
// FindActiveRolesForIdentity may return an error when input validation, dependency calls, or security checks fail.
// FindActiveRolesForIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindActiveRolesForIdentity(_ context.Context, identityID string) ([]permission.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []permission.Role
	for _, roleID := range s.st.identityRoles[identityID] {
		if role, ok := s.st.roles[roleID]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

// FindActivePermissionsForRoles describes the findactivepermissionsforroles operation and its observable behavior.
//
// FindActivePermissionsForRoles may return an error when input validation, dependency calls, or security checks fail.
// FindActivePermissionsForRoles does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindActivePermissionsForRoles(_ context.Context, roleIDs []string) ([]permission.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []permission.Permission
	for _, roleID := range roleIDs {
		out = append(out, s.st.rolePerms[roleID]...)
	}
	return out, nil
}

/*
====================================
TOKEN STORE
====================================
*/

func refreshKey(identityID, tokenHash string) string {
	return identityID + ":" + tokenHash
}

// CreateRefreshRecord describes the createrefreshrecord operation and its observable behavior.
//
// CreateRefreshRecord may return an error when input validation, dependency calls, or security checks fail.
// CreateRefreshRecord does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateRefreshRecord(_ context.Context, rec authrbac.RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.refresh[refreshKey(rec.IdentityID, rec.TokenHash)] = rec
	return nil
}

// ConsumeRefreshRecord describes the consumerefreshrecord operation and its observable behavior.
//
// ConsumeRefreshRecord may return an error when input validation, dependency calls, or security checks fail.
// ConsumeRefreshRecord does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ConsumeRefreshRecord(_ context.Context, identityID, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := refreshKey(identityID, tokenHash)
	rec, ok := s.st.refresh[key]
	if !ok {
		return false, nil
	}
	delete(s.st.refresh, key)
	if !s.now().Before(rec.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// DeactivateRefreshRecords describes the deactivaterefreshrecords operation and its observable behavior.
//
// DeactivateRefreshRecords may return an error when input validation, dependency calls, or security checks fail.
// DeactivateRefreshRecords does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) DeactivateRefreshRecords(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.st.refresh {
		if rec.IdentityID == identityID {
			delete(s.st.refresh, key)
		}
	}
	return nil
}

// RefreshRecordCount reports the identity's live refresh records. Test
// helper.
func (s *Store) RefreshRecordCount(identityID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.st.refresh {
		if rec.IdentityID == identityID {
			n++
		}
	}
	return n
}

/*
====================================
SINGLE-USE TOKEN LEDGER
====================================
*/

// CreateSingleUseToken describes the createsingleusetoken operation and its observable behavior.
//
// CreateSingleUseToken may return an error when input validation, dependency calls, or security checks fail.
// CreateSingleUseToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateSingleUseToken(_ context.Context, rec ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.singleUse[rec.ID] = rec
	return nil
}

// FindSingleUseToken describes the findsingleusetoken operation and its observable behavior.
//
// FindSingleUseToken may return an error when input validation, dependency calls, or security checks fail.
// FindSingleUseToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindSingleUseToken(_ context.Context, purpose ledger.Purpose, tokenHash string) (*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.st.singleUse {
		if rec.Purpose == purpose && rec.TokenHash == tokenHash {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

// MarkSingleUseTokenUsed describes the marksingleusetokenused operation and its observable behavior.
//
// MarkSingleUseTokenUsed may return an error when input validation, dependency calls, or security checks fail.
// MarkSingleUseTokenUsed does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) MarkSingleUseTokenUsed(_ context.Context, rec ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.st.singleUse[rec.ID]
	if !ok {
		return ledger.ErrTokenInvalid
	}
	if stored.Used {
		return ledger.ErrTokenUsed
	}
	stored.Used = true
	s.st.singleUse[rec.ID] = stored
	return nil
}

// InvalidateUnusedSingleUseTokens describes the invalidateunusedsingleusetokens operation and its observable behavior.
//
// InvalidateUnusedSingleUseTokens may return an error when input validation, dependency calls, or security checks fail.
// InvalidateUnusedSingleUseTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) InvalidateUnusedSingleUseTokens(_ context.Context, identityID string, purpose ledger.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.st.singleUse {
		if rec.IdentityID == identityID && rec.Purpose == purpose && !rec.Used {
			delete(s.st.singleUse, id)
		}
	}
	return nil
}
