package authrbac

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/taskforge/authrbac/internal/rate"
	"github.com/taskforge/authrbac/ledger"
	"github.com/taskforge/authrbac/password"
	"github.com/taskforge/authrbac/permission"
	"github.com/taskforge/authrbac/token"
)

// Engine is the auth orchestrator: registration, login, token
// lifecycle, the password flows, and permission checks, coordinated
// over the injected stores. Construct it with [Builder.Build]; a zero
// Engine is not usable.
type Engine struct {
	config     Config
	identities IdentityStore
	tokens     TokenStore
	tx         TxRunner
	codec      *token.Codec
	hasher     *password.Hasher
	ledger     *ledger.Ledger
	aggregator *permission.Aggregator
	cache      *permission.Cache
	limiter    *rate.Limiter
	mailer     Mailer
	audit      *auditDispatcher
	metrics    *Metrics
	now        func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// CacheStats describes the cachestats operation and its observable behavior.
//
// CacheStats does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CacheStats() permission.CacheStats {
	return e.cache.Stats()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// logBestEffort records a failure on a path that must not abort the
// surrounding operation.
func logBestEffort(op string, err error) {
	log.Printf("authrbac: %s: %v", op, err)
}

// emitAudit builds the event envelope once; metadata is computed
// lazily so disabled audit costs nothing.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, identityID string, failure error, metadata func() map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  e.now(),
		EventType:  eventType,
		IdentityID: identityID,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Success:    success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

/*
====================================
PERMISSION SURFACE
====================================
*/

// Permissions returns the identity's cached permission resolution,
// resolving through the aggregator on a cache miss.
func (e *Engine) Permissions(ctx context.Context, identityID string) (permission.Resolution, error) {
	if e == nil {
		return permission.Resolution{}, ErrEngineNotReady
	}
	resolution, err := e.cache.Get(ctx, identityID)
	if err != nil {
		return permission.Resolution{}, errors.Join(ErrBackendUnavailable, err)
	}
	return resolution, nil
}

// CheckPermission reports whether the identity holds the required
// permissions under the given logic. Empty requirements are vacuously
// granted.
func (e *Engine) CheckPermission(ctx context.Context, identityID string, required []permission.Permission, logic Logic) (bool, error) {
	resolution, err := e.Permissions(ctx, identityID)
	if err != nil {
		return false, err
	}

	set := resolution.Set()
	granted := set.HasAll(required)
	if logic == LogicOr {
		granted = set.HasAny(required)
	}

	if granted {
		e.metricInc(MetricPermissionGranted)
	} else {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventPermissionDenied, false, identityID, ErrPermissionDenied, func() map[string]string {
			names := make([]string, len(required))
			for i, p := range required {
				names[i] = p.String()
			}
			return map[string]string{"required": strings.Join(names, ",")}
		})
	}
	return granted, nil
}

// InvalidatePermissions drops the identity's cached resolution so the
// next check observes current role assignments.
func (e *Engine) InvalidatePermissions(identityID string) {
	e.cache.Invalidate(identityID)
}

// InvalidateAllPermissions describes the invalidateallpermissions operation and its observable behavior.
//
// InvalidateAllPermissions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) InvalidateAllPermissions() {
	e.cache.InvalidateAll()
}

/*
====================================
AUTHENTICATED SURFACE
====================================
*/

// Authenticate verifies an access token and returns the caller's
// principal with the cached permission set.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(accessToken, token.TypeAccess)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, err
	}

	identity, err := e.identities.GetIdentity(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !identity.Active {
		return nil, ErrAccountInactive
	}

	resolution, err := e.Permissions(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	return &Principal{
		IdentityID:  identity.ID,
		Username:    identity.Username,
		Roles:       resolution.RoleNames(),
		Permissions: resolution.Set(),
	}, nil
}

// CurrentUser returns the identity snapshot with contacts, roles, and
// the resolved permission strings, as served on a "who am I" endpoint.
func (e *Engine) CurrentUser(ctx context.Context, identityID string) (IdentitySnapshot, []string, error) {
	if e == nil {
		return IdentitySnapshot{}, nil, ErrEngineNotReady
	}

	identity, err := e.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return IdentitySnapshot{}, nil, err
	}

	resolution, err := e.Permissions(ctx, identityID)
	if err != nil {
		return IdentitySnapshot{}, nil, err
	}

	snapshot, err := e.identitySnapshot(ctx, identity, resolution.RoleNames())
	if err != nil {
		return IdentitySnapshot{}, nil, err
	}
	return snapshot, resolution.Set().Strings(), nil
}

func (e *Engine) identitySnapshot(ctx context.Context, identity IdentityRecord, roleNames []string) (IdentitySnapshot, error) {
	contacts, err := e.identities.ListContacts(ctx, identity.ID)
	if err != nil {
		return IdentitySnapshot{}, err
	}

	snapshot := IdentitySnapshot{
		ID:        identity.ID,
		Username:  identity.Username,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Active:    identity.Active,
		Verified:  identity.Verified,
		Roles:     roleNames,
	}
	for _, contact := range contacts {
		if !contact.Active {
			continue
		}
		snapshot.Contacts = append(snapshot.Contacts, ContactSnapshot{
			ID:      contact.ID,
			Type:    contact.TypeName,
			Value:   contact.Value,
			Primary: contact.Primary,
		})
	}
	return snapshot, nil
}
