package authrbac

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/taskforge/authrbac/internal/rate"
	"github.com/taskforge/authrbac/token"
)

// Login authenticates by primary contact (email or phone) and
// password, issues an access/refresh pair, and persists the hashed
// refresh record. The identifier is classified by shape; only primary
// contact types participate in the lookup.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, passwd string) (LoginResult, error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, identifier, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				return LoginResult{}, ErrLoginRateLimited
			}
			return LoginResult{}, errors.Join(ErrBackendUnavailable, err)
		}
	}

	identity, err := e.resolveLoginIdentity(ctx, identifier)
	if err != nil {
		return LoginResult{}, e.failLogin(ctx, identifier, ip, "", err)
	}
	if !identity.Active {
		return LoginResult{}, e.failLogin(ctx, identifier, ip, identity.ID, ErrAccountInactive)
	}

	credential, err := e.identities.LatestCredential(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, ErrAccountSetupIncomplete) {
			return LoginResult{}, e.failLogin(ctx, identifier, ip, identity.ID, ErrAccountSetupIncomplete)
		}
		return LoginResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	ok, err := e.hasher.Verify(passwd, credential)
	if err != nil {
		return LoginResult{}, errors.Join(ErrBackendUnavailable, err)
	}
	if !ok {
		return LoginResult{}, e.failLogin(ctx, identifier, ip, identity.ID, ErrInvalidCredentials)
	}

	// Fresh resolution: login must observe role changes made while a
	// previous cache entry was live.
	e.cache.Invalidate(identity.ID)
	resolution, err := e.Permissions(ctx, identity.ID)
	if err != nil {
		return LoginResult{}, err
	}
	roleNames := resolution.RoleNames()

	accessToken, err := e.codec.IssueAccess(identity.ID, identity.Username, roleNames)
	if err != nil {
		return LoginResult{}, errors.Join(ErrBackendUnavailable, err)
	}
	refreshToken, err := e.codec.IssueRefresh(identity.ID)
	if err != nil {
		return LoginResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		return e.tokens.CreateRefreshRecord(ctx, RefreshRecord{
			ID:         uuid.NewString(),
			IdentityID: identity.ID,
			TokenHash:  token.HashOpaque(refreshToken),
			ExpiresAt:  e.now().Add(e.codec.RefreshTTL()),
		})
	})
	if err != nil {
		return LoginResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, identifier, ip); err != nil {
			// Counter cleanup is best effort; the login already succeeded.
			logBestEffort("login limiter reset", err)
		}
	}

	snapshot, err := e.identitySnapshot(ctx, identity, roleNames)
	if err != nil {
		return LoginResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, nil, nil)

	return LoginResult{
		User:         snapshot,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Roles:        roleNames,
		Permissions:  resolution.Set().Strings(),
	}, nil
}

// resolveLoginIdentity classifies the identifier, canonicalizes it,
// and looks it up under the matching primary contact type.
func (e *Engine) resolveLoginIdentity(ctx context.Context, identifier string) (IdentityRecord, error) {
	kind := detectContactKind(identifier)
	primaryType, ok := primaryTypeFor(kind)
	if !ok {
		return IdentityRecord{}, ErrInvalidCredentials
	}

	value := formatContact(identifier, kind)
	identity, err := e.identities.FindIdentityByContact(ctx, value, primaryType)
	if err != nil {
		return IdentityRecord{}, errors.Join(ErrBackendUnavailable, err)
	}
	if identity == nil {
		return IdentityRecord{}, ErrInvalidCredentials
	}
	return *identity, nil
}

// failLogin records the failed attempt against the limiter and emits
// the failure audit/metric before returning the caller-facing error.
func (e *Engine) failLogin(ctx context.Context, identifier, ip, identityID string, cause error) error {
	if errors.Is(cause, ErrBackendUnavailable) {
		return cause
	}

	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, identifier, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			logBestEffort("login limiter increment", err)
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, identityID, cause, nil)
	return cause
}

// Logout consumes the presented refresh record. Unknown, expired, or
// already-removed tokens still succeed; logout is idempotent.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	identityID := ""
	if claims, err := e.codec.Verify(refreshToken, token.TypeRefresh); err == nil {
		identityID = claims.UserID
		if _, err := e.tokens.ConsumeRefreshRecord(ctx, identityID, token.HashOpaque(refreshToken)); err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, identityID, nil, nil)
	return nil
}

// Refresh rotates the token pair: the presented refresh record is
// consumed strictly once and a new pair is issued against the
// identity's current roles. A replayed token fails after its record is
// gone.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if e == nil {
		return RefreshResult{}, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		e.metricInc(MetricRefreshInvalid)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", err, nil)
		return RefreshResult{}, err
	}

	identity, err := e.identities.GetIdentity(ctx, claims.UserID)
	if err != nil {
		return RefreshResult{}, err
	}
	if !identity.Active {
		e.metricInc(MetricRefreshInvalid)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, identity.ID, ErrAccountInactive, nil)
		return RefreshResult{}, ErrAccountInactive
	}

	// Roles are re-resolved on rotation so revocations take effect no
	// later than the access TTL.
	e.cache.Invalidate(identity.ID)
	resolution, err := e.Permissions(ctx, identity.ID)
	if err != nil {
		return RefreshResult{}, err
	}

	newAccess, err := e.codec.IssueAccess(identity.ID, identity.Username, resolution.RoleNames())
	if err != nil {
		return RefreshResult{}, errors.Join(ErrBackendUnavailable, err)
	}
	newRefresh, err := e.codec.IssueRefresh(identity.ID)
	if err != nil {
		return RefreshResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		consumed, err := e.tokens.ConsumeRefreshRecord(ctx, identity.ID, token.HashOpaque(refreshToken))
		if err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		if !consumed {
			return ErrTokenInvalid
		}
		return e.tokens.CreateRefreshRecord(ctx, RefreshRecord{
			ID:         uuid.NewString(),
			IdentityID: identity.ID,
			TokenHash:  token.HashOpaque(newRefresh),
			ExpiresAt:  e.now().Add(e.codec.RefreshTTL()),
		})
	})
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			e.metricInc(MetricRefreshInvalid)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, identity.ID, err, nil)
		}
		return RefreshResult{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, identity.ID, nil, nil)
	return RefreshResult{AccessToken: newAccess, RefreshToken: newRefresh}, nil
}
