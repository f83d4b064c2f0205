package authrbac

import (
	"context"
	"errors"

	"github.com/taskforge/authrbac/internal/rate"
	"github.com/taskforge/authrbac/ledger"
)

// forgotPasswordMessage is returned for every forgot-password request,
// known contact or not, so the endpoint cannot be used to enumerate
// accounts.
const forgotPasswordMessage = "If the contact is registered, a password reset link has been sent."

// ForgotPassword issues a single-use reset token for the account that
// owns the primary email contact and hands it to the mailer. The
// response never reveals whether the contact exists.
//
// ForgotPassword may return an error when input validation, dependency calls, or security checks fail.
// ForgotPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ForgotPassword(ctx context.Context, contactValue string) (ForgotPasswordResult, error) {
	if e == nil {
		return ForgotPasswordResult{}, ErrEngineNotReady
	}

	result := ForgotPasswordResult{Message: forgotPasswordMessage}

	if e.limiter != nil {
		if err := e.limiter.CheckForgot(ctx, contactValue); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return ForgotPasswordResult{}, ErrForgotRateLimited
			}
			return ForgotPasswordResult{}, errors.Join(ErrBackendUnavailable, err)
		}
	}

	kind := detectContactKind(contactValue)
	if kind != contactKindEmail {
		// Reset delivery is email only; other shapes get the generic
		// response without a lookup.
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", nil, nil)
		return result, nil
	}

	value := formatContact(contactValue, kind)
	identity, err := e.identities.FindIdentityByContact(ctx, value, primaryEmailType)
	if err != nil {
		return ForgotPasswordResult{}, errors.Join(ErrBackendUnavailable, err)
	}
	if identity == nil || !identity.Active {
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", nil, nil)
		return result, nil
	}

	resetToken, err := e.ledger.Issue(ctx, identity.ID, ledger.PurposeReset, e.config.Ledger.ResetTTL)
	if err != nil {
		return ForgotPasswordResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	if err := e.mailer.SendPasswordReset(ctx, value, resetToken); err != nil {
		// Delivery failure must not change the response shape.
		logBestEffort("password reset delivery", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, identity.ID, nil, nil)
	return result, nil
}

// ResetPassword consumes a reset token and replaces the credential.
// The token consume, reuse check, credential append, and refresh
// revocation commit or roll back together.
//
// ResetPassword may return an error when input validation, dependency calls, or security checks fail.
// ResetPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.config.Password.Policy.Validate(newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return err
	}

	var identityID string
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		identityID, err = e.ledger.Consume(ctx, resetToken, ledger.PurposeReset)
		if err != nil {
			return err
		}

		identity, err := e.identities.GetIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		if !identity.Active {
			return ErrAccountInactive
		}

		if err := e.rejectCredentialReuse(ctx, identityID, newPassword); err != nil {
			return err
		}

		hash, err := e.hasher.Hash(newPassword)
		if err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		if err := e.identities.AppendCredential(ctx, identityID, hash); err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}

		// All sessions end when the password is reset.
		return e.tokens.DeactivateRefreshRecords(ctx, identityID)
	})
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, identityID, err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, identityID, nil, nil)
	return nil
}

// ChangePassword replaces the credential for an authenticated identity
// after verifying the current password.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, identityID, oldPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.config.Password.Policy.Validate(newPassword); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}

	identity, err := e.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if !identity.Active {
		return ErrAccountInactive
	}

	credential, err := e.identities.LatestCredential(ctx, identityID)
	if err != nil {
		return err
	}
	ok, err := e.hasher.Verify(oldPassword, credential)
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, identityID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.rejectCredentialReuse(ctx, identityID, newPassword); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, identityID, err, nil)
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}

	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.identities.AppendCredential(ctx, identityID, hash); err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		return e.tokens.DeactivateRefreshRecords(ctx, identityID)
	})
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, identityID, err, nil)
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, identityID, nil, nil)
	return nil
}

// SetupPassword consumes a verification token, records the first
// credential, and marks the identity verified. It serves accounts
// provisioned by an administrator without a password.
//
// SetupPassword may return an error when input validation, dependency calls, or security checks fail.
// SetupPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetupPassword(ctx context.Context, setupToken, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.config.Password.Policy.Validate(newPassword); err != nil {
		e.metricInc(MetricPasswordSetupFailure)
		return err
	}

	var identityID string
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		identityID, err = e.ledger.Consume(ctx, setupToken, ledger.PurposeVerification)
		if err != nil {
			return err
		}

		if err := e.rejectCredentialReuse(ctx, identityID, newPassword); err != nil {
			return err
		}

		hash, err := e.hasher.Hash(newPassword)
		if err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		if err := e.identities.AppendCredential(ctx, identityID, hash); err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		if err := e.identities.MarkIdentityVerified(ctx, identityID); err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		return e.tokens.DeactivateRefreshRecords(ctx, identityID)
	})
	if err != nil {
		e.metricInc(MetricPasswordSetupFailure)
		e.emitAudit(ctx, auditEventPasswordSetup, false, identityID, err, nil)
		return err
	}

	e.metricInc(MetricPasswordSetupSuccess)
	e.emitAudit(ctx, auditEventPasswordSetup, true, identityID, nil, nil)
	return nil
}

// IssueSetupToken creates a verification-purpose single-use token for
// the identity and mails it to the given contact. Any outstanding
// verification token is invalidated.
//
// IssueSetupToken may return an error when input validation, dependency calls, or security checks fail.
// IssueSetupToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueSetupToken(ctx context.Context, identityID string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	identity, err := e.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return "", err
	}
	if !identity.Active {
		return "", ErrAccountInactive
	}

	setupToken, err := e.ledger.Issue(ctx, identityID, ledger.PurposeVerification, e.config.Ledger.VerificationTTL)
	if err != nil {
		return "", errors.Join(ErrBackendUnavailable, err)
	}

	if contact := e.primaryEmail(ctx, identityID); contact != "" {
		if err := e.mailer.SendVerification(ctx, contact, setupToken); err != nil {
			logBestEffort("verification delivery", err)
		}
	}
	return setupToken, nil
}

// rejectCredentialReuse verifies the candidate against the full
// credential history and fails when any entry matches.
func (e *Engine) rejectCredentialReuse(ctx context.Context, identityID, candidate string) error {
	history, err := e.identities.ListCredentials(ctx, identityID)
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	for _, hash := range history {
		match, err := e.hasher.Verify(candidate, hash)
		if err != nil {
			// Unparseable history entries cannot match; skip them.
			continue
		}
		if match {
			return ErrPasswordReuse
		}
	}
	return nil
}

// primaryEmail returns the identity's active primary email value, or
// "" when none exists.
func (e *Engine) primaryEmail(ctx context.Context, identityID string) string {
	contacts, err := e.identities.ListContacts(ctx, identityID)
	if err != nil {
		logBestEffort("contact list", err)
		return ""
	}
	for _, contact := range contacts {
		if contact.Active && contact.TypeName == primaryEmailType {
			return contact.Value
		}
	}
	return ""
}
