package authrbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// VerifyContact confirms that the contact belongs to the identity and
// records the verification attempt. Code-based confirmation is not
// implemented yet; the contact must already be on file.
//
// VerifyContact may return an error when input validation, dependency calls, or security checks fail.
// VerifyContact does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyContact(ctx context.Context, identityID, contactValue string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	identity, err := e.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if !identity.Active {
		return ErrAccountInactive
	}

	kind := detectContactKind(contactValue)
	value := formatContact(contactValue, kind)

	contacts, err := e.identities.ListContacts(ctx, identity.ID)
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}

	var found *ContactRecord
	for i := range contacts {
		if contacts[i].Active && strings.EqualFold(contacts[i].Value, value) {
			found = &contacts[i]
			break
		}
	}
	if found == nil {
		e.emitAudit(ctx, auditEventContactVerify, false, identity.ID, ErrContactNotFound, nil)
		return fmt.Errorf("%w: %s", ErrContactNotFound, value)
	}

	// TODO: deliver a confirmation code through the mailer and require
	// it here before reporting the contact verified.
	e.emitAudit(ctx, auditEventContactVerify, true, identity.ID, nil, func() map[string]string {
		return map[string]string{"contact": found.Value, "type": found.TypeName}
	})
	return nil
}
