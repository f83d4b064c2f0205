package authrbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Register creates an identity with its contacts, credential history,
// and the default role in one transaction. Registration does not log
// the user in; no tokens are issued.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if e == nil {
		return RegisterResult{}, ErrEngineNotReady
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		e.metricInc(MetricRegisterFailure)
		return RegisterResult{}, errors.New("username is required")
	}

	// Strength gate runs before any write so a weak password leaves
	// no partial registration behind.
	if err := e.config.Password.Policy.Validate(in.Password); err != nil {
		e.metricInc(MetricRegisterFailure)
		return RegisterResult{}, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		return RegisterResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	var identity IdentityRecord
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := e.identities.FindIdentityByUsername(ctx, username)
		if err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		if existing != nil {
			return ErrUsernameTaken
		}

		identity, err = e.identities.CreateIdentity(ctx, CreateIdentityInput{
			Username:  username,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
		})
		if err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}

		for _, contact := range in.Contacts {
			if err := e.createContact(ctx, identity.ID, contact); err != nil {
				return err
			}
		}

		if err := e.identities.AppendCredential(ctx, identity.ID, hash); err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}

		role, err := e.identities.FindRoleByName(ctx, e.config.Account.DefaultRole)
		if err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		if role == nil {
			return fmt.Errorf("%w: %q", ErrRoleNotFound, e.config.Account.DefaultRole)
		}
		return e.identities.AssignRole(ctx, identity.ID, role.ID)
	})
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegister, false, "", err, func() map[string]string {
			return map[string]string{"username": username}
		})
		return RegisterResult{}, err
	}

	snapshot, err := e.identitySnapshot(ctx, identity, []string{e.config.Account.DefaultRole})
	if err != nil {
		return RegisterResult{}, errors.Join(ErrBackendUnavailable, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, identity.ID, nil, func() map[string]string {
		return map[string]string{"username": username}
	})
	return RegisterResult{User: snapshot}, nil
}

// createContact validates, canonicalizes, and uniqueness-checks one
// registration contact inside the registration transaction.
func (e *Engine) createContact(ctx context.Context, identityID string, contact RegisterContact) error {
	typeName := strings.ToLower(strings.TrimSpace(contact.Type))
	kind := kindForTypeName(typeName)
	if kind == contactKindUnknown {
		return fmt.Errorf("%w: %q", ErrContactTypeUnknown, contact.Type)
	}

	value := formatContact(contact.Value, kind)
	if err := validateContactFormat(value, kind); err != nil {
		return err
	}

	contactType, err := e.identities.FindContactType(ctx, typeName)
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	if contactType == nil {
		return fmt.Errorf("%w: %q", ErrContactTypeUnknown, contact.Type)
	}

	claimed, err := e.identities.FindContactByValue(ctx, value)
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	if claimed != nil {
		return fmt.Errorf("%w: %s", ErrContactExists, value)
	}

	_, err = e.identities.CreateContact(ctx, CreateContactInput{
		IdentityID:    identityID,
		ContactTypeID: contactType.ID,
		Value:         value,
		Primary:       contact.Primary,
	})
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	return nil
}
