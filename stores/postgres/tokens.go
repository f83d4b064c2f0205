package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskforge/authrbac"
	"github.com/taskforge/authrbac/ledger"
)

// CreateRefreshRecord describes the createrefreshrecord operation and its observable behavior.
//
// CreateRefreshRecord may return an error when input validation, dependency calls, or security checks fail.
// CreateRefreshRecord does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateRefreshRecord(ctx context.Context, rec authrbac.RefreshRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.IdentityID, rec.TokenHash, rec.ExpiresAt,
	)
	return err
}

// ConsumeRefreshRecord deletes the matching unexpired record; the
// DELETE row count makes the consume strictly once even under
// concurrent callers.
func (s *Store) ConsumeRefreshRecord(ctx context.Context, identityID, tokenHash string) (bool, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND token_hash = $2 AND expires_at > $3`,
		identityID, tokenHash, s.now(),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeactivateRefreshRecords describes the deactivaterefreshrecords operation and its observable behavior.
//
// DeactivateRefreshRecords may return an error when input validation, dependency calls, or security checks fail.
// DeactivateRefreshRecords does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) DeactivateRefreshRecords(ctx context.Context, identityID string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`, identityID)
	return err
}

// CreateSingleUseToken describes the createsingleusetoken operation and its observable behavior.
//
// CreateSingleUseToken may return an error when input validation, dependency calls, or security checks fail.
// CreateSingleUseToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateSingleUseToken(ctx context.Context, rec ledger.Record) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO single_use_tokens (id, user_id, token_hash, purpose, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.IdentityID, rec.TokenHash, int16(rec.Purpose), rec.ExpiresAt, rec.Used,
	)
	return err
}

// FindSingleUseToken describes the findsingleusetoken operation and its observable behavior.
//
// FindSingleUseToken may return an error when input validation, dependency calls, or security checks fail.
// FindSingleUseToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindSingleUseToken(ctx context.Context, purpose ledger.Purpose, tokenHash string) (*ledger.Record, error) {
	var (
		rec        ledger.Record
		rawPurpose int16
	)
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, purpose, expires_at, used
		FROM single_use_tokens
		WHERE purpose = $1 AND token_hash = $2`,
		int16(purpose), tokenHash,
	).Scan(&rec.ID, &rec.IdentityID, &rec.TokenHash, &rawPurpose, &rec.ExpiresAt, &rec.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Purpose = ledger.Purpose(rawPurpose)
	return &rec, nil
}

// MarkSingleUseTokenUsed describes the marksingleusetokenused operation and its observable behavior.
//
// MarkSingleUseTokenUsed may return an error when input validation, dependency calls, or security checks fail.
// MarkSingleUseTokenUsed does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) MarkSingleUseTokenUsed(ctx context.Context, rec ledger.Record) error {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE single_use_tokens SET used = TRUE
		WHERE id = $1 AND NOT used`,
		rec.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrTokenUsed
	}
	return nil
}

// InvalidateUnusedSingleUseTokens describes the invalidateunusedsingleusetokens operation and its observable behavior.
//
// InvalidateUnusedSingleUseTokens may return an error when input validation, dependency calls, or security checks fail.
// InvalidateUnusedSingleUseTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) InvalidateUnusedSingleUseTokens(ctx context.Context, identityID string, purpose ledger.Purpose) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM single_use_tokens
		WHERE user_id = $1 AND purpose = $2 AND NOT used`,
		identityID, int16(purpose),
	)
	return err
}
