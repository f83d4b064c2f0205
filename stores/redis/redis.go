// Package redis implements the engine's TokenStore over Redis: hashed
// refresh records with server-side expiry and the single-use token
// ledger. Identity data stays in the relational store; this package
// holds only token state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskforge/authrbac"
	"github.com/taskforge/authrbac/ledger"
)

// ErrUnavailable is an exported constant or variable used by the authentication engine.
var ErrUnavailable = errors.New("redis unavailable")

// consumeRefreshLua deletes the record and its index entry atomically;
// the DEL count is the strictly-once consume result.
const consumeRefreshScript = `
local removed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return removed
`

var consumeRefreshLua = redis.NewScript(consumeRefreshScript)

// markSingleUseScript flips the stored used flag only when it is still
// false, preserving the key TTL. Returns -1 for a missing record, 0
// when the record was already used, 1 on the winning transition.
const markSingleUseScript = `
local payload = redis.call("GET", KEYS[1])
if not payload then
	return -1
end
local rec = cjson.decode(payload)
if rec.used then
	return 0
end
rec.used = true
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
	redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
else
	redis.call("SET", KEYS[1], cjson.encode(rec))
end
return 1
`

var markSingleUseLua = redis.NewScript(markSingleUseScript)

// Store defines a public type used by authrbac APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	client redis.UniversalClient
	now    func() time.Time
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(client redis.UniversalClient) *Store {
	return NewWithClock(client, time.Now)
}

// NewWithClock is New with an injected clock. Test hook.
func NewWithClock(client redis.UniversalClient, now func() time.Time) *Store {
	return &Store{client: client, now: now}
}

func refreshKey(identityID, tokenHash string) string {
	return "rt:" + identityID + ":" + tokenHash
}

func refreshIndexKey(identityID string) string {
	return "rtu:" + identityID
}

func singleUseKey(purpose ledger.Purpose, tokenHash string) string {
	return "sut:" + purpose.String() + ":" + tokenHash
}

func singleUseIndexKey(purpose ledger.Purpose, identityID string) string {
	return "sutu:" + purpose.String() + ":" + identityID
}

/*
====================================
REFRESH RECORDS
====================================
*/

// CreateRefreshRecord describes the createrefreshrecord operation and its observable behavior.
//
// CreateRefreshRecord may return an error when input validation, dependency calls, or security checks fail.
// CreateRefreshRecord does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateRefreshRecord(ctx context.Context, rec authrbac.RefreshRecord) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshKey(rec.IdentityID, rec.TokenHash), rec.ID, ttl)
	pipe.SAdd(ctx, refreshIndexKey(rec.IdentityID), rec.TokenHash)
	pipe.Expire(ctx, refreshIndexKey(rec.IdentityID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ConsumeRefreshRecord describes the consumerefreshrecord operation and its observable behavior.
//
// ConsumeRefreshRecord may return an error when input validation, dependency calls, or security checks fail.
// ConsumeRefreshRecord does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ConsumeRefreshRecord(ctx context.Context, identityID, tokenHash string) (bool, error) {
	removed, err := consumeRefreshLua.Run(ctx, s.client,
		[]string{refreshKey(identityID, tokenHash), refreshIndexKey(identityID)},
		tokenHash,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed == 1, nil
}

// DeactivateRefreshRecords describes the deactivaterefreshrecords operation and its observable behavior.
//
// DeactivateRefreshRecords may return an error when input validation, dependency calls, or security checks fail.
// DeactivateRefreshRecords does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) DeactivateRefreshRecords(ctx context.Context, identityID string) error {
	hashes, err := s.client.SMembers(ctx, refreshIndexKey(identityID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, refreshKey(identityID, hash))
	}
	keys = append(keys, refreshIndexKey(identityID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

/*
====================================
SINGLE-USE TOKEN LEDGER
====================================
*/

type singleUseRecord struct {
	ID         string `json:"id"`
	IdentityID string `json:"identityId"`
	Purpose    uint8  `json:"purpose"`
	ExpiresAt  int64  `json:"expiresAt"`
	Used       bool   `json:"used"`
}

// CreateSingleUseToken describes the createsingleusetoken operation and its observable behavior.
//
// CreateSingleUseToken may return an error when input validation, dependency calls, or security checks fail.
// CreateSingleUseToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateSingleUseToken(ctx context.Context, rec ledger.Record) error {
	payload, err := json.Marshal(singleUseRecord{
		ID:         rec.ID,
		IdentityID: rec.IdentityID,
		Purpose:    uint8(rec.Purpose),
		ExpiresAt:  rec.ExpiresAt.Unix(),
		Used:       rec.Used,
	})
	if err != nil {
		return err
	}

	// Records outlive their expiry so Consume can tell an expired token
	// apart from an unknown one.
	keyTTL := rec.ExpiresAt.Sub(s.now()) + 24*time.Hour
	if keyTTL <= 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, singleUseKey(rec.Purpose, rec.TokenHash), payload, keyTTL)
	pipe.SAdd(ctx, singleUseIndexKey(rec.Purpose, rec.IdentityID), rec.TokenHash)
	pipe.Expire(ctx, singleUseIndexKey(rec.Purpose, rec.IdentityID), keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FindSingleUseToken describes the findsingleusetoken operation and its observable behavior.
//
// FindSingleUseToken may return an error when input validation, dependency calls, or security checks fail.
// FindSingleUseToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindSingleUseToken(ctx context.Context, purpose ledger.Purpose, tokenHash string) (*ledger.Record, error) {
	payload, err := s.client.Get(ctx, singleUseKey(purpose, tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var stored singleUseRecord
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("corrupt single-use record: %w", err)
	}
	return &ledger.Record{
		ID:         stored.ID,
		IdentityID: stored.IdentityID,
		TokenHash:  tokenHash,
		Purpose:    ledger.Purpose(stored.Purpose),
		ExpiresAt:  time.Unix(stored.ExpiresAt, 0),
		Used:       stored.Used,
	}, nil
}

// MarkSingleUseTokenUsed describes the marksingleusetokenused operation and its observable behavior.
//
// MarkSingleUseTokenUsed may return an error when input validation, dependency calls, or security checks fail.
// MarkSingleUseTokenUsed does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) MarkSingleUseTokenUsed(ctx context.Context, rec ledger.Record) error {
	flipped, err := markSingleUseLua.Run(ctx, s.client,
		[]string{singleUseKey(rec.Purpose, rec.TokenHash)},
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch flipped {
	case 1:
		return nil
	case 0:
		return ledger.ErrTokenUsed
	default:
		return ledger.ErrTokenInvalid
	}
}

// InvalidateUnusedSingleUseTokens describes the invalidateunusedsingleusetokens operation and its observable behavior.
//
// InvalidateUnusedSingleUseTokens may return an error when input validation, dependency calls, or security checks fail.
// InvalidateUnusedSingleUseTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) InvalidateUnusedSingleUseTokens(ctx context.Context, identityID string, purpose ledger.Purpose) error {
	indexKey := singleUseIndexKey(purpose, identityID)
	hashes, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for _, hash := range hashes {
		rec, err := s.FindSingleUseToken(ctx, purpose, hash)
		if err != nil {
			return err
		}
		if rec == nil || rec.Used {
			continue
		}
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, singleUseKey(purpose, hash))
		pipe.SRem(ctx, indexKey, hash)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}
