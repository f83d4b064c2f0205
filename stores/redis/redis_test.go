package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taskforge/authrbac"
	"github.com/taskforge/authrbac/ledger"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Unix(1_700_000_000, 0)
	clock := &now
	return NewWithClock(client, func() time.Time { return *clock }), mr, clock
}

func TestRefreshRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	rec := authrbac.RefreshRecord{
		ID:         "r1",
		IdentityID: "u1",
		TokenHash:  "abc123",
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.CreateRefreshRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRefreshRecord: %v", err)
	}

	ok, err := store.ConsumeRefreshRecord(ctx, "u1", "abc123")
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	ok, err = store.ConsumeRefreshRecord(ctx, "u1", "abc123")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("refresh record consumed twice")
	}
}

func TestConsumeRefreshRecordWrongIdentity(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	rec := authrbac.RefreshRecord{
		ID:         "r1",
		IdentityID: "u1",
		TokenHash:  "abc123",
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.CreateRefreshRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRefreshRecord: %v", err)
	}

	ok, err := store.ConsumeRefreshRecord(ctx, "u2", "abc123")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("record consumed under the wrong identity")
	}
}

func TestRefreshRecordExpiresServerSide(t *testing.T) {
	ctx := context.Background()
	store, mr, now := newTestStore(t)

	rec := authrbac.RefreshRecord{
		ID:         "r1",
		IdentityID: "u1",
		TokenHash:  "abc123",
		ExpiresAt:  now.Add(time.Minute),
	}
	if err := store.CreateRefreshRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRefreshRecord: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	ok, err := store.ConsumeRefreshRecord(ctx, "u1", "abc123")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("expired record consumed")
	}
}

func TestDeactivateRefreshRecords(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	for _, hash := range []string{"a", "b", "c"} {
		err := store.CreateRefreshRecord(ctx, authrbac.RefreshRecord{
			ID:         hash,
			IdentityID: "u1",
			TokenHash:  hash,
			ExpiresAt:  now.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateRefreshRecord: %v", err)
		}
	}

	if err := store.DeactivateRefreshRecords(ctx, "u1"); err != nil {
		t.Fatalf("DeactivateRefreshRecords: %v", err)
	}

	for _, hash := range []string{"a", "b", "c"} {
		ok, err := store.ConsumeRefreshRecord(ctx, "u1", hash)
		if err != nil {
			t.Fatalf("consume %s: %v", hash, err)
		}
		if ok {
			t.Fatalf("record %s survived deactivation", hash)
		}
	}
}

func TestSingleUseTokenRoundtrip(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	rec := ledger.Record{
		ID:         "t1",
		IdentityID: "u1",
		TokenHash:  "deadbeef",
		Purpose:    ledger.PurposeReset,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.CreateSingleUseToken(ctx, rec); err != nil {
		t.Fatalf("CreateSingleUseToken: %v", err)
	}

	got, err := store.FindSingleUseToken(ctx, ledger.PurposeReset, "deadbeef")
	if err != nil || got == nil {
		t.Fatalf("FindSingleUseToken: rec=%v err=%v", got, err)
	}
	if got.IdentityID != "u1" || got.Used {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("expiry drifted: %v != %v", got.ExpiresAt, rec.ExpiresAt)
	}

	// Purposes are separate keyspaces.
	cross, err := store.FindSingleUseToken(ctx, ledger.PurposeVerification, "deadbeef")
	if err != nil {
		t.Fatalf("cross-purpose find: %v", err)
	}
	if cross != nil {
		t.Fatal("record visible under the wrong purpose")
	}
}

func TestMarkSingleUseTokenUsedPersists(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	rec := ledger.Record{
		ID:         "t1",
		IdentityID: "u1",
		TokenHash:  "deadbeef",
		Purpose:    ledger.PurposeReset,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.CreateSingleUseToken(ctx, rec); err != nil {
		t.Fatalf("CreateSingleUseToken: %v", err)
	}
	if err := store.MarkSingleUseTokenUsed(ctx, rec); err != nil {
		t.Fatalf("MarkSingleUseTokenUsed: %v", err)
	}

	got, err := store.FindSingleUseToken(ctx, ledger.PurposeReset, "deadbeef")
	if err != nil || got == nil {
		t.Fatalf("FindSingleUseToken: rec=%v err=%v", got, err)
	}
	if !got.Used {
		t.Fatal("used flag not persisted")
	}
}

func TestMarkSingleUseTokenUsedStrictlyOnce(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	rec := ledger.Record{
		ID:         "t1",
		IdentityID: "u1",
		TokenHash:  "deadbeef",
		Purpose:    ledger.PurposeReset,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.CreateSingleUseToken(ctx, rec); err != nil {
		t.Fatalf("CreateSingleUseToken: %v", err)
	}

	// Two callers read the record before either marks it; only the
	// first mark may win.
	first, err := store.FindSingleUseToken(ctx, ledger.PurposeReset, "deadbeef")
	if err != nil || first == nil || first.Used {
		t.Fatalf("first find: rec=%v err=%v", first, err)
	}
	second, err := store.FindSingleUseToken(ctx, ledger.PurposeReset, "deadbeef")
	if err != nil || second == nil || second.Used {
		t.Fatalf("second find: rec=%v err=%v", second, err)
	}

	if err := store.MarkSingleUseTokenUsed(ctx, *first); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := store.MarkSingleUseTokenUsed(ctx, *second); !errors.Is(err, ledger.ErrTokenUsed) {
		t.Fatalf("second mark must lose the race with ErrTokenUsed, got %v", err)
	}
}

func TestMarkSingleUseTokenUsedMissingRecord(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	rec := ledger.Record{
		ID:         "t1",
		IdentityID: "u1",
		TokenHash:  "gone",
		Purpose:    ledger.PurposeReset,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.MarkSingleUseTokenUsed(ctx, rec); !errors.Is(err, ledger.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for a missing record, got %v", err)
	}
}

func TestInvalidateUnusedSingleUseTokens(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	unused := ledger.Record{
		ID:         "t1",
		IdentityID: "u1",
		TokenHash:  "aaa",
		Purpose:    ledger.PurposeReset,
		ExpiresAt:  now.Add(time.Hour),
	}
	used := ledger.Record{
		ID:         "t2",
		IdentityID: "u1",
		TokenHash:  "bbb",
		Purpose:    ledger.PurposeReset,
		ExpiresAt:  now.Add(time.Hour),
	}
	other := ledger.Record{
		ID:         "t3",
		IdentityID: "u1",
		TokenHash:  "ccc",
		Purpose:    ledger.PurposeVerification,
		ExpiresAt:  now.Add(time.Hour),
	}
	for _, rec := range []ledger.Record{unused, used, other} {
		if err := store.CreateSingleUseToken(ctx, rec); err != nil {
			t.Fatalf("CreateSingleUseToken %s: %v", rec.ID, err)
		}
	}
	if err := store.MarkSingleUseTokenUsed(ctx, used); err != nil {
		t.Fatalf("MarkSingleUseTokenUsed: %v", err)
	}

	if err := store.InvalidateUnusedSingleUseTokens(ctx, "u1", ledger.PurposeReset); err != nil {
		t.Fatalf("InvalidateUnusedSingleUseTokens: %v", err)
	}

	if rec, _ := store.FindSingleUseToken(ctx, ledger.PurposeReset, "aaa"); rec != nil {
		t.Fatal("unused token survived invalidation")
	}
	if rec, _ := store.FindSingleUseToken(ctx, ledger.PurposeReset, "bbb"); rec == nil || !rec.Used {
		t.Fatal("used token must survive invalidation")
	}
	if rec, _ := store.FindSingleUseToken(ctx, ledger.PurposeVerification, "ccc"); rec == nil {
		t.Fatal("other-purpose token must survive invalidation")
	}
}

func TestUnavailableRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := New(client)
	mr.Close()

	if _, err := store.ConsumeRefreshRecord(ctx, "u1", "x"); err == nil {
		t.Fatal("expected error with redis down")
	}
}
