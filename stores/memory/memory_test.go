package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskforge/authrbac"
	"github.com/taskforge/authrbac/ledger"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := store.CreateIdentity(ctx, authrbac.CreateIdentityInput{Username: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected tx error, got %v", err)
	}

	found, err := store.FindIdentityByUsername(ctx, "ghost")
	if err != nil {
		t.Fatalf("FindIdentityByUsername: %v", err)
	}
	if found != nil {
		t.Fatal("rolled-back identity still visible")
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := store.CreateIdentity(ctx, authrbac.CreateIdentityInput{Username: "kept"})
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	found, err := store.FindIdentityByUsername(ctx, "kept")
	if err != nil || found == nil {
		t.Fatalf("committed identity missing: found=%v err=%v", found, err)
	}
}

func TestConsumeRefreshRecordStrictlyOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store := NewWithClock(func() time.Time { return now })

	rec := authrbac.RefreshRecord{
		ID:         "r1",
		IdentityID: "u1",
		TokenHash:  "hash",
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.CreateRefreshRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRefreshRecord: %v", err)
	}

	ok, err := store.ConsumeRefreshRecord(ctx, "u1", "hash")
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	ok, err = store.ConsumeRefreshRecord(ctx, "u1", "hash")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("refresh record consumed twice")
	}
}

func TestConsumeRefreshRecordExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store := NewWithClock(func() time.Time { return now })

	rec := authrbac.RefreshRecord{
		ID:         "r1",
		IdentityID: "u1",
		TokenHash:  "hash",
		ExpiresAt:  now.Add(-time.Second),
	}
	if err := store.CreateRefreshRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRefreshRecord: %v", err)
	}

	ok, err := store.ConsumeRefreshRecord(ctx, "u1", "hash")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("expired refresh record consumed")
	}
}

func TestDeactivateRefreshRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store := NewWithClock(func() time.Time { return now })

	for _, hash := range []string{"a", "b"} {
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
	if got := store.RefreshRecordCount("u1"); got != 0 {
		t.Fatalf("expected no live records, got %d", got)
	}
}

func TestLatestCredentialOrdering(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, hash := range []string{"first", "second", "third"} {
		if err := store.AppendCredential(ctx, "u1", hash); err != nil {
			t.Fatalf("AppendCredential: %v", err)
		}
	}

	latest, err := store.LatestCredential(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestCredential: %v", err)
	}
	if latest != "third" {
		t.Fatalf("expected newest credential, got %q", latest)
	}

	history, err := store.ListCredentials(ctx, "u1")
	if err != nil || len(history) != 3 {
		t.Fatalf("history: %v err=%v", history, err)
	}
}

func TestLatestCredentialEmptyHistory(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.LatestCredential(ctx, "nobody"); !errors.Is(err, authrbac.ErrAccountSetupIncomplete) {
		t.Fatalf("expected ErrAccountSetupIncomplete, got %v", err)
	}
}

func TestMarkSingleUseTokenUsedStrictlyOnce(t *testing.T) {
	ctx := context.Background()
	store := New()

	rec := ledger.Record{
		ID:         "t1",
		IdentityID: "u1",
		TokenHash:  "deadbeef",
		Purpose:    ledger.PurposeReset,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	if err := store.CreateSingleUseToken(ctx, rec); err != nil {
		t.Fatalf("CreateSingleUseToken: %v", err)
	}

	if err := store.MarkSingleUseTokenUsed(ctx, rec); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := store.MarkSingleUseTokenUsed(ctx, rec); !errors.Is(err, ledger.ErrTokenUsed) {
		t.Fatalf("second mark must fail with ErrTokenUsed, got %v", err)
	}
}
