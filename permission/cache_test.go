package permission

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingSource struct {
	roleCalls int
	permCalls int
	roles     map[string][]Role
	perms     map[string][]Permission
	err       error
}

func (s *countingSource) FindActiveRolesForIdentity(_ context.Context, identityID string) ([]Role, error) {
	s.roleCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.roles[identityID], nil
}

func (s *countingSource) FindActivePermissionsForRoles(_ context.Context, roleIDs []string) ([]Permission, error) {
	s.permCalls++
	if s.err != nil {
		return nil, s.err
	}
	var out []Permission
	for _, id := range roleIDs {
		out = append(out, s.perms[id]...)
	}
	return out, nil
}

func newTestSource() *countingSource {
	return &countingSource{
		roles: map[string][]Role{
			"u1": {{ID: "r1", Name: "Admin"}, {ID: "r2", Name: "User"}},
		},
		perms: map[string][]Permission{
			"r1": {MustParse("users:manage"), MustParse("users:read")},
			"r2": {MustParse("users:read"), MustParse("auth:login")},
		},
	}
}

func TestAggregatorDeduplicates(t *testing.T) {
	source := newTestSource()
	agg := NewAggregator(source)

	resolution, err := agg.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolution.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(resolution.Roles))
	}
	// users:read appears under both roles and must be collapsed.
	if len(resolution.Permissions) != 3 {
		t.Fatalf("expected 3 deduplicated permissions, got %v", resolution.PermissionStrings())
	}
}

func TestAggregatorNoRolesShortCircuits(t *testing.T) {
	source := newTestSource()
	agg := NewAggregator(source)

	resolution, err := agg.Resolve(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolution.Roles) != 0 || len(resolution.Permissions) != 0 {
		t.Fatalf("expected empty resolution, got %+v", resolution)
	}
	if source.permCalls != 0 {
		t.Fatal("permission lookup must be skipped when no roles are active")
	}
}

func TestCacheServesWithinTTL(t *testing.T) {
	source := newTestSource()
	now := time.Unix(1_700_000_000, 0)
	cache := NewCache(NewAggregator(source), CacheConfig{
		TTL: 5 * time.Minute,
		Now: func() time.Time { return now },
	})

	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if source.roleCalls != 1 {
		t.Fatalf("expected single source resolution, got %d", source.roleCalls)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheExpiredEntryTreatedAsAbsent(t *testing.T) {
	source := newTestSource()
	now := time.Unix(1_700_000_000, 0)
	cache := NewCache(NewAggregator(source), CacheConfig{
		TTL: 5 * time.Minute,
		Now: func() time.Time { return now },
	})

	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	now = now.Add(5*time.Minute + time.Second)
	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if source.roleCalls != 2 {
		t.Fatalf("expected re-resolution after TTL, got %d calls", source.roleCalls)
	}
	if _, ok := cache.Peek("u1"); !ok {
		t.Fatal("repopulated entry should be peekable")
	}
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	source := newTestSource()
	cache := NewCache(NewAggregator(source), CacheConfig{})

	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cache.Invalidate("u1")
	if _, ok := cache.Peek("u1"); ok {
		t.Fatal("entry should be gone after Invalidate")
	}
	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if source.roleCalls != 2 {
		t.Fatalf("expected re-resolution after invalidate, got %d calls", source.roleCalls)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	source := newTestSource()
	source.roles["u2"] = []Role{{ID: "r2", Name: "User"}}
	cache := NewCache(NewAggregator(source), CacheConfig{})

	ctx := context.Background()
	if _, err := cache.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get u1: %v", err)
	}
	if _, err := cache.Get(ctx, "u2"); err != nil {
		t.Fatalf("Get u2: %v", err)
	}
	cache.InvalidateAll()
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Fatalf("expected empty cache, got %+v", stats)
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	source := newTestSource()
	cache := NewCache(NewAggregator(source), CacheConfig{})

	source.err = errors.New("backend down")
	if _, err := cache.Get(context.Background(), "u1"); err == nil {
		t.Fatal("expected source error to surface")
	}
	if _, ok := cache.Peek("u1"); ok {
		t.Fatal("failed resolution must not be cached")
	}

	source.err = nil
	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get after recovery: %v", err)
	}
}
