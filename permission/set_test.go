package permission

import "testing"

func TestParse(t *testing.T) {
	p, err := Parse("users:read")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Resource != "users" || p.Action != ActionRead {
		t.Fatalf("unexpected permission: %+v", p)
	}
	if p.String() != "users:read" {
		t.Fatalf("round trip mismatch: %s", p.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "users", "users:", ":read", "users:fly", "users:read:extra"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestParseRejectsUnknownActionEvenWithExtraColon(t *testing.T) {
	// "read:extra" is not a known action name after the first cut.
	if _, err := Parse("users:read:extra"); err == nil {
		t.Fatal("expected rejection")
	}
}

func TestSetHasExact(t *testing.T) {
	set := NewSet(MustParse("users:read"), MustParse("roles:update"))
	if !set.Has(MustParse("users:read")) {
		t.Fatal("expected exact grant to match")
	}
	if set.Has(MustParse("users:update")) {
		t.Fatal("unexpected grant")
	}
}

func TestManageWidensAtCheckTime(t *testing.T) {
	set := NewSet(MustParse("users:manage"))
	for _, required := range []string{"users:create", "users:read", "users:update", "users:delete", "users:manage"} {
		if !set.Has(MustParse(required)) {
			t.Fatalf("users:manage should satisfy %s", required)
		}
	}
	if set.Has(MustParse("roles:read")) {
		t.Fatal("manage must not leak across resources")
	}
	if set.Len() != 1 {
		t.Fatalf("widening must not add grants, len=%d", set.Len())
	}
}

func TestPlainGrantDoesNotSatisfyManage(t *testing.T) {
	set := NewSet(MustParse("users:read"))
	if set.Has(MustParse("users:manage")) {
		t.Fatal("users:read must not satisfy users:manage")
	}
}

func TestHasAllAndHasAny(t *testing.T) {
	set := NewSet(MustParse("users:read"), MustParse("roles:manage"))

	if !set.HasAll(nil) {
		t.Fatal("empty HasAll must be vacuously true")
	}
	if !set.HasAny(nil) {
		t.Fatal("empty HasAny must be vacuously true")
	}
	if !set.HasAll([]Permission{MustParse("users:read"), MustParse("roles:delete")}) {
		t.Fatal("HasAll should pass via manage widening")
	}
	if set.HasAll([]Permission{MustParse("users:read"), MustParse("users:delete")}) {
		t.Fatal("HasAll should fail on missing grant")
	}
	if !set.HasAny([]Permission{MustParse("contacts:read"), MustParse("users:read")}) {
		t.Fatal("HasAny should pass with one match")
	}
	if set.HasAny([]Permission{MustParse("contacts:read"), MustParse("contacts:update")}) {
		t.Fatal("HasAny should fail with no matches")
	}
}

func TestSetStringsSorted(t *testing.T) {
	set := NewSet(MustParse("users:read"), MustParse("auth:login"), MustParse("roles:manage"))
	got := set.Strings()
	want := []string{"auth:login", "roles:manage", "users:read"}
	if len(got) != len(want) {
		t.Fatalf("unexpected strings: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
}

func TestCatalog(t *testing.T) {
	all := AllPermissions()
	if len(all) == 0 {
		t.Fatal("catalog must not be empty")
	}
	if !InCatalog(MustParse("users:manage")) {
		t.Fatal("users:manage should be in catalog")
	}
	if !InCatalog(MustParse("user_roles:assign")) {
		t.Fatal("user_roles:assign should be in catalog")
	}
	if InCatalog(MustParse("users:login")) {
		t.Fatal("users:login is not a cataloged pair")
	}
	for _, p := range all {
		if !InCatalog(p) {
			t.Fatalf("catalog entry %s missing from index", p)
		}
	}
}
