package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testSecret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func newTestCodec(t *testing.T, mutate func(*Config)) *Codec {
	t.Helper()
	cfg := Config{Secret: testSecret()}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	_, err := NewCodec(Config{Secret: []byte("too-short")})
	if !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
}

func TestNewCodecStretchesLongSecret(t *testing.T) {
	long := append(testSecret(), []byte("-plus-extra-material")...)
	c, err := NewCodec(Config{Secret: long})
	if err != nil {
		t.Fatalf("NewCodec with long secret: %v", err)
	}
	tok, err := c.IssueAccess("u1", "alice", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := c.Verify(tok, TypeAccess); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestAccessRoundTrip(t *testing.T) {
	c := newTestCodec(t, nil)
	tok, err := c.IssueAccess("u1", "alice", []string{"Admin", "User"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !strings.HasPrefix(tok, "eyJ") || strings.Count(tok, ".") != 4 {
		t.Fatalf("token is not compact JWE: %q", tok)
	}
	claims, err := c.Verify(tok, TypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "Admin" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if claims.TokenType != TypeAccess {
		t.Fatalf("unexpected type: %s", claims.TokenType)
	}
	if claims.Issuer != "task-management-system" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestRefreshNotAcceptedAsAccess(t *testing.T) {
	c := newTestCodec(t, nil)
	tok, err := c.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := c.Verify(tok, TypeAccess); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if _, err := c.Verify(tok, TypeRefresh); err != nil {
		t.Fatalf("refresh verify: %v", err)
	}
}

func TestTypeMismatchIsAlsoInvalid(t *testing.T) {
	c := newTestCodec(t, nil)
	tok, err := c.IssueAccess("u1", "alice", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	_, err = c.Verify(tok, TypeRefresh)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("ErrInvalidType should wrap ErrInvalid, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	base := time.Now()
	current := base
	c := newTestCodec(t, func(cfg *Config) {
		cfg.AccessTTL = time.Minute
		cfg.Now = func() time.Time { return current }
	})
	tok, err := c.IssueAccess("u1", "alice", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	current = base.Add(30 * time.Second)
	if _, err := c.Verify(tok, TypeAccess); err != nil {
		t.Fatalf("mid-window verify: %v", err)
	}
	current = base.Add(2 * time.Minute)
	if _, err := c.Verify(tok, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after expiry, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	c := newTestCodec(t, nil)
	tok, err := c.IssueAccess("u1", "alice", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	parts := strings.Split(tok, ".")
	body := []byte(parts[3])
	if body[0] == 'A' {
		body[0] = 'B'
	} else {
		body[0] = 'A'
	}
	parts[3] = string(body)
	if _, err := c.Verify(strings.Join(parts, "."), TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for tampered ciphertext, got %v", err)
	}
}

func TestWrongKeyRejected(t *testing.T) {
	a := newTestCodec(t, nil)
	b := newTestCodec(t, func(cfg *Config) {
		cfg.Secret = []byte("ffffffffffffffffffffffffffffffff")
	})
	tok, err := a.IssueAccess("u1", "alice", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := b.Verify(tok, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid under wrong key, got %v", err)
	}
}

func TestIssuerAndAudiencePinned(t *testing.T) {
	issued := newTestCodec(t, func(cfg *Config) { cfg.Issuer = "other-system" })
	verifier := newTestCodec(t, nil)
	tok, err := issued.IssueAccess("u1", "alice", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := verifier.Verify(tok, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected issuer mismatch rejection, got %v", err)
	}
}

func TestGarbageInput(t *testing.T) {
	c := newTestCodec(t, nil)
	for _, in := range []string{"", "abc", "a.b.c", "a.b.c.d.e", "e30..AAAA.AAAA.AAAA"} {
		if _, err := c.Verify(in, TypeAccess); !errors.Is(err, ErrInvalid) {
			t.Fatalf("input %q: expected ErrInvalid, got %v", in, err)
		}
	}
}

func TestHashOpaque(t *testing.T) {
	h1 := HashOpaque("some-opaque-token")
	h2 := HashOpaque("some-opaque-token")
	if h1 != h2 {
		t.Fatal("hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("expected sha256 hex, got %d chars", len(h1))
	}
	if HashOpaque("other-token") == h1 {
		t.Fatal("distinct tokens must not collide")
	}
}
