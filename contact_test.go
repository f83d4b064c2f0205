package authrbac

import (
	"errors"
	"testing"
)

func TestDetectContactKind(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"alice@example.com", contactKindEmail},
		{"  Alice@Example.COM  ", contactKindEmail},
		{"+15551234567", contactKindMobile},
		{"+1 (555) 123-4567", contactKindMobile},
		{"15551234567", contactKindMobile},
		{"not-a-contact", contactKindUnknown},
		{"@missing.local", contactKindUnknown},
		{"12345", contactKindUnknown},
		{"", contactKindUnknown},
	}
	for _, tc := range cases {
		if got := detectContactKind(tc.value); got != tc.want {
			t.Errorf("detectContactKind(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestFormatContact(t *testing.T) {
	if got := formatContact("  Alice@Example.COM ", contactKindEmail); got != "alice@example.com" {
		t.Fatalf("email format: %q", got)
	}
	if got := formatContact("+1 (555) 123-4567", contactKindMobile); got != "+15551234567" {
		t.Fatalf("mobile format: %q", got)
	}
}

func TestValidateContactFormat(t *testing.T) {
	if err := validateContactFormat("alice@example.com", contactKindEmail); err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
	if err := validateContactFormat("nope", contactKindEmail); !errors.Is(err, ErrContactInvalid) {
		t.Fatalf("expected ErrContactInvalid, got %v", err)
	}
	if err := validateContactFormat("+15551234567", contactKindPhone); err != nil {
		t.Fatalf("valid phone rejected: %v", err)
	}
	if err := validateContactFormat("abc", contactKindMobile); !errors.Is(err, ErrContactInvalid) {
		t.Fatalf("expected ErrContactInvalid, got %v", err)
	}
	if err := validateContactFormat("x", "carrier-pigeon"); !errors.Is(err, ErrContactTypeUnknown) {
		t.Fatalf("expected ErrContactTypeUnknown, got %v", err)
	}
}

func TestPrimaryTypeFor(t *testing.T) {
	if got, ok := primaryTypeFor(contactKindEmail); !ok || got != primaryEmailType {
		t.Fatalf("email mapping: %q %v", got, ok)
	}
	if got, ok := primaryTypeFor(contactKindMobile); !ok || got != primaryMobileType {
		t.Fatalf("mobile mapping: %q %v", got, ok)
	}
	if got, ok := primaryTypeFor(contactKindPhone); !ok || got != primaryMobileType {
		t.Fatalf("phone mapping: %q %v", got, ok)
	}
	if _, ok := primaryTypeFor(contactKindUnknown); ok {
		t.Fatal("unknown kind must not map")
	}
}
