package authrbac

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	contactKindEmail   = "email"
	contactKindMobile  = "mobile"
	contactKindPhone   = "phone"
	contactKindUnknown = "unknown"

	primaryEmailType  = "primary email"
	primaryMobileType = "primary mobile"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)
	digitStripper = regexp.MustCompile(`[\s\-().]`)
)

// detectContactKind classifies a raw identifier by shape so login and
// forgot-password can accept either an email or a phone number.
func detectContactKind(value string) string {
	trimmed := strings.TrimSpace(value)
	if emailPattern.MatchString(trimmed) {
		return contactKindEmail
	}
	if mobilePattern.MatchString(digitStripper.ReplaceAllString(trimmed, "")) {
		return contactKindMobile
	}
	return contactKindUnknown
}

// formatContact canonicalizes a contact value for storage and lookup.
// Emails are lower-cased; phone numbers keep a leading + and digits.
func formatContact(value, kind string) string {
	trimmed := strings.TrimSpace(value)
	switch kind {
	case contactKindEmail:
		return strings.ToLower(trimmed)
	case contactKindMobile, contactKindPhone:
		return digitStripper.ReplaceAllString(trimmed, "")
	default:
		return trimmed
	}
}

func validateContactFormat(value, kind string) error {
	switch kind {
	case contactKindEmail:
		if !emailPattern.MatchString(value) {
			return fmt.Errorf("%w: %q is not a valid email", ErrContactInvalid, value)
		}
	case contactKindMobile, contactKindPhone:
		if !mobilePattern.MatchString(value) {
			return fmt.Errorf("%w: %q is not a valid phone number", ErrContactInvalid, value)
		}
	default:
		return fmt.Errorf("%w: %q", ErrContactTypeUnknown, kind)
	}
	return nil
}

// kindForTypeName maps a stored contact type name ("primary email",
// "mobile", ...) to the kind used for format validation.
func kindForTypeName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, contactKindEmail):
		return contactKindEmail
	case strings.Contains(lower, contactKindMobile), strings.Contains(lower, contactKindPhone):
		return contactKindMobile
	default:
		return contactKindUnknown
	}
}

// primaryTypeFor maps a detected kind to the contact type used for
// identifier lookup: email -> "primary email", mobile/phone ->
// "primary mobile".
func primaryTypeFor(kind string) (string, bool) {
	switch kind {
	case contactKindEmail:
		return primaryEmailType, true
	case contactKindMobile, contactKindPhone:
		return primaryMobileType, true
	default:
		return "", false
	}
}
