// Package email holds small helpers for working with email addresses in
// user-facing messages.
package email

import (
	"strings"
	"unicode"
)

// Mask obscures the local part of an address for user-facing duplicate
// messages ("jane@example.com" -> "j***@example.com"). The domain stays
// visible so the user can recognize their own account without the message
// leaking the full address to a stranger.
func Mask(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// DeriveNameFromEmail guesses a first/last name pair from the local part of
// an address. Used as a fallback for notification salutations when the
// registration payload carries no name.
func DeriveNameFromEmail(addr string) (string, string) {
	localPart := addr
	if at := strings.IndexByte(addr, '@'); at > 0 {
		localPart = addr[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "Member", "Member"
	}

	first := capitalize(parts[0])
	last := "Member"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
