// Package validation provides attribute validation helpers for stores.
// Each helper appends a message to the Errors mapping when the value is
// invalid, mirroring the one-message-per-rule convention the templates
// expect.
package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/restkit/scaffold/internal/resource"
)

// Presence adds "can't be blank" when the value is empty or whitespace-only.
func Presence(errs resource.Errors, attr, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(attr, "can't be blank")
	}
}

// MaxLength adds a too-long message when the value exceeds max runes.
// Zero max disables the check.
func MaxLength(errs resource.Errors, attr, value string, max int) {
	if max > 0 && utf8.RuneCountInString(value) > max {
		errs.Add(attr, "is too long")
	}
}

// MinLength adds a too-short message when a non-blank value is below min
// runes. Blank values are left to Presence.
func MinLength(errs resource.Errors, attr, value string, min int) {
	s := strings.TrimSpace(value)
	if s == "" {
		return
	}
	if min > 0 && utf8.RuneCountInString(s) < min {
		errs.Add(attr, "is too short")
	}
}
