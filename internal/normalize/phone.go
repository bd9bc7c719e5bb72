// Package normalize canonicalizes contact identity fields (phone, email)
// and derives fallback names from email addresses.
package normalize

import (
	"fmt"
	"strings"
)

// Phone canonicalizes a US phone number to "(XXX) XXX-XXXX".
// A leading country-code 1 is dropped when the remainder is 10 digits.
// Anything that does not reduce to 10 digits is returned unmodified so
// malformed input never fails ingestion.
func Phone(raw string) string {
	if raw == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return raw
	}

	return fmt.Sprintf("(%s) %s-%s", d[0:3], d[3:6], d[6:10])
}

// Email lower-cases and trims an email address. Validation beyond that is
// the caller's concern.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
