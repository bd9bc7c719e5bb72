package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// NameFromEmail derives a plausible first/last name from the local part of
// an email address. Callers must record the provenance of the result as
// inferred-from-email; it is a weaker signal than a captured name.
//
// The local part is stripped of digits, split on runs of '.', '-' and '_',
// and each token title-cased. Zero tokens yields two empty strings.
func NameFromEmail(email string) (firstName, lastName string) {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}

	var cleaned strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			cleaned.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			cleaned.WriteRune(r)
		}
	}

	tokens := strings.FieldsFunc(cleaned.String(), func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	if len(tokens) == 0 {
		return "", ""
	}

	for i, t := range tokens {
		tokens[i] = titleCaser.String(strings.ToLower(t))
	}

	switch len(tokens) {
	case 1:
		return tokens[0], ""
	case 2:
		return tokens[0], tokens[1]
	default:
		return tokens[0], strings.Join(tokens[1:], " ")
	}
}
