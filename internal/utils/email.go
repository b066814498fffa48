package utils

import (
	"strings"
)

// NormalizeEmail lowercases the domain portion of an email address and trims
// surrounding whitespace. The local part is preserved as given, since local
// parts are case-sensitive per RFC 5321.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
