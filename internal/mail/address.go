package mail

import (
	"fmt"
	netmail "net/mail"
	"strings"

	"mailroom/internal/types"
)

// NormalizeAddress parses a raw address (bare or RFC 5322 "Name <addr>" form)
// and returns the bare address lowercased. This is the canonical form used as
// the blacklist key and for all lookups.
func NormalizeAddress(raw string) (string, error) {
	addr, err := netmail.ParseAddress(raw)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInvalidRequest,
			fmt.Sprintf("'%s' is not a valid email address", raw),
			err,
		)
	}
	return strings.ToLower(addr.Address), nil
}

// RedactEmail masks an email address for safe logging by replacing all but
// the first character of the local part with asterisks. For example,
// "john@gmail.com" becomes "j***@gmail.com".
//
// If the email does not contain an "@" symbol, the entire string is masked
// to prevent accidental PII exposure in logs.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		// No @ sign - mask the entire string.
		return "***"
	}

	local := parts[0]
	domain := parts[1]

	if len(local) == 0 {
		return "***@" + domain
	}

	return string(local[0]) + "***@" + domain
}
