package utils

import "strings"

// MaskEmail masks the local part of an address for logs (e.g., "alice@example.com" -> "a***e@example.com")
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}

	localPart := email[:at]
	domain := email[at+1:]

	if len(localPart) <= 2 {
		return strings.Repeat("*", len(localPart)) + "@" + domain
	}

	masked := string(localPart[0]) + strings.Repeat("*", len(localPart)-2) + string(localPart[len(localPart)-1])
	return masked + "@" + domain
}
