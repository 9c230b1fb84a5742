package service

import "strings"

// NormalizeEmail trims and lowercases an email address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeIdentifier prepares a login identifier that may be either a username or an email.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func validEmail(email string) bool {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n") && strings.Contains(parts[1], ".")
}

func validUsername(username string) bool {
	return username != "" && !strings.ContainsAny(username, "@ \t\r\n")
}
