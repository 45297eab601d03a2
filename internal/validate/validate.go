// Package validate holds the plain data constraints applied to registration
// and profile input. Functions are stateless; the email pattern is compiled
// once at process start.
package validate

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRegex = regexp.MustCompile(`^[\w\-.+]+@([\w-]+\.)+[\w-]{2,}$`)

const maxUsernameLen = 32

// Email reports whether the address is syntactically acceptable.
func Email(email string) bool {
	return emailRegex.MatchString(email)
}

// Username returns a human-readable reason when the username is unacceptable.
func Username(username string) (string, bool) {
	if strings.TrimSpace(username) == "" {
		return "Username must not be empty", false
	}
	if len(username) > maxUsernameLen {
		return "Username must be at most 32 characters", false
	}
	return "", true
}

// Password enforces the complexity rules: at least 6 characters with one
// uppercase letter, one lowercase letter and one digit.
func Password(password string) (string, bool) {
	if len(password) < 6 {
		return "Password must be at least 6 characters", false
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return "Password must contain at least one uppercase letter, one lowercase letter, and one digit", false
	}
	return "", true
}
