// AngelaMos | 2026
// password_policy.go

package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 128
)

const (
	ReasonTooShort      = "too_short"
	ReasonTooLong       = "too_long"
	ReasonMissingUpper  = "missing_upper"
	ReasonMissingLower  = "missing_lower"
	ReasonMissingDigit  = "missing_digit"
	ReasonMissingSymbol = "missing_symbol"
	ReasonCommon        = "too_common"
)

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password1!":  {},
	"password123": {},
	"p@ssw0rd":    {},
	"p@ssw0rd1":   {},
	"qwerty123":   {},
	"qwerty123!":  {},
	"letmein1!":   {},
	"welcome1!":   {},
	"admin123!":   {},
	"changeme1!":  {},
	"iloveyou1!":  {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"abc12345!":   {},
}

// ValidatePasswordStrength reports whether plain satisfies the password
// policy. The reasons are stable identifiers suitable for API details.
func ValidatePasswordStrength(plain string) (bool, []string) {
	var reasons []string

	n := utf8.RuneCountInString(plain)
	if n < PasswordMinLength {
		reasons = append(reasons, ReasonTooShort)
	}
	if n > PasswordMaxLength {
		reasons = append(reasons, ReasonTooLong)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		reasons = append(reasons, ReasonMissingUpper)
	}
	if !hasLower {
		reasons = append(reasons, ReasonMissingLower)
	}
	if !hasDigit {
		reasons = append(reasons, ReasonMissingDigit)
	}
	if !hasSymbol {
		reasons = append(reasons, ReasonMissingSymbol)
	}

	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(plain))]; ok {
		reasons = append(reasons, ReasonCommon)
	}

	return len(reasons) == 0, reasons
}
