// AngelaMos | 2026
// secrets.go

package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	MinSecretLength   = 32
	MinSecretEntropy  = 3.5
	secretEnvAccess   = "ACCESS_TOKEN_SECRET"
	secretEnvSession  = "SESSION_SECRET"
	secretEnvTokenKey = "TOKEN_HASH_SECRET"
)

var ErrWeakSecret = errors.New("weak secret")

// knownDefaults are full-length placeholder secrets shipped by popular
// templates and docs. Each one passes the length check on its own.
var knownDefaults = map[string]struct{}{
	"a-string-secret-at-least-256-bits-long":                           {},
	"your-super-secret-jwt-token-with-at-least-32-characters-long":     {},
	"super-secret-jwt-token-with-at-least-32-characters-long":          {},
	"your-secret-key-change-in-production":                             {},
	"dev-secret-key-change-in-production":                              {},
	"change-this-to-a-long-random-string":                              {},
	"0123456789abcdef0123456789abcdef":                                 {},
	"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef": {},
}

// placeholderWords are rejected alone or repeated end to end, which is
// how they get stretched past the length check.
var placeholderWords = []string{
	"changeme",
	"change-me",
	"secret",
	"password",
	"default",
	"development",
	"test",
	"insecure",
	"replace-me",
	"jwt-secret",
	"your-256-bit-secret",
}

func isKnownDefault(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if _, ok := knownDefaults[v]; ok {
		return true
	}
	for _, w := range placeholderWords {
		if len(v)%len(w) == 0 && strings.Repeat(w, len(v)/len(w)) == v {
			return true
		}
	}
	return false
}

type namedSecret struct {
	env   string
	value string
}

// Validate checks every secret. Hard failures come back as an error;
// low-entropy secrets are returned as warnings for the caller to log.
func (s SecretsConfig) Validate() ([]string, error) {
	return ValidateSecrets(s)
}

func ValidateSecrets(s SecretsConfig) ([]string, error) {
	secrets := []namedSecret{
		{env: secretEnvAccess, value: s.AccessTokenKey},
		{env: secretEnvSession, value: s.SessionKey},
		{env: secretEnvTokenKey, value: s.TokenHashKey},
	}

	var warnings []string

	for _, sec := range secrets {
		if err := checkSecret(sec.value); err != nil {
			return nil, fmt.Errorf("%s: %w", sec.env, err)
		}
		if bits := ShannonEntropy(sec.value); bits < MinSecretEntropy {
			warnings = append(warnings, fmt.Sprintf(
				"%s has low entropy (%.2f bits/char)", sec.env, bits,
			))
		}
	}

	for i := 0; i < len(secrets); i++ {
		for j := i + 1; j < len(secrets); j++ {
			if secrets[i].value == secrets[j].value {
				return nil, fmt.Errorf(
					"%s and %s must differ: %w",
					secrets[i].env, secrets[j].env, ErrWeakSecret,
				)
			}
		}
	}

	return warnings, nil
}

func checkSecret(value string) error {
	if value == "" {
		return fmt.Errorf("is required: %w", ErrWeakSecret)
	}

	if isKnownDefault(value) {
		return fmt.Errorf("is a known default value: %w", ErrWeakSecret)
	}

	if len(value) < MinSecretLength {
		return fmt.Errorf(
			"must be at least %d bytes, got %d: %w",
			MinSecretLength, len(value), ErrWeakSecret,
		)
	}

	if isRepeatedChar(value) {
		return fmt.Errorf("is a single repeated character: %w", ErrWeakSecret)
	}

	return nil
}

func isRepeatedChar(value string) bool {
	first, _ := utf8.DecodeRuneInString(value)
	for _, r := range value {
		if r != first {
			return false
		}
	}
	return true
}

// ShannonEntropy returns the entropy of value in bits per character.
func ShannonEntropy(value string) float64 {
	if value == "" {
		return 0
	}

	counts := make(map[rune]int)
	total := 0
	for _, r := range value {
		counts[r]++
		total++
	}

	var bits float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		bits -= p * math.Log2(p)
	}
	return bits
}
