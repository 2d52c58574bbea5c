// AngelaMos | 2026
// security.go

package core

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength        = 16
	oneTimeTokenBytes = 32
)

var errMalformedHash = errors.New("malformed password hash")

type argonParams struct {
	memory  uint32
	passes  uint32
	threads uint8
	keyLen  uint32
}

// currentParams applies to new hashes. Stored hashes carry their own and
// are upgraded on the next successful login when they differ.
var currentParams = argonParams{
	memory:  64 * 1024,
	passes:  1,
	threads: 4,
	keyLen:  32,
}

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.passes, p.memory, p.threads, p.keyLen)
}

// passwordHash is the PHC string form: $argon2id$v=19$m=..,t=..,p=..$salt$key
type passwordHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func (h passwordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory,
		h.params.passes,
		h.params.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h passwordHash) matches(password string) bool {
	return subtle.ConstantTimeCompare(h.key, h.params.derive(password, h.salt)) == 1
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	var h passwordHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return h, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, fmt.Errorf("%w: version %q", errMalformedHash, fields[2])
	}

	p := &h.params
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.passes, &p.threads); err != nil {
		return h, fmt.Errorf("%w: %w", errMalformedHash, err)
	}
	// argon2.IDKey panics on zero passes or threads.
	if p.passes == 0 || p.threads == 0 {
		return h, fmt.Errorf("%w: params %q", errMalformedHash, fields[3])
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key", errMalformedHash)
	}
	//nolint:gosec // G115: decoded key is a few dozen bytes
	p.keyLen = uint32(len(h.key))

	return h, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	h := passwordHash{
		params: currentParams,
		salt:   salt,
		key:    currentParams.derive(password, salt),
	}
	return h.String(), nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	h, err := parsePasswordHash(encodedHash)
	if err != nil {
		return false, err
	}
	return h.matches(password), nil
}

// decoyHash costs one full derivation, so an unknown account takes as long
// to reject as a wrong password.
var decoyHash = passwordHash{
	params: currentParams,
	salt:   make([]byte, saltLength),
	key:    make([]byte, currentParams.keyLen),
}

// VerifyPasswordTimingSafe checks password against encodedHash, or against
// the decoy when there is none. On a match with outdated parameters the
// second result is a fresh hash the caller should store.
func VerifyPasswordTimingSafe(
	password string,
	encodedHash *string,
) (bool, string, error) {
	if encodedHash == nil || *encodedHash == "" {
		decoyHash.matches(password)
		return false, "", nil
	}

	h, err := parsePasswordHash(*encodedHash)
	if err != nil {
		return false, "", err
	}
	if !h.matches(password) {
		return false, "", nil
	}
	if h.params == currentParams {
		return true, "", nil
	}

	upgraded, err := HashPassword(password)
	if err != nil {
		//nolint:nilerr // the password matched; the upgrade waits for the next login
		return true, "", nil
	}
	return true, upgraded, nil
}

// GenerateOneTimeToken returns a URL-safe token for email verification and
// password reset links.
func GenerateOneTimeToken() (string, error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate one-time token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the keyed one-way digest used to index stored tokens. It is
// never a credential on its own.
func HashToken(key []byte, token string) string {
	mac := hmac.New(sha256.New, key)
	//nolint:errcheck // hash.Hash writes never fail
	_, _ = mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
