package share

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
)

// ID identifies a share: 16 random bytes as unpadded base64url.
type ID string

// IDGenerator produces share ids.
type IDGenerator func() (ID, error)

const idBytes = 16

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{22}$`)

// NewID returns a fresh 128-bit id from the system CSPRNG.
func NewID() (ID, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return ID(base64.RawURLEncoding.EncodeToString(buf)), nil
}

// ValidID reports whether s has the shape of a generated id.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}
