package core

import (
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var idPattern = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)

// IsValidID reports whether id has the 24-hex-character article identifier format.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NewID returns a new 24-hex-character identifier: a 4-byte big-endian creation
// timestamp followed by 8 random bytes, so identifiers sort roughly by creation time.
func NewID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(time.Now().Unix()))
	r := uuid.New()
	copy(b[4:], r[:8])
	return hex.EncodeToString(b[:])
}

// NormalizeID lowercases a valid identifier so lookups are case-insensitive.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
