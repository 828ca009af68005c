package sessions

import (
	"crypto/rand"
	"regexp"
)

// idAlphabet excludes ambiguous characters (I, O, 0, 1) so IDs read well in
// shared links.
const (
	idAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	idLength   = 8
)

var (
	shortIDPattern = regexp.MustCompile(`^[A-Z0-9]{8,10}$`)
	longIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{3,100}$`)
)

// GenerateID returns a fresh short session identifier.
func GenerateID() string {
	buf := make([]byte, idLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}

// ValidID reports whether an externally supplied session identifier may be
// auto-created on join: either the short generated format or a 3-100 char
// alphanumeric name with hyphens/underscores.
func ValidID(id string) bool {
	return shortIDPattern.MatchString(id) || longIDPattern.MatchString(id)
}
