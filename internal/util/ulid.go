package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string
func New() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewCode returns a short confirmation code taken from the random tail of a
// fresh ULID (Crockford base32, no ambiguous characters).
func NewCode(n int) string {
	if n <= 0 || n > 16 {
		n = 8
	}
	id := New()

	return id[len(id)-n:]
}
