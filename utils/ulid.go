package utils

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyLock sync.Mutex
	entropy     = ulid.Monotonic(rand.Reader, 0)
)

// GenerateULIDWithTime returns a ULID stamped with t. IDs generated within
// the same millisecond are strictly increasing.
func GenerateULIDWithTime(t time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// NewRunID returns the identifier attached to one probe run
func NewRunID() string {
	return GenerateULIDWithTime(time.Now()).String()
}
