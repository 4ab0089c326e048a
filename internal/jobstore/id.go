package jobstore

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh job id: a 26-character, lexicographically
// sortable, time-ordered ULID, so a plain directory listing sorted by
// name already reflects creation order.
func NewID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", fmt.Errorf("generating job id: %w", err)
	}
	return id.String(), nil
}
