package booking

import (
	"crypto/rand"
	"fmt"
)

const (
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceLength   = 12

	// Attempts before giving up when the unique constraint keeps colliding.
	referenceMaxRetries = 5
)

// NewReference returns a 12-character uppercase alphanumeric booking
// reference. Uniqueness is enforced by the DB constraint; callers retry on
// conflict.
func NewReference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate booking reference: %w", err)
	}

	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}

	return string(buf), nil
}
