package booking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReference(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		ref, err := NewReference()
		require.NoError(t, err)

		assert.Len(t, ref, referenceLength)
		for _, r := range ref {
			assert.True(t, strings.ContainsRune(referenceAlphabet, r), "unexpected character %q", r)
		}
		seen[ref] = true
	}

	// 100 random 12-char references colliding would be astonishing.
	assert.Greater(t, len(seen), 95)
}
