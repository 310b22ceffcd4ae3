package randx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := SessionID()
		assert.True(t, IsValidPersistentID(id), "session ids are UUIDs")
		_, dup := seen[id]
		assert.False(t, dup, "session id %q repeated", id)
		seen[id] = struct{}{}
	}
}

func TestIsValidPersistentID(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidPersistentID(PersistentID()))
	assert.False(t, IsValidPersistentID(""))
	assert.False(t, IsValidPersistentID("not-a-uuid"))
}
