package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser_StartsValidAndFresh(t *testing.T) {
	t.Parallel()

	before := time.Now()
	u := newTestUser("Alice", false)
	after := time.Now()

	assert.True(t, u.IsValid())
	assert.False(t, u.LastHeardFrom().Before(before))
	assert.False(t, u.LastHeardFrom().After(after))
	assert.False(t, u.LastUserAction().Before(before))
	assert.False(t, u.LastUserAction().After(after))
}

func TestUser_MarkInvalidIsPermanent(t *testing.T) {
	t.Parallel()

	u := newTestUser("Alice", false)

	u.MarkInvalid()
	assert.False(t, u.IsValid())

	u.MarkInvalid()
	assert.False(t, u.IsValid())
}

func TestUser_ActivityTimestamps(t *testing.T) {
	t.Parallel()

	u := newTestUser("Alice", false)

	past := time.Now().Add(-time.Minute).UnixNano()
	u.lastHeardFrom.Store(past)
	u.lastUserAction.Store(past)

	u.ContactedServer()
	assert.True(t, u.LastHeardFrom().After(time.Unix(0, past)), "ContactedServer must advance lastHeardFrom")
	assert.Equal(t, past, u.lastUserAction.Load(), "ContactedServer must not touch lastUserAction")

	u.UserDidSomething()
	assert.True(t, u.LastUserAction().After(time.Unix(0, past)))
}

func TestUser_SweepEvictionScenario(t *testing.T) {
	t.Parallel()

	// User connects, never acts, and goes idle past the threshold.
	cu := newTestRegistry(true, 10, WithTimeouts(time.Hour, 50*time.Millisecond))
	x := newTestUser("X", false)
	observer := newTestUser("Observer", false)
	require.Nil(t, cu.CheckAndAdd(x))
	require.Nil(t, cu.CheckAndAdd(observer))
	observer.Queue().DrainAll()

	x.lastUserAction.Store(time.Now().Add(-time.Second).UnixNano())
	// Keep-alive polling alone does not reset the idle clock.
	x.ContactedServer()

	cu.CheckForPingAndIdleTimeouts()

	assert.False(t, cu.HasUser("x"))
	assert.False(t, x.IsValid())

	drained := observer.Queue().DrainAll()
	require.Len(t, drained, 1)
	assert.Equal(t, string(ReasonIdleTimeout), drained[0].Payload[FieldReason])
}

func TestUser_String(t *testing.T) {
	t.Parallel()

	u := NewUser("Alice", "host", "sess-1", "persist-1", false, ClientMetadata{})
	assert.Contains(t, u.String(), "Alice")
	assert.Contains(t, u.String(), "sess-1")
}
