package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partydeck/internal/pkg/errs"
)

func newTestUser(nickname string, admin bool) *User {
	return NewUser(nickname, "client.example.com", "session-"+nickname, "persist-"+nickname, admin, ClientMetadata{})
}

func newTestRegistry(broadcast bool, maxUsers int, opts ...Option) *ConnectedUsers {
	return NewConnectedUsers(broadcast, maxUsers, NopGeoResolver{}, NopTelemetry{}, opts...)
}

func TestCheckAndAdd_Success(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	u := newTestUser("Alice", false)

	require.Nil(t, cu.CheckAndAdd(u))

	assert.True(t, cu.HasUser("alice"))
	assert.True(t, cu.HasUser("ALICE"))
	assert.Same(t, u, cu.GetUser("aLiCe"))
	assert.Equal(t, 1, cu.Count())
	assert.True(t, u.IsValid())
}

func TestCheckAndAdd_NicknameInUseCaseInsensitive(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	first := newTestUser("Alice", false)
	require.Nil(t, cu.CheckAndAdd(first))

	second := newTestUser("ALICE", false)
	rejection := cu.CheckAndAdd(second)

	require.NotNil(t, rejection)
	assert.Equal(t, errs.ErrNicknameInUse, rejection.Code)

	// The existing entry is untouched and no second entry exists.
	assert.Same(t, first, cu.GetUser("alice"))
	assert.Equal(t, 1, cu.Count())
}

func TestCheckAndAdd_TooManyUsers(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 1)
	require.Nil(t, cu.CheckAndAdd(newTestUser("Bob", false)))

	rejection := cu.CheckAndAdd(newTestUser("Carol", false))

	require.NotNil(t, rejection)
	assert.Equal(t, errs.ErrTooManyUsers, rejection.Code)
	assert.False(t, cu.HasUser("carol"))
}

func TestCheckAndAdd_AdminBypassesCapacity(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 1)
	require.Nil(t, cu.CheckAndAdd(newTestUser("Bob", false)))

	admin := newTestUser("Ada", true)
	require.Nil(t, cu.CheckAndAdd(admin), "admin admission must succeed at capacity")

	assert.Equal(t, 2, cu.Count())
}

func TestCheckAndAdd_ConcurrentSameNickname(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 100)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan *errs.CustomError, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- cu.CheckAndAdd(newTestUser("Dave", false))
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for rejection := range results {
		if rejection == nil {
			admitted++
		} else {
			assert.Equal(t, errs.ErrNicknameInUse, rejection.Code)
		}
	}
	assert.Equal(t, 1, admitted, "exactly one concurrent admission may win")
	assert.Equal(t, 1, cu.Count())
}

func TestCheckAndAdd_BroadcastsJoinIncludingNewUser(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(true, 10)
	first := newTestUser("Alice", false)
	require.Nil(t, cu.CheckAndAdd(first))
	first.Queue().DrainAll()

	second := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(second))

	for _, u := range []*User{first, second} {
		drained := u.Queue().DrainAll()
		require.Len(t, drained, 1, "user %s should see the join event", u.Nickname())
		assert.Equal(t, MessagePlayerEvent, drained[0].Type)
		assert.Equal(t, EventNewPlayer, drained[0].Payload[FieldEvent])
		assert.Equal(t, "Bob", drained[0].Payload[FieldNickname])
	}
}

func TestCheckAndAdd_NoBroadcastWhenDisabled(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	first := newTestUser("Alice", false)
	require.Nil(t, cu.CheckAndAdd(first))

	require.Nil(t, cu.CheckAndAdd(newTestUser("Bob", false)))

	assert.Equal(t, 0, first.Queue().Len())
}

func TestRemoveUser(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(true, 10)
	alice := newTestUser("Alice", false)
	bob := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(alice))
	require.Nil(t, cu.CheckAndAdd(bob))
	alice.Queue().DrainAll()

	cu.RemoveUser(bob, ReasonManual)

	assert.False(t, cu.HasUser("bob"))
	assert.False(t, bob.IsValid())
	assert.True(t, alice.IsValid())

	drained := alice.Queue().DrainAll()
	require.Len(t, drained, 1)
	assert.Equal(t, EventPlayerLeave, drained[0].Payload[FieldEvent])
	assert.Equal(t, "Bob", drained[0].Payload[FieldNickname])
	assert.Equal(t, string(ReasonManual), drained[0].Payload[FieldReason])
}

func TestRemoveUser_AlreadyRemovedIsNoOp(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(true, 10)
	alice := newTestUser("Alice", false)
	bob := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(alice))
	require.Nil(t, cu.CheckAndAdd(bob))

	cu.RemoveUser(bob, ReasonManual)
	alice.Queue().DrainAll()

	cu.RemoveUser(bob, ReasonManual)

	assert.Equal(t, 0, alice.Queue().Len(), "second removal must not broadcast again")
	assert.Equal(t, 1, cu.Count())
}

func TestRemoveUser_DoesNotEvictReplacement(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	old := newTestUser("Alice", false)
	require.Nil(t, cu.CheckAndAdd(old))
	cu.RemoveUser(old, ReasonManual)

	replacement := newTestUser("Alice", false)
	require.Nil(t, cu.CheckAndAdd(replacement))

	// A stale reference to the old session must not remove the new one.
	cu.RemoveUser(old, ReasonManual)

	assert.True(t, cu.HasUser("alice"))
	assert.True(t, replacement.IsValid())
}

func TestSweep_PingTimeoutEvictsEveryoneIncludingAdmins(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10, WithTimeouts(50*time.Millisecond, time.Hour))
	user := newTestUser("Alice", false)
	admin := newTestUser("Ada", true)
	fresh := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(user))
	require.Nil(t, cu.CheckAndAdd(admin))
	require.Nil(t, cu.CheckAndAdd(fresh))

	stale := time.Now().Add(-time.Second).UnixNano()
	user.lastHeardFrom.Store(stale)
	admin.lastHeardFrom.Store(stale)

	cu.CheckForPingAndIdleTimeouts()

	assert.False(t, cu.HasUser("alice"))
	assert.False(t, cu.HasUser("ada"), "admins are not exempt from the ping timeout")
	assert.True(t, cu.HasUser("bob"))
	assert.False(t, user.IsValid())
	assert.False(t, admin.IsValid())
}

func TestSweep_IdleTimeoutExemptsAdmins(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(true, 10, WithTimeouts(time.Hour, 50*time.Millisecond))
	user := newTestUser("Alice", false)
	admin := newTestUser("Ada", true)
	watcher := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(user))
	require.Nil(t, cu.CheckAndAdd(admin))
	require.Nil(t, cu.CheckAndAdd(watcher))
	watcher.Queue().DrainAll()

	idle := time.Now().Add(-time.Second).UnixNano()
	user.lastUserAction.Store(idle)
	admin.lastUserAction.Store(idle)

	cu.CheckForPingAndIdleTimeouts()

	assert.False(t, cu.HasUser("alice"))
	assert.True(t, cu.HasUser("ada"), "admins are exempt from the idle timeout")

	drained := watcher.Queue().DrainAll()
	require.Len(t, drained, 1)
	assert.Equal(t, EventPlayerLeave, drained[0].Payload[FieldEvent])
	assert.Equal(t, string(ReasonIdleTimeout), drained[0].Payload[FieldReason])
}

func TestSweep_RecentUserSurvives(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10, WithTimeouts(time.Hour, time.Hour))
	user := newTestUser("Alice", false)
	require.Nil(t, cu.CheckAndAdd(user))

	cu.CheckForPingAndIdleTimeouts()

	assert.True(t, cu.HasUser("alice"))
	assert.True(t, user.IsValid())
}

func TestBroadcastToAll_SharedTimestamp(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	users := []*User{newTestUser("Alice", false), newTestUser("Bob", false), newTestUser("Carol", false)}
	for _, u := range users {
		require.Nil(t, cu.CheckAndAdd(u))
	}

	cu.BroadcastToAll(MessageChat, Fields{"FOO": "bar"})

	var timestamps []any
	for _, u := range users {
		drained := u.Queue().DrainAll()
		require.Len(t, drained, 1)
		assert.Equal(t, "bar", drained[0].Payload["FOO"])
		require.Contains(t, drained[0].Payload, FieldTimestamp)
		timestamps = append(timestamps, drained[0].Payload[FieldTimestamp])
	}

	assert.Equal(t, timestamps[0], timestamps[1])
	assert.Equal(t, timestamps[1], timestamps[2])
}

func TestBroadcastToAll_PayloadNotShared(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	alice := newTestUser("Alice", false)
	bob := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(alice))
	require.Nil(t, cu.CheckAndAdd(bob))

	cu.BroadcastToAll(MessageChat, Fields{"FOO": "bar"})

	aliceMsg := alice.Queue().DrainAll()[0]
	aliceMsg.Payload["FOO"] = "mutated"

	bobMsg := bob.Queue().DrainAll()[0]
	assert.Equal(t, "bar", bobMsg.Payload["FOO"], "recipients must not share payload maps")
}

func TestBroadcastToList_SubsetOnly(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	alice := newTestUser("Alice", false)
	bob := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(alice))
	require.Nil(t, cu.CheckAndAdd(bob))

	cu.BroadcastToList([]*User{alice}, MessageGameEvent, Fields{"round": 2})

	assert.Equal(t, 1, alice.Queue().Len())
	assert.Equal(t, 0, bob.Queue().Len())
}

func TestCheckChatFlood(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	user := newTestUser("Alice", false)
	require.Nil(t, cu.CheckAndAdd(user))

	for i := 0; i < ChatFloodMessageCount; i++ {
		assert.Nil(t, cu.CheckChatFlood(user), "message %d within the burst should pass", i+1)
	}

	rejection := cu.CheckChatFlood(user)
	require.NotNil(t, rejection)
	assert.Equal(t, errs.ErrChatFlood, rejection.Code)
}

func TestGetUsers_Snapshot(t *testing.T) {
	t.Parallel()

	cu := newTestRegistry(false, 10)
	alice := newTestUser("Alice", false)
	bob := newTestUser("Bob", false)
	require.Nil(t, cu.CheckAndAdd(alice))
	require.Nil(t, cu.CheckAndAdd(bob))

	snapshot := cu.GetUsers()
	require.Len(t, snapshot, 2)

	cu.RemoveUser(bob, ReasonManual)

	// The snapshot is a copy; it still holds both references.
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 1, cu.Count())
}
