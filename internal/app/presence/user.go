/*
Package presence contains the connected-user registry, per-user outbound
queues, broadcast fan-out, and the ping/idle timeout sweep.

This file defines the User struct, the identity record for one connected
client, owned by the registry once admitted.
*/
package presence

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// ChatFloodMessageCount is the number of chat messages allowed per
	// ChatFloodWindow before further chat is rejected.
	ChatFloodMessageCount = 4

	// ChatFloodWindow is the window the chat flood limit is measured over.
	ChatFloodWindow = 30 * time.Second
)

// ClientMetadata describes the connecting client software, recorded with the
// connect telemetry event. All fields are opaque to the registry.
type ClientMetadata struct {
	AgentName     string
	AgentType     string
	AgentOS       string
	AgentLanguage string
}

// User is the identity record for one connected client. The registry owns the
// canonical reference; any component holding a User it obtained earlier must
// re-check IsValid before acting on it.
//
// Nickname, hostname, and the session identifiers are immutable after
// creation. The activity timestamps and the validity flag are atomics so the
// transport and queue consumers can read them without taking the registry lock.
type User struct {
	nickname     string
	hostname     string
	sessionID    string
	persistentID string
	admin        bool
	meta         ClientMetadata

	// lastHeardFrom is the UnixNano instant of the client's most recent
	// request of any kind, including passive polling.
	lastHeardFrom atomic.Int64

	// lastUserAction is the UnixNano instant of the client's most recent
	// deliberate action (chat, game moves), as opposed to keep-alive polling.
	lastUserAction atomic.Int64

	// invalid flips to true exactly once, on removal from the registry.
	invalid atomic.Bool

	// queue is the outbound mailbox drained by this user's transport.
	queue *Queue

	// chatLimiter enforces the per-user chat flood limit.
	chatLimiter *rate.Limiter
}

// NewUser constructs a not-yet-registered User. Both activity timestamps start
// at the current time.
func NewUser(nickname, hostname, sessionID, persistentID string, admin bool, meta ClientMetadata) *User {
	u := &User{
		nickname:     nickname,
		hostname:     hostname,
		sessionID:    sessionID,
		persistentID: persistentID,
		admin:        admin,
		meta:         meta,
		queue:        NewQueue(),
		chatLimiter:  rate.NewLimiter(rate.Limit(float64(ChatFloodMessageCount)/ChatFloodWindow.Seconds()), ChatFloodMessageCount),
	}

	now := time.Now().UnixNano()
	u.lastHeardFrom.Store(now)
	u.lastUserAction.Store(now)

	return u
}

// Nickname returns the display name, the registry's case-insensitive key.
func (u *User) Nickname() string {
	return u.nickname
}

// Hostname returns the client's host as seen at registration.
func (u *User) Hostname() string {
	return u.hostname
}

// SessionID returns the identifier of this connected session.
func (u *User) SessionID() string {
	return u.sessionID
}

// PersistentID returns the identifier the client keeps across sessions.
func (u *User) PersistentID() string {
	return u.persistentID
}

// IsAdmin reports whether this user is an administrator. Admins bypass the
// capacity limit and the idle timeout.
func (u *User) IsAdmin() bool {
	return u.admin
}

// Metadata returns the client software description supplied at registration.
func (u *User) Metadata() ClientMetadata {
	return u.meta
}

// Queue returns the user's outbound mailbox.
func (u *User) Queue() *Queue {
	return u.queue
}

// IsValid reports whether the user is still registered. Once false it stays
// false; callers holding a stale reference must re-fetch from the registry.
func (u *User) IsValid() bool {
	return !u.invalid.Load()
}

// MarkInvalid permanently invalidates the user. Called by the registry when
// the user is removed. Safe against concurrent and repeated calls.
func (u *User) MarkInvalid() {
	u.invalid.Store(true)
}

// ContactedServer records that the client has just made a request of any kind.
// The transport calls this on every routed request.
func (u *User) ContactedServer() {
	u.lastHeardFrom.Store(time.Now().UnixNano())
}

// UserDidSomething records a deliberate user action, which resets the idle
// timeout clock.
func (u *User) UserDidSomething() {
	u.lastUserAction.Store(time.Now().UnixNano())
}

// LastHeardFrom returns the instant of the most recent client request.
func (u *User) LastHeardFrom() time.Time {
	return time.Unix(0, u.lastHeardFrom.Load())
}

// LastUserAction returns the instant of the most recent deliberate action.
func (u *User) LastUserAction() time.Time {
	return time.Unix(0, u.lastUserAction.Load())
}

// CheckChatFlood reports whether the user may send another chat message now.
// Each allowed call consumes one token from the flood limiter.
func (u *User) CheckChatFlood() bool {
	return u.chatLimiter.Allow()
}

// Enqueue appends one message to the user's outbound queue.
func (u *User) Enqueue(msg QueuedMessage) {
	u.queue.Enqueue(msg)
}

// String identifies the user in logs.
func (u *User) String() string {
	return fmt.Sprintf("%s (session %s)", u.nickname, u.sessionID)
}
