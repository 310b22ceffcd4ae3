/*
Package presence contains the connected-user registry, per-user outbound
queues, broadcast fan-out, and the ping/idle timeout sweep.

This file defines the queued message type, the message categories with their
delivery priorities, and the event vocabulary used in broadcast payloads.
*/
package presence

// MessageType categorizes a queued message. The category determines delivery
// priority when a client drains its queue: declaration order is priority
// order, earlier types are always returned before later ones.
type MessageType int

const (
	// MessageKicked tells a client it has been forcibly disconnected. It
	// overtakes everything else in the queue.
	MessageKicked MessageType = iota

	// MessageGameEvent carries game state changes.
	MessageGameEvent

	// MessageGamePlayerEvent carries per-player game changes.
	MessageGamePlayerEvent

	// MessagePlayerEvent carries server-wide presence changes (joins, leaves).
	MessagePlayerEvent

	// MessageChat carries chat lines.
	MessageChat

	// numMessageTypes sizes per-priority storage. Keep it last.
	numMessageTypes
)

// String returns the wire name of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageKicked:
		return "kicked"
	case MessageGameEvent:
		return "game_event"
	case MessageGamePlayerEvent:
		return "game_player_event"
	case MessagePlayerEvent:
		return "player_event"
	case MessageChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Fields is the opaque structured payload of one event message. The registry
// only ever adds its own event, nickname, reason, and timestamp fields; the
// rest is caller-supplied and passed through untouched.
type Fields map[string]any

// Payload field keys added by the registry for join/leave/timeout notifications.
const (
	FieldEvent     = "event"
	FieldNickname  = "nickname"
	FieldReason    = "reason"
	FieldTimestamp = "timestamp"
)

// Event names carried in the FieldEvent payload field.
const (
	EventNewPlayer   = "new_player"
	EventPlayerLeave = "player_leave"
	EventChat        = "chat"
	EventKicked      = "kicked"
)

// QueuedMessage is one pending event in a user's outbound queue.
type QueuedMessage struct {
	// Type determines delivery priority relative to other pending messages.
	Type MessageType `json:"type"`

	// Payload holds the event fields, including the broadcast timestamp.
	Payload Fields `json:"payload"`
}

// DisconnectReason explains why a user left the registry. It is passed through
// leave notifications untouched.
type DisconnectReason string

const (
	// ReasonPingTimeout marks a user whose client stopped contacting the server.
	ReasonPingTimeout DisconnectReason = "ping_timeout"

	// ReasonIdleTimeout marks a non-admin user who stayed connected but did
	// nothing for too long.
	ReasonIdleTimeout DisconnectReason = "idle_timeout"

	// ReasonManual marks a user who disconnected on purpose.
	ReasonManual DisconnectReason = "manual_disconnect"

	// ReasonKicked marks a user removed by an admin.
	ReasonKicked DisconnectReason = "kicked"

	// ReasonBanned marks a user removed and banned by an admin.
	ReasonBanned DisconnectReason = "banned"
)
