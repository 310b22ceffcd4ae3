/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the server and in responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Registry and Admission Errors
const (
	// ErrNicknameInUse indicates that a user with the same case-insensitive
	// nickname is already connected.
	ErrNicknameInUse = 2101

	// ErrTooManyUsers indicates that the registry is at capacity and the
	// candidate is not an admin.
	ErrTooManyUsers = 2102

	// ErrInvalidNickname indicates that the requested nickname does not match
	// the allowed nickname pattern.
	ErrInvalidNickname = 2103

	// ErrBanned indicates that the connecting host is on the ban list.
	ErrBanned = 2104
)

// 3xxx: Chat and Messaging Errors
const (
	// ErrChatFlood indicates that the user sent chat messages faster than the
	// flood limit allows.
	ErrChatFlood = 3001

	// ErrMessageTooLong indicates that the chat message exceeded the maximum length.
	ErrMessageTooLong = 3002

	// ErrEmptyMessage indicates that the chat message had no content.
	ErrEmptyMessage = 3003
)

// 4xxx: Session Errors
const (
	// ErrNoSession indicates that the request carried no valid session token.
	ErrNoSession = 4001

	// ErrSessionStale indicates that the session's user has been removed from
	// the registry and the client must register again.
	ErrSessionStale = 4002

	// ErrNotAdmin indicates that the session is valid but lacks the
	// administrator privileges the operation requires.
	ErrNotAdmin = 4003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
