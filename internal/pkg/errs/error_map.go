/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application
// error code. The key is the error code (int), and the value contains the user
// message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Registry and Admission Errors
	ErrNicknameInUse:   {Code: ErrNicknameInUse, Message: "That nickname is already in use."},
	ErrTooManyUsers:    {Code: ErrTooManyUsers, Message: "The server is full. Please try again later.", Status: http.StatusServiceUnavailable},
	ErrInvalidNickname: {Code: ErrInvalidNickname, Message: "Invalid nickname."},
	ErrBanned:          {Code: ErrBanned, Message: "You are banned from this server.", Status: http.StatusForbidden},

	// 3xxx: Chat and Messaging Errors
	ErrChatFlood:      {Code: ErrChatFlood, Message: "You are chatting too fast. Please slow down."},
	ErrMessageTooLong: {Code: ErrMessageTooLong, Message: "Message is too long."},
	ErrEmptyMessage:   {Code: ErrEmptyMessage, Message: "Message is empty."},

	// 4xxx: Session Errors
	ErrNoSession:    {Code: ErrNoSession, Message: "Please register to continue.", Status: http.StatusUnauthorized},
	ErrSessionStale: {Code: ErrSessionStale, Message: "Your session has expired. Please register again.", Status: http.StatusForbidden},
	ErrNotAdmin:     {Code: ErrNotAdmin, Message: "Administrator privileges are required.", Status: http.StatusForbidden},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
