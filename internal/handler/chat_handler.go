/*
Package handler provides the HTTP handlers and routing setup for the session server.

This file contains the chat handler, which fans a chat line out to every
connected user through the registry.
*/
package handler

import (
	"net/http"
	"unicode/utf8"

	"partydeck/internal/app/presence"
	"partydeck/internal/pkg/errs"
	"partydeck/internal/pkg/req"
	"partydeck/internal/pkg/resp"
)

// ChatMaxLength is the maximum accepted chat message length in characters.
const ChatMaxLength = 200

type ChatInput struct {
	Message string `json:"message"`
}

// Chat payload field keys, alongside the registry's own event fields.
const (
	fieldFrom      = "from"
	fieldFromAdmin = "from_admin"
	fieldMessage   = "message"
)

// HandleChat creates an HTTP HandlerFunc that broadcasts a chat message from
// the calling user to all connected users.
func HandleChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, customErr := resolveSessionUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if floodErr := deps.Registry.CheckChatFlood(user); floodErr != nil {
			resp.RespondError(w, r, floodErr)
			return
		}

		var input ChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Message == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrEmptyMessage))
			return
		}
		if utf8.RuneCountInString(input.Message) > ChatMaxLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageTooLong))
			return
		}

		user.UserDidSomething()

		deps.Registry.BroadcastToAll(presence.MessageChat, presence.Fields{
			presence.FieldEvent: presence.EventChat,
			fieldFrom:           user.Nickname(),
			fieldFromAdmin:      user.IsAdmin(),
			fieldMessage:        input.Message,
		})

		resp.RespondSuccess(w, r, nil)
	}
}
