/*
Package handler provides the HTTP handlers and routing setup for the session server.

This file contains the long-poll handler that drains a user's outbound queue.
*/
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"partydeck/internal/app/presence"
	"partydeck/internal/pkg/resp"
)

// pollWait is how long a poll request hangs open waiting for messages before
// returning an empty batch. Kept under typical proxy timeouts.
const pollWait = 50 * time.Second

// pollMessage is the wire form of one drained queue entry.
type pollMessage struct {
	Type    string          `json:"type"`
	Payload presence.Fields `json:"payload"`
}

// HandlePoll creates an HTTP HandlerFunc that answers long-poll requests. It
// blocks until the caller's queue has at least one message or the wait
// expires, then returns everything pending in delivery order. Messages
// enqueued before the user was invalidated are still delivered to an in-flight
// poll holding the user reference.
func HandlePoll(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, customErr := resolveSessionUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), pollWait)
		defer cancel()

		drained, err := user.Queue().Poll(ctx)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			// Client went away; nothing to answer.
			return
		}

		messages := make([]pollMessage, 0, len(drained))
		for _, msg := range drained {
			messages = append(messages, pollMessage{
				Type:    msg.Type.String(),
				Payload: msg.Payload,
			})
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
		})
	}
}
