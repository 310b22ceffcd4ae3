/*
Package handler provides the HTTP handlers and routing setup for the session server.

This file contains the user-facing presence handlers: the connected-user list,
voluntary logout, and the admin kick operation.
*/
package handler

import (
	"net/http"

	"partydeck/internal/app/presence"
	"partydeck/internal/pkg/errs"
	"partydeck/internal/pkg/logx"
	"partydeck/internal/pkg/req"
	"partydeck/internal/pkg/resp"
)

// HandleListUsers creates an HTTP HandlerFunc returning the nicknames of all
// currently connected users.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := resolveSessionUser(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		users := deps.Registry.GetUsers()
		nicknames := make([]string, 0, len(users))
		for _, u := range users {
			nicknames = append(nicknames, u.Nickname())
		}

		resp.RespondSuccess(w, r, map[string]any{
			"users":    nicknames,
			"maxUsers": deps.Config.MaxUsers,
		})
	}
}

// HandleLogout creates an HTTP HandlerFunc removing the calling user from the
// registry.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, customErr := resolveSessionUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Registry.RemoveUser(user, presence.ReasonManual)

		resp.RespondSuccess(w, r, nil)
	}
}

type KickInput struct {
	Nickname string `json:"nickname"`
}

// HandleKick creates an HTTP HandlerFunc letting an admin forcibly disconnect
// another user. The kicked notification is enqueued before the user is
// removed, so an in-flight poll still observes it.
func HandleKick(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := resolveSessionUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !caller.IsAdmin() {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotAdmin))
			return
		}

		var input KickInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		target := deps.Registry.GetUser(input.Nickname)
		if target == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		deps.Registry.BroadcastToList([]*presence.User{target}, presence.MessageKicked, presence.Fields{
			presence.FieldEvent:  presence.EventKicked,
			presence.FieldReason: string(presence.ReasonKicked),
		})
		deps.Registry.RemoveUser(target, presence.ReasonKicked)

		logx.Info("Admin kicked user.", "admin", caller.Nickname(), "target", target.Nickname())

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleBan creates an HTTP HandlerFunc letting an admin disconnect a user
// and ban their host from registering again.
func HandleBan(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, customErr := resolveSessionUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !caller.IsAdmin() {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotAdmin))
			return
		}

		var input KickInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		target := deps.Registry.GetUser(input.Nickname)
		if target == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		deps.BanHost(target.Hostname())

		deps.Registry.BroadcastToList([]*presence.User{target}, presence.MessageKicked, presence.Fields{
			presence.FieldEvent:  presence.EventKicked,
			presence.FieldReason: string(presence.ReasonBanned),
		})
		deps.Registry.RemoveUser(target, presence.ReasonBanned)

		logx.Info("Admin banned user.", "admin", caller.Nickname(), "target", target.Nickname(), "host", target.Hostname())

		resp.RespondSuccess(w, r, nil)
	}
}
