/*
Package handler provides the HTTP handlers and routing setup for the session server.

This file contains the registration handler: nickname validation, ban checks,
admission into the connected-user registry, and session token issuance.
*/
package handler

import (
	"net/http"
	"regexp"

	"partydeck/internal/app/presence"
	"partydeck/internal/pkg/auth/jwt"
	"partydeck/internal/pkg/errs"
	"partydeck/internal/pkg/logx"
	"partydeck/internal/pkg/randx"
	"partydeck/internal/pkg/req"
	"partydeck/internal/pkg/resp"
)

// validNickname is the allowed nickname shape: a letter or underscore followed
// by 2 to 29 letters, digits, or underscores.
var validNickname = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{2,29}$`)

type RegisterInput struct {
	// Nickname is the requested display name, unique case-insensitively.
	Nickname string `json:"nickname"`

	// PersistentID identifies the client across sessions. Omitted on first
	// registration; the server generates one and returns it.
	PersistentID string `json:"persistentId,omitempty"`

	// ClientName and ClientVersion describe the connecting client software.
	ClientName    string `json:"clientName,omitempty"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

// HandleRegister creates an HTTP HandlerFunc that admits a new user into the
// registry and issues its session token.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := clientHost(r)

		if deps.IsBanned(host) {
			logx.Info("Registration rejected: banned host.", "host", host)
			resp.RespondError(w, r, errs.NewError(errs.ErrBanned))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !validNickname.MatchString(input.Nickname) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidNickname))
			return
		}

		persistentID := input.PersistentID
		if persistentID == "" || !randx.IsValidPersistentID(persistentID) {
			persistentID = randx.PersistentID()
		}

		meta := presence.ClientMetadata{
			AgentName:     input.ClientName,
			AgentType:     input.ClientVersion,
			AgentOS:       r.Header.Get("User-Agent"),
			AgentLanguage: r.Header.Get("Accept-Language"),
		}

		user := presence.NewUser(
			input.Nickname,
			host,
			randx.SessionID(),
			persistentID,
			deps.IsAdminHost(host),
			meta,
		)

		if rejection := deps.Registry.CheckAndAdd(user); rejection != nil {
			resp.RespondError(w, r, rejection)
			return
		}

		tokenPayload := &jwt.Payload{
			Nickname:  user.Nickname(),
			SessionID: user.SessionID(),
		}
		token, err := jwt.GenerateToken(tokenPayload, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "Failed to issue session token", "nickname", user.Nickname())
			// The user is already admitted; roll the admission back so the
			// nickname does not stay occupied by a session nobody can use.
			deps.Registry.RemoveUser(user, presence.ReasonManual)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		data := map[string]any{
			"nickname":     user.Nickname(),
			"isAdmin":      user.IsAdmin(),
			"persistentId": user.PersistentID(),
			"token":        token,
		}
		resp.RespondSuccess(w, r, data)
	}
}
