/*
Package handler provides the HTTP handlers and routing setup for the session server.

This file contains the websocket transport, an alternative to long-polling that
streams a user's outbound queue over one persistent connection.
*/
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"partydeck/internal/app/presence"
	"partydeck/internal/pkg/logx"
	"partydeck/internal/pkg/resp"
)

const (
	// writeWait is the timeout for writing to the websocket connection.
	writeWait = 10 * time.Second

	// pongWait is the maximum time allowed between pongs from the client.
	pongWait = 60 * time.Second

	// pingPeriod is the frequency of server ping messages.
	pingPeriod = (pongWait * 9) / 10

	// wsCloseCodeSessionGone signals that the session was removed from the
	// registry and the client must register again.
	wsCloseCodeSessionGone = 4001
)

// wsClient streams one user's outbound queue over a websocket connection.
type wsClient struct {
	conn   *websocket.Conn
	user   *presence.User
	logger zerolog.Logger
}

// HandleWebSocket creates an HTTP HandlerFunc that upgrades the connection and
// streams queued events to the caller. The session is resolved before the
// upgrade so rejections still produce a JSON response.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, customErr := resolveSessionUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := &wsClient{
			conn: conn,
			user: user,
			logger: logx.Logger().With().
				Str("component", "wsClient").
				Str("nickname", user.Nickname()).
				Logger(),
		}

		ctx, cancel := context.WithCancel(r.Context())

		go client.writePump(ctx)

		client.readPump(cancel)
	}
}

// readPump consumes inbound frames. The transport is one-directional (actions
// arrive over the REST API), so inbound traffic only keeps the connection
// alive: every frame and pong counts as server contact.
func (c *wsClient) readPump(cancel context.CancelFunc) {
	defer func() {
		cancel()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error")
		}
	}()

	c.conn.SetReadLimit(1024)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		c.user.ContactedServer()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			return
		}
		c.user.ContactedServer()
	}
}

// writePump drains the user's queue to the connection, interleaving pings.
// It exits when the context is cancelled or the user is invalidated with an
// empty queue.
func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in writePump")
		}
	}()

	for {
		pollCtx, cancel := context.WithTimeout(ctx, pingPeriod)
		drained, err := c.user.Queue().Poll(pollCtx)
		cancel()

		if err != nil && ctx.Err() != nil {
			return
		}

		for _, msg := range drained {
			if !c.writeMessage(msg) {
				return
			}
		}

		// Deliver everything enqueued before invalidation, then close.
		if !c.user.IsValid() && c.user.Queue().Len() == 0 {
			closeMessage := websocket.FormatCloseMessage(wsCloseCodeSessionGone, "session removed")
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on close")
				return
			}
			if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to send session-gone close message")
			}
			return
		}

		select {
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		default:
		}
	}
}

// writeMessage sends one drained queue entry as a JSON text frame.
// Returns false if the pump should terminate.
func (c *wsClient) writeMessage(msg presence.QueuedMessage) bool {
	payload, err := json.Marshal(pollMessage{
		Type:    msg.Type.String(),
		Payload: msg.Payload,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling message")
		return true
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePing sends a heartbeat ping. Returns false on write failure.
func (c *wsClient) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
