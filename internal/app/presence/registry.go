/*
Package presence contains the connected-user registry, per-user outbound
queues, broadcast fan-out, and the ping/idle timeout sweep.

This file defines the ConnectedUsers struct, the single authority mapping
case-insensitive nicknames to connected users. It owns admission, removal,
the timeout sweep, and broadcast fan-out.
*/
package presence

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"partydeck/internal/pkg/errs"
	"partydeck/internal/pkg/logx"
)

const (
	// DefaultPingTimeout is how long a client may go without contacting the
	// server before the sweep evicts it. Applies to admins too.
	DefaultPingTimeout = 90 * time.Second

	// DefaultIdleTimeout is how long a non-admin client may go without a
	// deliberate action before the sweep evicts it.
	DefaultIdleTimeout = 60 * time.Minute
)

// GeoInfo is the resolved approximate location of a connecting client.
type GeoInfo struct {
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoResolver resolves a client hostname to an approximate location. A failed
// resolution is logged by the registry and never blocks admission.
type GeoResolver interface {
	Resolve(ctx context.Context, hostname string) (*GeoInfo, error)
}

// Telemetry receives connect and disconnect events. Implementations must
// tolerate their own failures; the registry never checks for them.
type Telemetry interface {
	UserConnect(ctx context.Context, persistentID, sessionID string, geo *GeoInfo, meta ClientMetadata)
	UserDisconnect(ctx context.Context, sessionID string)
}

// ConnectedUsers is the authoritative registry of connected users, keyed by
// lower-cased nickname. All read-modify-write operations on the table run
// under a short-held exclusive lock; fan-out notification and telemetry are
// performed after the lock is released.
type ConnectedUsers struct {
	// mu protects the users table.
	mu sync.RWMutex

	// users maps lower-cased nickname to the connected user. At every
	// observable boundary, each key equals the lower-cased form of its
	// value's nickname.
	users map[string]*User

	// maxUsers is the capacity ceiling. Admin admissions may push the size
	// past it.
	maxUsers int

	// broadcastConnectsAndDisconnects controls whether join/leave events are
	// announced to all connected users.
	broadcastConnectsAndDisconnects bool

	// pingTimeout and idleTimeout are the two independent staleness
	// thresholds evaluated by the sweep.
	pingTimeout time.Duration
	idleTimeout time.Duration

	geo       GeoResolver
	telemetry Telemetry

	// sweepFailures counts per-user eviction notification failures, for
	// operational alerting.
	sweepFailures atomic.Uint64

	logger zerolog.Logger
}

// Option tunes a ConnectedUsers registry at construction time.
type Option func(*ConnectedUsers)

// WithTimeouts overrides the default ping and idle timeout thresholds.
func WithTimeouts(ping, idle time.Duration) Option {
	return func(cu *ConnectedUsers) {
		cu.pingTimeout = ping
		cu.idleTimeout = idle
	}
}

// NewConnectedUsers constructs the registry. geo and telemetry may not be nil;
// use NopGeoResolver and NopTelemetry when those collaborators are disabled.
func NewConnectedUsers(broadcastConnectsAndDisconnects bool, maxUsers int, geo GeoResolver, telemetry Telemetry, opts ...Option) *ConnectedUsers {
	registryLogger := logx.Logger().With().Str("component", "ConnectedUsers").Logger()

	cu := &ConnectedUsers{
		users:                           make(map[string]*User),
		maxUsers:                        maxUsers,
		broadcastConnectsAndDisconnects: broadcastConnectsAndDisconnects,
		pingTimeout:                     DefaultPingTimeout,
		idleTimeout:                     DefaultIdleTimeout,
		geo:                             geo,
		telemetry:                       telemetry,
		logger:                          registryLogger,
	}

	for _, opt := range opts {
		opt(cu)
	}

	return cu
}

// HasUser reports whether a user with that nickname (case-insensitive) is
// connected.
func (cu *ConnectedUsers) HasUser(nickname string) bool {
	cu.mu.RLock()
	defer cu.mu.RUnlock()

	_, ok := cu.users[strings.ToLower(nickname)]
	return ok
}

// GetUser returns the connected user with that nickname (case-insensitive),
// or nil if no such user is connected.
func (cu *ConnectedUsers) GetUser(nickname string) *User {
	cu.mu.RLock()
	defer cu.mu.RUnlock()

	return cu.users[strings.ToLower(nickname)]
}

// GetUsers returns a snapshot of all connected users.
func (cu *ConnectedUsers) GetUsers() []*User {
	cu.mu.RLock()
	defer cu.mu.RUnlock()

	snapshot := make([]*User, 0, len(cu.users))
	for _, u := range cu.users {
		snapshot = append(snapshot, u)
	}
	return snapshot
}

// Count returns the number of connected users.
func (cu *ConnectedUsers) Count() int {
	cu.mu.RLock()
	defer cu.mu.RUnlock()

	return len(cu.users)
}

// CheckAndAdd checks whether user may connect and, if so, registers it, as one
// atomic operation with respect to all other registry mutations. It returns
// nil on success, or a typed rejection (ErrNicknameInUse, ErrTooManyUsers)
// with no partial mutation. Admins are never rejected for capacity.
//
// On success the join is announced to every connected user (the new one
// included) when announcements are enabled, and a connect telemetry event is
// recorded; neither happens while the table lock is held.
func (cu *ConnectedUsers) CheckAndAdd(user *User) *errs.CustomError {
	key := strings.ToLower(user.Nickname())

	cu.mu.Lock()
	if _, exists := cu.users[key]; exists {
		cu.mu.Unlock()
		cu.logger.Info().
			Str("nickname", user.Nickname()).
			Str("hostname", user.Hostname()).
			Msg("Rejecting existing nickname.")
		return errs.NewError(errs.ErrNicknameInUse)
	}

	if len(cu.users) >= cu.maxUsers && !user.IsAdmin() {
		size := len(cu.users)
		cu.mu.Unlock()
		cu.logger.Warn().
			Str("nickname", user.Nickname()).
			Int("connected", size).
			Int("max_users", cu.maxUsers).
			Msg("Rejecting user, too many users.")
		return errs.NewError(errs.ErrTooManyUsers)
	}

	cu.users[key] = user
	cu.mu.Unlock()

	cu.logger.Info().
		Str("nickname", user.Nickname()).
		Str("hostname", user.Hostname()).
		Bool("admin", user.IsAdmin()).
		Msg("New user connected.")

	if cu.broadcastConnectsAndDisconnects {
		cu.BroadcastToAll(MessagePlayerEvent, Fields{
			FieldEvent:    EventNewPlayer,
			FieldNickname: user.Nickname(),
		})
	}

	cu.recordConnect(user)

	return nil
}

// recordConnect resolves the client's location and records the connect event.
// Resolution failure is logged as a warning and never aborts admission.
func (cu *ConnectedUsers) recordConnect(user *User) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	geo, err := cu.geo.Resolve(ctx, user.Hostname())
	if err != nil {
		cu.logger.Warn().
			Err(err).
			Str("nickname", user.Nickname()).
			Str("hostname", user.Hostname()).
			Msg("Unable to resolve client location.")
	}

	cu.telemetry.UserConnect(ctx, user.PersistentID(), user.SessionID(), geo, user.Metadata())
}

// RemoveUser removes user from the registry if it is still present under its
// nickname, marking it invalid so that any concurrent consumer of its queue
// observes invalidity no later than it observes the departure broadcast.
// Removing an already-removed user is a no-op. The departure notification and
// disconnect telemetry run after the table lock is released.
func (cu *ConnectedUsers) RemoveUser(user *User, reason DisconnectReason) {
	key := strings.ToLower(user.Nickname())

	cu.mu.Lock()
	current, ok := cu.users[key]
	if !ok || current != user {
		cu.mu.Unlock()
		return
	}

	user.MarkInvalid()
	delete(cu.users, key)
	cu.mu.Unlock()

	cu.logger.Info().
		Str("nickname", user.Nickname()).
		Str("reason", string(reason)).
		Msg("Removing user.")

	cu.notifyRemoveUser(user, reason)
}

// notifyRemoveUser broadcasts the departure to all remaining users when
// announcements are enabled, and records disconnect telemetry unconditionally.
// Never called with the table lock held.
func (cu *ConnectedUsers) notifyRemoveUser(user *User, reason DisconnectReason) {
	if cu.broadcastConnectsAndDisconnects {
		cu.BroadcastToAll(MessagePlayerEvent, Fields{
			FieldEvent:    EventPlayerLeave,
			FieldNickname: user.Nickname(),
			FieldReason:   string(reason),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cu.telemetry.UserDisconnect(ctx, user.SessionID())
}

// CheckForPingAndIdleTimeouts scans the registry once and evicts every user
// whose ping or idle threshold is exceeded. The scan and removal happen in one
// atomic pass over a consistent snapshot; invalidation and departure
// notifications run afterwards, per evicted user, so that a slow or failing
// notification path neither stalls other registry operations nor prevents
// eviction of the remaining users.
//
// The ping timeout applies to everyone; the idle timeout exempts admins.
// Intended to be invoked periodically by an external scheduler (see Sweeper).
func (cu *ConnectedUsers) CheckForPingAndIdleTimeouts() {
	now := time.Now().UnixNano()

	type eviction struct {
		user   *User
		reason DisconnectReason
	}
	var evicted []eviction

	cu.mu.Lock()
	for key, user := range cu.users {
		var reason DisconnectReason
		if now-user.lastHeardFrom.Load() > cu.pingTimeout.Nanoseconds() {
			reason = ReasonPingTimeout
		} else if !user.IsAdmin() && now-user.lastUserAction.Load() > cu.idleTimeout.Nanoseconds() {
			reason = ReasonIdleTimeout
		}

		if reason != "" {
			evicted = append(evicted, eviction{user: user, reason: reason})
			delete(cu.users, key)
		}
	}
	cu.mu.Unlock()

	for _, e := range evicted {
		cu.evictOne(e.user, e.reason)
	}
}

// evictOne invalidates and notifies a single swept user, isolating any
// failure so it cannot suppress eviction of the others.
func (cu *ConnectedUsers) evictOne(user *User, reason DisconnectReason) {
	defer func() {
		if r := recover(); r != nil {
			cu.sweepFailures.Add(1)
			cu.logger.Error().
				Interface("panic", r).
				Str("nickname", user.Nickname()).
				Str("reason", string(reason)).
				Msg("Unable to notify for timed-out user.")
		}
	}()

	user.MarkInvalid()
	cu.notifyRemoveUser(user, reason)

	cu.logger.Info().
		Str("nickname", user.Nickname()).
		Str("reason", string(reason)).
		Msg("Automatically kicking user.")
}

// SweepFailureCount returns the number of per-user eviction notification
// failures since startup.
func (cu *ConnectedUsers) SweepFailureCount() uint64 {
	return cu.sweepFailures.Load()
}

// BroadcastToAll pushes one logical event into the outbound queue of every
// user connected at the instant of the call. Users added afterward do not
// receive it; users removed concurrently may or may not.
func (cu *ConnectedUsers) BroadcastToAll(msgType MessageType, data Fields) {
	cu.BroadcastToList(cu.GetUsers(), msgType, data)
}

// BroadcastToList pushes one logical event into the outbound queue of every
// user in broadcastTo. Every recipient's copy carries the identical timestamp
// field alongside the caller-supplied data fields. FIFO order within each
// recipient's queue is preserved across successive broadcasts.
func (cu *ConnectedUsers) BroadcastToList(broadcastTo []*User, msgType MessageType, data Fields) {
	timestamp := time.Now().UnixMilli()

	for _, user := range broadcastTo {
		payload := make(Fields, len(data)+1)
		payload[FieldTimestamp] = timestamp
		for key, value := range data {
			payload[key] = value
		}

		user.Enqueue(QueuedMessage{Type: msgType, Payload: payload})
	}
}

// CheckChatFlood returns a typed rejection when user is chatting faster than
// the flood limit allows.
func (cu *ConnectedUsers) CheckChatFlood(user *User) *errs.CustomError {
	if !user.CheckChatFlood() {
		return errs.NewError(errs.ErrChatFlood)
	}
	return nil
}

// NopGeoResolver is a GeoResolver that resolves nothing. Used when no
// geolocation endpoint is configured.
type NopGeoResolver struct{}

// Resolve always returns no location and no error.
func (NopGeoResolver) Resolve(ctx context.Context, hostname string) (*GeoInfo, error) {
	return nil, nil
}

// NopTelemetry is a Telemetry sink that discards all events. Used when no
// telemetry store is configured.
type NopTelemetry struct{}

// UserConnect discards the event.
func (NopTelemetry) UserConnect(ctx context.Context, persistentID, sessionID string, geo *GeoInfo, meta ClientMetadata) {
}

// UserDisconnect discards the event.
func (NopTelemetry) UserDisconnect(ctx context.Context, sessionID string) {}
