package handler

import (
	"net"
	"net/http"
	"sync"

	"partydeck/internal/app/presence"
	"partydeck/internal/configs"
	"partydeck/internal/pkg/auth/jwt"
	"partydeck/internal/pkg/errs"
)

// AppDeps bundles the shared dependencies handlers need.
type AppDeps struct {
	Registry *presence.ConnectedUsers
	Config   *configs.AppConfig

	// bannedHosts starts from the config ban list and grows at runtime when
	// an admin bans a user. banMu guards it; adminHosts is read-only after
	// construction.
	banMu       sync.RWMutex
	bannedHosts map[string]struct{}
	adminHosts  map[string]struct{}
}

// NewAppDeps builds the handler dependency bundle from the loaded configuration.
func NewAppDeps(registry *presence.ConnectedUsers, cfg *configs.AppConfig) *AppDeps {
	banned := make(map[string]struct{}, len(cfg.BannedHosts))
	for _, host := range cfg.BannedHosts {
		banned[host] = struct{}{}
	}

	admins := make(map[string]struct{}, len(cfg.AdminHosts))
	for _, host := range cfg.AdminHosts {
		admins[host] = struct{}{}
	}

	return &AppDeps{
		Registry:    registry,
		Config:      cfg,
		bannedHosts: banned,
		adminHosts:  admins,
	}
}

// IsBanned reports whether the host is on the ban list.
func (d *AppDeps) IsBanned(host string) bool {
	d.banMu.RLock()
	defer d.banMu.RUnlock()
	_, ok := d.bannedHosts[host]
	return ok
}

// BanHost adds the host to the ban list. New registrations from it are
// rejected until the server restarts with a config not listing it.
func (d *AppDeps) BanHost(host string) {
	d.banMu.Lock()
	defer d.banMu.Unlock()
	d.bannedHosts[host] = struct{}{}
}

// IsAdminHost reports whether connections from the host get admin privileges.
func (d *AppDeps) IsAdminHost(host string) bool {
	_, ok := d.adminHosts[host]
	return ok
}

// clientHost extracts the client host from the request. The RealIP middleware
// has already rewritten RemoteAddr when the request came through a proxy.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown_host"
	}
	return host
}

// resolveSessionUser maps the request's session token to the live registry
// entry. It enforces the stale-session contract: a token whose user is gone,
// replaced, or marked invalid is rejected, and the client must register again.
// On success the user's lastHeardFrom timestamp is bumped, since every routed
// request counts as contact.
func resolveSessionUser(deps *AppDeps, r *http.Request) (*presence.User, *errs.CustomError) {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		return nil, errs.NewError(errs.ErrNoSession)
	}

	user := deps.Registry.GetUser(payload.Nickname)
	if user == nil || user.SessionID() != payload.SessionID || !user.IsValid() {
		return nil, errs.NewError(errs.ErrSessionStale)
	}

	user.ContactedServer()

	return user, nil
}
