/*
Package telemetry records connect and disconnect events for connected users.

This file defines the HTTPGeoResolver struct, which resolves client hostnames
to approximate locations through an external HTTP geolocation endpoint.
Results are held in a bounded TTL cache so repeat connections from the same
host do not hit the endpoint again.
*/
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"partydeck/internal/app/presence"
	"partydeck/internal/pkg/cache"
	"partydeck/internal/pkg/logx"
)

const (
	// geoCacheSize bounds the number of cached locations.
	geoCacheSize = 4096

	// geoCacheTTL is how long a resolved location stays cached.
	geoCacheTTL = 6 * time.Hour
)

// HTTPGeoResolver resolves hostnames to locations via an HTTP endpoint that
// answers GET <endpoint>?ip=<addr> with a JSON GeoInfo document.
type HTTPGeoResolver struct {
	endpoint string
	client   *http.Client
	cache    *cache.TTLCache[presence.GeoInfo]
	logger   zerolog.Logger
}

// NewHTTPGeoResolver constructs a resolver for the given endpoint URL.
func NewHTTPGeoResolver(endpoint string) *HTTPGeoResolver {
	resolverLogger := logx.Logger().With().Str("component", "GeoResolver").Logger()

	return &HTTPGeoResolver{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		cache:  cache.NewTTL[presence.GeoInfo](geoCacheSize, geoCacheTTL),
		logger: resolverLogger,
	}
}

// Resolve looks up hostname and queries the geolocation endpoint for its
// address. Lookup failures surface as errors for the caller to log; the
// registry treats them as non-fatal.
func (g *HTTPGeoResolver) Resolve(ctx context.Context, hostname string) (*presence.GeoInfo, error) {
	addrs, err := net.DefaultResolver.LookupIP(ctx, "ip", hostname)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve address for hostname %q: %w", hostname, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for hostname %q", hostname)
	}

	ip := addrs[0].String()

	if cached, ok := g.cache.Get(ip); ok {
		return &cached, nil
	}

	info, err := g.query(ctx, ip)
	if err != nil {
		return nil, err
	}

	g.cache.Set(ip, *info)

	return info, nil
}

// query fetches the location document for one IP from the endpoint.
func (g *HTTPGeoResolver) query(ctx context.Context, ip string) (*presence.GeoInfo, error) {
	reqURL := fmt.Sprintf("%s?ip=%s", g.endpoint, url.QueryEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geolocation request: %w", err)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation endpoint returned status %d", res.StatusCode)
	}

	var info presence.GeoInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	g.logger.Debug().
		Str("ip", ip).
		Str("country", info.Country).
		Msg("Resolved client location.")

	return &info, nil
}
