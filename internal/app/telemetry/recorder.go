/*
Package telemetry records connect and disconnect events for connected users.

This file defines the PGRecorder struct, the Postgres-backed implementation of
the registry's Telemetry interface. Recording failures are logged and never
propagated: losing a telemetry row must not affect admission or removal.
*/
package telemetry

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"partydeck/internal/app/db"
	"partydeck/internal/app/presence"
	"partydeck/internal/pkg/logx"
)

// PGRecorder writes connect/disconnect events to PostgreSQL.
type PGRecorder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPGRecorder constructs a recorder on top of an initialized connection pool.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	recorderLogger := logx.Logger().With().Str("component", "Telemetry").Logger()

	return &PGRecorder{
		pool:   pool,
		logger: recorderLogger,
	}
}

// UserConnect records one connect event. geo may be nil when resolution failed
// or is disabled; the row is written with null location columns in that case.
func (r *PGRecorder) UserConnect(ctx context.Context, persistentID, sessionID string, geo *presence.GeoInfo, meta presence.ClientMetadata) {
	var country, region, city *string
	var latitude, longitude *float64
	if geo != nil {
		country, region, city = &geo.Country, &geo.Region, &geo.City
		latitude, longitude = &geo.Latitude, &geo.Longitude
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO connect_events
			(session_id, persistent_id, country, region, city, latitude, longitude,
			 agent_name, agent_type, agent_os, agent_language)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sessionID, persistentID, country, region, city, latitude, longitude,
		meta.AgentName, meta.AgentType, meta.AgentOS, meta.AgentLanguage,
	)

	if err != nil {
		if db.IsUniqueViolation(err) {
			r.logger.Warn().
				Str("session_id", sessionID).
				Msg("Duplicate connect event for session, skipping.")
			return
		}

		r.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to record connect event.")
	}
}

// UserDisconnect records one disconnect event for the session.
func (r *PGRecorder) UserDisconnect(ctx context.Context, sessionID string) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO disconnect_events (session_id) VALUES ($1)`,
		sessionID,
	)

	if err != nil {
		r.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to record disconnect event.")
	}
}
