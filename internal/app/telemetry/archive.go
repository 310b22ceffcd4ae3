/*
Package telemetry records connect and disconnect events for connected users.

This file defines the Archiver struct, which periodically exports telemetry
event batches as JSON documents to S3-compatible object storage, so the
Postgres tables can be pruned without losing history.
*/
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"partydeck/internal/pkg/logx"
)

// ArchiveConfig holds the settings for the S3-compatible event archive.
type ArchiveConfig struct {
	BucketName      string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Interval        time.Duration
}

// archivedEvent is one exported telemetry row.
type archivedEvent struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	SessionID  string    `json:"sessionId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Archiver exports telemetry events to object storage on a fixed interval.
type Archiver struct {
	cfg      ArchiveConfig
	pool     *pgxpool.Pool
	uploader *manager.Uploader

	// lastConnectID and lastDisconnectID track the export high-water mark per
	// table, so each run only uploads new rows.
	lastConnectID    int64
	lastDisconnectID int64

	logger zerolog.Logger
}

// NewArchiver initializes the S3 client using a custom configuration that
// supports S3-compatible endpoints, and returns an archiver reading from pool.
func NewArchiver(cfg ArchiveConfig, pool *pgxpool.Pool) (*Archiver, error) {
	sdkCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, errors.New("failed to initialize archive client configuration")
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	archiverLogger := logx.Logger().With().Str("component", "Archiver").Logger()

	return &Archiver{
		cfg:      cfg,
		pool:     pool,
		uploader: manager.NewUploader(client),
		logger:   archiverLogger,
	}, nil
}

// Run exports pending events every configured interval until ctx is cancelled.
// It blocks; callers start it on its own goroutine.
func (a *Archiver) Run(ctx context.Context) {
	a.logger.Info().
		Dur("interval", a.cfg.Interval).
		Str("bucket", a.cfg.BucketName).
		Msg("Event archiver started.")

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Event archiver stopped.")
			return
		case <-ticker.C:
			if err := a.exportOnce(ctx); err != nil {
				a.logger.Error().Err(err).Msg("Event export failed.")
			}
		}
	}
}

// exportOnce uploads every connect and disconnect event newer than the
// current high-water marks.
func (a *Archiver) exportOnce(ctx context.Context) error {
	connects, maxConnectID, err := a.fetchEvents(ctx,
		`SELECT id, session_id, connected_at FROM connect_events WHERE id > $1 ORDER BY id`,
		a.lastConnectID, "connect")
	if err != nil {
		return err
	}

	disconnects, maxDisconnectID, err := a.fetchEvents(ctx,
		`SELECT id, session_id, disconnected_at FROM disconnect_events WHERE id > $1 ORDER BY id`,
		a.lastDisconnectID, "disconnect")
	if err != nil {
		return err
	}

	events := append(connects, disconnects...)
	if len(events) == 0 {
		return nil
	}

	if err := a.upload(ctx, events); err != nil {
		return err
	}

	// Only advance the marks once the batch is durably stored.
	a.lastConnectID = maxConnectID
	a.lastDisconnectID = maxDisconnectID

	a.logger.Info().
		Int("events", len(events)).
		Msg("Exported telemetry events.")

	return nil
}

// fetchEvents reads rows newer than afterID and returns them with the highest
// ID seen.
func (a *Archiver) fetchEvents(ctx context.Context, query string, afterID int64, kind string) ([]archivedEvent, int64, error) {
	rows, err := a.pool.Query(ctx, query, afterID)
	if err != nil {
		return nil, afterID, fmt.Errorf("failed to query %s events: %w", kind, err)
	}
	defer rows.Close()

	var events []archivedEvent
	maxID := afterID
	for rows.Next() {
		e := archivedEvent{Kind: kind}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.OccurredAt); err != nil {
			return nil, afterID, fmt.Errorf("failed to scan %s event: %w", kind, err)
		}
		if e.ID > maxID {
			maxID = e.ID
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, afterID, fmt.Errorf("failed to read %s events: %w", kind, err)
	}

	return events, maxID, nil
}

// upload stores one batch as a newline-delimited JSON object timestamped by
// export time.
func (a *Archiver) upload(ctx context.Context, events []archivedEvent) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, e := range events {
		if err := encoder.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event %d: %w", e.ID, err)
		}
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("telemetry/%s/events-%d.ndjson", now.Format("2006/01/02"), now.UnixMilli())

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.BucketName),
		Key:         aws.String(key),
		Body:        &buf,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload event batch: %w", err)
	}

	return nil
}
