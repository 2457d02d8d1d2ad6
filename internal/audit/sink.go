package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	insertRecordQuery = `
		INSERT INTO audit_events (
			id, event_type, result, actor_id, route, policy,
			ip_address, user_agent, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	errFailedInsertRecordFmt = "failed to insert audit record: %w"
)

// PostgresSink appends records to the audit_events table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Write(ctx context.Context, r *Record) error {
	_, err := s.pool.Exec(ctx, insertRecordQuery,
		r.ID,
		r.EventType,
		r.Result,
		r.ActorID,
		r.Route,
		r.Policy,
		r.IPAddress,
		r.UserAgent,
		r.RequestID,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf(errFailedInsertRecordFmt, err)
	}
	return nil
}

// LogSink writes records as structured log lines. Used when there is no
// postgres database to hold the trail.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(_ context.Context, r *Record) error {
	ev := s.log.Info().
		Str("audit_id", r.ID.String()).
		Str("event_type", r.EventType).
		Str("result", r.Result).
		Str("route", r.Route).
		Str("ip_address", r.IPAddress).
		Str("request_id", r.RequestID).
		Time("created_at", r.CreatedAt)
	if r.Policy != "" {
		ev = ev.Str("policy", r.Policy)
	}
	if r.ActorID != nil {
		ev = ev.Str("actor_id", r.ActorID.String())
	}
	ev.Msg("audit")
	return nil
}
