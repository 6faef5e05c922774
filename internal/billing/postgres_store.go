package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, event *UsageEvent) error {
	query := `
		INSERT INTO usage_events (team_id, request_id, date, model, input_tokens, output_tokens, cost_micro_usd, latency_ms, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		event.TeamID, event.RequestID, event.Date, event.Model,
		event.InputTokens, event.OutputTokens, int64(event.CostMicroUSD),
		event.LatencyMs, event.ExpiresAt,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListRange(ctx context.Context, teamID string, from, to time.Time) ([]*UsageEvent, error) {
	query := `
		SELECT id, team_id, request_id, date, model, input_tokens, output_tokens, cost_micro_usd, latency_ms, created_at, expires_at
		FROM usage_events
		WHERE team_id = $1 AND created_at BETWEEN $2 AND $3 AND expires_at > now()
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, teamID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()

	var events []*UsageEvent
	for rows.Next() {
		var e UsageEvent
		var cost int64
		err := rows.Scan(
			&e.ID, &e.TeamID, &e.RequestID, &e.Date, &e.Model,
			&e.InputTokens, &e.OutputTokens, &cost, &e.LatencyMs,
			&e.CreatedAt, &e.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		e.CostMicroUSD = MicroUSD(cost)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage events: %w", err)
	}

	return events, nil
}

// DeleteExpired removes events past their retention window. Postgres has
// no native TTL, so the worker sweeps on a schedule.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM usage_events WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired usage events: %w", err)
	}
	return tag.RowsAffected(), nil
}
