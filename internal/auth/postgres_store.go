package auth

import (
	"context"
	"errors"
	"fmt"

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

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByKeyHash(ctx context.Context, keyHash string) (*APIKeyRecord, error) {
	query := `
		SELECT id, api_key_hash, key_prefix, team_id, team_name, rate_limit_rpm, is_active, created_at, expires_at
		FROM api_keys
		WHERE api_key_hash = $1
	`

	var rec APIKeyRecord
	err := s.db.QueryRow(ctx, query, keyHash).Scan(
		&rec.ID, &rec.KeyHash, &rec.KeyPrefix, &rec.TeamID, &rec.TeamName,
		&rec.RateLimitRPM, &rec.Active, &rec.CreatedAt, &rec.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, record *APIKeyRecord) error {
	if record.KeyHash == "" {
		return fmt.Errorf("key hash is required")
	}

	query := `
		INSERT INTO api_keys (api_key_hash, key_prefix, team_id, team_name, rate_limit_rpm, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := s.db.QueryRow(ctx, query,
		record.KeyHash, record.KeyPrefix, record.TeamID, record.TeamName,
		record.RateLimitRPM, record.Active, record.ExpiresAt,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*APIKeyRecord, error) {
	query := `
		SELECT id, api_key_hash, key_prefix, team_id, team_name, rate_limit_rpm, is_active, created_at, expires_at
		FROM api_keys
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var records []*APIKeyRecord
	for rows.Next() {
		var rec APIKeyRecord
		err := rows.Scan(
			&rec.ID, &rec.KeyHash, &rec.KeyPrefix, &rec.TeamID, &rec.TeamName,
			&rec.RateLimitRPM, &rec.Active, &rec.CreatedAt, &rec.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, keyID string) error {
	query := `UPDATE api_keys SET is_active = false WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, keyID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}

	return nil
}
