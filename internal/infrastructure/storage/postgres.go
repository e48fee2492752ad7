package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"smishguard/internal/domain/models"
	"smishguard/internal/infrastructure/database"
	"smishguard/pkg/logger"
)

// PostgresStore keeps scan records as JSONB rows in scan_records
type PostgresStore struct {
	db     database.DBTX
	logger *logger.Logger
}

// NewPostgresStore creates a store over a migrated database
func NewPostgresStore(db database.DBTX, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithComponent("postgres-store"),
	}
}

// Save inserts the record under a new id
func (s *PostgresStore) Save(ctx context.Context, record *models.ScanRecord) (string, error) {
	prepare(record)

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal scan: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO scan_records (id, record, created_at)
		VALUES ($1, $2, $3)
	`, record.ID, data, record.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert scan: %w", err)
	}

	s.logger.Debug().Str("scan_id", record.ID).Msg("scan saved")
	return record.ID, nil
}

// Load fetches a record by id
func (s *PostgresStore) Load(ctx context.Context, id string) (*models.ScanRecord, error) {
	parsed, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("scan %q: %w", id, ErrNotFound)
	}

	var data []byte
	err := s.db.QueryRow(ctx, `SELECT record FROM scan_records WHERE id = $1`, parsed.String()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scan: %w", err)
	}

	var record models.ScanRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode scan %s: %w", id, err)
	}
	return &record, nil
}
