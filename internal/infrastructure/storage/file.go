package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

// FileStore keeps one JSON file per scan under a results directory
type FileStore struct {
	dir    string
	logger *logger.Logger
}

// NewFileStore creates the results directory if needed
func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: log.WithComponent("file-store"),
	}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, "scan_"+id+".json")
}

// Save writes the record under a new id. The file appears atomically.
func (s *FileStore) Save(ctx context.Context, record *models.ScanRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prepare(record)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal scan: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".scan-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write scan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close scan file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(record.ID)); err != nil {
		return "", fmt.Errorf("failed to store scan: %w", err)
	}

	s.logger.Debug().Str("scan_id", record.ID).Msg("scan saved")
	return record.ID, nil
}

// Load reads a record by id
func (s *FileStore) Load(ctx context.Context, id string) (*models.ScanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("scan %q: %w", id, ErrNotFound)
	}

	data, err := os.ReadFile(s.path(parsed.String()))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scan: %w", err)
	}

	var record models.ScanRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode scan %s: %w", id, err)
	}
	return &record, nil
}

// Ping verifies the results directory is still reachable
func (s *FileStore) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
