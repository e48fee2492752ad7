// Package storage persists scan records so explanations can be requested later.
package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"smishguard/internal/domain/models"
)

// ErrNotFound is returned by Load when no record exists for the id
var ErrNotFound = errors.New("scan not found")

// prepare assigns a fresh identifier and creation time to a record about to be saved
func prepare(record *models.ScanRecord) {
	record.ID = uuid.NewString()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}

// parseID rejects ids that are not UUIDs. They can never have been issued by Save.
func parseID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}
