// Package store persists verification records. Stores are interface-driven
// so the orchestrator stays testable and persistence can move between
// in-memory, Redis, and Postgres without rewiring business code.
package store

import (
	"context"
	"time"

	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"

	"verity/internal/verification/models"
)

// ErrNotFound keeps store-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "verification record not found")

// RecordStore is the persistence contract for verification records.
//
// Save is idempotent: re-saving the same record is harmless. It preserves
// CreatedAt across updates and refreshes UpdatedAt on every write.
type RecordStore interface {
	Create(ctx context.Context, record *models.VerificationRecord) error
	Save(ctx context.Context, record *models.VerificationRecord) error
	FindByID(ctx context.Context, recordID id.VerificationID) (*models.VerificationRecord, error)
}

// Reaper is the slice of the store the retention worker needs. Kept separate
// from RecordStore because the orchestrator never deletes.
type Reaper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
