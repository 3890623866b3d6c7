package store

import (
	"context"
	"sync"
	"time"

	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"

	"verity/internal/verification/models"
)

// InMemoryRecordStore keeps records in a map. It favors clarity over
// performance and backs unit tests and single-process deployments.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[id.VerificationID]*models.VerificationRecord
}

// NewInMemoryRecordStore creates an empty in-memory record store.
func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{records: make(map[id.VerificationID]*models.VerificationRecord)}
}

func (s *InMemoryRecordStore) Create(ctx context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "verification record %s already exists", record.ID)
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryRecordStore) Save(ctx context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := record.Clone()
	if existing, ok := s.records[record.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.UpdatedAt = requestcontext.Now(ctx)
	s.records[record.ID] = stored

	// Callers observe the refreshed timestamp too.
	record.CreatedAt = stored.CreatedAt
	record.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *InMemoryRecordStore) FindByID(ctx context.Context, recordID id.VerificationID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[recordID]; ok {
		return record.Clone(), nil
	}
	return nil, ErrNotFound
}

// DeleteOlderThan removes records created before the cutoff and returns how
// many were reaped.
func (s *InMemoryRecordStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int
	for recordID, record := range s.records {
		if record.CreatedAt.Before(cutoff) {
			delete(s.records, recordID)
			deleted++
		}
	}
	return deleted, nil
}
