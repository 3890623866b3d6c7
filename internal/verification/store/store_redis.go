package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"

	"verity/internal/verification/models"
)

const recordKeyPrefix = "verification:"

// RedisRecordStore persists records as JSON values in Redis. Recommended for
// multi-instance deployments where the record must be visible to whichever
// instance handles the follow-up face request.
type RedisRecordStore struct {
	client *redis.Client
}

// NewRedisRecordStore constructs a Redis-backed record store.
func NewRedisRecordStore(client *redis.Client) *RedisRecordStore {
	return &RedisRecordStore{client: client}
}

func recordKey(recordID id.VerificationID) string {
	return recordKeyPrefix + recordID.String()
}

func (s *RedisRecordStore) Create(ctx context.Context, record *models.VerificationRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal verification record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, recordKey(record.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create verification record: %w", err)
	}
	if !ok {
		return dErrors.Newf(dErrors.CodeConflict, "verification record %s already exists", record.ID)
	}
	return nil
}

func (s *RedisRecordStore) Save(ctx context.Context, record *models.VerificationRecord) error {
	// Preserve CreatedAt from the stored copy so repeated saves stay
	// idempotent with respect to creation time.
	if existing, err := s.FindByID(ctx, record.ID); err == nil {
		record.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, ErrNotFound) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return err
	}
	record.UpdatedAt = requestcontext.Now(ctx)

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal verification record: %w", err)
	}
	if err := s.client.Set(ctx, recordKey(record.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save verification record: %w", err)
	}
	return nil
}

func (s *RedisRecordStore) FindByID(ctx context.Context, recordID id.VerificationID) (*models.VerificationRecord, error) {
	payload, err := s.client.Get(ctx, recordKey(recordID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find verification record: %w", err)
	}
	var record models.VerificationRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal verification record: %w", err)
	}
	return &record, nil
}

// DeleteOlderThan scans record keys and removes those created before the
// cutoff. SCAN keeps the operation incremental on large keyspaces.
func (s *RedisRecordStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var deleted int
	iter := s.client.Scan(ctx, 0, recordKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("scan verification record: %w", err)
		}
		var record models.VerificationRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			continue
		}
		if record.CreatedAt.Before(cutoff) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return deleted, fmt.Errorf("delete verification record: %w", err)
			}
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan verification records: %w", err)
	}
	return deleted, nil
}
