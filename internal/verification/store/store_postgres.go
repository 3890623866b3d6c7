package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "verity/pkg/domain"
	"verity/pkg/requestcontext"

	"verity/internal/verification/models"
)

// PostgresRecordStore persists records in PostgreSQL. Document data and face
// match details live in JSONB columns since their shape varies by document
// type.
type PostgresRecordStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRecordStore constructs a PostgreSQL-backed record store.
func NewPostgresRecordStore(pool *pgxpool.Pool) *PostgresRecordStore {
	return &PostgresRecordStore{pool: pool}
}

// Migrate creates the backing table when absent.
func (s *PostgresRecordStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS verification_records (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			document_type TEXT NOT NULL,
			status TEXT NOT NULL,
			document_data JSONB,
			document_image_ref TEXT NOT NULL DEFAULT '',
			selfie_image_ref TEXT NOT NULL DEFAULT '',
			face_match JSONB,
			confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate verification_records: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) Create(ctx context.Context, record *models.VerificationRecord) error {
	documentData, faceMatch, err := marshalJSONColumns(record)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO verification_records
			(id, user_id, document_type, status, document_data, document_image_ref,
			 selfie_image_ref, face_match, confidence_score, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID.String(), record.UserID.String(), record.DocumentType.String(), string(record.Status),
		documentData, record.DocumentImageRef, record.SelfieImageRef, faceMatch,
		record.ConfidenceScore, record.FailureReason, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create verification record: %w", err)
	}
	return nil
}

// Save upserts the record. created_at is never overwritten on conflict;
// updated_at refreshes on every write.
func (s *PostgresRecordStore) Save(ctx context.Context, record *models.VerificationRecord) error {
	documentData, faceMatch, err := marshalJSONColumns(record)
	if err != nil {
		return err
	}
	record.UpdatedAt = requestcontext.Now(ctx)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO verification_records
			(id, user_id, document_type, status, document_data, document_image_ref,
			 selfie_image_ref, face_match, confidence_score, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			document_data = EXCLUDED.document_data,
			document_image_ref = EXCLUDED.document_image_ref,
			selfie_image_ref = EXCLUDED.selfie_image_ref,
			face_match = EXCLUDED.face_match,
			confidence_score = EXCLUDED.confidence_score,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at`,
		record.ID.String(), record.UserID.String(), record.DocumentType.String(), string(record.Status),
		documentData, record.DocumentImageRef, record.SelfieImageRef, faceMatch,
		record.ConfidenceScore, record.FailureReason, record.CreatedAt, record.UpdatedAt,
	)
	if err := row.Scan(&record.CreatedAt); err != nil {
		return fmt.Errorf("save verification record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) FindByID(ctx context.Context, recordID id.VerificationID) (*models.VerificationRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, document_type, status, document_data, document_image_ref,
		       selfie_image_ref, face_match, confidence_score, failure_reason, created_at, updated_at
		FROM verification_records WHERE id = $1`, recordID.String())

	var (
		record       models.VerificationRecord
		rawID        string
		userID       string
		documentType string
		status       string
		documentData []byte
		faceMatch    []byte
	)
	err := row.Scan(&rawID, &userID, &documentType, &status, &documentData,
		&record.DocumentImageRef, &record.SelfieImageRef, &faceMatch,
		&record.ConfidenceScore, &record.FailureReason, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find verification record: %w", err)
	}

	parsedID, err := id.ParseVerificationID(rawID)
	if err != nil {
		return nil, err
	}
	record.ID = parsedID
	record.UserID = id.UserID(userID)
	record.DocumentType = id.DocumentType(documentType)
	record.Status = models.Status(status)

	if len(documentData) > 0 {
		if err := json.Unmarshal(documentData, &record.DocumentData); err != nil {
			return nil, fmt.Errorf("unmarshal document data: %w", err)
		}
	}
	if len(faceMatch) > 0 {
		if err := json.Unmarshal(faceMatch, &record.FaceMatch); err != nil {
			return nil, fmt.Errorf("unmarshal face match: %w", err)
		}
	}
	return &record, nil
}

// DeleteOlderThan removes records created before the cutoff.
func (s *PostgresRecordStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verification_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired verification records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func marshalJSONColumns(record *models.VerificationRecord) ([]byte, []byte, error) {
	var documentData, faceMatch []byte
	var err error
	if record.DocumentData != nil {
		if documentData, err = json.Marshal(record.DocumentData); err != nil {
			return nil, nil, fmt.Errorf("marshal document data: %w", err)
		}
	}
	if record.FaceMatch != nil {
		if faceMatch, err = json.Marshal(record.FaceMatch); err != nil {
			return nil, nil, fmt.Errorf("marshal face match: %w", err)
		}
	}
	return documentData, faceMatch, nil
}
