// Package service orchestrates the two-step verification workflow: document
// analysis first, then face match against the stored document image.
package service

import (
	"context"
	"log/slog"
	"time"

	"verity/internal/audit"
	"verity/internal/document"
	"verity/internal/face"
	"verity/internal/verification/metrics"
	"verity/internal/verification/models"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"
)

type RecordStore interface {
	Create(ctx context.Context, record *models.VerificationRecord) error
	Save(ctx context.Context, record *models.VerificationRecord) error
	FindByID(ctx context.Context, recordID id.VerificationID) (*models.VerificationRecord, error)
}

type ImageStore interface {
	Put(ctx context.Context, ref string, data []byte) error
	Get(ctx context.Context, ref string) ([]byte, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service runs verifications through their state machine. It owns persistence
// of records and submitted images; the step packages own the analyzer calls
// and the accept/reject rules.
type Service struct {
	records   RecordStore
	images    ImageStore
	documents *document.Step
	faces     *face.Step

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(records RecordStore, images ImageStore, documents *document.Step, faces *face.Step, opts ...Option) *Service {
	s := &Service{records: records, images: images, documents: documents, faces: faces}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a verification record and runs the document step against the
// submitted document image.
//
// On a document rejection the record lands in failed with the rejection
// reason persisted, and the rejection error is returned alongside the updated
// record so callers can render both.
func (s *Service) Start(ctx context.Context, userID id.UserID, documentType id.DocumentType, documentImage []byte) (*models.VerificationRecord, error) {
	if len(documentImage) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document image must not be empty")
	}
	now := requestcontext.Now(ctx)

	record, err := models.NewVerificationRecord(id.NewVerificationID(), userID, documentType, now)
	if err != nil {
		return nil, err
	}

	docRef := record.ID.String() + "/document"
	if err := s.images.Put(ctx, docRef, documentImage); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document image")
	}
	record.DocumentImageRef = docRef

	if err := record.MarkInProgress(now); err != nil {
		return nil, err
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification record")
	}

	s.metrics.IncrementStarted(documentType.String())
	s.emitAudit(ctx, record, audit.ActionVerificationStarted, "", "")
	s.log(ctx, "verification started",
		"verification_id", record.ID.String(),
		"document_type", documentType.String())

	stepStart := time.Now()
	result, err := s.documents.Verify(ctx, documentType, documentImage)
	s.metrics.ObserveStepLatency("document", time.Since(stepStart))
	if err != nil {
		return record, s.fail(ctx, record, "document", err)
	}

	if err := record.ApplyDocumentResult(result.Fields, result.ConfidenceScore, now); err != nil {
		return record, err
	}
	if err := s.records.Save(ctx, record); err != nil {
		return record, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification record")
	}
	s.emitAudit(ctx, record, audit.ActionDocumentVerified, "document", "")

	return record, nil
}

// ContinueWithFace runs the face step for a record whose document step has
// passed: a liveness check on the selfie, then a face comparison against the
// stored document image.
func (s *Service) ContinueWithFace(ctx context.Context, recordID id.VerificationID, selfie []byte) (*models.VerificationRecord, error) {
	if len(selfie) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "selfie image must not be empty")
	}
	now := requestcontext.Now(ctx)

	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return record, dErrors.Newf(dErrors.CodeConflict, "verification is already %s", record.Status)
	}
	if record.DocumentData == nil {
		return record, dErrors.New(dErrors.CodeConflict, "document verification has not completed")
	}

	selfieRef := record.ID.String() + "/selfie"
	if err := s.images.Put(ctx, selfieRef, selfie); err != nil {
		return record, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store selfie image")
	}
	record.SelfieImageRef = selfieRef

	stepStart := time.Now()
	liveness, err := s.faces.DetectLiveness(ctx, selfie)
	if err != nil {
		s.metrics.ObserveStepLatency("face", time.Since(stepStart))
		return record, s.fail(ctx, record, "face", err)
	}
	if !liveness.IsLive {
		s.metrics.ObserveStepLatency("face", time.Since(stepStart))
		return record, s.fail(ctx, record, "face", dErrors.New(dErrors.CodeValidation, "Liveness check failed"))
	}

	documentImage, err := s.images.Get(ctx, record.DocumentImageRef)
	if err != nil {
		s.metrics.ObserveStepLatency("face", time.Since(stepStart))
		return record, s.fail(ctx, record, "face", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document image"))
	}

	match, err := s.faces.Verify(ctx, documentImage, selfie)
	s.metrics.ObserveStepLatency("face", time.Since(stepStart))
	if err != nil {
		return record, s.fail(ctx, record, "face", err)
	}

	if err := record.ApplyFaceMatch(match, now); err != nil {
		return record, err
	}
	if !match.IsMatch {
		return record, s.fail(ctx, record, "face", dErrors.New(dErrors.CodeValidation, "Face match failed"))
	}

	if err := record.MarkCompleted(now); err != nil {
		return record, err
	}
	if err := s.records.Save(ctx, record); err != nil {
		return record, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification record")
	}

	s.metrics.IncrementCompleted(record.DocumentType.String())
	s.emitAudit(ctx, record, audit.ActionFaceVerified, "face", "")
	s.emitAudit(ctx, record, audit.ActionVerificationCompleted, "", "")
	s.log(ctx, "verification completed",
		"verification_id", record.ID.String(),
		"match_confidence", match.Confidence)

	return record, nil
}

// GetStatus returns the current record for polling clients.
func (s *Service) GetStatus(ctx context.Context, recordID id.VerificationID) (*models.VerificationRecord, error) {
	return s.records.FindByID(ctx, recordID)
}

// fail moves the record into its failed terminal state, persisting the
// rejection reason exactly as the caller will see it, and returns the cause.
func (s *Service) fail(ctx context.Context, record *models.VerificationRecord, stage string, cause error) error {
	now := requestcontext.Now(ctx)
	reason := cause.Error()
	if err := record.MarkFailed(reason, now); err != nil {
		return err
	}
	if err := s.records.Save(ctx, record); err != nil {
		s.log(ctx, "failed to persist failed verification",
			"verification_id", record.ID.String(),
			"error", err)
	}
	s.metrics.IncrementFailed(record.DocumentType.String(), stage)
	s.emitAudit(ctx, record, audit.ActionVerificationFailed, stage, reason)
	s.log(ctx, "verification failed",
		"verification_id", record.ID.String(),
		"stage", stage,
		"reason", reason)
	return cause
}

func (s *Service) emitAudit(ctx context.Context, record *models.VerificationRecord, action, stage, reason string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{
		UserID:         record.UserID,
		VerificationID: record.ID,
		Action:         action,
		Stage:          stage,
		Reason:         reason,
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func (s *Service) log(ctx context.Context, msg string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, attributes...)
	}
}
