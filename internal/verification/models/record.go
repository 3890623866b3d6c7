// Package models holds the verification aggregate and its state machine.
package models

import (
	"time"

	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
)

// Status is the lifecycle state of a verification record.
type Status string

const (
	// StatusPending exists only between construction and the first persist;
	// callers never observe it.
	StatusPending Status = "pending"
	// StatusInProgress means the document step has started.
	StatusInProgress Status = "in_progress"
	// StatusCompleted is terminal: both steps passed.
	StatusCompleted Status = "completed"
	// StatusFailed is terminal: some step rejected the submission.
	StatusFailed Status = "failed"
)

// CanTransitionTo encodes the one-directional state machine. Terminal states
// allow no further transitions.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FieldValue is one extracted document field: the normalized value and the
// extraction confidence on a 0-100 scale.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FaceMatchResult is the stored outcome of the face comparison.
type FaceMatchResult struct {
	IsMatch    bool           `json:"is_match"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
}

// VerificationRecord is the unit of work tracking one user's document and
// face verification attempt.
//
// Invariants:
//   - Status transitions are monotonic; completed and failed are terminal
//   - DocumentData and ConfidenceScore are never mutated after the document
//     step finishes (success or failure)
//   - FaceMatch is populated only after DocumentData was populated
//   - CreatedAt is immutable; UpdatedAt bumps on every persisted mutation
type VerificationRecord struct {
	ID               id.VerificationID     `json:"id"`
	UserID           id.UserID             `json:"user_id"`
	DocumentType     id.DocumentType       `json:"document_type"`
	Status           Status                `json:"status"`
	DocumentData     map[string]FieldValue `json:"document_data,omitempty"`
	DocumentImageRef string                `json:"document_image_ref,omitempty"`
	SelfieImageRef   string                `json:"selfie_image_ref,omitempty"`
	FaceMatch        *FaceMatchResult      `json:"face_match_result,omitempty"`
	ConfidenceScore  float64               `json:"confidence_score"`
	FailureReason    string                `json:"failure_reason,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// NewVerificationRecord constructs a pending record, enforcing the user id
// shape and the document type enumeration.
func NewVerificationRecord(recordID id.VerificationID, userID id.UserID, documentType id.DocumentType, now time.Time) (*VerificationRecord, error) {
	if err := userID.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id")
	}
	if !documentType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported document type: %s", documentType)
	}
	return &VerificationRecord{
		ID:           recordID,
		UserID:       userID,
		DocumentType: documentType,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// MarkInProgress transitions the record into the document stage.
func (r *VerificationRecord) MarkInProgress(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusInProgress) {
		return dErrors.Newf(dErrors.CodeConflict, "cannot start verification in status %s", r.Status)
	}
	r.Status = StatusInProgress
	r.UpdatedAt = now
	return nil
}

// ApplyDocumentResult stores the extracted fields and confidence score.
// Only valid while the record is in progress and the document step has not
// already produced data.
func (r *VerificationRecord) ApplyDocumentResult(fields map[string]FieldValue, score float64, now time.Time) error {
	if r.Status != StatusInProgress {
		return dErrors.Newf(dErrors.CodeConflict, "cannot store document data in status %s", r.Status)
	}
	if r.DocumentData != nil {
		return dErrors.New(dErrors.CodeConflict, "document data already recorded")
	}
	r.DocumentData = fields
	r.ConfidenceScore = score
	r.UpdatedAt = now
	return nil
}

// ApplyFaceMatch stores the face comparison outcome. Requires document data
// to have been recorded first.
func (r *VerificationRecord) ApplyFaceMatch(result *FaceMatchResult, now time.Time) error {
	if r.Status != StatusInProgress {
		return dErrors.Newf(dErrors.CodeConflict, "cannot store face match in status %s", r.Status)
	}
	if r.DocumentData == nil {
		return dErrors.New(dErrors.CodeConflict, "face match requires validated document data")
	}
	r.FaceMatch = result
	r.UpdatedAt = now
	return nil
}

// MarkCompleted transitions the record to its successful terminal state.
func (r *VerificationRecord) MarkCompleted(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusCompleted) {
		return dErrors.Newf(dErrors.CodeConflict, "cannot complete verification in status %s", r.Status)
	}
	r.Status = StatusCompleted
	r.UpdatedAt = now
	return nil
}

// MarkFailed transitions the record to its failed terminal state with the
// reason callers will see.
func (r *VerificationRecord) MarkFailed(reason string, now time.Time) error {
	if !r.Status.CanTransitionTo(StatusFailed) {
		return dErrors.Newf(dErrors.CodeConflict, "cannot fail verification in status %s", r.Status)
	}
	r.Status = StatusFailed
	r.FailureReason = reason
	r.UpdatedAt = now
	return nil
}

// Clone returns a deep copy so stores never alias caller-held records.
func (r *VerificationRecord) Clone() *VerificationRecord {
	cp := *r
	if r.DocumentData != nil {
		cp.DocumentData = make(map[string]FieldValue, len(r.DocumentData))
		for k, v := range r.DocumentData {
			cp.DocumentData[k] = v
		}
	}
	if r.FaceMatch != nil {
		fm := *r.FaceMatch
		if r.FaceMatch.Details != nil {
			fm.Details = make(map[string]any, len(r.FaceMatch.Details))
			for k, v := range r.FaceMatch.Details {
				fm.Details[k] = v
			}
		}
		cp.FaceMatch = &fm
	}
	return &cp
}
