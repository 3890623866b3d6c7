package audit

import (
	"time"

	id "verity/pkg/domain"
)

// Actions recorded across the verification lifecycle.
const (
	ActionVerificationStarted   = "verification_started"
	ActionDocumentVerified      = "document_verified"
	ActionFaceVerified          = "face_verified"
	ActionVerificationCompleted = "verification_completed"
	ActionVerificationFailed    = "verification_failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time         `json:"timestamp"`
	UserID         id.UserID         `json:"user_id"`
	VerificationID id.VerificationID `json:"verification_id"`
	Action         string            `json:"action"`
	Stage          string            `json:"stage,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}
