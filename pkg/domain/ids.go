// Package domain holds shared domain primitives: typed identifiers and the
// document-type enumeration. Keeping them here avoids import cycles between
// the verification, audit, and retention modules.
package domain

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// VerificationID identifies one verification attempt. Generated at creation,
// immutable afterwards.
type VerificationID uuid.UUID

// NewVerificationID generates a random verification id.
func NewVerificationID() VerificationID {
	return VerificationID(uuid.New())
}

// ParseVerificationID validates and returns a VerificationID.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return VerificationID{}, fmt.Errorf("invalid verification id: %w", err)
	}
	return VerificationID(u), nil
}

func (v VerificationID) String() string {
	return uuid.UUID(v).String()
}

// IsNil returns true for the zero id.
func (v VerificationID) IsNil() bool {
	return uuid.UUID(v) == uuid.Nil
}

// MarshalText renders the id in canonical uuid form so JSON payloads carry
// the string rather than the raw byte array.
func (v VerificationID) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses the canonical uuid form.
func (v *VerificationID) UnmarshalText(data []byte) error {
	parsed, err := ParseVerificationID(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UserID is the caller-supplied subject identifier. It is opaque to this
// service beyond the shape constraints below.
type UserID string

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate enforces the user id shape: 3-50 chars of [A-Za-z0-9_-].
func (u UserID) Validate() error {
	if len(u) < 3 || len(u) > 50 {
		return fmt.Errorf("user id must be 3-50 characters")
	}
	if !userIDPattern.MatchString(string(u)) {
		return fmt.Errorf("user id contains invalid characters")
	}
	return nil
}

func (u UserID) String() string {
	return string(u)
}

// DocumentType enumerates the identity documents the service can verify.
type DocumentType string

const (
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeDriversLicense DocumentType = "drivers_license"
	DocumentTypeIDCard         DocumentType = "id_card"
)

// ParseDocumentType validates and returns a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown document type: %s", s)
	}
	return t, nil
}

// IsValid reports whether the document type is one of the supported values.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePassport, DocumentTypeDriversLicense, DocumentTypeIDCard:
		return true
	}
	return false
}

func (t DocumentType) String() string {
	return string(t)
}
