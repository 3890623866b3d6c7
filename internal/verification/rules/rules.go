// Package rules holds the per-document-type validation rule set.
// This is pure domain logic - no I/O, no side effects. The functions receive
// everything they need as arguments so the rules stay centralized and
// testable.
package rules

import (
	"regexp"
	"strings"
	"time"

	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"

	"verity/internal/verification/models"
)

// Normalized field names produced by the document step.
const (
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldDateOfBirth    = "date_of_birth"
	FieldExpirationDate = "expiration_date"
	FieldPassportNumber = "passport_number"
	FieldNationality    = "nationality"
	FieldLicenseNumber  = "license_number"
	FieldState          = "state"
	FieldIDNumber       = "id_number"
)

// commonFields are required for every document type.
var commonFields = []string{
	FieldFirstName,
	FieldLastName,
	FieldDateOfBirth,
	FieldExpirationDate,
}

// extraFields are the type-specific required fields, in reporting order.
var extraFields = map[id.DocumentType][]string{
	id.DocumentTypePassport:       {FieldPassportNumber, FieldNationality},
	id.DocumentTypeDriversLicense: {FieldLicenseNumber, FieldState},
	id.DocumentTypeIDCard:         {FieldIDNumber},
}

var passportNumberPattern = regexp.MustCompile(`^[A-Z0-9]{6,9}$`)

// expiryLayouts are tried in order when parsing the expiration date. An
// unparseable date skips the expiry check rather than failing it.
var expiryLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
	time.RFC3339,
}

// RequiredFields returns the ordered required field list for a document type.
func RequiredFields(documentType id.DocumentType) []string {
	fields := make([]string, 0, len(commonFields)+2)
	fields = append(fields, commonFields...)
	fields = append(fields, extraFields[documentType]...)
	return fields
}

// Validate applies the rule chain to the extracted fields.
// Rule priority (fail-fast):
//  1. Missing required fields, all reported at once
//  2. Expiration date strictly before now
//  3. Type-specific document number format
func Validate(documentType id.DocumentType, fields map[string]models.FieldValue, now time.Time) error {
	if missing := missingFields(documentType, fields); len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeValidation, "Missing required fields: %s", strings.Join(missing, ", "))
	}
	if expired(fields, now) {
		return dErrors.New(dErrors.CodeValidation, "Document has expired")
	}
	return validateFormat(documentType, fields)
}

// ConfidenceScore is the arithmetic mean of per-field extraction confidences,
// 0 when no fields were extracted.
func ConfidenceScore(fields map[string]models.FieldValue) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	return sum / float64(len(fields))
}

// missingFields returns the required fields that are absent or empty, in
// declaration order. A field is present only if it has a non-empty value.
func missingFields(documentType id.DocumentType, fields map[string]models.FieldValue) []string {
	var missing []string
	for _, name := range RequiredFields(documentType) {
		if f, ok := fields[name]; !ok || f.Value == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func expired(fields map[string]models.FieldValue, now time.Time) bool {
	raw := fields[FieldExpirationDate].Value
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Before(now)
		}
	}
	return false
}

// validateFormat checks the type-specific document number. Unknown document
// types pass trivially.
func validateFormat(documentType id.DocumentType, fields map[string]models.FieldValue) error {
	switch documentType {
	case id.DocumentTypePassport:
		if !passportNumberPattern.MatchString(fields[FieldPassportNumber].Value) {
			return dErrors.New(dErrors.CodeValidation, "Invalid passport number format")
		}
	case id.DocumentTypeDriversLicense:
		if len(fields[FieldLicenseNumber].Value) < 5 {
			return dErrors.New(dErrors.CodeValidation, "Invalid license number format")
		}
	case id.DocumentTypeIDCard:
		if len(fields[FieldIDNumber].Value) < 5 {
			return dErrors.New(dErrors.CodeValidation, "Invalid ID number format")
		}
	}
	return nil
}
