// Package document implements the document verification step: analyzer call,
// field normalization, and rule set application.
package document

import (
	"context"
	"strings"

	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"

	"verity/internal/analyzer"
	"verity/internal/verification/models"
	"verity/internal/verification/rules"
)

// Step runs document analysis and validation. It holds the injected analyzer
// capability; there is no ambient client state.
type Step struct {
	analyzer analyzer.DocumentAnalyzer
}

// NewStep builds a document verification step.
func NewStep(docAnalyzer analyzer.DocumentAnalyzer) *Step {
	return &Step{analyzer: docAnalyzer}
}

// Result carries the validated extraction outcome.
type Result struct {
	Fields          map[string]models.FieldValue
	ConfidenceScore float64
}

// Verify analyzes the document image and applies the rule set for the given
// document type. Analyzer transport failures are wrapped into the same
// validation-coded error kind as rule violations, so a transient outage
// terminates the attempt exactly like a rejected document.
func (s *Step) Verify(ctx context.Context, documentType id.DocumentType, image []byte) (*Result, error) {
	doc, err := s.analyzer.AnalyzeIdentityDocument(ctx, image)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "Document analysis failed")
	}
	if doc == nil || len(doc.Fields) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "No identity document detected in the image")
	}

	fields := normalizeFields(doc.Fields)
	if err := rules.Validate(documentType, fields, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	return &Result{
		Fields:          fields,
		ConfidenceScore: rules.ConfidenceScore(fields),
	}, nil
}

// normalizeFields lowercases analyzer field names and keeps the last value
// for duplicates.
func normalizeFields(raw []analyzer.IdentityField) map[string]models.FieldValue {
	fields := make(map[string]models.FieldValue, len(raw))
	for _, f := range raw {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "" {
			continue
		}
		fields[name] = models.FieldValue{
			Value:      strings.TrimSpace(f.Value),
			Confidence: f.Confidence,
		}
	}
	return fields
}
