package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verity/internal/analyzer"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"
)

type fakeDocumentAnalyzer struct {
	doc *analyzer.IdentityDocument
	err error
}

func (f *fakeDocumentAnalyzer) AnalyzeIdentityDocument(_ context.Context, _ []byte) (*analyzer.IdentityDocument, error) {
	return f.doc, f.err
}

type DocumentStepSuite struct {
	suite.Suite
	analyzer *fakeDocumentAnalyzer
	step     *Step
	ctx      context.Context
}

func TestDocumentStepSuite(t *testing.T) {
	suite.Run(t, new(DocumentStepSuite))
}

func (s *DocumentStepSuite) SetupTest() {
	s.analyzer = &fakeDocumentAnalyzer{}
	s.step = NewStep(s.analyzer)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))
}

func validPassportDoc() *analyzer.IdentityDocument {
	return &analyzer.IdentityDocument{Fields: []analyzer.IdentityField{
		{Name: "FIRST_NAME", Value: "Jane", Confidence: 99.2},
		{Name: "LAST_NAME", Value: "Doe", Confidence: 98.8},
		{Name: "DATE_OF_BIRTH", Value: "1990-04-02", Confidence: 97.6},
		{Name: "EXPIRATION_DATE", Value: "2030-01-01", Confidence: 99.0},
		{Name: "PASSPORT_NUMBER", Value: "AB123456", Confidence: 99.4},
		{Name: "NATIONALITY", Value: "USA", Confidence: 98.5},
	}}
}

func (s *DocumentStepSuite) TestVerify() {
	s.Run("valid passport extracted and scored", func() {
		s.analyzer.doc = validPassportDoc()

		result, err := s.step.Verify(s.ctx, id.DocumentTypePassport, []byte("img"))
		s.Require().NoError(err)
		s.Len(result.Fields, 6)
		s.Equal("AB123456", result.Fields["passport_number"].Value)
		s.InDelta((99.2+98.8+97.6+99.0+99.4+98.5)/6, result.ConfidenceScore, 1e-9)
	})

	s.Run("field names are lowercased and values trimmed", func() {
		doc := validPassportDoc()
		doc.Fields[0] = analyzer.IdentityField{Name: " FIRST_NAME ", Value: "  Jane  ", Confidence: 99.2}
		s.analyzer.doc = doc

		result, err := s.step.Verify(s.ctx, id.DocumentTypePassport, []byte("img"))
		s.Require().NoError(err)
		s.Equal("Jane", result.Fields["first_name"].Value)
	})

	s.Run("missing fields reported", func() {
		doc := validPassportDoc()
		doc.Fields = doc.Fields[:4]
		s.analyzer.doc = doc

		result, err := s.step.Verify(s.ctx, id.DocumentTypePassport, []byte("img"))
		s.Nil(result)
		s.Require().Error(err)
		s.Equal("Missing required fields: passport_number, nationality", err.Error())
	})

	s.Run("nil document rejected", func() {
		s.analyzer.doc = nil

		_, err := s.step.Verify(s.ctx, id.DocumentTypePassport, []byte("img"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("No identity document detected in the image", err.Error())
	})

	s.Run("document with no fields rejected", func() {
		s.analyzer.doc = &analyzer.IdentityDocument{}

		_, err := s.step.Verify(s.ctx, id.DocumentTypePassport, []byte("img"))
		s.Require().Error(err)
		s.Equal("No identity document detected in the image", err.Error())
	})

	s.Run("expired document rejected against request time", func() {
		doc := validPassportDoc()
		doc.Fields[3].Value = "2026-06-14"
		s.analyzer.doc = doc

		_, err := s.step.Verify(s.ctx, id.DocumentTypePassport, []byte("img"))
		s.Require().Error(err)
		s.Equal("Document has expired", err.Error())
	})

	s.Run("analyzer failure wrapped as validation", func() {
		s.analyzer.doc = nil
		s.analyzer.err = errors.New("service unavailable")

		_, err := s.step.Verify(s.ctx, id.DocumentTypePassport, []byte("img"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "Document analysis failed")
		s.analyzer.err = nil
	})
}
