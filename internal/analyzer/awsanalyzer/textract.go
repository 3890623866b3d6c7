// Package awsanalyzer implements the analyzer interfaces on AWS Textract and
// Rekognition. Clients are long-lived: constructed once at process start from
// the shared aws.Config and injected into the steps.
package awsanalyzer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"verity/internal/analyzer"
)

// DocumentAnalyzer extracts identity fields via Textract AnalyzeID.
type DocumentAnalyzer struct {
	client *textract.Client
}

// NewDocumentAnalyzer builds a Textract-backed document analyzer.
func NewDocumentAnalyzer(cfg aws.Config) *DocumentAnalyzer {
	return &DocumentAnalyzer{client: textract.NewFromConfig(cfg)}
}

// AnalyzeIdentityDocument runs AnalyzeID on the image bytes. A response with
// no identity documents yields (nil, nil): the caller decides how to treat
// unrecognizable input.
func (a *DocumentAnalyzer) AnalyzeIdentityDocument(ctx context.Context, image []byte) (*analyzer.IdentityDocument, error) {
	out, err := a.client.AnalyzeID(ctx, &textract.AnalyzeIDInput{
		DocumentPages: []types.Document{{Bytes: image}},
	})
	if err != nil {
		return nil, err
	}
	if len(out.IdentityDocuments) == 0 {
		return nil, nil
	}

	doc := out.IdentityDocuments[0]
	fields := make([]analyzer.IdentityField, 0, len(doc.IdentityDocumentFields))
	for _, f := range doc.IdentityDocumentFields {
		if f.Type == nil || f.ValueDetection == nil {
			continue
		}
		fields = append(fields, analyzer.IdentityField{
			Name:       aws.ToString(f.Type.Text),
			Value:      aws.ToString(f.ValueDetection.Text),
			Confidence: float64(aws.ToFloat32(f.ValueDetection.Confidence)),
		})
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return &analyzer.IdentityDocument{Fields: fields}, nil
}
