// Package analyzer defines the external vision capabilities the verification
// core depends on. The Document Analyzer extracts identity fields from a
// document image; the Face Analyzer detects and compares faces. Both are
// opaque collaborators held behind interfaces so implementations (AWS-backed
// or test fakes) can be swapped without touching the steps.
package analyzer

import "context"

// IdentityField is one extracted document field with its OCR confidence on a
// 0-100 scale.
type IdentityField struct {
	Name       string
	Value      string
	Confidence float64
}

// IdentityDocument is the structured result of document analysis.
type IdentityDocument struct {
	Fields []IdentityField
}

// Quality carries image quality measurements on a 0-100 scale.
type Quality struct {
	Brightness float64
	Sharpness  float64
}

// Pose carries head rotation in degrees.
type Pose struct {
	Pitch float64
	Roll  float64
	Yaw   float64
}

// BoundingBox locates a face within its image, in relative coordinates.
type BoundingBox struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Landmark is one facial landmark point in relative coordinates.
type Landmark struct {
	Type string
	X    float64
	Y    float64
}

// BoolDetection is a boolean attribute with the analyzer's confidence in it.
type BoolDetection struct {
	Value      bool
	Confidence float64
}

// FaceDetail describes one detected face. Pointer fields are nil when the
// analyzer did not return that attribute; the decision engine treats absent
// data as unacceptable rather than guessing.
type FaceDetail struct {
	Quality     *Quality
	Pose        *Pose
	EyesOpen    *BoolDetection
	Sunglasses  *BoolDetection
	BoundingBox *BoundingBox
	Landmarks   []Landmark
	Confidence  float64
}

// FaceMatch pairs a similarity score (0-100) with the matched face.
type FaceMatch struct {
	Similarity float64
	Face       FaceDetail
}

// CompareResult is the outcome of a pairwise face comparison.
type CompareResult struct {
	Matches        []FaceMatch
	UnmatchedCount int
}

// DocumentAnalyzer extracts identity fields from a document image.
// A nil document with a nil error means no identity-document structure was
// recognized at all.
type DocumentAnalyzer interface {
	AnalyzeIdentityDocument(ctx context.Context, image []byte) (*IdentityDocument, error)
}

// FaceAnalyzer detects faces with full attributes and compares face pairs.
// CompareFaces only returns matches at or above similarityFloor.
type FaceAnalyzer interface {
	DetectFaces(ctx context.Context, image []byte) ([]FaceDetail, error)
	CompareFaces(ctx context.Context, source, target []byte, similarityFloor float64) (*CompareResult, error)
}
