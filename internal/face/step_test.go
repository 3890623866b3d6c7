package face

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"verity/internal/analyzer"
	dErrors "verity/pkg/domain-errors"
)

// fakeFaceAnalyzer returns canned detections keyed by the image bytes and a
// fixed comparison result.
type fakeFaceAnalyzer struct {
	detections map[string][]analyzer.FaceDetail
	detectErr  error

	compareResult *analyzer.CompareResult
	compareErr    error
	compareCalls  int
}

func (f *fakeFaceAnalyzer) DetectFaces(_ context.Context, image []byte) ([]analyzer.FaceDetail, error) {
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.detections[string(image)], nil
}

func (f *fakeFaceAnalyzer) CompareFaces(_ context.Context, _, _ []byte, _ float64) (*analyzer.CompareResult, error) {
	f.compareCalls++
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	return f.compareResult, nil
}

type FaceStepSuite struct {
	suite.Suite
	analyzer *fakeFaceAnalyzer
	step     *Step
	ctx      context.Context
}

func TestFaceStepSuite(t *testing.T) {
	suite.Run(t, new(FaceStepSuite))
}

func (s *FaceStepSuite) SetupTest() {
	s.analyzer = &fakeFaceAnalyzer{
		detections: map[string][]analyzer.FaceDetail{
			"doc":    {goodFace()},
			"selfie": {goodFace()},
		},
	}
	s.step = NewStep(s.analyzer)
	s.ctx = context.Background()
}

func (s *FaceStepSuite) TestVerify() {
	s.Run("match above threshold", func() {
		s.analyzer.compareResult = &analyzer.CompareResult{
			Matches: []analyzer.FaceMatch{{Similarity: 95.5, Face: goodFace()}},
		}

		result, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().NoError(err)
		s.True(result.IsMatch)
		s.InDelta(95.5, result.Confidence, 1e-9)
		s.Contains(result.Details, "bounding_box")
	})

	s.Run("best of several matches decides", func() {
		s.analyzer.compareResult = &analyzer.CompareResult{
			Matches: []analyzer.FaceMatch{
				{Similarity: 91.0, Face: goodFace()},
				{Similarity: 97.2, Face: goodFace()},
				{Similarity: 90.5, Face: goodFace()},
			},
		}

		result, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().NoError(err)
		s.True(result.IsMatch)
		s.InDelta(97.2, result.Confidence, 1e-9)
	})

	s.Run("similarity below threshold is not a match", func() {
		s.analyzer.compareResult = &analyzer.CompareResult{
			Matches: []analyzer.FaceMatch{{Similarity: 85.0, Face: goodFace()}},
		}

		result, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().NoError(err)
		s.False(result.IsMatch)
		s.InDelta(85.0, result.Confidence, 1e-9)
	})

	s.Run("zero matches reported with reason", func() {
		s.analyzer.compareResult = &analyzer.CompareResult{UnmatchedCount: 2}

		result, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().NoError(err)
		s.False(result.IsMatch)
		s.Zero(result.Confidence)
		s.Equal("No matching faces found", result.Details["reason"])
		s.Equal(2, result.Details["unmatched"])
	})

	s.Run("no face in document image aborts before comparison", func() {
		s.analyzer.detections["doc"] = nil
		s.analyzer.detections["selfie"] = []analyzer.FaceDetail{goodFace()}
		s.analyzer.compareCalls = 0

		_, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("No face detected in the document image", err.Error())
		s.Zero(s.analyzer.compareCalls)
	})

	s.Run("multiple faces in selfie aborts", func() {
		s.analyzer.detections["doc"] = []analyzer.FaceDetail{goodFace()}
		s.analyzer.detections["selfie"] = []analyzer.FaceDetail{goodFace(), goodFace()}

		_, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().Error(err)
		s.Equal("Multiple faces detected in the selfie image", err.Error())
	})

	s.Run("poor quality selfie aborts", func() {
		face := goodFace()
		face.Quality = &analyzer.Quality{Brightness: 20, Sharpness: 20}
		s.analyzer.detections["doc"] = []analyzer.FaceDetail{goodFace()}
		s.analyzer.detections["selfie"] = []analyzer.FaceDetail{face}

		_, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().Error(err)
		s.Equal("Insufficient image quality in the selfie image", err.Error())
	})

	s.Run("bad pose in document image aborts", func() {
		face := goodFace()
		face.Pose = &analyzer.Pose{Pitch: 60, Roll: 0, Yaw: 0}
		s.analyzer.detections["doc"] = []analyzer.FaceDetail{face}
		s.analyzer.detections["selfie"] = []analyzer.FaceDetail{goodFace()}

		_, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().Error(err)
		s.Equal("Unacceptable face pose in the document image", err.Error())
	})

	s.Run("comparison transport failure wrapped as validation", func() {
		s.analyzer.detections["doc"] = []analyzer.FaceDetail{goodFace()}
		s.analyzer.detections["selfie"] = []analyzer.FaceDetail{goodFace()}
		s.analyzer.compareErr = errors.New("throttled")

		_, err := s.step.Verify(s.ctx, []byte("doc"), []byte("selfie"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.analyzer.compareErr = nil
	})
}

func (s *FaceStepSuite) TestDetectLiveness() {
	s.Run("live face passes the threshold", func() {
		result, err := s.step.DetectLiveness(s.ctx, []byte("selfie"))
		s.Require().NoError(err)
		s.True(result.IsLive)
		s.GreaterOrEqual(result.Confidence, QualityThreshold)
		s.Equal(true, result.Details["eyes_open"])
	})

	s.Run("weak signals fail the threshold", func() {
		s.analyzer.detections["selfie"] = []analyzer.FaceDetail{{
			Quality: &analyzer.Quality{Brightness: 55, Sharpness: 52},
		}}

		result, err := s.step.DetectLiveness(s.ctx, []byte("selfie"))
		s.Require().NoError(err)
		s.False(result.IsLive)
		s.InDelta(53.5, result.Confidence, 1e-9)
	})

	s.Run("no face rejected", func() {
		s.analyzer.detections["selfie"] = nil

		_, err := s.step.DetectLiveness(s.ctx, []byte("selfie"))
		s.Require().Error(err)
		s.Equal("No face detected in the image", err.Error())
	})

	s.Run("multiple faces rejected", func() {
		s.analyzer.detections["selfie"] = []analyzer.FaceDetail{goodFace(), goodFace()}

		_, err := s.step.DetectLiveness(s.ctx, []byte("selfie"))
		s.Require().Error(err)
		s.Equal("Multiple faces detected in the image", err.Error())
	})

	s.Run("detector failure surfaces as validation error", func() {
		s.analyzer.detectErr = errors.New("timeout")

		_, err := s.step.DetectLiveness(s.ctx, []byte("selfie"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.analyzer.detectErr = nil
	})
}
