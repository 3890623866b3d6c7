package face

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	dErrors "verity/pkg/domain-errors"

	"verity/internal/analyzer"
	"verity/internal/verification/models"
)

// Step drives the external face analyzer and applies the decision engine.
type Step struct {
	analyzer analyzer.FaceAnalyzer
}

// NewStep builds a face verification step.
func NewStep(faceAnalyzer analyzer.FaceAnalyzer) *Step {
	return &Step{analyzer: faceAnalyzer}
}

// LivenessResult is the outcome of a liveness check.
type LivenessResult struct {
	IsLive     bool
	Confidence float64
	Details    map[string]any
}

// Verify compares the document-side face image against the selfie.
//
// Both images go through an independent quality pre-check first; the two
// checks run concurrently and both must pass before the pairwise comparison
// is issued. Either check failing aborts with a validation error naming the
// offending image.
func (s *Step) Verify(ctx context.Context, documentFace, selfie []byte) (*models.FaceMatchResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.precheck(gctx, documentFace, "document image")
	})
	g.Go(func() error {
		return s.precheck(gctx, selfie, "selfie image")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := s.analyzer.CompareFaces(ctx, documentFace, selfie, SimilarityThreshold)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "Face comparison failed")
	}

	if len(result.Matches) == 0 {
		return &models.FaceMatchResult{
			IsMatch:    false,
			Confidence: 0,
			Details: map[string]any{
				"reason":    "No matching faces found",
				"unmatched": result.UnmatchedCount,
			},
		}, nil
	}

	best := result.Matches[0]
	for _, m := range result.Matches[1:] {
		if m.Similarity > best.Similarity {
			best = m
		}
	}

	return &models.FaceMatchResult{
		IsMatch:    best.Similarity >= SimilarityThreshold,
		Confidence: best.Similarity,
		Details:    matchDetails(best.Face),
	}, nil
}

// DetectLiveness scores how likely the selfie depicts a live person. Exactly
// one face must be present.
func (s *Step) DetectLiveness(ctx context.Context, selfie []byte) (*LivenessResult, error) {
	faces, err := s.analyzer.DetectFaces(ctx, selfie)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "Liveness detection failed")
	}
	if len(faces) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "No face detected in the image")
	}
	if len(faces) > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "Multiple faces detected in the image")
	}

	face := faces[0]
	score := LivenessScore(face)
	return &LivenessResult{
		IsLive:     score >= QualityThreshold,
		Confidence: score,
		Details:    livenessSignals(face),
	}, nil
}

// precheck enforces single-face detection plus quality and pose
// acceptability for one image of the pair.
func (s *Step) precheck(ctx context.Context, image []byte, label string) error {
	faces, err := s.analyzer.DetectFaces(ctx, image)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("Face detection failed for %s", label))
	}
	if len(faces) == 0 {
		return dErrors.Newf(dErrors.CodeValidation, "No face detected in the %s", label)
	}
	if len(faces) > 1 {
		return dErrors.Newf(dErrors.CodeValidation, "Multiple faces detected in the %s", label)
	}
	if !QualityAcceptable(faces[0]) {
		return dErrors.Newf(dErrors.CodeValidation, "Insufficient image quality in the %s", label)
	}
	if !PoseAcceptable(faces[0]) {
		return dErrors.Newf(dErrors.CodeValidation, "Unacceptable face pose in the %s", label)
	}
	return nil
}

// matchDetails flattens the matched face attributes for storage alongside
// the decision.
func matchDetails(face analyzer.FaceDetail) map[string]any {
	details := make(map[string]any)
	if face.BoundingBox != nil {
		details["bounding_box"] = map[string]float64{
			"left":   face.BoundingBox.Left,
			"top":    face.BoundingBox.Top,
			"width":  face.BoundingBox.Width,
			"height": face.BoundingBox.Height,
		}
	}
	if len(face.Landmarks) > 0 {
		landmarks := make([]map[string]any, 0, len(face.Landmarks))
		for _, lm := range face.Landmarks {
			landmarks = append(landmarks, map[string]any{
				"type": lm.Type,
				"x":    lm.X,
				"y":    lm.Y,
			})
		}
		details["landmarks"] = landmarks
	}
	if face.Quality != nil {
		details["quality"] = map[string]float64{
			"brightness": face.Quality.Brightness,
			"sharpness":  face.Quality.Sharpness,
		}
	}
	if face.Pose != nil {
		details["pose"] = map[string]float64{
			"pitch": face.Pose.Pitch,
			"roll":  face.Pose.Roll,
			"yaw":   face.Pose.Yaw,
		}
	}
	return details
}
