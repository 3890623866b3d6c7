// Package face implements the face verification stage: the pure decision
// engine over analyzer face details, and the step that drives the external
// face analyzer.
package face

import (
	"math"

	"verity/internal/analyzer"
)

// Decision thresholds on the 0-100 scale.
const (
	// SimilarityThreshold is the minimum similarity for a face match.
	SimilarityThreshold = 90.0
	// QualityThreshold is the minimum acceptable liveness score.
	QualityThreshold = 80.0

	minBrightness = 50.0
	minSharpness  = 50.0
	maxPoseAngle  = 20.0
)

// QualityAcceptable reports whether the face image is bright and sharp enough
// to compare. Absent quality data is unacceptable, not a pass.
func QualityAcceptable(face analyzer.FaceDetail) bool {
	if face.Quality == nil {
		return false
	}
	return face.Quality.Brightness >= minBrightness && face.Quality.Sharpness >= minSharpness
}

// PoseAcceptable reports whether the head rotation is within comparison
// tolerances on all three axes. Absent pose data is unacceptable.
func PoseAcceptable(face analyzer.FaceDetail) bool {
	if face.Pose == nil {
		return false
	}
	return math.Abs(face.Pose.Pitch) <= maxPoseAngle &&
		math.Abs(face.Pose.Roll) <= maxPoseAngle &&
		math.Abs(face.Pose.Yaw) <= maxPoseAngle
}

// LivenessScore averages up to four independent signals, each on a 0-100
// scale and counted only when present and its pre-condition holds:
//   - eyes-open confidence, when eyes are detected open
//   - image quality, the mean of brightness and sharpness
//   - 100 when the pose is acceptable, not counted otherwise
//   - 100 when sunglasses are explicitly detected as absent, not counted
//     otherwise
//
// Zero available signals score 0.
func LivenessScore(face analyzer.FaceDetail) float64 {
	var sum float64
	var count int

	if face.EyesOpen != nil && face.EyesOpen.Value {
		sum += face.EyesOpen.Confidence
		count++
	}
	if face.Quality != nil {
		sum += (face.Quality.Brightness + face.Quality.Sharpness) / 2
		count++
	}
	if PoseAcceptable(face) {
		sum += 100
		count++
	}
	if face.Sunglasses != nil && !face.Sunglasses.Value {
		sum += 100
		count++
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// livenessSignals reports the raw per-signal values for diagnostics.
func livenessSignals(face analyzer.FaceDetail) map[string]any {
	signals := make(map[string]any)
	if face.EyesOpen != nil {
		signals["eyes_open"] = face.EyesOpen.Value
		signals["eyes_open_confidence"] = face.EyesOpen.Confidence
	}
	if face.Quality != nil {
		signals["brightness"] = face.Quality.Brightness
		signals["sharpness"] = face.Quality.Sharpness
	}
	if face.Pose != nil {
		signals["pose_acceptable"] = PoseAcceptable(face)
		signals["pitch"] = face.Pose.Pitch
		signals["roll"] = face.Pose.Roll
		signals["yaw"] = face.Pose.Yaw
	}
	if face.Sunglasses != nil {
		signals["sunglasses"] = face.Sunglasses.Value
	}
	return signals
}
