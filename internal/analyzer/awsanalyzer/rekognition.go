package awsanalyzer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"verity/internal/analyzer"
)

// FaceAnalyzer detects and compares faces via Rekognition.
type FaceAnalyzer struct {
	client *rekognition.Client
}

// NewFaceAnalyzer builds a Rekognition-backed face analyzer.
func NewFaceAnalyzer(cfg aws.Config) *FaceAnalyzer {
	return &FaceAnalyzer{client: rekognition.NewFromConfig(cfg)}
}

// DetectFaces runs face detection with full attribute extraction.
func (a *FaceAnalyzer) DetectFaces(ctx context.Context, image []byte) ([]analyzer.FaceDetail, error) {
	out, err := a.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, err
	}

	faces := make([]analyzer.FaceDetail, 0, len(out.FaceDetails))
	for _, fd := range out.FaceDetails {
		faces = append(faces, toFaceDetail(fd))
	}
	return faces, nil
}

// CompareFaces runs a pairwise comparison with the given similarity floor.
func (a *FaceAnalyzer) CompareFaces(ctx context.Context, source, target []byte, similarityFloor float64) (*analyzer.CompareResult, error) {
	out, err := a.client.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: source},
		TargetImage:         &types.Image{Bytes: target},
		SimilarityThreshold: aws.Float32(float32(similarityFloor)),
	})
	if err != nil {
		return nil, err
	}

	result := &analyzer.CompareResult{
		Matches:        make([]analyzer.FaceMatch, 0, len(out.FaceMatches)),
		UnmatchedCount: len(out.UnmatchedFaces),
	}
	for _, m := range out.FaceMatches {
		match := analyzer.FaceMatch{
			Similarity: float64(aws.ToFloat32(m.Similarity)),
		}
		if m.Face != nil {
			match.Face = toComparedFace(*m.Face)
		}
		result.Matches = append(result.Matches, match)
	}
	return result, nil
}

func toFaceDetail(fd types.FaceDetail) analyzer.FaceDetail {
	detail := analyzer.FaceDetail{
		Confidence: float64(aws.ToFloat32(fd.Confidence)),
	}
	if fd.Quality != nil {
		detail.Quality = &analyzer.Quality{
			Brightness: float64(aws.ToFloat32(fd.Quality.Brightness)),
			Sharpness:  float64(aws.ToFloat32(fd.Quality.Sharpness)),
		}
	}
	if fd.Pose != nil {
		detail.Pose = &analyzer.Pose{
			Pitch: float64(aws.ToFloat32(fd.Pose.Pitch)),
			Roll:  float64(aws.ToFloat32(fd.Pose.Roll)),
			Yaw:   float64(aws.ToFloat32(fd.Pose.Yaw)),
		}
	}
	if fd.EyesOpen != nil {
		detail.EyesOpen = &analyzer.BoolDetection{
			Value:      fd.EyesOpen.Value,
			Confidence: float64(aws.ToFloat32(fd.EyesOpen.Confidence)),
		}
	}
	if fd.Sunglasses != nil {
		detail.Sunglasses = &analyzer.BoolDetection{
			Value:      fd.Sunglasses.Value,
			Confidence: float64(aws.ToFloat32(fd.Sunglasses.Confidence)),
		}
	}
	if fd.BoundingBox != nil {
		detail.BoundingBox = toBoundingBox(fd.BoundingBox)
	}
	detail.Landmarks = toLandmarks(fd.Landmarks)
	return detail
}

func toComparedFace(cf types.ComparedFace) analyzer.FaceDetail {
	detail := analyzer.FaceDetail{
		Confidence: float64(aws.ToFloat32(cf.Confidence)),
	}
	if cf.Quality != nil {
		detail.Quality = &analyzer.Quality{
			Brightness: float64(aws.ToFloat32(cf.Quality.Brightness)),
			Sharpness:  float64(aws.ToFloat32(cf.Quality.Sharpness)),
		}
	}
	if cf.Pose != nil {
		detail.Pose = &analyzer.Pose{
			Pitch: float64(aws.ToFloat32(cf.Pose.Pitch)),
			Roll:  float64(aws.ToFloat32(cf.Pose.Roll)),
			Yaw:   float64(aws.ToFloat32(cf.Pose.Yaw)),
		}
	}
	if cf.BoundingBox != nil {
		detail.BoundingBox = toBoundingBox(cf.BoundingBox)
	}
	detail.Landmarks = toLandmarks(cf.Landmarks)
	return detail
}

func toBoundingBox(bb *types.BoundingBox) *analyzer.BoundingBox {
	return &analyzer.BoundingBox{
		Left:   float64(aws.ToFloat32(bb.Left)),
		Top:    float64(aws.ToFloat32(bb.Top)),
		Width:  float64(aws.ToFloat32(bb.Width)),
		Height: float64(aws.ToFloat32(bb.Height)),
	}
}

func toLandmarks(landmarks []types.Landmark) []analyzer.Landmark {
	if len(landmarks) == 0 {
		return nil
	}
	out := make([]analyzer.Landmark, 0, len(landmarks))
	for _, lm := range landmarks {
		out = append(out, analyzer.Landmark{
			Type: string(lm.Type),
			X:    float64(aws.ToFloat32(lm.X)),
			Y:    float64(aws.ToFloat32(lm.Y)),
		})
	}
	return out
}
