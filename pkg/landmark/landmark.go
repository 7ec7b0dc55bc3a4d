// Package landmark shapes pose estimator output into the two per-frame views
// the posture engine consumes: metric world-space points and image-space points.
package landmark

import (
	"image"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose landmark indices following the 33-point BlazePose topology.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	Count          = 33
)

// Point is a single landmark as reported by the estimator.
// World points are in metres relative to the hip center; image points are
// normalized to [0,1] of the frame width and height.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Result is the raw per-frame estimator output. Either slice is empty when
// the estimator found nobody.
type Result struct {
	World []Point `json:"world_landmarks"`
	Image []Point `json:"landmarks"`
}

// Detected reports whether both views are present.
func (r Result) Detected() bool {
	return len(r.World) > 0 && len(r.Image) > 0
}

// WorldSet holds the metric, camera-relative view of one frame.
type WorldSet struct {
	Points [Count]Point
}

// Vec returns landmark i as a 3D vector.
func (w WorldSet) Vec(i int) r3.Vec {
	p := w.Points[i]
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// ImageSet holds the normalized image-space view of one frame together with
// the pixel dimensions needed to project it.
type ImageSet struct {
	Points [Count]Point
	Width  int
	Height int
}

// Pixel projects landmark i into pixel coordinates, truncating toward zero.
func (s ImageSet) Pixel(i int) image.Point {
	p := s.Points[i]
	return image.Pt(int(p.X*float64(s.Width)), int(p.Y*float64(s.Height)))
}

// PixelVec is Pixel as a float vector for the geometry helpers.
func (s ImageSet) PixelVec(i int) r2.Vec {
	px := s.Pixel(i)
	return r2.Vec{X: float64(px.X), Y: float64(px.Y)}
}

// Frame is one adapted frame: both views, same topology.
type Frame struct {
	World WorldSet
	Image ImageSet
}
