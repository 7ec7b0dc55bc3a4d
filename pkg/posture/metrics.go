package posture

import (
	"math"

	"github.com/teslashibe/sitposture/pkg/landmark"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Metrics are the per-frame measurements the classifier works from.
type Metrics struct {
	Distance float64 `json:"distance"` // mouth center to shoulder center, metres
	EyeTilt  float64 `json:"eye_tilt"` // degrees
	EarTilt  float64 `json:"ear_tilt"` // degrees
}

// Measure computes all metrics for an adapted frame.
func Measure(f landmark.Frame) Metrics {
	return Metrics{
		Distance: Distance(f.World),
		EyeTilt:  EyeTilt(f.Image),
		EarTilt:  EarTilt(f.Image),
	}
}

// MouthCenter is the midpoint of the mouth corners.
func MouthCenter(w landmark.WorldSet) r3.Vec {
	return midpoint(w.Vec(landmark.MouthLeft), w.Vec(landmark.MouthRight))
}

// ShoulderCenter is the midpoint of the shoulders.
func ShoulderCenter(w landmark.WorldSet) r3.Vec {
	return midpoint(w.Vec(landmark.LeftShoulder), w.Vec(landmark.RightShoulder))
}

// Distance returns the distance from the mouth center to the shoulder
// center, measured in the world x/y plane. Depth is ignored.
func Distance(w landmark.WorldSet) float64 {
	d := r3.Sub(ShoulderCenter(w), MouthCenter(w))
	return r2.Norm(r2.Vec{X: d.X, Y: d.Y})
}

// EyeTilt is the tilt magnitude of the eye pair in pixel space.
func EyeTilt(s landmark.ImageSet) float64 {
	return TiltAngle(s.PixelVec(landmark.LeftEye), s.PixelVec(landmark.RightEye))
}

// EarTilt is the tilt magnitude of the ear pair in pixel space.
func EarTilt(s landmark.ImageSet) float64 {
	return TiltAngle(s.PixelVec(landmark.LeftEar), s.PixelVec(landmark.RightEar))
}

// TiltAngle returns how far the segment left→right deviates from the
// horizontal, in degrees:
//
//	theta = acos((y2-y1) * -y1 / (|right-left| * y1))
//	tilt  = |deg(theta) - 90|
//
// A zero denominator (coincident points, or left on the top edge) yields 0.
func TiltAngle(left, right r2.Vec) float64 {
	d := r2.Sub(right, left)
	denom := r2.Norm(d) * left.Y
	if denom == 0 {
		return 0
	}

	// Rounding can push the ratio a hair past ±1, where acos is NaN.
	cos := clamp(d.Y*(-left.Y)/denom, -1, 1)
	theta := math.Acos(cos) * 180 / math.Pi
	return math.Abs(theta - 90)
}

func midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
