// Package overlay draws the posture skeleton and status labels onto frames
// for human viewing.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/sitposture/pkg/landmark"
	"github.com/teslashibe/sitposture/pkg/monitor"
	"github.com/teslashibe/sitposture/pkg/posture"
	"gocv.io/x/gocv"
)

var (
	white = color.RGBA{255, 255, 255, 0}
	red   = color.RGBA{255, 0, 0, 0}
	green = color.RGBA{0, 255, 0, 0}
	blue  = color.RGBA{0, 0, 255, 0}
)

var (
	// shownPoints are the landmarks drawn as dots.
	shownPoints = []int{
		landmark.LeftEye, landmark.RightEye,
		landmark.MouthLeft, landmark.MouthRight,
		landmark.LeftShoulder, landmark.RightShoulder,
	}

	faceConnections = [][2]int{
		{landmark.LeftEye, landmark.RightEye},
		{landmark.LeftEye, landmark.MouthLeft},
		{landmark.MouthLeft, landmark.MouthRight},
		{landmark.MouthRight, landmark.RightEye},
	}

	shoulderConnections = [][2]int{
		{landmark.LeftShoulder, landmark.RightShoulder},
	}
)

// Label positions and font.
const (
	legendX   = 20
	legendY   = 20
	fontScale = 1.0
	thickness = 2
)

var labels = map[posture.State]string{
	posture.Initializing: "Recognizing Human",
	posture.Nodding:      "Nod",
	posture.BadPosture:   "Bad Posture",
	posture.GoodPosture:  "Good Posture",
}

// Label returns the on-screen text for a state.
func Label(s posture.State) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return s.String()
}

// Draw renders an observation: the skeleton when landmarks were found on this
// frame, and the latest result's labels whenever there is one.
func Draw(img *gocv.Mat, obs monitor.Observation) {
	if obs.Detected {
		DrawSkeleton(img, obs.Landmarks.Image)
	}
	if obs.HasResult {
		DrawLabel(img, obs.Result)
	}
}

// DrawSkeleton draws the face and shoulder connections, the tracked points,
// and the mouth-to-shoulder line.
func DrawSkeleton(img *gocv.Mat, s landmark.ImageSet) {
	drawConnections(img, s, faceConnections, red)
	drawConnections(img, s, shoulderConnections, blue)

	for _, i := range shownPoints {
		if p := s.Pixel(i); IsValid(p, s.Width, s.Height) {
			gocv.Circle(img, p, 3, white, -1)
		}
	}

	mouth := Midpoint(s.Pixel(landmark.MouthLeft), s.Pixel(landmark.MouthRight))
	shoulder := Midpoint(s.Pixel(landmark.LeftShoulder), s.Pixel(landmark.RightShoulder))
	gocv.Circle(img, mouth, 3, green, -1)
	gocv.Circle(img, shoulder, 3, green, -1)
	gocv.Line(img, mouth, shoulder, white, thickness)
}

func drawConnections(img *gocv.Mat, s landmark.ImageSet, pairs [][2]int, c color.RGBA) {
	for _, pair := range pairs {
		start, end := s.Pixel(pair[0]), s.Pixel(pair[1])
		if IsValid(start, s.Width, s.Height) && IsValid(end, s.Width, s.Height) {
			gocv.Line(img, start, end, c, thickness)
		}
	}
}

// DrawLabel writes the distance and the posture label in the top-left corner.
func DrawLabel(img *gocv.Mat, res posture.Result) {
	gocv.PutText(img, fmt.Sprintf("d: %.2f", res.Distance),
		image.Pt(legendX+10, legendY+20), gocv.FontHersheySimplex, fontScale, green, thickness)
	gocv.PutText(img, Label(res.State),
		image.Pt(legendX+10, legendY+50), gocv.FontHersheySimplex, fontScale, green, thickness)
}

// IsValid reports whether p lies inside a width x height frame.
func IsValid(p image.Point, width, height int) bool {
	return p.In(image.Rect(0, 0, width, height))
}

// Midpoint returns the pixel midpoint of a and b, rounding toward negative
// infinity.
func Midpoint(a, b image.Point) image.Point {
	return image.Pt(floorDiv(a.X+b.X, 2), floorDiv(a.Y+b.Y, 2))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
