package detector

import "github.com/dudu/facekit/internal/geometry"

// Landmark indices
const (
	LeftEye = iota
	RightEye
	Nose
	LeftMouth
	RightMouth
	NumLandmarks
)

// Landmarks holds the five facial keypoints in the order
// left eye, right eye, nose, left mouth corner, right mouth corner.
type Landmarks [NumLandmarks]geometry.Point

// Points returns the landmarks as a slice
func (l Landmarks) Points() []geometry.Point {
	return l[:]
}

// Candidate is a decoded face proposal. Coordinates are in network input
// space until remapped, then in source-image space.
type Candidate struct {
	Box       geometry.Box
	Score     float32
	Landmarks Landmarks
}
