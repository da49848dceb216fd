package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/detector"
)

// FaceDetector finds faces in a BGR image
type FaceDetector interface {
	Detect(img gocv.Mat) (*detector.Result, error)
	Close() error
}

// Restorer restores an aligned face crop
type Restorer interface {
	Restore(face gocv.Mat) (gocv.Mat, error)
	Close() error
}

// Upscaler enlarges the whole image to the restoration canvas
type Upscaler interface {
	Upscale(img gocv.Mat, factor float64) (gocv.Mat, error)
	Close() error
}
