package align

import (
	"image/color"

	"github.com/dudu/facekit/internal/detector"
	"github.com/dudu/facekit/internal/geometry"
)

// Template holds canonical landmark positions in crop space, in detector landmark order
type Template detector.Landmarks

// DefaultTemplate is the 512x512 restoration template
func DefaultTemplate() Template {
	return Template{
		{X: 192.98138, Y: 239.94708},
		{X: 318.90277, Y: 240.1936},
		{X: 256.63416, Y: 314.01935},
		{X: 201.26117, Y: 371.41043},
		{X: 313.08905, Y: 371.15118},
	}
}

// Points returns the template as a slice
func (t Template) Points() []geometry.Point {
	return t[:]
}

// Options configures an Aligner
type Options struct {
	Template     Template
	CropSize     int
	InverseScale float64    // applied to the inverted transform
	Border       color.RGBA // fill for pixels outside the source
}

// DefaultOptions returns the restoration-network settings
func DefaultOptions() Options {
	return Options{
		Template:     DefaultTemplate(),
		CropSize:     512,
		InverseScale: 2,
		// BGR 135,133,132
		Border: color.RGBA{R: 132, G: 133, B: 135, A: 0},
	}
}
