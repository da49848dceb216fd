package align

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/detector"
	"github.com/dudu/facekit/internal/geometry"
)

// Aligned is a face warped onto the template
type Aligned struct {
	Crop    gocv.Mat
	Forward geometry.Affine // source image -> crop
	Inverse geometry.Affine // crop -> source image, scaled by Options.InverseScale
	Fit     Fit
}

// Close releases the crop
func (a *Aligned) Close() error {
	return a.Crop.Close()
}

// Aligner warps faces onto a fixed landmark template
type Aligner struct {
	opts Options
}

// NewAligner creates an aligner
func NewAligner(opts Options) *Aligner {
	if opts.CropSize <= 0 {
		opts.CropSize = 512
	}
	if opts.InverseScale == 0 {
		opts.InverseScale = 1
	}
	return &Aligner{opts: opts}
}

// Options returns the aligner settings
func (a *Aligner) Options() Options {
	return a.opts
}

// Estimate fits the forward transform and its scaled inverse without touching pixels
func (a *Aligner) Estimate(lm detector.Landmarks) (geometry.Affine, geometry.Affine, Fit, error) {
	fit, err := FitSimilarity(lm.Points(), a.opts.Template.Points())
	if err != nil {
		return geometry.Affine{}, geometry.Affine{}, Fit{}, err
	}
	inv, ok := fit.Matrix.Invert()
	if !ok {
		return geometry.Affine{}, geometry.Affine{}, Fit{}, errors.Wrap(ErrDegenerateLandmarks, "singular transform")
	}
	return fit.Matrix, inv.Scale(a.opts.InverseScale), fit, nil
}

// Align warps img so lm lands on the template
func (a *Aligner) Align(img gocv.Mat, lm detector.Landmarks) (*Aligned, error) {
	fwd, inv, fit, err := a.Estimate(lm)
	if err != nil {
		return nil, err
	}

	m := ToMat(fwd)
	defer m.Close()

	crop := gocv.NewMat()
	gocv.WarpAffineWithParams(img, &crop, m, image.Pt(a.opts.CropSize, a.opts.CropSize),
		gocv.InterpolationLinear, gocv.BorderConstant, a.opts.Border)

	return &Aligned{Crop: crop, Forward: fwd, Inverse: inv, Fit: fit}, nil
}

// ToMat converts an affine matrix to a 2x3 CV_64F Mat
func ToMat(m geometry.Affine) gocv.Mat {
	out := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			out.SetDoubleAt(i, j, m[i][j])
		}
	}
	return out
}
