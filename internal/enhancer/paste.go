package enhancer

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/align"
	"github.com/dudu/facekit/internal/geometry"
)

// Blender pastes restored crops back into an image with a feathered mask
type Blender struct {
	erodeFrac float64 // erosion radius as a fraction of the crop side
	blurFrac  float64 // blur kernel as a fraction of the crop side
}

// NewBlender creates a blender with the default feathering
func NewBlender() *Blender {
	return &Blender{erodeFrac: 0.02, blurFrac: 0.05}
}

// Paste warps face into canvas with inverse (crop -> canvas) and blends it in place
func (b *Blender) Paste(canvas *gocv.Mat, face gocv.Mat, inverse geometry.Affine) error {
	if canvas.Empty() || face.Empty() {
		return errors.New("paste: empty image")
	}
	if canvas.Type() != gocv.MatTypeCV8UC3 || face.Type() != gocv.MatTypeCV8UC3 {
		return errors.New("paste: expected 8-bit BGR images")
	}

	m := align.ToMat(inverse)
	defer m.Close()
	size := image.Pt(canvas.Cols(), canvas.Rows())

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpAffineWithParams(face, &warped, m, size, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	mask := b.mask(face.Rows(), face.Cols(), m, size)
	defer mask.Close()

	blend(canvas, warped, mask)
	return nil
}

// mask builds the soft single-channel float mask of the warped crop footprint
func (b *Blender) mask(rows, cols int, m gocv.Mat, size image.Point) gocv.Mat {
	full := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 0, 0, 0), rows, cols, gocv.MatTypeCV32F)
	defer full.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpAffineWithParams(full, &warped, m, size, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	side := float64(min(rows, cols))
	// the crop is scaled by the inverse, so feathering follows its footprint
	scale := 1.0
	if d := m.GetDoubleAt(0, 0)*m.GetDoubleAt(1, 1) - m.GetDoubleAt(0, 1)*m.GetDoubleAt(1, 0); d > 0 {
		scale = math.Sqrt(d)
	}

	r := max(1, int(side*scale*b.erodeFrac))
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(2*r+1, 2*r+1))
	defer kernel.Close()
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(warped, &eroded, kernel)

	k := max(3, int(side*scale*b.blurFrac)) | 1
	soft := gocv.NewMat()
	gocv.GaussianBlur(eroded, &soft, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	return soft
}

// blend computes canvas = face*mask + canvas*(1-mask)
func blend(canvas *gocv.Mat, face, mask gocv.Mat) {
	mask3 := gocv.NewMat()
	defer mask3.Close()
	gocv.Merge([]gocv.Mat{mask, mask, mask}, &mask3)

	faceF := gocv.NewMat()
	defer faceF.Close()
	face.ConvertTo(&faceF, gocv.MatTypeCV32FC3)

	baseF := gocv.NewMat()
	defer baseF.Close()
	canvas.ConvertTo(&baseF, gocv.MatTypeCV32FC3)

	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 1, 1, 0), canvas.Rows(), canvas.Cols(), gocv.MatTypeCV32FC3)
	defer ones.Close()
	invMask := gocv.NewMat()
	defer invMask.Close()
	gocv.Subtract(ones, mask3, &invMask)

	fg := gocv.NewMat()
	defer fg.Close()
	gocv.Multiply(faceF, mask3, &fg)

	bg := gocv.NewMat()
	defer bg.Close()
	gocv.Multiply(baseF, invMask, &bg)

	sum := gocv.NewMat()
	defer sum.Close()
	gocv.Add(fg, bg, &sum)

	sum.ConvertTo(canvas, gocv.MatTypeCV8UC3)
}
