package align

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/dudu/facekit/internal/geometry"
)

var (
	// ErrDegenerateLandmarks means no transform can be estimated: too few
	// points, non-finite coordinates, or all source points coincide.
	ErrDegenerateLandmarks = errors.New("degenerate landmarks")
	// ErrCollinearLandmarks means every source point lies on one line
	ErrCollinearLandmarks = errors.New("collinear landmarks")
)

const (
	minSeparation = 1e-6
	collinearity  = 1e-6

	// LMedS ignores the reprojection threshold; the rest matches the usual
	// face-alignment call.
	reprojThreshold = 3.0
	maxIters        = 2000
	confidence      = 0.99
	refineIters     = 10
)

// Fit is a successful similarity estimate
type Fit struct {
	Matrix      geometry.Affine // maps src onto dst
	Inliers     []bool
	MedianError float64 // median squared residual of Matrix over all points
}

// FitSimilarity estimates the rotation + uniform scale + translation that
// maps src onto dst with least-median-of-squares, refined over the inliers.
func FitSimilarity(src, dst []geometry.Point) (Fit, error) {
	n := len(src)
	if n < 2 || n != len(dst) {
		return Fit{}, errors.Wrapf(ErrDegenerateLandmarks, "%d source and %d template points", n, len(dst))
	}
	for i := range src {
		if !finite(src[i]) || !finite(dst[i]) {
			return Fit{}, errors.Wrapf(ErrDegenerateLandmarks, "non-finite point %d", i)
		}
	}
	if coincident(src) {
		return Fit{}, errors.Wrap(ErrDegenerateLandmarks, "all source points coincide")
	}
	if n >= 3 && collinear(src) {
		return Fit{}, ErrCollinearLandmarks
	}

	from := gocv.NewPoint2fVectorFromPoints(toPoint2f(src))
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints(toPoint2f(dst))
	defer to.Close()

	inliers := gocv.NewMat()
	defer inliers.Close()
	m := gocv.EstimateAffinePartial2DWithParams(from, to, inliers,
		int(gocv.HomograpyMethodLMEDS), reprojThreshold, maxIters, confidence, refineIters)
	defer m.Close()
	if m.Empty() || m.Rows() != 2 || m.Cols() != 3 {
		return Fit{}, errors.Wrap(ErrDegenerateLandmarks, "no transform found")
	}

	var fit Fit
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			fit.Matrix[i][j] = m.GetDoubleAt(i, j)
		}
	}
	if math.IsNaN(fit.Matrix.Det()) || fit.Matrix.Det() == 0 {
		return Fit{}, errors.Wrap(ErrDegenerateLandmarks, "singular transform")
	}

	fit.Inliers = make([]bool, n)
	for i := 0; i < n && i < inliers.Rows(); i++ {
		fit.Inliers[i] = inliers.GetUCharAt(i, 0) != 0
	}

	residuals := make([]float64, n)
	for i := range src {
		p := fit.Matrix.Apply(src[i])
		dx, dy := float64(p.X-dst[i].X), float64(p.Y-dst[i].Y)
		residuals[i] = dx*dx + dy*dy
	}
	sort.Float64s(residuals)
	fit.MedianError = residuals[n/2]

	return fit, nil
}

func toPoint2f(pts []geometry.Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: p.X, Y: p.Y}
	}
	return out
}

func finite(p geometry.Point) bool {
	x, y := float64(p.X), float64(p.Y)
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}

func coincident(pts []geometry.Point) bool {
	for _, p := range pts[1:] {
		if math.Hypot(float64(p.X-pts[0].X), float64(p.Y-pts[0].Y)) >= minSeparation {
			return false
		}
	}
	return true
}

// collinear reports whether the points' scatter matrix has no extent
// across its principal axis
func collinear(pts []geometry.Point) bool {
	var mx, my float64
	for _, p := range pts {
		mx += float64(p.X)
		my += float64(p.Y)
	}
	mx /= float64(len(pts))
	my /= float64(len(pts))

	var sxx, syy, sxy float64
	for _, p := range pts {
		dx, dy := float64(p.X)-mx, float64(p.Y)-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), false) {
		return true
	}
	vals := eig.Values(nil) // ascending
	return vals[0] <= collinearity*vals[1]
}
