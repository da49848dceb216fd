package geometry

import "math"

// Affine is a 2x3 matrix mapping (x, y) to (a x + b y + c, d x + e y + f)
type Affine [2][3]float64

// Identity returns the identity transform
func Identity() Affine {
	return Affine{{1, 0, 0}, {0, 1, 0}}
}

// Similarity builds [[a, -b, tx], [b, a, ty]]: rotation, uniform scale, translation.
func Similarity(a, b, tx, ty float64) Affine {
	return Affine{{a, -b, tx}, {b, a, ty}}
}

// Apply transforms p
func (m Affine) Apply(p Point) Point {
	x, y := float64(p.X), float64(p.Y)
	return Point{
		X: float32(m[0][0]*x + m[0][1]*y + m[0][2]),
		Y: float32(m[1][0]*x + m[1][1]*y + m[1][2]),
	}
}

// Det is the determinant of the linear part
func (m Affine) Det() float64 {
	return m[0][0]*m[1][1] - m[0][1]*m[1][0]
}

// Invert returns the inverse transform; ok is false for singular matrices.
func (m Affine) Invert() (Affine, bool) {
	d := m.Det()
	if math.Abs(d) < 1e-12 {
		return Affine{}, false
	}
	a := m[1][1] / d
	b := -m[0][1] / d
	c := -m[1][0] / d
	e := m[0][0] / d
	return Affine{
		{a, b, -(a*m[0][2] + b*m[1][2])},
		{c, e, -(c*m[0][2] + e*m[1][2])},
	}, true
}

// Scale multiplies every element, translation included, by f
func (m Affine) Scale(f float64) Affine {
	for i := range m {
		for j := range m[i] {
			m[i][j] *= f
		}
	}
	return m
}

// ScaleFactor is the uniform scale of a similarity transform
func (m Affine) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(m.Det()))
}
