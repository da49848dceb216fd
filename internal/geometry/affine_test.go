package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineInvert(t *testing.T) {
	theta := 0.3
	m := Similarity(1.7*math.Cos(theta), 1.7*math.Sin(theta), 12, -40)

	inv, ok := m.Invert()
	require.True(t, ok)

	p := Point{X: 33, Y: 71}
	q := inv.Apply(m.Apply(p))
	assert.InDelta(t, p.X, q.X, 1e-4)
	assert.InDelta(t, p.Y, q.Y, 1e-4)
	assert.InDelta(t, 1/1.7, inv.ScaleFactor(), 1e-9)
}

func TestAffineInvertSingular(t *testing.T) {
	_, ok := Affine{{1, 2, 0}, {2, 4, 0}}.Invert()
	assert.False(t, ok)
}

func TestAffineScale(t *testing.T) {
	m := Affine{{1, 0, 3}, {0, 1, -4}}.Scale(2)
	assert.Equal(t, Affine{{2, 0, 6}, {0, 2, -8}}, m)
}

func TestIoU(t *testing.T) {
	a := BoxFromXYWH(0, 0, 10, 10)
	b := BoxFromXYWH(5, 0, 10, 10)
	assert.InDelta(t, 50.0/150.0, IoU(a, b), 1e-6)
	assert.Equal(t, float32(0), IoU(a, BoxFromXYWH(20, 20, 5, 5)))
	assert.Equal(t, float32(0), IoU(BoxFromXYWH(1, 1, 0, 0), BoxFromXYWH(1, 1, 0, 0)))
	assert.InDelta(t, 1, IoU(a, a), 1e-6)
}
