package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudu/facekit/internal/geometry"
)

func TestRemapLandscape(t *testing.T) {
	lb := geometry.NewLetterbox(1280, 720, 640)
	c := cand(100, 100, 50, 50, 0.9)
	c.Landmarks[Nose] = geometry.Point{X: 120, Y: 320}

	r := Remap(c, lb)
	assert.InDelta(t, 200, r.Box.X1, 1e-4)
	assert.InDelta(t, 0, r.Box.Y1, 1e-4)
	assert.InDelta(t, 300, r.Box.X2, 1e-4)
	assert.InDelta(t, 20, r.Box.Y2, 1e-4)
	assert.Equal(t, float32(0.9), r.Score)
	assert.InDelta(t, 240, r.Landmarks[Nose].X, 1e-4)
	assert.InDelta(t, 360, r.Landmarks[Nose].Y, 1e-4)
}

func TestRemapClampsToImage(t *testing.T) {
	lb := geometry.NewLetterbox(1280, 720, 640)
	c := cand(600, 480, 100, 100, 0.7)
	c.Landmarks[LeftEye] = geometry.Point{X: -20, Y: 700}
	c.Landmarks[RightEye] = geometry.Point{X: 660, Y: 10}

	r := Remap(c, lb)
	assert.InDelta(t, 1279, r.Box.X2, 1e-4)
	assert.InDelta(t, 719, r.Box.Y2, 1e-4)
	assert.Equal(t, geometry.Point{X: 0, Y: 719}, r.Landmarks[LeftEye])
	assert.Equal(t, geometry.Point{X: 1279, Y: 0}, r.Landmarks[RightEye])

	for _, p := range r.Landmarks {
		assert.GreaterOrEqual(t, p.X, float32(0))
		assert.LessOrEqual(t, p.X, float32(1279))
		assert.GreaterOrEqual(t, p.Y, float32(0))
		assert.LessOrEqual(t, p.Y, float32(719))
	}
}
