package enhancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/geometry"
)

func TestPaste(t *testing.T) {
	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 200, gocv.MatTypeCV8UC3)
	defer canvas.Close()
	face := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 64, 64, gocv.MatTypeCV8UC3)
	defer face.Close()

	// crop -> canvas at twice the crop resolution, offset by (20, 30)
	inverse := geometry.Affine{{2, 0, 20}, {0, 2, 30}}
	require.NoError(t, NewBlender().Paste(&canvas, face, inverse))

	assert.Equal(t, 200, canvas.Rows())
	assert.Equal(t, gocv.MatTypeCV8UC3, canvas.Type())

	center := canvas.GetVecbAt(30+64, 20+64)
	assert.Equal(t, uint8(255), center[0])
	outside := canvas.GetVecbAt(5, 5)
	assert.Equal(t, uint8(0), outside[0])
	// feathered edge sits between the two
	edge := canvas.GetVecbAt(30+64, 21)
	assert.Less(t, edge[0], uint8(255))
}

func TestPasteRejectsEmpty(t *testing.T) {
	canvas := gocv.NewMat()
	defer canvas.Close()
	face := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer face.Close()

	assert.Error(t, NewBlender().Paste(&canvas, face, geometry.Identity()))
}

func TestResizeUpscaler(t *testing.T) {
	img := gocv.NewMatWithSize(30, 40, gocv.MatTypeCV8UC3)
	defer img.Close()

	out, err := ResizeUpscaler{}.Upscale(img, 2)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 60, out.Rows())
	assert.Equal(t, 80, out.Cols())
}
