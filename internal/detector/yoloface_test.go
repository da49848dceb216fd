package detector

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/geometry"
)

type fakeExecutor struct {
	outputs map[string]RawTensor
	err     error
	shape   []int64
	closed  bool
}

func (f *fakeExecutor) Forward(input []float32, shape []int64) (map[string]RawTensor, error) {
	f.shape = shape
	return f.outputs, f.err
}

func (f *fakeExecutor) Close() error {
	f.closed = true
	return nil
}

// emptyHeads builds the three 640x640 heads with no activations
func emptyHeads() map[string]RawTensor {
	out := map[string]RawTensor{}
	for _, l := range DefaultLevels() {
		g := 640 / l.Stride
		out[l.Output] = headTensor(len(l.Anchors), g*g)
	}
	return out
}

func activate(raw RawTensor, anchor, i, j, gridW int, logit float32) {
	f := raw.Row(anchor, i*gridW+j)
	f[4] = logit
	f[5] = logit
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestPostProcess(t *testing.T) {
	heads := emptyHeads()
	activate(heads["stride_8"], 0, 20, 10, 80, 9)
	// neighbouring cell regressed onto nearly the same box, lower score
	activate(heads["stride_8"], 0, 20, 11, 80, 3)
	heads["stride_8"].Row(0, 20*80+11)[0] = -3.434

	det := NewYOLOFace(&fakeExecutor{}, DefaultConfig(), quietLogger())
	lb := geometry.NewLetterbox(1280, 720, 640)

	res, err := det.PostProcess(heads, lb)
	require.NoError(t, err)
	require.Len(t, res.Faces, 1)
	assert.Zero(t, res.Dropped)

	f := res.Faces[0]
	assert.InDelta(t, sigmoid(9)*sigmoid(9), f.Score, 1e-6)
	assert.InDelta(t, 164, f.Box.X1, 1e-3)
	assert.InDelta(t, 43, f.Box.Y1, 1e-3)
	assert.InDelta(t, 172, f.Box.X2, 1e-3)
	assert.InDelta(t, 53, f.Box.Y2, 1e-3)
}

func TestPostProcessMaxFaces(t *testing.T) {
	heads := emptyHeads()
	activate(heads["stride_8"], 0, 10, 10, 80, 4)
	activate(heads["stride_32"], 2, 15, 15, 20, 8)

	cfg := DefaultConfig()
	cfg.MaxFaces = 1
	det := NewYOLOFace(&fakeExecutor{}, cfg, quietLogger())

	res, err := det.PostProcess(heads, geometry.NewLetterbox(640, 640, 640))
	require.NoError(t, err)
	require.Len(t, res.Faces, 1)
	assert.Equal(t, 1, res.Dropped)
	assert.InDelta(t, sigmoid(8)*sigmoid(8), res.Faces[0].Score, 1e-6)
}

func TestPostProcessMissingHead(t *testing.T) {
	heads := emptyHeads()
	delete(heads, "stride_16")

	det := NewYOLOFace(&fakeExecutor{}, DefaultConfig(), quietLogger())
	_, err := det.PostProcess(heads, geometry.NewLetterbox(640, 640, 640))
	assert.ErrorIs(t, err, ErrMissingOutput)
}

func TestDetect(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 20, 10, 0), 720, 1280, gocv.MatTypeCV8UC3)
	defer img.Close()

	exec := &fakeExecutor{outputs: emptyHeads()}
	det := NewYOLOFace(exec, DefaultConfig(), quietLogger())

	res, err := det.Detect(img)
	require.NoError(t, err)
	assert.Empty(t, res.Faces)
	assert.Equal(t, []int64{1, 3, 640, 640}, exec.shape)
	assert.Equal(t, 140, res.Letterbox.Top())

	require.NoError(t, det.Close())
	assert.True(t, exec.closed)
}

func TestDetectForwardError(t *testing.T) {
	img := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer img.Close()

	det := NewYOLOFace(&fakeExecutor{err: errors.New("boom")}, DefaultConfig(), quietLogger())
	_, err := det.Detect(img)
	assert.Error(t, err)
}

func TestPreprocess(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 20, 10, 0), 720, 1280, gocv.MatTypeCV8UC3)
	defer img.Close()

	det := NewYOLOFace(&fakeExecutor{}, DefaultConfig(), quietLogger())
	blob, lb, err := det.Preprocess(img)
	require.NoError(t, err)
	require.Len(t, blob, 3*640*640)

	plane := 640 * 640
	center := 320*640 + 320
	// channel 0 is red after the swap
	assert.InDelta(t, 10.0/255.0, blob[center], 1e-4)
	assert.InDelta(t, 20.0/255.0, blob[plane+center], 1e-4)
	assert.InDelta(t, 30.0/255.0, blob[2*plane+center], 1e-4)
	// padding rows are zero
	assert.Zero(t, blob[10*640+320])
	assert.Equal(t, 360, lb.ResizedH)
}

func TestPreprocessExtremeAspect(t *testing.T) {
	for _, size := range []image.Point{{X: 2000, Y: 2}, {X: 1, Y: 3000}} {
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 20, 10, 0), size.Y, size.X, gocv.MatTypeCV8UC3)
		det := NewYOLOFace(&fakeExecutor{}, DefaultConfig(), quietLogger())
		blob, lb, err := det.Preprocess(img)
		img.Close()
		require.NoError(t, err, "%v", size)
		assert.Len(t, blob, 3*640*640)
		assert.Positive(t, lb.ResizedW)
		assert.Positive(t, lb.ResizedH)
	}
}
