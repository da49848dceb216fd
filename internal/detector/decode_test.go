package detector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

const testFeatures = 5 + 1 + NumLandmarks*DefaultLandmarkStride

// headTensor builds a head whose cells all fail objectness
func headTensor(anchors, cells int) RawTensor {
	data := make([]float32, anchors*cells*testFeatures)
	for i := 0; i < anchors*cells; i++ {
		data[i*testFeatures+4] = -10
	}
	raw, _ := NewRawTensor(anchors, cells, testFeatures, data)
	return raw
}

func TestDecodeSingleCell(t *testing.T) {
	anchors := DefaultLevels()[2].Anchors
	raw := headTensor(3, 4) // 64x64 input at stride 32
	f := raw.Row(1, 1*2+0)  // anchor 1, grid row 1, col 0
	f[4] = 10
	f[5] = 10
	for l := 0; l < NumLandmarks; l++ {
		f[6+3*l] = 0.25
		f[7+3*l] = 0.75
		f[8+3*l] = -3 // visibility, ignored
	}

	cands, err := Decode(raw, DecodeParams{
		Stride: 32, Anchors: anchors, InputWidth: 64, InputHeight: 64, ProbThreshold: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.InDelta(t, sigmoid(10)*sigmoid(10), c.Score, 1e-6)
	assert.InDelta(t, 16-123.0/2, c.Box.X1, 1e-3)
	assert.InDelta(t, 48-164.0/2, c.Box.Y1, 1e-3)
	assert.InDelta(t, 123, c.Box.Width(), 1e-3)
	assert.InDelta(t, 164, c.Box.Height(), 1e-3)
	for _, p := range c.Landmarks {
		// raw values are used without sigmoid
		assert.InDelta(t, 0, p.X, 1e-4)
		assert.InDelta(t, 64, p.Y, 1e-4)
	}
}

func TestDecodeThreshold(t *testing.T) {
	anchors := DefaultLevels()[2].Anchors
	raw := headTensor(3, 4)

	// objectness passes, class score drags confidence below threshold
	f := raw.Row(0, 0)
	f[4] = 10
	f[5] = -10

	// best of several classes is used
	raw2 := RawTensor{Channels: 3, Rows: 4, Cols: testFeatures + 2, Data: make([]float32, 3*4*(testFeatures+2))}
	for i := 0; i < 12; i++ {
		raw2.Data[i*raw2.Cols+4] = -10
	}
	g := raw2.Row(2, 3)
	g[4], g[5], g[6], g[7] = 10, -4, 6, -1

	p := DecodeParams{Stride: 32, Anchors: anchors, InputWidth: 64, InputHeight: 64, ProbThreshold: 0.5}
	cands, err := Decode(raw, p)
	require.NoError(t, err)
	assert.Empty(t, cands)

	cands, err = Decode(raw2, p)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.InDelta(t, sigmoid(10)*sigmoid(6), cands[0].Score, 1e-6)
	for _, c := range cands {
		assert.GreaterOrEqual(t, c.Score, p.ProbThreshold)
	}
}

func TestDecodeLandmarkStrideTwo(t *testing.T) {
	cols := 5 + 1 + NumLandmarks*2
	data := make([]float32, cols)
	data[4], data[5] = 8, 8
	data[6], data[7] = 1, 1 // first landmark
	raw, err := NewRawTensor(1, 1, cols, data)
	require.NoError(t, err)

	cands, err := Decode(raw, DecodeParams{
		Stride: 8, Anchors: []Anchor{{4, 5}}, InputWidth: 8, InputHeight: 8,
		ProbThreshold: 0.5, LandmarkStride: 2,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.InDelta(t, 12, cands[0].Landmarks[LeftEye].X, 1e-5)
	assert.InDelta(t, -4, cands[0].Landmarks[RightEye].X, 1e-5)
}

func TestDecodeWorkersMatchSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	level := DefaultLevels()[0]
	cells := 80 * 80
	data := make([]float32, 3*cells*testFeatures)
	for i := range data {
		data[i] = rng.Float32()*8 - 4
	}
	raw, err := NewRawTensor(3, cells, testFeatures, data)
	require.NoError(t, err)

	p := DecodeParams{Stride: 8, Anchors: level.Anchors, InputWidth: 640, InputHeight: 640, ProbThreshold: 0.6}
	want, err := Decode(raw, p)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	for _, w := range []int{2, 3, 7, 64, 1000} {
		p.Workers = w
		got, err := Decode(raw, p)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", w)
	}
}

func TestDecodeShapeErrors(t *testing.T) {
	anchors := DefaultLevels()[2].Anchors
	p := DecodeParams{Stride: 32, Anchors: anchors, InputWidth: 64, InputHeight: 64, ProbThreshold: 0.5}

	_, err := Decode(headTensor(2, 4), p)
	assert.ErrorIs(t, err, ErrTensorShape)

	_, err = Decode(headTensor(3, 5), p)
	assert.ErrorIs(t, err, ErrTensorShape)

	short := RawTensor{Channels: 3, Rows: 4, Cols: 20, Data: make([]float32, 3*4*20)}
	_, err = Decode(short, p)
	assert.ErrorIs(t, err, ErrTensorShape)
}

func TestFromShape(t *testing.T) {
	data := make([]float32, 3*4*4*testFeatures)

	tests := []struct {
		name  string
		shape []int64
		rows  int
		err   bool
	}{
		{"batched grid", []int64{1, 3, 4, 4, testFeatures}, 16, false},
		{"grid", []int64{3, 4, 4, testFeatures}, 16, false},
		{"batched flat", []int64{1, 3, 16, testFeatures}, 16, false},
		{"flat", []int64{3, 16, testFeatures}, 16, false},
		{"batch of two", []int64{2, 3, 2, 4, testFeatures}, 0, true},
		{"wrong size", []int64{3, 15, testFeatures}, 0, true},
		{"2-d", []int64{48, testFeatures}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := FromShape(tt.shape, data)
			if tt.err {
				assert.ErrorIs(t, err, ErrTensorShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, raw.Channels)
			assert.Equal(t, tt.rows, raw.Rows)
			assert.Equal(t, testFeatures, raw.Cols)
		})
	}
}

func TestFromDense(t *testing.T) {
	d := tensor.New(tensor.WithShape(1, 3, 2, 2, testFeatures), tensor.Of(tensor.Float32))
	raw, err := FromDense(d)
	require.NoError(t, err)
	assert.Equal(t, 4, raw.Rows)

	f64 := tensor.New(tensor.WithShape(3, 4, testFeatures), tensor.Of(tensor.Float64))
	_, err = FromDense(f64)
	assert.ErrorIs(t, err, ErrTensorShape)
}
