package detector

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrTensorShape is returned for tensors whose shape does not match the decoder's expectations
var ErrTensorShape = errors.New("unexpected tensor shape")

// RawTensor is a detector head output laid out as
// [anchor][grid cell][feature], grid cells in raster order.
type RawTensor struct {
	Channels int // anchors
	Rows     int // grid cells
	Cols     int // features per cell
	Data     []float32
}

// NewRawTensor validates dims against data
func NewRawTensor(channels, rows, cols int, data []float32) (RawTensor, error) {
	if channels <= 0 || rows <= 0 || cols <= 0 {
		return RawTensor{}, errors.Wrapf(ErrTensorShape, "dims %dx%dx%d", channels, rows, cols)
	}
	if len(data) != channels*rows*cols {
		return RawTensor{}, errors.Wrapf(ErrTensorShape, "dims %dx%dx%d need %d values, have %d",
			channels, rows, cols, channels*rows*cols, len(data))
	}
	return RawTensor{Channels: channels, Rows: rows, Cols: cols, Data: data}, nil
}

// FromShape interprets an executor output shape. Accepted layouts are
// [1,A,H,W,F], [A,H,W,F], [1,A,H*W,F] and [A,H*W,F].
func FromShape(shape []int64, data []float32) (RawTensor, error) {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	if len(dims) == 5 || (len(dims) == 4 && dims[0] == 1) {
		if dims[0] != 1 {
			return RawTensor{}, errors.Wrapf(ErrTensorShape, "batch %d", dims[0])
		}
		dims = dims[1:]
	}

	switch len(dims) {
	case 4:
		return NewRawTensor(dims[0], dims[1]*dims[2], dims[3], data)
	case 3:
		return NewRawTensor(dims[0], dims[1], dims[2], data)
	default:
		return RawTensor{}, errors.Wrapf(ErrTensorShape, "shape %v", shape)
	}
}

// FromDense converts a float32 gorgonia tensor using the same layout rules as FromShape
func FromDense(t *tensor.Dense) (RawTensor, error) {
	if t.Dtype() != tensor.Float32 {
		return RawTensor{}, errors.Wrapf(ErrTensorShape, "dtype %v", t.Dtype())
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return RawTensor{}, errors.Wrap(ErrTensorShape, "non-slice backing")
	}
	shape := t.Shape()
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	return FromShape(dims, data)
}

// Row returns the feature vector of grid cell r under anchor c
func (t RawTensor) Row(c, r int) []float32 {
	off := (c*t.Rows + r) * t.Cols
	return t.Data[off : off+t.Cols]
}
