package colorize

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Slice rearranges a C x H x W float32 tensor into (C*groups) x H/2 x W/2.
// Output channel p takes every second pixel of input channel p mod C,
// starting at row (p/C) mod 2 and column (p/C)/2. groups = 1 is a plain
// stride-2 subsample; groups = 4 is a full space-to-depth.
func Slice(in *tensor.Dense, groups int) (*tensor.Dense, error) {
	if groups < 1 || groups > 4 {
		return nil, errors.Errorf("slice groups %d out of range [1,4]", groups)
	}
	if in.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("slice wants float32, got %v", in.Dtype())
	}

	shape := in.Shape()
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return nil, errors.Errorf("slice wants CxHxW, got %v", in.Shape())
	}
	c, h, w := shape[0], shape[1], shape[2]
	outC, outH, outW := c*groups, h/2, w/2
	if outH == 0 || outW == 0 {
		return nil, errors.Errorf("slice input %v too small", in.Shape())
	}

	src := in.Data().([]float32)
	dst := make([]float32, outC*outH*outW)
	for p := 0; p < outC; p++ {
		q := p / c
		plane := src[(p%c)*h*w:]
		dy, dx := q%2, q/2
		out := dst[p*outH*outW:]
		for i := 0; i < outH; i++ {
			row := plane[(2*i+dy)*w:]
			for j := 0; j < outW; j++ {
				out[i*outW+j] = row[2*j+dx]
			}
		}
	}

	return tensor.New(tensor.WithShape(outC, outH, outW), tensor.WithBacking(dst)), nil
}
