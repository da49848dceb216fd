package enhancer

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/inference"
)

// RealESRGAN upsamples whole images with a Real-ESRGAN model.
// The model's native factor is taken from its output shape.
type RealESRGAN struct {
	session *inference.Session
}

// NewRealESRGAN creates a Real-ESRGAN upsampler
func NewRealESRGAN(modelPath string) (*RealESRGAN, error) {
	session, err := inference.NewSession(modelPath, []string{"input"}, []string{"output"})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create RealESRGAN session")
	}
	return &RealESRGAN{session: session}, nil
}

// Upscale enlarges img by factor. The network output is resized to the
// exact target when its native factor differs.
func (r *RealESRGAN) Upscale(img gocv.Mat, factor float64) (gocv.Mat, error) {
	height, width := img.Rows(), img.Cols()
	input := inference.ToNCHW(img.ToBytes(), width, height, 1.0/255, 0)

	outputs, err := r.session.Forward(input, []int64{1, 3, int64(height), int64(width)})
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "RealESRGAN inference failed")
	}
	out, ok := outputs["output"]
	if !ok {
		return gocv.NewMat(), errors.New("RealESRGAN output missing")
	}
	shape := out.Shape()
	if shape.Dims() != 4 || shape[1] != 3 {
		return gocv.NewMat(), errors.Errorf("RealESRGAN output shape %v", shape)
	}
	outH, outW := shape[2], shape[3]
	data, err := inference.Float32s(out)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "RealESRGAN output")
	}

	native, err := gocv.NewMatFromBytes(outH, outW, gocv.MatTypeCV8UC3,
		inference.FromNCHW(data, outW, outH, 255, 0))
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "RealESRGAN output")
	}

	target := image.Pt(int(float64(width)*factor), int(float64(height)*factor))
	if target.X == outW && target.Y == outH {
		return native, nil
	}
	defer native.Close()
	resized := gocv.NewMat()
	gocv.Resize(native, &resized, target, 0, 0, gocv.InterpolationArea)
	return resized, nil
}

// Close releases resources
func (r *RealESRGAN) Close() error {
	return r.session.Destroy()
}

// ResizeUpscaler enlarges images with bilinear interpolation
type ResizeUpscaler struct{}

// Upscale enlarges img by factor
func (ResizeUpscaler) Upscale(img gocv.Mat, factor float64) (gocv.Mat, error) {
	out := gocv.NewMat()
	gocv.Resize(img, &out, image.Pt(int(float64(img.Cols())*factor), int(float64(img.Rows())*factor)),
		0, 0, gocv.InterpolationLinear)
	return out, nil
}

// Close is a no-op
func (ResizeUpscaler) Close() error { return nil }
