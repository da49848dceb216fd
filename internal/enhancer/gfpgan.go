package enhancer

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/inference"
)

const gfpganInputSize = 512

// GFPGAN restores aligned 512x512 face crops
type GFPGAN struct {
	session *inference.Session
}

// NewGFPGAN creates a GFPGAN restorer
func NewGFPGAN(modelPath string) (*GFPGAN, error) {
	session, err := inference.NewSession(modelPath, []string{"input"}, []string{"output"})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GFPGAN session")
	}
	return &GFPGAN{session: session}, nil
}

// Restore returns a restored copy of an aligned BGR crop at 512x512
func (g *GFPGAN) Restore(face gocv.Mat) (gocv.Mat, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	if face.Rows() != gfpganInputSize || face.Cols() != gfpganInputSize {
		gocv.Resize(face, &resized, image.Pt(gfpganInputSize, gfpganInputSize), 0, 0, gocv.InterpolationLinear)
	} else {
		face.CopyTo(&resized)
	}

	// [-1, 1]
	input := inference.ToNCHW(resized.ToBytes(), gfpganInputSize, gfpganInputSize, 1.0/127.5, -1)

	outputs, err := g.session.Forward(input, []int64{1, 3, gfpganInputSize, gfpganInputSize})
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "GFPGAN inference failed")
	}
	out, ok := outputs["output"]
	if !ok || out.Shape().TotalSize() != 3*gfpganInputSize*gfpganInputSize {
		return gocv.NewMat(), errors.Errorf("GFPGAN output missing or misshaped")
	}
	data, err := inference.Float32s(out)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "GFPGAN output")
	}

	pixels := inference.FromNCHW(data, gfpganInputSize, gfpganInputSize, 127.5, 127.5)
	return gocv.NewMatFromBytes(gfpganInputSize, gfpganInputSize, gocv.MatTypeCV8UC3, pixels)
}

// Close releases resources
func (g *GFPGAN) Close() error {
	return g.session.Destroy()
}
