package colorize

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/dudu/facekit/internal/inference"
)

const (
	netSize = 256

	inputName   = "input"
	stemOutput  = "features"
	abOutput    = "out_ab"
	sliceGroups = 1
)

// Colorizer predicts ab chroma for a grayscale photo from its L channel.
// Exports that cannot carry the strided slice layer are split at it: the
// stem graph runs first, Slice rearranges its features on the host, and
// the main graph consumes the result.
type Colorizer struct {
	stem    *inference.Session // nil for single-graph models
	session *inference.Session
}

// NewColorizer loads a siggraph17-style colorization model. stemPath is
// optional.
func NewColorizer(modelPath, stemPath string) (*Colorizer, error) {
	c := &Colorizer{}
	if stemPath != "" {
		stem, err := inference.NewSession(stemPath, []string{inputName}, []string{stemOutput})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create colorizer stem session")
		}
		c.stem = stem
	}
	session, err := inference.NewSession(modelPath, []string{inputName}, []string{abOutput})
	if err != nil {
		if c.stem != nil {
			c.stem.Destroy()
		}
		return nil, errors.Wrap(err, "failed to create colorizer session")
	}
	c.session = session
	return c, nil
}

// Colorize returns a colorized BGR copy of img
func (c *Colorizer) Colorize(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), errors.New("empty image")
	}

	base := gocv.NewMat()
	defer base.Close()
	img.ConvertToWithParams(&base, gocv.MatTypeCV32FC3, 1.0/255, 0)

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(base, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	l := channels[0]

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(l, &small, image.Pt(netSize, netSize), 0, 0, gocv.InterpolationLinear)
	lData, err := small.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "read L channel")
	}
	input := tensor.New(tensor.WithShape(1, 1, netSize, netSize),
		tensor.WithBacking(append([]float32(nil), lData...)))

	if c.stem != nil {
		features, err := forward(c.stem, input, stemOutput)
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "colorizer stem")
		}
		if input, err = sliceFeatures(features); err != nil {
			return gocv.NewMat(), err
		}
	}

	ab, err := forward(c.session, input, abOutput)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "colorizer inference failed")
	}
	shape := ab.Shape()
	if shape.Dims() != 4 || shape[1] != 2 {
		return gocv.NewMat(), errors.Errorf("colorizer output shape %v", shape)
	}
	h, w := shape[2], shape[3]
	abData, err := inference.Float32s(ab)
	if err != nil {
		return gocv.NewMat(), err
	}

	merged := []gocv.Mat{l}
	for k := 0; k < 2; k++ {
		plane, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV32F, floatBytes(abData[k*h*w:(k+1)*h*w]))
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "ab plane")
		}
		full := gocv.NewMat()
		gocv.Resize(plane, &full, image.Pt(img.Cols(), img.Rows()), 0, 0, gocv.InterpolationLinear)
		plane.Close()
		defer full.Close()
		merged = append(merged, full)
	}

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.Merge(merged, &colored)

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(colored, &bgr, gocv.ColorLabToBGR)

	out := gocv.NewMat()
	bgr.ConvertToWithParams(&out, gocv.MatTypeCV8UC3, 255, 0)
	return out, nil
}

// Close releases resources
func (c *Colorizer) Close() error {
	if c.stem != nil {
		if err := c.stem.Destroy(); err != nil {
			c.session.Destroy()
			return err
		}
	}
	return c.session.Destroy()
}

func forward(s *inference.Session, in *tensor.Dense, output string) (*tensor.Dense, error) {
	data, err := inference.Float32s(in)
	if err != nil {
		return nil, err
	}
	shape := make([]int64, 0, in.Dims())
	for _, d := range in.Shape() {
		shape = append(shape, int64(d))
	}
	outputs, err := s.Forward(data, shape)
	if err != nil {
		return nil, err
	}
	out, ok := outputs[output]
	if !ok {
		return nil, errors.Errorf("missing output %s", output)
	}
	return out, nil
}

// sliceFeatures applies the slice layer to stem features and restores the batch axis
func sliceFeatures(features *tensor.Dense) (*tensor.Dense, error) {
	sliced, err := Slice(features, sliceGroups)
	if err != nil {
		return nil, errors.Wrap(err, "slice stem features")
	}
	if err := sliced.Reshape(append([]int{1}, sliced.Shape()...)...); err != nil {
		return nil, errors.Wrap(err, "batch sliced features")
	}
	return sliced, nil
}

func floatBytes(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}
