package detector

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/geometry"
)

// ErrMissingOutput is returned when the executor did not produce a head's tensor
var ErrMissingOutput = errors.New("missing detector output")

// Executor runs the detection network on a 1x3xSxS blob
type Executor interface {
	Forward(input []float32, shape []int64) (map[string]RawTensor, error)
	Close() error
}

// Config holds detector settings
type Config struct {
	InputName      string
	InputSize      int
	ProbThreshold  float32
	NMSThreshold   float32
	MaxFaces       int // <= 0 means unbounded
	Workers        int
	LandmarkStride int
	Levels         []Level
}

// DefaultConfig returns the yolov7-lite-e settings
func DefaultConfig() Config {
	return Config{
		InputName:      "images",
		InputSize:      640,
		ProbThreshold:  0.5,
		NMSThreshold:   0.65,
		MaxFaces:       32,
		Workers:        1,
		LandmarkStride: DefaultLandmarkStride,
		Levels:         DefaultLevels(),
	}
}

// Result is the output of one detection pass
type Result struct {
	Faces     []Candidate // source-image space, descending score
	Dropped   int         // faces beyond MaxFaces
	Letterbox geometry.Letterbox
}

// YOLOFace is the yolov7-face detector
type YOLOFace struct {
	exec Executor
	cfg  Config
	log  *logrus.Entry
}

// NewYOLOFace wraps an executor
func NewYOLOFace(exec Executor, cfg Config, log *logrus.Entry) *YOLOFace {
	if len(cfg.Levels) == 0 {
		cfg.Levels = DefaultLevels()
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &YOLOFace{exec: exec, cfg: cfg, log: log.WithField("component", "detector")}
}

// Config returns the detector settings
func (y *YOLOFace) Config() Config {
	return y.cfg
}

// Detect finds faces in a BGR image
func (y *YOLOFace) Detect(img gocv.Mat) (*Result, error) {
	if img.Empty() {
		return nil, errors.New("empty image")
	}

	blob, lb, err := y.Preprocess(img)
	if err != nil {
		return nil, err
	}

	size := int64(y.cfg.InputSize)
	outputs, err := y.exec.Forward(blob, []int64{1, 3, size, size})
	if err != nil {
		return nil, errors.Wrap(err, "detector forward")
	}

	return y.PostProcess(outputs, lb)
}

// Preprocess letterboxes img into a normalized RGB CHW blob
func (y *YOLOFace) Preprocess(img gocv.Mat) ([]float32, geometry.Letterbox, error) {
	lb := geometry.NewLetterbox(img.Cols(), img.Rows(), y.cfg.InputSize)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(lb.ResizedW, lb.ResizedH), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(resized, &padded, lb.Top(), lb.Bottom(), lb.Left(), lb.Right(),
		gocv.BorderConstant, color.RGBA{})
	if padded.Cols() != y.cfg.InputSize || padded.Rows() != y.cfg.InputSize {
		return nil, lb, errors.Errorf("letterbox of %dx%d produced %dx%d",
			img.Cols(), img.Rows(), padded.Cols(), padded.Rows())
	}

	// scale 1/255, swap BGR to RGB, NCHW
	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(y.cfg.InputSize, y.cfg.InputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, lb, errors.Wrap(err, "read input blob")
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, lb, nil
}

// PostProcess decodes every head, suppresses duplicates, caps the face
// count and maps survivors back into the source image.
func (y *YOLOFace) PostProcess(outputs map[string]RawTensor, lb geometry.Letterbox) (*Result, error) {
	var proposals []Candidate
	for _, level := range y.cfg.Levels {
		raw, ok := outputs[level.Output]
		if !ok {
			return nil, errors.Wrap(ErrMissingOutput, level.Output)
		}
		cands, err := Decode(raw, DecodeParams{
			Stride:         level.Stride,
			Anchors:        level.Anchors,
			InputWidth:     y.cfg.InputSize,
			InputHeight:    y.cfg.InputSize,
			ProbThreshold:  y.cfg.ProbThreshold,
			LandmarkStride: y.cfg.LandmarkStride,
			Workers:        y.cfg.Workers,
		})
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, cands...)
	}

	picked := NMS(proposals, y.cfg.NMSThreshold)

	res := &Result{Letterbox: lb}
	if y.cfg.MaxFaces > 0 && len(picked) > y.cfg.MaxFaces {
		res.Dropped = len(picked) - y.cfg.MaxFaces
		picked = picked[:y.cfg.MaxFaces]
		y.log.WithFields(logrus.Fields{
			"max_faces": y.cfg.MaxFaces,
			"dropped":   res.Dropped,
		}).Warn("face limit reached, dropping lowest scores")
	}
	res.Faces = RemapAll(picked, lb)

	y.log.WithFields(logrus.Fields{
		"proposals": len(proposals),
		"faces":     len(res.Faces),
	}).Debug("detection done")
	return res, nil
}

// Close releases the executor
func (y *YOLOFace) Close() error {
	if y.exec == nil {
		return nil
	}
	return y.exec.Close()
}
