package detector

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dudu/facekit/internal/inference"
)

// sessionExecutor adapts an ONNX Runtime session to Executor
type sessionExecutor struct {
	session *inference.Session
}

// NewSessionExecutor wraps s
func NewSessionExecutor(s *inference.Session) Executor {
	return &sessionExecutor{session: s}
}

func (e *sessionExecutor) Forward(input []float32, shape []int64) (map[string]RawTensor, error) {
	outputs, err := e.session.Forward(input, shape)
	if err != nil {
		return nil, err
	}
	heads := make(map[string]RawTensor, len(outputs))
	for name, out := range outputs {
		raw, err := FromDense(out)
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", name)
		}
		heads[name] = raw
	}
	return heads, nil
}

func (e *sessionExecutor) Close() error {
	return e.session.Destroy()
}

// NewONNX loads a yolov7-face ONNX model. inference.Initialize must have been called.
func NewONNX(modelPath string, cfg Config, log *logrus.Entry) (*YOLOFace, error) {
	if len(cfg.Levels) == 0 {
		cfg.Levels = DefaultLevels()
	}
	if cfg.InputName == "" {
		cfg.InputName = "images"
	}
	session, err := inference.NewSession(modelPath, []string{cfg.InputName}, OutputNames(cfg.Levels))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create detector session")
	}
	return NewYOLOFace(NewSessionExecutor(session), cfg, log), nil
}
