package inference

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var (
	initialized bool
	initMu      sync.Mutex
)

// Options configures the ONNX Runtime environment and sessions
type Options struct {
	LibraryPath    string
	IntraOpThreads int
	InterOpThreads int
}

var runtimeOpts Options

// Initialize sets up the ONNX Runtime environment (call once at startup)
func Initialize(opts Options) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "failed to initialize ONNX Runtime")
	}

	runtimeOpts = opts
	initialized = true
	return nil
}

// Shutdown cleans up the ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}
	initialized = false
	return nil
}

// Session wraps an ONNX Runtime inference session with a single float input
type Session struct {
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

// NewSession creates a session for modelPath
func NewSession(modelPath string, inputNames, outputNames []string) (*Session, error) {
	initMu.Lock()
	ok, opts := initialized, runtimeOpts
	initMu.Unlock()
	if !ok {
		return nil, errors.New("ONNX Runtime not initialized, call Initialize() first")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, errors.Wrap(err, "set intra-op threads")
		}
	}
	if opts.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(opts.InterOpThreads); err != nil {
			return nil, errors.Wrap(err, "set inter-op threads")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create session for %s", modelPath)
	}

	logrus.WithFields(logrus.Fields{
		"model":   modelPath,
		"inputs":  inputNames,
		"outputs": outputNames,
	}).Debug("onnx session created")

	return &Session{
		session:     session,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// Forward runs the model on one float32 input. Outputs are allocated by
// the runtime, copied into float32 tensors, and released before returning.
func (s *Session) Forward(input []float32, shape []int64) (map[string]*tensor.Dense, error) {
	in, err := CreateTensor(shape, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer in.Destroy()

	outputs := make([]ort.Value, len(s.outputNames))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, errors.Wrapf(err, "inference failed for %s", s.modelPath)
	}

	result := make(map[string]*tensor.Dense, len(outputs))
	for i, v := range outputs {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Errorf("output %s is not a float32 tensor", s.outputNames[i])
		}
		result[s.outputNames[i]] = ToDense(t.GetShape(), t.GetData())
	}
	return result, nil
}

// Destroy releases session resources
func (s *Session) Destroy() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// ToDense copies a runtime output into a float32 tensor of the same shape
func ToDense(shape []int64, data []float32) *tensor.Dense {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	backing := make([]float32, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}

// Float32s returns the backing data of a float32 tensor
func Float32s(t *tensor.Dense) ([]float32, error) {
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("tensor dtype %v, want float32", t.Dtype())
	}
	return data, nil
}

// ToNCHW converts interleaved 8-bit BGR pixels to a normalized RGB NCHW plane set
func ToNCHW(bgr []byte, width, height int, scale, offset float32) []float32 {
	plane := width * height
	out := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		out[i] = float32(bgr[i*3+2])*scale + offset
		out[plane+i] = float32(bgr[i*3+1])*scale + offset
		out[2*plane+i] = float32(bgr[i*3])*scale + offset
	}
	return out
}

// FromNCHW converts RGB NCHW floats back to interleaved BGR bytes.
// Values are mapped with v*scale+offset and clamped to [0, 255].
func FromNCHW(data []float32, width, height int, scale, offset float32) []byte {
	plane := width * height
	out := make([]byte, 3*plane)
	for i := 0; i < plane; i++ {
		out[i*3+2] = toByte(data[i]*scale + offset)
		out[i*3+1] = toByte(data[plane+i]*scale + offset)
		out[i*3] = toByte(data[2*plane+i]*scale + offset)
	}
	return out
}

func toByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}
